package api

import "net/http"

type userPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ListUsers handles GET /api/users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.db.ListUsers()
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// GetUser handles GET /api/users/{uuid}.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.db.GetUserByUUID(r.PathValue("uuid"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if u == nil {
		writeAPIError(w, notFound("user not found"))
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// CreateUser handles POST /api/users.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req userPayload
	if err := decodeJSON(r, &req); err != nil {
		writeAPIError(w, err)
		return
	}
	if req.Email == "" {
		writeAPIError(w, badRequest("email is required"))
		return
	}
	if len(req.Password) < 8 {
		writeAPIError(w, badRequest("password must be at least 8 characters"))
		return
	}
	if existing, err := h.db.GetUserByEmail(req.Email); err != nil {
		writeAPIError(w, err)
		return
	} else if existing != nil {
		writeAPIError(w, badRequest("a user with email %q already exists", req.Email))
		return
	}

	u, err := h.db.CreateUser(req.Email, req.Password)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// DeleteUser handles DELETE /api/users/{uuid}.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.db.DeleteUser(r.PathValue("uuid"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if !deleted {
		writeAPIError(w, notFound("user not found"))
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

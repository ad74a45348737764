package api

import (
	"net/http"

	"github.com/jonsson/defcon/internal/model"
)

type groupPayload struct {
	UUID string `json:"uuid,omitempty"`
	Name string `json:"name"`
}

// ListGroups handles GET /api/groups.
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.db.ListGroups()
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

// GetGroup handles GET /api/groups/{uuid}.
func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := h.db.GetGroupByUUID(r.PathValue("uuid"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if g == nil {
		writeAPIError(w, notFound("group not found"))
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// CreateGroup handles POST /api/groups.
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupPayload
	if err := decodeJSON(r, &req); err != nil {
		writeAPIError(w, err)
		return
	}
	if req.Name == "" {
		writeAPIError(w, badRequest("name is required"))
		return
	}
	g := &model.Group{Name: req.Name}
	if err := h.db.CreateGroup(g); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// UpdateGroup handles PUT /api/groups/{uuid}.
func (h *Handler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	existing, err := h.db.GetGroupByUUID(r.PathValue("uuid"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if existing == nil {
		writeAPIError(w, notFound("group not found"))
		return
	}
	var req groupPayload
	if err := decodeJSON(r, &req); err != nil {
		writeAPIError(w, err)
		return
	}
	if req.Name == "" {
		writeAPIError(w, badRequest("name is required"))
		return
	}
	existing.Name = req.Name
	if err := h.db.UpdateGroup(existing); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

// DeleteGroup handles DELETE /api/groups/{uuid}.
func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.db.DeleteGroup(r.PathValue("uuid"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if !deleted {
		writeAPIError(w, notFound("group not found"))
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

package api

import (
	"net/http"

	"github.com/jonsson/defcon/internal/model"
)

type alerterPayload struct {
	UUID     string            `json:"uuid,omitempty"`
	Name     string            `json:"name"`
	Kind     model.AlerterKind `json:"kind"`
	URL      string            `json:"url,omitempty"`
	Username string            `json:"username,omitempty"`
	Password string            `json:"password,omitempty"`
}

// ListAlerters handles GET /api/alerters.
func (h *Handler) ListAlerters(w http.ResponseWriter, r *http.Request) {
	alerters, err := h.db.ListAlerters()
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alerters)
}

// GetAlerter handles GET /api/alerters/{uuid}.
func (h *Handler) GetAlerter(w http.ResponseWriter, r *http.Request) {
	a, err := h.db.GetAlerterByUUID(r.PathValue("uuid"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if a == nil {
		writeAPIError(w, notFound("alerter not found"))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// CreateAlerter handles POST /api/alerters.
func (h *Handler) CreateAlerter(w http.ResponseWriter, r *http.Request) {
	var req alerterPayload
	if err := decodeJSON(r, &req); err != nil {
		writeAPIError(w, err)
		return
	}
	if err := validateAlerterPayload(&req); err != nil {
		writeAPIError(w, err)
		return
	}
	a := &model.Alerter{Name: req.Name, Kind: req.Kind, URL: req.URL, Username: req.Username, Password: req.Password}
	if err := h.db.CreateAlerter(a); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// UpdateAlerter handles PUT /api/alerters/{uuid}.
func (h *Handler) UpdateAlerter(w http.ResponseWriter, r *http.Request) {
	existing, err := h.db.GetAlerterByUUID(r.PathValue("uuid"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if existing == nil {
		writeAPIError(w, notFound("alerter not found"))
		return
	}
	var req alerterPayload
	if err := decodeJSON(r, &req); err != nil {
		writeAPIError(w, err)
		return
	}
	if err := validateAlerterPayload(&req); err != nil {
		writeAPIError(w, err)
		return
	}
	existing.Name = req.Name
	existing.Kind = req.Kind
	existing.URL = req.URL
	existing.Username = req.Username
	existing.Password = req.Password
	if err := h.db.UpdateAlerter(existing); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

// DeleteAlerter handles DELETE /api/alerters/{uuid}.
func (h *Handler) DeleteAlerter(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.db.DeleteAlerter(r.PathValue("uuid"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if !deleted {
		writeAPIError(w, notFound("alerter not found"))
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func validateAlerterPayload(p *alerterPayload) error {
	if p.Name == "" {
		return badRequest("name is required")
	}
	switch p.Kind {
	case model.AlerterWebhook, model.AlerterSlack, model.AlerterPagerDuty, model.AlerterNoop:
	default:
		return badRequest("unknown alerter kind %q", p.Kind)
	}
	if p.Kind != model.AlerterNoop && p.URL == "" {
		return badRequest("url is required for alerter kind %q", p.Kind)
	}
	return nil
}

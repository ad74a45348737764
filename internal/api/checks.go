package api

import (
	"net/http"

	"github.com/jonsson/defcon/internal/model"
)

// SettingDefaultAlerter is the settings key the controller's configured
// default alerter UUID is stored under (ALERTER_DEFAULT at startup). Unlike
// internal/alert.SettingFallbackAlerter, which the dispatcher consults at
// send time, this one only seeds CreateCheck when the caller didn't name
// an alerter explicitly.
const SettingDefaultAlerter = "alerter_default"

// checkPayload is the wire representation of a Check: its own fields plus
// the site bindings and kind-specific spec that live in sibling tables.
type checkPayload struct {
	UUID             string          `json:"uuid,omitempty"`
	Name             string          `json:"name"`
	Kind             model.CheckKind `json:"kind"`
	Enabled          *bool           `json:"enabled,omitempty"`
	OnStatusPage     *bool           `json:"on_status_page,omitempty"`
	Interval         model.Duration  `json:"interval"`
	DownInterval     *model.Duration `json:"down_interval,omitempty"`
	SiteThreshold    int             `json:"site_threshold"`
	PassingThreshold int             `json:"passing_threshold"`
	FailingThreshold int             `json:"failing_threshold"`
	Silent           bool            `json:"silent,omitempty"`
	GroupUUID        string          `json:"group_uuid,omitempty"`
	AlerterUUID      string          `json:"alerter_uuid,omitempty"`
	Sites            []string        `json:"sites,omitempty"`
	Spec             model.Spec      `json:"spec"`
	CreatedAt        string          `json:"created_at,omitempty"`
	UpdatedAt        string          `json:"updated_at,omitempty"`
}

func (h *Handler) checkToPayload(c *model.Check) (*checkPayload, error) {
	sites, err := h.db.Sites(c.ID)
	if err != nil {
		return nil, err
	}
	spec, err := h.db.GetSpec(c.ID, c.Kind)
	if err != nil {
		return nil, err
	}

	p := &checkPayload{
		UUID: c.UUID, Name: c.Name, Kind: c.Kind,
		Enabled: &c.Enabled, OnStatusPage: &c.OnStatusPage,
		Interval: c.Interval, DownInterval: c.DownInterval,
		SiteThreshold: c.SiteThreshold, PassingThreshold: c.PassingThreshold, FailingThreshold: c.FailingThreshold,
		Silent: c.Silent, Sites: sites, Spec: *spec,
		CreatedAt: c.CreatedAt.Format("2006-01-02T15:04:05"),
		UpdatedAt: c.UpdatedAt.Format("2006-01-02T15:04:05"),
	}
	if c.GroupID != nil {
		if g, err := h.resolveGroupByID(*c.GroupID); err == nil && g != nil {
			p.GroupUUID = g.UUID
		}
	}
	if c.AlerterID != nil {
		if a, err := h.db.GetAlerterByID(*c.AlerterID); err == nil && a != nil {
			p.AlerterUUID = a.UUID
		}
	}
	return p, nil
}

func (h *Handler) resolveGroupByID(id int64) (*model.Group, error) {
	groups, err := h.db.ListGroups()
	if err != nil {
		return nil, err
	}
	for i := range groups {
		if groups[i].ID == id {
			return &groups[i], nil
		}
	}
	return nil, nil
}

// ListChecks handles GET /api/checks, optionally filtered by ?group=.
func (h *Handler) ListChecks(w http.ResponseWriter, r *http.Request) {
	checks, err := h.db.ListChecks(r.URL.Query().Get("group"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	out := make([]*checkPayload, 0, len(checks))
	for i := range checks {
		p, err := h.checkToPayload(&checks[i])
		if err != nil {
			writeAPIError(w, err)
			return
		}
		out = append(out, p)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetCheck handles GET /api/checks/{uuid}.
func (h *Handler) GetCheck(w http.ResponseWriter, r *http.Request) {
	check, err := h.db.GetCheckByUUID(r.PathValue("uuid"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if check == nil {
		writeAPIError(w, notFound("check not found"))
		return
	}
	p, err := h.checkToPayload(check)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreateCheck handles POST /api/checks.
func (h *Handler) CreateCheck(w http.ResponseWriter, r *http.Request) {
	var req checkPayload
	if err := decodeJSON(r, &req); err != nil {
		writeAPIError(w, err)
		return
	}
	if err := validateCheckPayload(&req); err != nil {
		writeAPIError(w, err)
		return
	}

	check := &model.Check{
		Name: req.Name, Kind: req.Kind, Enabled: true, OnStatusPage: true,
		Interval: req.Interval, DownInterval: req.DownInterval,
		SiteThreshold: req.SiteThreshold, PassingThreshold: req.PassingThreshold, FailingThreshold: req.FailingThreshold,
		Silent: req.Silent,
	}
	if req.Enabled != nil {
		check.Enabled = *req.Enabled
	}
	if req.OnStatusPage != nil {
		check.OnStatusPage = *req.OnStatusPage
	}
	alerterUUID := req.AlerterUUID
	if alerterUUID == "" {
		if def, err := h.db.GetSetting(SettingDefaultAlerter); err == nil {
			alerterUUID = def
		}
	}
	if err := h.resolveRefs(check, req.GroupUUID, alerterUUID); err != nil {
		writeAPIError(w, err)
		return
	}
	if len(req.Sites) > 0 && check.SiteThreshold > len(req.Sites) {
		writeAPIError(w, badRequest("site_threshold (%d) exceeds the number of bound sites (%d)", check.SiteThreshold, len(req.Sites)))
		return
	}

	if err := h.db.CreateCheck(check, req.Sites); err != nil {
		writeAPIError(w, err)
		return
	}
	req.Spec.Kind = req.Kind
	if err := h.db.SaveSpec(check.ID, &req.Spec); err != nil {
		writeAPIError(w, err)
		return
	}

	p, err := h.checkToPayload(check)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// UpdateCheck handles PUT /api/checks/{uuid} (full replace).
func (h *Handler) UpdateCheck(w http.ResponseWriter, r *http.Request) {
	existing, err := h.db.GetCheckByUUID(r.PathValue("uuid"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if existing == nil {
		writeAPIError(w, notFound("check not found"))
		return
	}

	var req checkPayload
	if err := decodeJSON(r, &req); err != nil {
		writeAPIError(w, err)
		return
	}
	if req.Kind != "" && req.Kind != existing.Kind {
		writeAPIError(w, badRequest("a check's kind cannot be changed after creation"))
		return
	}
	if err := validateCheckPayload(&req); err != nil {
		writeAPIError(w, err)
		return
	}

	existing.Name = req.Name
	existing.Interval = req.Interval
	existing.DownInterval = req.DownInterval
	existing.SiteThreshold = req.SiteThreshold
	existing.PassingThreshold = req.PassingThreshold
	existing.FailingThreshold = req.FailingThreshold
	existing.Silent = req.Silent
	if req.Enabled != nil {
		existing.Enabled = *req.Enabled
	}
	if req.OnStatusPage != nil {
		existing.OnStatusPage = *req.OnStatusPage
	}
	if err := h.resolveRefs(existing, req.GroupUUID, req.AlerterUUID); err != nil {
		writeAPIError(w, err)
		return
	}

	if err := h.db.UpdateCheck(existing); err != nil {
		writeAPIError(w, err)
		return
	}
	if len(req.Sites) > 0 {
		if existing.SiteThreshold > len(req.Sites) {
			writeAPIError(w, badRequest("site_threshold (%d) exceeds the number of bound sites (%d)", existing.SiteThreshold, len(req.Sites)))
			return
		}
		if err := h.db.UpdateSites(existing.ID, req.Sites); err != nil {
			writeAPIError(w, err)
			return
		}
	}
	req.Spec.Kind = existing.Kind
	if err := h.db.SaveSpec(existing.ID, &req.Spec); err != nil {
		writeAPIError(w, err)
		return
	}

	p, err := h.checkToPayload(existing)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// patchCheckPayload mirrors checkPayload but with every field optional, so
// a PATCH body only touches what it sets (§6: "PATCH honours partial
// payload").
type patchCheckPayload struct {
	Name             *string         `json:"name,omitempty"`
	Enabled          *bool           `json:"enabled,omitempty"`
	OnStatusPage     *bool           `json:"on_status_page,omitempty"`
	Interval         *model.Duration `json:"interval,omitempty"`
	DownInterval     *model.Duration `json:"down_interval,omitempty"`
	SiteThreshold    *int            `json:"site_threshold,omitempty"`
	PassingThreshold *int            `json:"passing_threshold,omitempty"`
	FailingThreshold *int            `json:"failing_threshold,omitempty"`
	Silent           *bool           `json:"silent,omitempty"`
	GroupUUID        *string         `json:"group_uuid,omitempty"`
	AlerterUUID      *string         `json:"alerter_uuid,omitempty"`
	Sites            []string        `json:"sites,omitempty"`
	Spec             *model.Spec     `json:"spec,omitempty"`
}

// PatchCheck handles PATCH /api/checks/{uuid}.
func (h *Handler) PatchCheck(w http.ResponseWriter, r *http.Request) {
	existing, err := h.db.GetCheckByUUID(r.PathValue("uuid"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if existing == nil {
		writeAPIError(w, notFound("check not found"))
		return
	}

	var req patchCheckPayload
	if err := decodeJSON(r, &req); err != nil {
		writeAPIError(w, err)
		return
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}
	if req.Enabled != nil {
		existing.Enabled = *req.Enabled
	}
	if req.OnStatusPage != nil {
		existing.OnStatusPage = *req.OnStatusPage
	}
	if req.Interval != nil {
		existing.Interval = *req.Interval
	}
	if req.DownInterval != nil {
		existing.DownInterval = req.DownInterval
	}
	if req.SiteThreshold != nil {
		existing.SiteThreshold = *req.SiteThreshold
	}
	if req.PassingThreshold != nil {
		existing.PassingThreshold = *req.PassingThreshold
	}
	if req.FailingThreshold != nil {
		existing.FailingThreshold = *req.FailingThreshold
	}
	if req.Silent != nil {
		existing.Silent = *req.Silent
	}
	groupUUID, alerterUUID := "", ""
	if req.GroupUUID != nil {
		groupUUID = *req.GroupUUID
	} else if existing.GroupID != nil {
		if g, _ := h.resolveGroupByID(*existing.GroupID); g != nil {
			groupUUID = g.UUID
		}
	}
	if req.AlerterUUID != nil {
		alerterUUID = *req.AlerterUUID
	} else if existing.AlerterID != nil {
		if a, _ := h.db.GetAlerterByID(*existing.AlerterID); a != nil {
			alerterUUID = a.UUID
		}
	}
	if err := h.resolveRefs(existing, groupUUID, alerterUUID); err != nil {
		writeAPIError(w, err)
		return
	}

	if err := h.db.UpdateCheck(existing); err != nil {
		writeAPIError(w, err)
		return
	}
	if req.Sites != nil {
		if existing.SiteThreshold > len(req.Sites) {
			writeAPIError(w, badRequest("site_threshold (%d) exceeds the number of bound sites (%d)", existing.SiteThreshold, len(req.Sites)))
			return
		}
		if err := h.db.UpdateSites(existing.ID, req.Sites); err != nil {
			writeAPIError(w, err)
			return
		}
	}
	if req.Spec != nil {
		req.Spec.Kind = existing.Kind
		if err := h.db.SaveSpec(existing.ID, req.Spec); err != nil {
			writeAPIError(w, err)
			return
		}
	}

	p, err := h.checkToPayload(existing)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeleteCheck handles DELETE /api/checks/{uuid}. Without ?delete=true it
// soft-disables; with it, it hard-deletes (§6).
func (h *Handler) DeleteCheck(w http.ResponseWriter, r *http.Request) {
	uuid := r.PathValue("uuid")
	if r.URL.Query().Get("delete") == "true" {
		deleted, err := h.db.DeleteCheck(uuid)
		if err != nil {
			writeAPIError(w, err)
			return
		}
		if !deleted {
			writeAPIError(w, notFound("check not found"))
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
		return
	}

	check, err := h.db.GetCheckByUUID(uuid)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if check == nil {
		writeAPIError(w, notFound("check not found"))
		return
	}
	if err := h.db.SetCheckEnabled(uuid, false); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func validateCheckPayload(p *checkPayload) error {
	if p.Name == "" {
		return badRequest("name is required")
	}
	if p.Kind == "" {
		return badRequest("kind is required")
	}
	if p.Interval.Duration <= 0 {
		return badRequest("interval must be a positive duration")
	}
	if p.SiteThreshold < 1 {
		return badRequest("site_threshold must be at least 1")
	}
	if p.PassingThreshold < 1 || p.FailingThreshold < 1 {
		return badRequest("passing_threshold and failing_threshold must be at least 1")
	}
	return nil
}

func (h *Handler) resolveRefs(check *model.Check, groupUUID, alerterUUID string) error {
	if groupUUID == "" {
		check.GroupID = nil
	} else {
		g, err := h.db.GetGroupByUUID(groupUUID)
		if err != nil {
			return err
		}
		if g == nil {
			return badRequest("unknown group_uuid %q", groupUUID)
		}
		check.GroupID = &g.ID
	}
	if alerterUUID == "" {
		check.AlerterID = nil
	} else {
		a, err := h.db.GetAlerterByUUID(alerterUUID)
		if err != nil {
			return err
		}
		if a == nil {
			return badRequest("unknown alerter_uuid %q", alerterUUID)
		}
		check.AlerterID = &a.ID
	}
	return nil
}

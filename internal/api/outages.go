package api

import (
	"net/http"
)

// ListOutages handles GET /api/outages[?from=&to=].
func (h *Handler) ListOutages(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateRange(r)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	outages, err := h.db.ListAllOutages(from, to)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outages)
}

// GetOutage handles GET /api/outages/{uuid}.
func (h *Handler) GetOutage(w http.ResponseWriter, r *http.Request) {
	o, err := h.db.GetOutageByUUID(r.PathValue("uuid"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if o == nil {
		writeAPIError(w, notFound("outage not found"))
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type commentPayload struct {
	Comment string `json:"comment"`
}

// SetOutageComment handles PUT /api/outages/{uuid}/comment.
func (h *Handler) SetOutageComment(w http.ResponseWriter, r *http.Request) {
	uuid := r.PathValue("uuid")
	outage, err := h.db.GetOutageByUUID(uuid)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if outage == nil {
		writeAPIError(w, notFound("outage not found"))
		return
	}

	var req commentPayload
	if err := decodeJSON(r, &req); err != nil {
		writeAPIError(w, err)
		return
	}
	if err := h.db.SetOutageComment(uuid, req.Comment); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// OutageTimeline handles GET /api/outages/{uuid}/timeline.
func (h *Handler) OutageTimeline(w http.ResponseWriter, r *http.Request) {
	outage, err := h.db.GetOutageByUUID(r.PathValue("uuid"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if outage == nil {
		writeAPIError(w, notFound("outage not found"))
		return
	}
	timeline, err := h.db.ListTimeline(outage.ID)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, timeline)
}

// ListSiteOutages handles GET /api/sites/outages.
func (h *Handler) ListSiteOutages(w http.ResponseWriter, r *http.Request) {
	outages, err := h.db.ListAllSiteOutages()
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outages)
}

// GetSiteOutage handles GET /api/sites/outages/{uuid}.
func (h *Handler) GetSiteOutage(w http.ResponseWriter, r *http.Request) {
	so, err := h.db.GetSiteOutageByUUID(r.PathValue("uuid"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if so == nil {
		writeAPIError(w, notFound("site outage not found"))
		return
	}
	writeJSON(w, http.StatusOK, so)
}

// SiteOutageEvents handles GET /api/sites/outages/{uuid}/events.
func (h *Handler) SiteOutageEvents(w http.ResponseWriter, r *http.Request) {
	so, err := h.db.GetSiteOutageByUUID(r.PathValue("uuid"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if so == nil {
		writeAPIError(w, notFound("site outage not found"))
		return
	}
	events, err := h.db.EventsBySiteOutage(so.ID)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// CheckEvents handles GET /api/checks/{uuid}/events[?from=&to=].
func (h *Handler) CheckEvents(w http.ResponseWriter, r *http.Request) {
	check, err := h.db.GetCheckByUUID(r.PathValue("uuid"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if check == nil {
		writeAPIError(w, notFound("check not found"))
		return
	}
	from, to, err := parseDateRange(r)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	events, err := h.db.EventsForCheck(check.ID, from, to)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

package api

import (
	"net/http"

	"github.com/jonsson/defcon/internal/model"
)

// runnerCheckPayload is one entry in GET /api/runner/checks' response: just
// enough for a remote runner to dispatch the probe and report back by uuid.
type runnerCheckPayload struct {
	UUID     string         `json:"uuid"`
	Name     string         `json:"name"`
	Interval model.Duration `json:"interval"`
	Spec     model.Spec     `json:"spec"`
}

// RunnerChecks handles GET /api/runner/checks, returning the checks stale
// for the authenticated runner's site.
func (h *Handler) RunnerChecks(w http.ResponseWriter, r *http.Request) {
	claims, ok := runnerClaimsFromContext(r.Context())
	if !ok {
		writeAPIError(w, unauthorized("missing runner credentials"))
		return
	}

	stale, err := h.db.StaleChecks(claims.Site)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	out := make([]runnerCheckPayload, 0, len(stale))
	for _, sc := range stale {
		// deadmanswitch checks read heartbeats from the Store, which a remote
		// runner cannot reach, so they are never handed out here.
		if sc.Check.Kind == model.KindDeadManSwitch {
			continue
		}
		out = append(out, runnerCheckPayload{UUID: sc.Check.UUID, Name: sc.Check.Name, Interval: sc.Check.Interval, Spec: sc.Spec})
	}
	writeJSON(w, http.StatusOK, out)
}

// runnerReportRequest is a single probe result posted back by a runner.
type runnerReportRequest struct {
	Check   string       `json:"check"`
	Status  model.Status `json:"status"`
	Message string       `json:"message"`
}

// RunnerReport handles POST /api/runner/report.
func (h *Handler) RunnerReport(w http.ResponseWriter, r *http.Request) {
	claims, ok := runnerClaimsFromContext(r.Context())
	if !ok {
		writeAPIError(w, unauthorized("missing runner credentials"))
		return
	}

	var req runnerReportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAPIError(w, err)
		return
	}
	if req.Check == "" {
		writeAPIError(w, badRequest("check is required"))
		return
	}
	switch req.Status {
	case model.StatusOK, model.StatusCritical, model.StatusWarning:
	default:
		writeAPIError(w, badRequest("unknown status %d", req.Status))
		return
	}

	check, err := h.db.GetCheckByUUID(req.Check)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if check == nil {
		writeAPIError(w, notFound("check not found"))
		return
	}

	if err := h.ingestor.Ingest(check, claims.Site, req.Status, req.Message); err != nil {
		writeAPIError(w, err)
		return
	}
	h.metrics.ObserveIngest(req.Status.String())
	writeJSON(w, http.StatusNoContent, nil)
}

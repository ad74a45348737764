package api

import "net/http"

// SetupRoutes wires the full §6 surface onto mux: health/auth, checks,
// outages, site outages, events, groups, alerters, users, status/statistics,
// the runner protocol, the dead-man-switch checkin endpoint, and /metrics.
func (h *Handler) SetupRoutes(mux *http.ServeMux, dmsCheckin http.HandlerFunc) {
	mux.HandleFunc("GET /api/-/health", h.Health)
	mux.HandleFunc("GET /api/-/status", h.Status)
	mux.HandleFunc("GET /api/-/statistics", h.RequireAccess(h.Statistics))
	mux.HandleFunc("GET /metrics", h.Metrics)

	mux.HandleFunc("POST /api/-/token", h.AuthRateLimit(h.Token))
	mux.HandleFunc("POST /api/-/refresh", h.AuthRateLimit(h.Refresh))
	mux.HandleFunc("GET /api/-/me", h.RequireAccess(h.Me))

	mux.HandleFunc("GET /api/checks", h.RequireAccess(h.ListChecks))
	mux.HandleFunc("POST /api/checks", h.RequireAccess(h.CreateCheck))
	mux.HandleFunc("GET /api/checks/{uuid}", h.RequireAccess(h.GetCheck))
	mux.HandleFunc("PUT /api/checks/{uuid}", h.RequireAccess(h.UpdateCheck))
	mux.HandleFunc("PATCH /api/checks/{uuid}", h.RequireAccess(h.PatchCheck))
	mux.HandleFunc("DELETE /api/checks/{uuid}", h.RequireAccess(h.DeleteCheck))
	mux.HandleFunc("GET /api/checks/{uuid}/events", h.RequireAccess(h.CheckEvents))

	mux.HandleFunc("GET /api/outages", h.RequireAccess(h.ListOutages))
	mux.HandleFunc("GET /api/outages/{uuid}", h.RequireAccess(h.GetOutage))
	mux.HandleFunc("PUT /api/outages/{uuid}/comment", h.RequireAccess(h.SetOutageComment))
	mux.HandleFunc("GET /api/outages/{uuid}/timeline", h.RequireAccess(h.OutageTimeline))

	mux.HandleFunc("GET /api/sites/outages", h.RequireAccess(h.ListSiteOutages))
	mux.HandleFunc("GET /api/sites/outages/{uuid}", h.RequireAccess(h.GetSiteOutage))
	mux.HandleFunc("GET /api/sites/outages/{uuid}/events", h.RequireAccess(h.SiteOutageEvents))

	mux.HandleFunc("GET /api/groups", h.RequireAccess(h.ListGroups))
	mux.HandleFunc("POST /api/groups", h.RequireAccess(h.CreateGroup))
	mux.HandleFunc("GET /api/groups/{uuid}", h.RequireAccess(h.GetGroup))
	mux.HandleFunc("PUT /api/groups/{uuid}", h.RequireAccess(h.UpdateGroup))
	mux.HandleFunc("DELETE /api/groups/{uuid}", h.RequireAccess(h.DeleteGroup))

	mux.HandleFunc("GET /api/alerters", h.RequireAccess(h.ListAlerters))
	mux.HandleFunc("POST /api/alerters", h.RequireAccess(h.CreateAlerter))
	mux.HandleFunc("GET /api/alerters/{uuid}", h.RequireAccess(h.GetAlerter))
	mux.HandleFunc("PUT /api/alerters/{uuid}", h.RequireAccess(h.UpdateAlerter))
	mux.HandleFunc("DELETE /api/alerters/{uuid}", h.RequireAccess(h.DeleteAlerter))

	mux.HandleFunc("GET /api/users", h.RequireAccess(h.ListUsers))
	mux.HandleFunc("POST /api/users", h.RequireAccess(h.CreateUser))
	mux.HandleFunc("GET /api/users/{uuid}", h.RequireAccess(h.GetUser))
	mux.HandleFunc("DELETE /api/users/{uuid}", h.RequireAccess(h.DeleteUser))

	mux.HandleFunc("GET /api/runner/checks", h.AuthRateLimit(h.RequireRunner(h.RunnerChecks)))
	mux.HandleFunc("POST /api/runner/report", h.AuthRateLimit(h.RequireRunner(h.RunnerReport)))

	if dmsCheckin != nil {
		mux.HandleFunc("GET /checkin/{uuid}", dmsCheckin)
	}
}

// Middleware chains LoggingMiddleware, CORSMiddleware, BodyLimitMiddleware
// and general per-IP rate limiting around mux, in the order the teacher
// applied them.
func Middleware(mux http.Handler, cfg SecurityConfig, generalLimiter *RateLimiter) http.Handler {
	handler := mux
	handler = RateLimitMiddleware(generalLimiter)(handler)
	handler = BodyLimitMiddleware(cfg)(handler)
	handler = CORSMiddleware(cfg)(handler)
	handler = LoggingMiddleware(handler)
	return handler
}

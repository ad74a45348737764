package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus series exposed at GET /metrics. Counters
// are registered against a private registry (not the global DefaultRegisterer)
// so running several Handlers in the same process never panics on a
// duplicate registration.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	ingestEvents    *prometheus.CounterVec
	outagesOpened   prometheus.Counter
	outagesResolved prometheus.Counter
	alertsDispatched *prometheus.CounterVec
}

// NewMetrics builds and registers every series.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requestsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "defcon_api_requests_total",
			Help: "Total HTTP requests handled, labeled by route and status class.",
		}, []string{"route", "status"}),
		requestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "defcon_api_request_duration_seconds",
			Help:    "HTTP request latency in seconds, labeled by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		ingestEvents: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "defcon_ingest_events_total",
			Help: "Probe events ingested, labeled by status.",
		}, []string{"status"}),
		outagesOpened: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "defcon_outages_opened_total",
			Help: "Global outages confirmed.",
		}),
		outagesResolved: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "defcon_outages_resolved_total",
			Help: "Global outages resolved.",
		}),
		alertsDispatched: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "defcon_alerts_dispatched_total",
			Help: "Alert notifications dispatched, labeled by alerter kind and outcome.",
		}, []string{"kind", "outcome"}),
	}
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return m
}

// Handler exposes the metrics as a standard Prometheus scrape target.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(route, statusClass string, seconds float64) {
	m.requestsTotal.WithLabelValues(route, statusClass).Inc()
	m.requestDuration.WithLabelValues(route).Observe(seconds)
}

// ObserveIngest records one ingested probe event.
func (m *Metrics) ObserveIngest(status string) {
	m.ingestEvents.WithLabelValues(status).Inc()
}

// ObserveOutage records a global outage edge transition.
func (m *Metrics) ObserveOutage(opened bool) {
	if opened {
		m.outagesOpened.Inc()
		return
	}
	m.outagesResolved.Inc()
}

// ObserveAlert records one alert dispatch attempt.
func (m *Metrics) ObserveAlert(kind, outcome string) {
	m.alertsDispatched.WithLabelValues(kind, outcome).Inc()
}

// Metrics handles GET /metrics.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.Handler().ServeHTTP(w, r)
}

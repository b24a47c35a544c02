// Package metrics provides Prometheus metrics for the console and the record
// service.
package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector. Each instance registers with its own
// registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	// Workflow round trips, by strategy and outcome
	SearchesTotal            *prometheus.CounterVec
	SearchDuration           *prometheus.HistogramVec
	CredentialUpdatesTotal   *prometheus.CounterVec
	CredentialUpdateDuration *prometheus.HistogramVec

	// Console page registry
	ActivePages      prometheus.Gauge
	PagesReapedTotal prometheus.Counter

	// Record service
	PasswordChangesTotal *prometheus.CounterVec // by route and outcome
	LoginAttemptsTotal   *prometheus.CounterVec // by outcome

	EndpointLatency *prometheus.HistogramVec
}

// New creates a Metrics instance registered on a fresh registry, together
// with the Go and process collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		SearchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "jardim_workflow_searches_total",
			Help: "Record searches by strategy and outcome",
		}, []string{"strategy", "outcome"}),

		SearchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jardim_workflow_search_duration_seconds",
			Help:    "Latency of record searches against the record service",
			Buckets: prometheus.DefBuckets,
		}, []string{"strategy"}),

		CredentialUpdatesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "jardim_workflow_credential_updates_total",
			Help: "Credential updates by strategy and outcome",
		}, []string{"strategy", "outcome"}),

		CredentialUpdateDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jardim_workflow_credential_update_duration_seconds",
			Help:    "Latency of credential updates against the record service",
			Buckets: prometheus.DefBuckets,
		}, []string{"strategy"}),

		ActivePages: f.NewGauge(prometheus.GaugeOpts{
			Name: "jardim_console_active_pages",
			Help: "Console pages currently open",
		}),

		PagesReapedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "jardim_console_pages_reaped_total",
			Help: "Console pages closed after sitting idle past their TTL",
		}),

		PasswordChangesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "jardim_records_password_changes_total",
			Help: "Password change requests handled by the record service",
		}, []string{"route", "outcome"}),

		LoginAttemptsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "jardim_records_login_attempts_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),

		EndpointLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jardim_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

// ObserveSearch implements workflow.Observer
func (m *Metrics) ObserveSearch(strategy, outcome string, d time.Duration) {
	m.SearchesTotal.WithLabelValues(strategy, outcome).Inc()
	m.SearchDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

// ObserveCredentialUpdate implements workflow.Observer
func (m *Metrics) ObserveCredentialUpdate(strategy, outcome string, d time.Duration) {
	m.CredentialUpdatesTotal.WithLabelValues(strategy, outcome).Inc()
	m.CredentialUpdateDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

// PageOpened records a new console page
func (m *Metrics) PageOpened() {
	m.ActivePages.Inc()
}

// PageClosed records a console page going away; reaped pages are also
// counted separately
func (m *Metrics) PageClosed(reaped bool) {
	m.ActivePages.Dec()
	if reaped {
		m.PagesReapedTotal.Inc()
	}
}

// RecordPasswordChange counts a password change handled by the record service
func (m *Metrics) RecordPasswordChange(route, outcome string) {
	m.PasswordChangesTotal.WithLabelValues(route, outcome).Inc()
}

// RecordLogin counts a login attempt
func (m *Metrics) RecordLogin(outcome string) {
	m.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request latency by chi route pattern
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = r.Method + " " + pattern
			}
		}
		m.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	})
}

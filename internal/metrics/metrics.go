// Package metrics exposes prometheus collectors for the client and the
// reference backend.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "leadsync"

// Metrics holds every collector on its own registry, so tests and the dev
// server never collide on the global one.
type Metrics struct {
	reg *prometheus.Registry

	// client side
	requests  *prometheus.HistogramVec
	refreshes *prometheus.CounterVec
	retries   *prometheus.CounterVec
	rows      *prometheus.CounterVec

	// server side
	httpRequests *prometheus.HistogramVec
	leads        prometheus.Counter
	rejections   *prometheus.CounterVec
}

// New registers all collectors plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,

		// requests measures backend exchanges made by the client.
		// Labels: method, status (HTTP code, or "network_error")
		requests: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Backend request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),

		// refreshes counts credential refresh attempts.
		// Labels: outcome (success, rejected, empty, error)
		refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "refresh_total",
			Help:      "Credential refresh attempts by outcome",
		}, []string{"outcome"}),

		retries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "retries_total",
			Help:      "Retried operations",
		}, []string{"op"}),

		// rows counts import rows.
		// Labels: outcome (succeeded, rejected, skipped)
		rows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "rows_total",
			Help:      "Import rows processed by outcome",
		}, []string{"outcome"}),

		httpRequests: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "http_request_duration_seconds",
			Help:      "Handled request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),

		leads: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "leads_created_total",
			Help:      "Leads stored by the backend",
		}),

		// rejections counts refused requests.
		// Labels: reason (unauthorized, invalid, busy)
		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "rejections_total",
			Help:      "Requests refused by the backend",
		}, []string{"reason"}),
	}
}

// ObserveRequest implements transport.Observer.
func (m *Metrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	label := "network_error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(method, label).Observe(elapsed.Seconds())
}

// ObserveRefresh implements transport.Observer.
func (m *Metrics) ObserveRefresh(outcome string) {
	m.refreshes.WithLabelValues(outcome).Inc()
}

// ObserveRetry implements crm.RetryObserver.
func (m *Metrics) ObserveRetry(op string) {
	m.retries.WithLabelValues(op).Inc()
}

// ObserveRow implements core.RowObserver.
func (m *Metrics) ObserveRow(outcome string) {
	m.rows.WithLabelValues(outcome).Inc()
}

// ObserveHTTP records one request handled by the backend.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// LeadCreated counts a stored lead.
func (m *Metrics) LeadCreated() { m.leads.Inc() }

// Rejected counts a refused request.
func (m *Metrics) Rejected(reason string) {
	m.rejections.WithLabelValues(reason).Inc()
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

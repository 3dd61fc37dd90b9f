package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce       sync.Once
	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec
	actionsTotal       *prometheus.CounterVec
	activeSessions     prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors of the session API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "situated_http_requests_total",
			Help: "Total number of session API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "situated_http_latency_seconds",
			Help:    "Latency distribution for session API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 15.0, 60.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "situated_http_errors_total",
			Help: "Total number of error responses returned by the session API.",
		}, []string{"method", "route", "status"})

		actionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "situated_workflow_actions_total",
			Help: "Workflow actions by outcome.",
		}, []string{"action", "outcome"})

		activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "situated_active_sessions",
			Help: "Number of open workflow sessions.",
		})

		prometheus.MustRegister(httpRequestsTotal, httpLatencySeconds, httpErrorsTotal, actionsTotal, activeSessions)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the error response counter.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// Actions exposes the workflow action counter.
func Actions() *prometheus.CounterVec {
	RegisterMetrics()
	return actionsTotal
}

// ActiveSessions exposes the open session gauge.
func ActiveSessions() prometheus.Gauge {
	RegisterMetrics()
	return activeSessions
}

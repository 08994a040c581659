// Package metrics exposes Prometheus collectors for provisioning outcomes
// and API traffic.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Provisioning metrics
	provisionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kubecraft",
			Subsystem: "provision",
			Name:      "total",
			Help:      "Total number of provisioning runs by result",
		},
		[]string{"result"},
	)

	provisionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "kubecraft",
			Subsystem: "provision",
			Name:      "duration_seconds",
			Help:      "Duration of provisioning runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.5min
		},
	)

	rollbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kubecraft",
			Subsystem: "provision",
			Name:      "rollback_total",
			Help:      "Total number of provisioning runs that were rolled back",
		},
	)

	// Teardown metrics
	teardownTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kubecraft",
			Subsystem: "teardown",
			Name:      "total",
			Help:      "Total number of teardown runs by scope and result",
		},
		[]string{"scope", "result"},
	)

	// API metrics
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kubecraft",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kubecraft",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP requests in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route"},
	)
)

func init() {
	prometheus.MustRegister(
		provisionTotal,
		provisionDuration,
		rollbackTotal,
		teardownTotal,
		apiRequestsTotal,
		apiRequestDuration,
	)
}

// Teardown scopes.
const (
	ScopePause = "pause"
	ScopeFull  = "full"
	ScopeData  = "data"
)

// Result labels.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// RecordProvision records one provisioning run.
func RecordProvision(result string, seconds float64) {
	provisionTotal.WithLabelValues(result).Inc()
	provisionDuration.Observe(seconds)
}

// RecordRollback records a provisioning run that triggered compensation.
func RecordRollback() {
	rollbackTotal.Inc()
}

// RecordTeardown records one teardown run.
func RecordTeardown(scope, result string) {
	teardownTotal.WithLabelValues(scope, result).Inc()
}

// RecordAPIRequest records one served HTTP request.
func RecordAPIRequest(method, route, status string, seconds float64) {
	apiRequestsTotal.WithLabelValues(method, route, status).Inc()
	apiRequestDuration.WithLabelValues(method, route).Observe(seconds)
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Package metrics defines Prometheus collectors for the HTTP surface and
// the datastore interception layer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenantplane_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tenantplane_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	datastoreOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenantplane_datastore_ops_total",
		Help: "Count of intercepted datastore operations by collection, action, and outcome",
	}, []string{"collection", "action", "outcome"})

	datastoreOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tenantplane_datastore_op_duration_seconds",
		Help:    "Duration of intercepted datastore operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"collection", "action"})

	securityViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenantplane_security_violations_total",
		Help: "Count of rejected security violations by kind",
	}, []string{"kind"})
)

// ObserveHTTPRequest records one HTTP request.
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveDatastoreOp records one intercepted datastore operation.
func ObserveDatastoreOp(collection, action, outcome string, duration time.Duration) {
	datastoreOpsTotal.WithLabelValues(collection, action, outcome).Inc()
	if duration > 0 {
		datastoreOpDuration.WithLabelValues(collection, action).Observe(duration.Seconds())
	}
}

// ObserveSecurityViolation counts a rejected violation, e.g.
// "membership_violation" or "cross_tenant_mutation".
func ObserveSecurityViolation(kind string) {
	securityViolationsTotal.WithLabelValues(kind).Inc()
}

// Package metrics holds the Prometheus collectors of the verification service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"coupon-market/api/internal/verify"
)

const ServiceName = "couponverify"

var (
	BackendAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(ServiceName, "backend", "attempts_total"),
		Help: "Backend invocations by model and outcome",
	}, []string{"model", "outcome"})
	BackendRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(ServiceName, "backend", "retries_total"),
		Help: "Transient failures retried after the backoff",
	}, []string{"model"})
	BackendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    prometheus.BuildFQName(ServiceName, "backend", "duration_seconds"),
		Help:    "Duration of a backend attempt including its retry, in seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"model"})
	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(ServiceName, "verification", "total"),
		Help: "Finished verifications by caller and status",
	}, []string{"source", "status"})
	VerificationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    prometheus.BuildFQName(ServiceName, "verification", "duration_seconds"),
		Help:    "Duration of a whole verification in seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"source"})
)

// ObserveAttempt is meant for verify.WithObserver.
func ObserveAttempt(a verify.Attempt) {
	BackendAttempts.WithLabelValues(a.Model, string(a.Outcome)).Inc()
	if a.Retried {
		BackendRetries.WithLabelValues(a.Model).Inc()
	}
	BackendDuration.WithLabelValues(a.Model).Observe(a.Duration.Seconds())
}

// ObserveVerification records the outcome of one Verify call made by source.
func ObserveVerification(source string, status verify.Status, started time.Time) {
	Verifications.WithLabelValues(source, string(status)).Inc()
	VerificationDuration.WithLabelValues(source).Observe(time.Since(started).Seconds())
}

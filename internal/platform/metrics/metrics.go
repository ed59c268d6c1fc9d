package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	ConsentsRecorded    prometheus.Counter
	ConsentsWithdrawn   prometheus.Counter
	GranularUpdates     prometheus.Counter
	CascadeActions      prometheus.Counter
	SubjectRequests     *prometheus.CounterVec
	AuditWriteFailures  prometheus.Counter
	CleanupRuns         prometheus.Counter
	CleanupDuration     prometheus.Histogram
	APILogWriteFailures prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ConsentsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veil_consents_recorded_total",
			Help: "Total number of consent records created",
		}),
		ConsentsWithdrawn: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veil_consents_withdrawn_total",
			Help: "Total number of consent withdrawals",
		}),
		GranularUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veil_granular_consent_updates_total",
			Help: "Total number of per-purpose consent flag changes",
		}),
		CascadeActions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veil_cascade_actions_applied_total",
			Help: "Total number of erasure actions applied by consent cascades",
		}),
		SubjectRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veil_subject_requests_total",
			Help: "Total number of data subject requests by kind",
		}, []string{"kind"}),
		AuditWriteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veil_audit_write_failures_total",
			Help: "Total number of audit log appends that could not be persisted",
		}),
		CleanupRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veil_cleanup_runs_total",
			Help: "Total number of scheduled retention cleanup runs",
		}),
		CleanupDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "veil_cleanup_duration_seconds",
			Help:    "Duration of retention cleanup runs",
			Buckets: prometheus.DefBuckets,
		}),
		APILogWriteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veil_api_log_write_failures_total",
			Help: "Total number of swallowed API request log write failures",
		}),
	}
}

// Package metrics exposes the Prometheus counters and gauges the worker
// loop and HTTP layer update.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every counter/gauge the pipeline updates. Construct once
// at startup and pass by reference into Worker/httpapi.
type Metrics struct {
	JobsLeased    *prometheus.CounterVec
	JobsCompleted *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	JobsSkipped   *prometheus.CounterVec
	JobsRetried   *prometheus.CounterVec

	QueueBacklogPending prometheus.Gauge
	ValidationQuotaUsed *prometheus.GaugeVec

	IntakeAccepted *prometheus.CounterVec
	IntakeBlocked  *prometheus.CounterVec
}

// New registers and returns the metric set. Safe to call once per process
// — a second call against the default registerer will panic on duplicate
// registration, matching promauto's standard behavior.
func New() *Metrics {
	return &Metrics{
		JobsLeased: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unified_events",
			Name:      "jobs_leased_total",
			Help:      "Total number of queue jobs leased by a worker.",
		}, []string{"worker_id"}),
		JobsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unified_events",
			Name:      "jobs_completed_total",
			Help:      "Total number of queue jobs completed successfully.",
		}, []string{"platform_code"}),
		JobsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unified_events",
			Name:      "jobs_failed_total",
			Help:      "Total number of queue jobs that exhausted retries.",
		}, []string{"platform_code"}),
		JobsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unified_events",
			Name:      "jobs_skipped_total",
			Help:      "Total number of queue jobs skipped (precondition unmet or quota exhausted).",
		}, []string{"platform_code", "reason"}),
		JobsRetried: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unified_events",
			Name:      "jobs_retried_total",
			Help:      "Total number of queue jobs scheduled for retry.",
		}, []string{"platform_code"}),
		QueueBacklogPending: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "unified_events",
			Name:      "queue_backlog_pending",
			Help:      "Pending queue jobs observed at the start of the last batch.",
		}),
		ValidationQuotaUsed: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "unified_events",
			Name:      "validation_quota_used",
			Help:      "Validation platform daily quota usage, as a fraction of the configured limit.",
		}, []string{"platform_code"}),
		IntakeAccepted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unified_events",
			Name:      "intake_accepted_total",
			Help:      "Total number of events accepted at intake.",
		}, []string{"event_type"}),
		IntakeBlocked: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unified_events",
			Name:      "intake_blocked_total",
			Help:      "Total number of events blocked at intake (bot or invalid).",
		}, []string{"event_type"}),
	}
}

// SetValidationQuotaUsage records a platform's daily validation quota usage
// as a fraction of its configured limit, sampled on every quota check.
func (m *Metrics) SetValidationQuotaUsage(platformCode string, count, limit int) {
	if m == nil || limit <= 0 {
		return
	}
	m.ValidationQuotaUsed.WithLabelValues(platformCode).Set(float64(count) / float64(limit))
}

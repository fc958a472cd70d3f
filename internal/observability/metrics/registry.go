// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cascade metrics track per-strategy fetch attempts made by the
// strategy cascade engine.
var (
	// CascadeAttemptsTotal counts cascade strategy attempts by outcome.
	CascadeAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cascade_attempts_total",
			Help: "Total number of cascade strategy attempts by strategy and outcome",
		},
		[]string{"strategy", "outcome"}, // outcome: success, failure, truncated
	)

	// CascadeAttemptDuration measures the duration of a single strategy attempt.
	CascadeAttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cascade_attempt_duration_seconds",
			Help:    "Duration of a single cascade strategy attempt",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"strategy"},
	)

	// CascadeExhaustedTotal counts URLs for which every strategy failed.
	CascadeExhaustedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cascade_exhausted_total",
			Help: "Total number of fetches where the entire cascade was exhausted without success",
		},
	)
)

// Worker metrics track the job queue worker pool.
var (
	// WorkerJobsTotal counts processed jobs by outcome.
	WorkerJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_total",
			Help: "Total number of worker jobs processed by outcome",
		},
		[]string{"outcome"}, // outcome: completed, duplicate, fallback_triggered, failed, requeued
	)

	// WorkerJobDuration measures time spent processing a single job end to end.
	WorkerJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "worker_job_duration_seconds",
			Help:    "Time taken to process a single worker job",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)
)

// Search-fallback metrics track the rate-limited search path.
var (
	// SearchFallbackTotal counts fallback search attempts by outcome.
	SearchFallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_fallback_total",
			Help: "Total number of search-fallback lookups by outcome",
		},
		[]string{"outcome"}, // outcome: found, not_found, queued, quota_exhausted
	)
)

// Nuclear retry metrics track the persisted failure-recovery scheduler.
var (
	// NuclearRetryRunsTotal counts nuclear scheduler tick outcomes per retried record.
	NuclearRetryRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nuclear_retry_runs_total",
			Help: "Total number of nuclear retry attempts by outcome",
		},
		[]string{"outcome"}, // outcome: recovered, rescheduled, escalated
	)

	// NuclearPendingGauge tracks the number of records currently awaiting retry.
	NuclearPendingGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nuclear_pending_records",
			Help: "Number of nuclear failure records currently pending retry",
		},
	)
)

// RecordCascadeAttempt records one strategy attempt's outcome and duration.
func RecordCascadeAttempt(strategyName, outcome string, duration time.Duration) {
	CascadeAttemptsTotal.WithLabelValues(strategyName, outcome).Inc()
	CascadeAttemptDuration.WithLabelValues(strategyName).Observe(duration.Seconds())
}

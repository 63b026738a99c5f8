// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stocksync",
		Name:      "sync_runs_total",
		Help:      "Sync runs by final status.",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stocksync",
		Name:      "stage_duration_seconds",
		Help:      "Duration of orchestrator stages.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"stage", "status"})

	MappingOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stocksync",
		Name:      "mapping_outcomes_total",
		Help:      "Matcher partition sizes by entity and outcome.",
	}, []string{"entity", "outcome"})

	Mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stocksync",
		Name:      "mutations_total",
		Help:      "Mutations by entity, operation and outcome.",
	}, []string{"entity", "operation", "outcome"})

	BulkOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stocksync",
		Name:      "bulk_operations_total",
		Help:      "Bulk import jobs by outcome.",
	}, []string{"outcome"})

	WorkerJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stocksync",
		Name:      "worker_jobs_total",
		Help:      "Queued mutation jobs handled by the worker.",
	}, []string{"entity", "outcome"})
)

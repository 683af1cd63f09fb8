// Package metrics provides Prometheus metrics for the Clover service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DetectionRunsTotal tracks duplicate detection runs by mode and outcome
	DetectionRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "detection",
			Name:      "runs_total",
			Help:      "Total number of duplicate detection runs by mode and status",
		},
		[]string{"mode", "status"},
	)

	// DetectionDuration tracks how long a detection run takes
	DetectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "detection",
			Name:      "duration_seconds",
			Help:      "Duration of duplicate detection runs in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"mode"},
	)

	// PairsEvaluatedTotal tracks pairwise comparisons
	PairsEvaluatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "detection",
			Name:      "pairs_evaluated_total",
			Help:      "Total number of payee pairs compared",
		},
		[]string{"mode"},
	)

	// GroupsFoundTotal tracks duplicate groups returned by recommended action
	GroupsFoundTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "detection",
			Name:      "groups_total",
			Help:      "Total number of duplicate groups returned by recommended action",
		},
		[]string{"action"},
	)

	// GatewayBatchesTotal tracks semantic gateway batches by mode and status
	GatewayBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "semantic",
			Name:      "batches_total",
			Help:      "Total number of semantic gateway batches by mode and status",
		},
		[]string{"mode", "status"},
	)

	// GatewayBatchDuration tracks semantic gateway call latency
	GatewayBatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "semantic",
			Name:      "batch_duration_seconds",
			Help:      "Duration of semantic gateway calls in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	// MergesTotal tracks merge executions by status
	MergesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "merge",
			Name:      "executions_total",
			Help:      "Total number of payee merges by status",
		},
		[]string{"status"},
	)

	// TransactionsReassignedTotal tracks transactions moved onto surviving payees
	TransactionsReassignedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "merge",
			Name:      "transactions_reassigned_total",
			Help:      "Total number of transactions reassigned to a surviving payee",
		},
	)

	// MergeWarningsTotal tracks non-fatal merge step failures
	MergeWarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "merge",
			Name:      "warnings_total",
			Help:      "Total number of merge warnings by step",
		},
		[]string{"step"},
	)

	// CacheRequestsTotal tracks detection cache lookups
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Total number of detection cache lookups by result",
		},
		[]string{"result"},
	)
)

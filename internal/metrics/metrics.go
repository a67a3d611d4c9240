// Package metrics holds the Prometheus collectors for the selection engine.
// They register on the default registry; the HTTP server exposes them at
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OutcomesRecorded counts answers applied to arm state, by correctness.
	OutcomesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mabquiz",
		Name:      "outcomes_recorded_total",
		Help:      "Answer outcomes applied to question and topic arms",
	}, []string{"correct"})

	// OutcomesRejected counts outcomes refused before any write.
	OutcomesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mabquiz",
		Name:      "outcomes_rejected_total",
		Help:      "Answer outcomes rejected, by reason",
	}, []string{"reason"})

	// Selections counts next-question decisions.
	Selections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mabquiz",
		Name:      "selections_total",
		Help:      "Next-question selections made",
	})

	// SelectionCandidates observes the candidate set size per selection.
	SelectionCandidates = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mabquiz",
		Name:      "selection_candidates",
		Help:      "Number of eligible questions per selection",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})

	// SyncRecords counts remote records by kind and how they were resolved.
	SyncRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mabquiz",
		Name:      "sync_records_total",
		Help:      "Remote arm records applied, by kind and result",
	}, []string{"kind", "result"})

	// StoreErrors counts store failures surfaced to callers, by operation.
	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mabquiz",
		Name:      "store_errors_total",
		Help:      "Persistent store failures, by engine operation",
	}, []string{"op"})
)

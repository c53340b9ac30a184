// Package metrics exposes Prometheus collectors for pipeline runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageRuns counts stage executions by outcome.
	StageRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitrep",
		Name:      "stage_runs_total",
		Help:      "Pipeline stage executions by stage and status.",
	}, []string{"stage", "status"})

	// StageDuration observes stage wall time.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sitrep",
		Name:      "stage_duration_seconds",
		Help:      "Pipeline stage duration.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})

	// Items counts per-stage record outcomes (inserted, skipped,
	// created, attached, scored, summarized, published).
	Items = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitrep",
		Name:      "items_total",
		Help:      "Records handled per stage by result.",
	}, []string{"stage", "result"})
)

// ObserveStage records one stage execution.
func ObserveStage(stage string, seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StageRuns.WithLabelValues(stage, status).Inc()
	StageDuration.WithLabelValues(stage).Observe(seconds)
}

// CountItems adds a per-stage result counter.
func CountItems(stage, result string, n int) {
	if n > 0 {
		Items.WithLabelValues(stage, result).Add(float64(n))
	}
}

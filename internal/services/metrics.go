// Package services – Prometheus collectors.
//
// Save-outcome counters complement the HTTP-level metrics: they break traffic
// down by what the dedup core decided (saved, exact duplicate, warned) rather
// than by status code, which is what product dashboards actually watch.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// saveOutcomes counts completed save attempts by item type and outcome.
	// Outcomes: "saved", "duplicate", "warned", "error".
	saveOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plate_save_outcomes_total",
			Help: "Completed plate save attempts by item type and dedup outcome.",
		},
		[]string{"item_type", "outcome"},
	)

	// idemReplays counts idempotency-guarded executions by result.
	// Results: "executed", "replayed".
	idemReplays = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plate_idempotency_executions_total",
			Help: "Idempotency-guarded executions by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(saveOutcomes, idemReplays)
}

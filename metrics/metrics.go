// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_sync_runs_total",
			Help: "Sync runs by pipeline and final status",
		},
		[]string{"pipeline", "status"}, // status: success, failure, dry_run
	)

	SyncEntities = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_sync_entities_total",
			Help: "Entities processed by sync pipelines, by outcome",
		},
		[]string{"pipeline", "outcome"}, // created, updated, stale, skipped
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tcg_sync_duration_seconds",
			Help:    "Wall-clock duration of sync runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"pipeline"},
	)

	UnresolvedCards = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tcg_unresolved_card_codes_total",
			Help: "Card codes from deck lists that matched no catalog card",
		},
	)

	AlertsTriggered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_price_alerts_triggered_total",
			Help: "Triggered price alerts by threshold type",
		},
		[]string{"threshold_type"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tcg_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// Package metrics provides Prometheus metrics for the order engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Feed metrics.
var (
	PriceTicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_price_ticks_total",
		Help: "Price observations ingested, by source.",
	}, []string{"source"})

	FeedErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_feed_errors_total",
		Help: "Failed price fetch batches.",
	})

	WatchedInstruments = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sentinel_watched_instruments",
		Help: "Instruments currently in the polling set.",
	})

	UpdatesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_price_updates_dropped_total",
		Help: "Price updates dropped because a subscriber buffer was full.",
	})
)

// Matching and execution metrics.
var (
	EvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_evaluations_total",
		Help: "Order evaluations, by order kind.",
	}, []string{"kind"})

	TriggersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_triggers_total",
		Help: "Orders whose condition became true, by kind.",
	}, []string{"kind"})

	ExecutionAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_execution_attempts_total",
		Help: "Swap build attempts, by outcome.",
	}, []string{"outcome"})

	ExecutionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sentinel_execution_latency_seconds",
		Help:    "Latency of a full swap build (quote, balance, transaction).",
		Buckets: prometheus.DefBuckets,
	})

	OrdersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sentinel_orders_active",
		Help: "Orders currently in the in-memory active set.",
	})

	OrdersTerminalTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_orders_terminal_total",
		Help: "Orders reaching a terminal state, by status.",
	}, []string{"status"})

	ReconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_reconcile_runs_total",
		Help: "Completed store reconciliation passes.",
	})
)

// Event and liveness metrics.
var (
	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_events_published_total",
		Help: "Lifecycle events published, by type.",
	}, []string{"type"})

	EventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_events_dropped_total",
		Help: "Lifecycle events dropped because a subscriber buffer was full.",
	})

	HeartbeatTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sentinel_heartbeat_timestamp",
		Help: "Unix timestamp of the last processed price tick.",
	})
)

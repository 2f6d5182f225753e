// Package telemetry exposes the process's Prometheus metrics as
// package-level collectors, registered in one batch from main.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

var AlertsRaisedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "authguard",
		Subsystem: "alerts",
		Name:      "raised_total",
		Help:      "Total number of alerts raised, by detector name.",
	},
	[]string{"detector"},
)

var AlertsFilteredTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "authguard",
		Subsystem: "alerts",
		Name:      "filtered_total",
		Help:      "Total number of raised alerts suppressed by the alert filter, by reason.",
	},
	[]string{"reason"},
)

var EventsProcessedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "authguard",
		Subsystem: "events",
		Name:      "processed_total",
		Help:      "Total number of login events processed by the field processor.",
	},
)

var EventsMalformedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "authguard",
		Subsystem: "events",
		Name:      "malformed_total",
		Help:      "Total number of per-user event batches whose only processing errors were events skipped for failing to parse (counted once per batch).",
	},
)

var SchedulerSubwindowsProcessed = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "authguard",
		Subsystem: "scheduler",
		Name:      "subwindows_processed_total",
		Help:      "Total number of ingestion sub-windows processed.",
	},
)

var SchedulerDataLossTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "authguard",
		Subsystem: "scheduler",
		Name:      "data_loss_total",
		Help:      "Total number of times the scheduler detected pointer lag beyond the data-loss threshold.",
	},
)

var SchedulerLagSeconds = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "authguard",
		Subsystem: "scheduler",
		Name:      "lag_seconds",
		Help:      "Seconds between the scheduler's persisted pointer and now, as of the last invocation.",
	},
)

var RetentionRowsDeletedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "authguard",
		Subsystem: "retention",
		Name:      "rows_deleted_total",
		Help:      "Total number of rows deleted by the retention cleaner, by entity.",
	},
	[]string{"entity"},
)

// Registry collects every metric above for registration in main.
var Registry = []prometheus.Collector{
	AlertsRaisedTotal,
	AlertsFilteredTotal,
	EventsProcessedTotal,
	EventsMalformedTotal,
	SchedulerSubwindowsProcessed,
	SchedulerDataLossTotal,
	SchedulerLagSeconds,
	RetentionRowsDeletedTotal,
}

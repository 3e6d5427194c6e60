// Package metrics exposes Prometheus instruments for the bot and the export
// worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "meterbot"

var (
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Inbound chat messages by decoded action",
		},
		[]string{"action"},
	)

	OutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Engine outcomes by kind and reason",
		},
		[]string{"kind", "reason"},
	)

	CalculationsConfirmed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calculations_confirmed_total",
			Help:      "Calculations confirmed and journaled",
		},
	)

	JournalErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_errors_total",
			Help:      "Journal operations that failed",
		},
		[]string{"op"},
	)

	PublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Confirmed calculations that could not be announced on the queue",
		},
	)

	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Calculations processed by the export worker by result",
		},
		[]string{"result"},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter by scope",
		},
		[]string{"scope"},
	)

	ExportLastRun = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "export_last_run_timestamp",
			Help:      "Unix timestamp of the last completed export sweep",
		},
	)
)

// Export results
const (
	ExportOK      = "ok"
	ExportSkipped = "skipped"
	ExportFailed  = "failed"
)

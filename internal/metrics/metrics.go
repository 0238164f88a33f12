// Package metrics exposes Prometheus collectors for the loader.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DeliveriesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lake_loader_deliveries_received_total",
		Help: "Total number of transport deliveries received.",
	}, []string{"transport"})

	DeliveriesAcked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lake_loader_deliveries_acked_total",
		Help: "Total number of deliveries acknowledged after all notifications were handled.",
	})

	DeliveriesUnacked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lake_loader_deliveries_unacked_total",
		Help: "Total number of deliveries left unacknowledged for redelivery.",
	})

	AckFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lake_loader_ack_failures_total",
		Help: "Total number of acknowledgements that failed after a successful commit.",
	})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lake_loader_notifications_total",
		Help: "Total number of notifications by terminal outcome.",
	}, []string{"outcome"})

	RowsCommitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lake_loader_rows_committed_total",
		Help: "Total number of rows committed per table.",
	}, []string{"table"})

	CommitAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lake_loader_commit_attempts",
		Help:    "Number of table reads needed per append.",
		Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 16},
	})

	NotificationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lake_loader_notification_duration_seconds",
		Help:    "Duration of processing one notification from fetch to commit.",
		Buckets: prometheus.DefBuckets,
	})

	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lake_loader_batch_duration_seconds",
		Help:    "Duration of processing one batch of deliveries.",
		Buckets: prometheus.DefBuckets,
	})

	FatalErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lake_loader_fatal_errors_total",
		Help: "Total number of unrecoverable storage failures. Alert on any increase.",
	})

	ConfigReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lake_loader_config_reloads_total",
		Help: "Total number of configuration reloads by result.",
	}, []string{"result"})
)

// Package metrics provides Prometheus metrics for the rainout service.
// It tracks polling runs, per-target outcomes, change detection and
// notification delivery to make run health and delivery latency visible.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "rainout"
)

// Run metrics track polling runs as a whole.
var (
	// RunsTotal counts runs by outcome: executed, feature_disabled, not_on_boundary.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of polling runs by outcome",
		},
		[]string{"outcome"},
	)

	// RunDuration measures wall time of executed runs.
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of executed polling runs in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// LastRunTimestamp is the unix time of the last executed run.
	LastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last executed polling run",
		},
	)
)

// Target metrics track per (tenant, zip) processing.
var (
	// TargetsTotal counts targets by status: ok, error, guardrail_skipped.
	TargetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "targets_total",
			Help:      "Total number of poll targets by status",
		},
		[]string{"status"},
	)

	// TargetErrorsTotal counts failed targets by error class.
	TargetErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "target_errors_total",
			Help:      "Total number of failed poll targets by error class",
		},
		[]string{"error_class"},
	)

	// TargetLatency measures time to process one target.
	TargetLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "target_latency_seconds",
			Help:      "Time to process a single poll target in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// EventsTotal counts fetched source events by result: changed, skipped_unchanged.
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Total number of source events by detection result",
		},
		[]string{"result"},
	)
)

// Notification metrics track the notification pipeline.
var (
	// NotificationsSentTotal counts notifications by kind and status.
	NotificationsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Total number of notifications sent",
		},
		[]string{"kind", "status"}, // kind: chat_update, in_app_status, no_change
	)

	// NotificationsDeliveredTotal counts queued notifications applied by the delivery worker.
	NotificationsDeliveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_delivered_total",
			Help:      "Total number of queued notifications delivered",
		},
		[]string{"kind", "status"},
	)

	// DetectionToDeliveryLatency measures time from change detection to delivery.
	DetectionToDeliveryLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detection_to_delivery_latency_seconds",
			Help:      "Time from status change detection to chat delivery in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
)

// Source metrics track upstream facility status calls.
var (
	// SourceRequestsTotal counts upstream requests by result.
	SourceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of facility status source requests",
		},
		[]string{"result"},
	)

	// SourceLatency measures a single upstream request.
	SourceLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_latency_seconds",
			Help:      "Latency of facility status source requests in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// SourceCircuitState is 0 closed, 1 half-open, 2 open.
	SourceCircuitState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_circuit_state",
			Help:      "Circuit breaker state of the facility status source",
		},
	)
)

// Queue metrics track message queue health.
var (
	// QueuePublishLatency measures time to publish a message to the queue.
	QueuePublishLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_publish_latency_seconds",
			Help:      "Time to publish a message to the queue in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
		},
	)
)

// Storage metrics track database and cache operations.
var (
	// StorageOperationLatency measures latency of storage operations.
	StorageOperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_operation_latency_seconds",
			Help:      "Latency of storage operations in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"store", "operation"}, // store: state, idempotency, rainout_events, audit_log
	)

	// StorageOperationsTotal counts storage operations.
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operations_total",
			Help:      "Total number of storage operations",
		},
		[]string{"store", "operation", "status"}, // status: success, failure
	)
)

// ObserveStorage records one storage operation started at start.
func ObserveStorage(store, operation string, start time.Time, err error) {
	StorageOperationLatency.WithLabelValues(store, operation).Observe(time.Since(start).Seconds())
	StorageOperationsTotal.WithLabelValues(store, operation, Status(err)).Inc()
}

// Status maps an error to the success/failure label.
func Status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

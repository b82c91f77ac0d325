// Package metrics holds the Prometheus metrics for the stream consumer
// runtime, orchestrator dispatch path, and DLQ, grounded on the teacher's
// pkg/prefetch/metrics.go registration pattern (sync.Once'd package-global,
// promauto-registered vectors).
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	global *Metrics
	once   sync.Once
)

// Metrics holds the Prometheus collectors shared by every consumer group
// (orchestrator, worker, validator).
type Metrics struct {
	EntriesProcessedTotal *prometheus.CounterVec
	EntriesRetriedTotal   *prometheus.CounterVec
	EntriesRejectedTotal  *prometheus.CounterVec
	DLQPublishedTotal     *prometheus.CounterVec
	HandlerDuration       *prometheus.HistogramVec
	ReclaimedTotal        *prometheus.CounterVec
	DispatchLockContended prometheus.Counter
	PendingBacklog        *prometheus.GaugeVec
}

// New returns the process-global Metrics, registering it with the default
// Prometheus registry on first call.
func New() *Metrics {
	once.Do(func() {
		global = &Metrics{
			EntriesProcessedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "eventflow_stream_entries_processed_total",
					Help: "Total number of stream entries successfully handled.",
				},
				[]string{"group", "event_type"},
			),
			EntriesRetriedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "eventflow_stream_entries_retried_total",
					Help: "Total number of stream entries reclaimed and retried after a handler failure.",
				},
				[]string{"group", "event_type"},
			),
			EntriesRejectedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "eventflow_stream_entries_rejected_total",
					Help: "Total number of stream entries rejected by envelope decoding or schema validation.",
				},
				[]string{"group", "reason"},
			),
			DLQPublishedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "eventflow_dlq_published_total",
					Help: "Total number of records quarantined to the dead-letter stream.",
				},
				[]string{"group", "reason"},
			),
			HandlerDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "eventflow_handler_duration_seconds",
					Help:    "Duration of a single handler invocation.",
					Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
				},
				[]string{"group", "event_type"},
			),
			ReclaimedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "eventflow_stream_pending_reclaimed_total",
					Help: "Total number of pending entries reclaimed from idle consumers.",
				},
				[]string{"group"},
			),
			DispatchLockContended: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "eventflow_dispatch_lock_contended_total",
					Help: "Total number of dispatch attempts that found the item's lock already held.",
				},
			),
			PendingBacklog: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "eventflow_backlog_items_by_status",
					Help: "Current number of backlog items in each status.",
				},
				[]string{"status"},
			),
		}
	})
	return global
}

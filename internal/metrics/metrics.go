// Package metrics exposes Prometheus counters and gauges describing
// synchronization runs.
//
// boardhook usually runs from cron, so there is no scrape endpoint: the run
// command writes the registry to a node_exporter textfile instead.
//
// Metrics:
//   - boardhook_actions_fetched_total
//   - boardhook_actions_dropped_total{reason}
//   - boardhook_messages_delivered_total
//   - boardhook_messages_suppressed_total
//   - boardhook_render_failures_total
//   - boardhook_delivery_failures_total
//   - boardhook_runs_total{outcome}
//   - boardhook_checkpoint_timestamp_seconds
//   - boardhook_last_run_timestamp_seconds
//
// A nil *Metrics accepts every call and records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "boardhook"

// Metrics holds the collectors of one process.
type Metrics struct {
	registry *prometheus.Registry

	fetched       prometheus.Counter
	dropped       *prometheus.CounterVec
	delivered     prometheus.Counter
	suppressed    prometheus.Counter
	renderFails   prometheus.Counter
	deliveryFails prometheus.Counter
	runs          *prometheus.CounterVec
	checkpoint    prometheus.Gauge
	lastRun       prometheus.Gauge
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_fetched_total",
			Help:      "Board actions returned by the source.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_dropped_total",
			Help:      "Board actions removed by the filter pipeline, by reason.",
		}, []string{"reason"}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_delivered_total",
			Help:      "Messages accepted by the webhook.",
		}),
		suppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_suppressed_total",
			Help:      "Actions whose renderer chose not to emit a message.",
		}),
		renderFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_failures_total",
			Help:      "Actions skipped because their payload was malformed.",
		}),
		deliveryFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Messages the webhook rejected.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished synchronization runs, by outcome.",
		}, []string{"outcome"}),
		checkpoint: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "checkpoint_timestamp_seconds",
			Help:      "Unix time of the last stored checkpoint.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time at which the last run finished.",
		}),
	}
	m.registry.MustRegister(
		m.fetched,
		m.dropped,
		m.delivered,
		m.suppressed,
		m.renderFails,
		m.deliveryFails,
		m.runs,
		m.checkpoint,
		m.lastRun,
	)
	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Fetched counts n actions returned by the source.
func (m *Metrics) Fetched(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.fetched.Add(float64(n))
}

// Dropped counts n actions removed for reason.
func (m *Metrics) Dropped(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dropped.WithLabelValues(reason).Add(float64(n))
}

// Delivered counts one accepted message.
func (m *Metrics) Delivered() {
	if m == nil {
		return
	}
	m.delivered.Inc()
}

// Suppressed counts one action rendered to nothing.
func (m *Metrics) Suppressed() {
	if m == nil {
		return
	}
	m.suppressed.Inc()
}

// RenderFailed counts one malformed action.
func (m *Metrics) RenderFailed() {
	if m == nil {
		return
	}
	m.renderFails.Inc()
}

// DeliveryFailed counts one rejected message.
func (m *Metrics) DeliveryFailed() {
	if m == nil {
		return
	}
	m.deliveryFails.Inc()
}

// Checkpointed records the checkpoint that was just stored.
func (m *Metrics) Checkpointed(t time.Time) {
	if m == nil {
		return
	}
	m.checkpoint.Set(unixSeconds(t))
}

// RunFinished counts a run with the given outcome ending at t.
func (m *Metrics) RunFinished(outcome string, t time.Time) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.lastRun.Set(unixSeconds(t))
}

// WriteTextfile writes every metric to path in the text exposition format,
// atomically, for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

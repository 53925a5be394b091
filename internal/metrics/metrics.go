// Package metrics holds the Prometheus metrics of a reelcron run.
//
// Commands are short-lived, so metrics are not served over HTTP: each run
// writes them to a node_exporter textfile when --metrics-file is set. All
// methods are safe on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Publish outcomes.
const (
	OutcomePublished  = "published"
	OutcomeFalseFatal = "false_fatal"
	OutcomeFailed     = "failed"
	OutcomeSkipped    = "skipped"
)

// Metrics is the set of reelcron metrics bound to one registry.
type Metrics struct {
	Registry *prometheus.Registry

	publishTotal       *prometheus.CounterVec
	processingSeconds  prometheus.Histogram
	retentionDeleted   *prometheus.CounterVec
	retentionErrors    prometheus.Counter
	pendingRecords     prometheus.Gauge
	nextEventTimestamp prometheus.Gauge
	lastRunTimestamp   *prometheus.GaugeVec
}

// New registers every metric on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		publishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reelcron_publish_total",
			Help: "Publish attempts by outcome",
		}, []string{"outcome"}),
		processingSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "reelcron_processing_seconds",
			Help:    "Time spent waiting for media containers to finish processing",
			Buckets: []float64{10, 20, 30, 60, 90, 120, 180, 240, 300},
		}),
		retentionDeleted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reelcron_retention_deleted_total",
			Help: "Objects removed by the retention sweeper",
		}, []string{"kind"}),
		retentionErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "reelcron_retention_errors_total",
			Help: "Records kept because their media could not be deleted",
		}),
		pendingRecords: f.NewGauge(prometheus.GaugeOpts{
			Name: "reelcron_pending_records",
			Help: "Ready records not posted yet",
		}),
		nextEventTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "reelcron_next_event_timestamp_seconds",
			Help: "Unix time of the next scheduled post, 0 when none",
		}),
		lastRunTimestamp: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reelcron_last_run_timestamp_seconds",
			Help: "Unix time of the last run of each command",
		}, []string{"command"}),
	}
}

// Publish counts one publish outcome.
func (m *Metrics) Publish(outcome string) {
	if m == nil {
		return
	}
	m.publishTotal.WithLabelValues(outcome).Inc()
}

// Processing records a processing wait.
func (m *Metrics) Processing(d time.Duration) {
	if m == nil {
		return
	}
	m.processingSeconds.Observe(d.Seconds())
}

// Deleted counts a retention deletion of kind "record" or "media".
func (m *Metrics) Deleted(kind string) {
	if m == nil {
		return
	}
	m.retentionDeleted.WithLabelValues(kind).Inc()
}

// RetentionError counts a record kept after a media deletion failure.
func (m *Metrics) RetentionError() {
	if m == nil {
		return
	}
	m.retentionErrors.Inc()
}

// Schedule records the number of pending records and the next event.
func (m *Metrics) Schedule(pending int, next time.Time) {
	if m == nil {
		return
	}
	m.pendingRecords.Set(float64(pending))
	if next.IsZero() {
		m.nextEventTimestamp.Set(0)
		return
	}
	m.nextEventTimestamp.Set(float64(next.Unix()))
}

// Ran stamps the completion time of a command.
func (m *Metrics) Ran(command string, at time.Time) {
	if m == nil {
		return
	}
	m.lastRunTimestamp.WithLabelValues(command).Set(float64(at.Unix()))
}

// WriteTextfile writes the registry in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}

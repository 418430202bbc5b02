// Package prometheus provides Prometheus implementations of the
// worker.Metrics and command.RetryObserver interfaces.
package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/get-eventually/tracker/command"
	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/worker"
)

// Default histogram buckets for latency metrics (in seconds).
var defaultBuckets = []float64{
	.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
}

// Outcomes of an Event processed by a Worker, used as the "outcome" label.
const (
	OutcomeHandled = "handled"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

var _ worker.Metrics = new(WorkerMetrics)

// WorkerMetrics implements worker.Metrics using Prometheus.
type WorkerMetrics struct {
	eventDuration *prometheus.HistogramVec
	events        *prometheus.CounterVec
}

// NewWorkerMetrics creates the Worker metrics and registers them on reg.
func NewWorkerMetrics(reg prometheus.Registerer) *WorkerMetrics {
	m := &WorkerMetrics{
		eventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tracker_worker_event_duration_seconds",
			Help:    "Event handling latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"worker", "event_type"}),

		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_worker_events_total",
			Help: "Total number of events processed",
		}, []string{"worker", "event_type", "outcome"}),
	}

	reg.MustRegister(m.eventDuration, m.events)

	return m
}

// EventHandled implements worker.Metrics.
func (m *WorkerMetrics) EventHandled(name worker.Name, typ event.Type, duration time.Duration) {
	m.eventDuration.WithLabelValues(string(name), string(typ)).Observe(duration.Seconds())
	m.events.WithLabelValues(string(name), string(typ), OutcomeHandled).Inc()
}

// EventSkipped implements worker.Metrics.
func (m *WorkerMetrics) EventSkipped(name worker.Name, typ event.Type) {
	m.events.WithLabelValues(string(name), string(typ), OutcomeSkipped).Inc()
}

// EventFailed implements worker.Metrics.
func (m *WorkerMetrics) EventFailed(name worker.Name, typ event.Type, duration time.Duration) {
	m.eventDuration.WithLabelValues(string(name), string(typ)).Observe(duration.Seconds())
	m.events.WithLabelValues(string(name), string(typ), OutcomeFailed).Inc()
}

var _ command.RetryObserver = new(RetryMetrics)

// RetryMetrics implements command.RetryObserver using Prometheus.
type RetryMetrics struct {
	retries *prometheus.CounterVec
}

// NewRetryMetrics creates the Command retry counter and registers it on reg.
func NewRetryMetrics(reg prometheus.Registerer) *RetryMetrics {
	m := &RetryMetrics{
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_command_retries_total",
			Help: "Total number of commands retried after a version conflict",
		}, []string{"command", "attempt"}),
	}

	reg.MustRegister(m.retries)

	return m
}

// ObserveRetry implements command.RetryObserver.
func (m *RetryMetrics) ObserveRetry(commandName string, attempt int) {
	m.retries.WithLabelValues(commandName, strconv.Itoa(attempt)).Inc()
}

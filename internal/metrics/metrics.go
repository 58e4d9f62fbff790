package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ipnotify"

// Metrics holds the collectors exported by the daemon.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry          *prometheus.Registry
	checks            *prometheus.CounterVec
	sourceFailures    *prometheus.CounterVec
	resolveDuration   prometheus.Histogram
	deliveries        *prometheus.CounterVec
	stateWriteFailure prometheus.Counter
	lastCheck         prometheus.Gauge
	lastChange        prometheus.Gauge
}

// New registers all collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		checks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Check cycles by outcome",
		}, []string{"outcome"}),
		sourceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_failures_total",
			Help:      "Address source failures by source endpoint",
		}, []string{"source"}),
		resolveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Time spent resolving the public address",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Webhook deliveries by notice kind and result",
		}, []string{"kind", "result"}),
		stateWriteFailure: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_write_failures_total",
			Help:      "Failed writes of the last known address",
		}),
		lastCheck: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_check_timestamp_seconds",
			Help:      "Unix time of the last completed check cycle",
		}),
		lastChange: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_change_timestamp_seconds",
			Help:      "Unix time of the last detected address change",
		}),
	}
}

// Registry returns the registry backing the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// RecordCheck records a finished check cycle
func (m *Metrics) RecordCheck(outcome string, at time.Time) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(outcome).Inc()
	m.lastCheck.Set(float64(at.Unix()))
}

// RecordChange records a detected address change
func (m *Metrics) RecordChange(at time.Time) {
	if m == nil {
		return
	}
	m.lastChange.Set(float64(at.Unix()))
}

// RecordSourceFailure records a failed address source
func (m *Metrics) RecordSourceFailure(source string) {
	if m == nil {
		return
	}
	m.sourceFailures.WithLabelValues(source).Inc()
}

// ObserveResolve records resolve latency
func (m *Metrics) ObserveResolve(d time.Duration) {
	if m == nil {
		return
	}
	m.resolveDuration.Observe(d.Seconds())
}

// RecordDelivery records one webhook delivery attempt
func (m *Metrics) RecordDelivery(kind string, ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.deliveries.WithLabelValues(kind, result).Inc()
}

// RecordStateWriteFailure records a failed state write
func (m *Metrics) RecordStateWriteFailure() {
	if m == nil {
		return
	}
	m.stateWriteFailure.Inc()
}

// Package metrics exposes Prometheus instrumentation for the warming pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "prewarm"

// Metrics holds the collectors the scheduler and API report into. A nil
// *Metrics is valid and records nothing, so wiring stays optional.
type Metrics struct {
	registry *prometheus.Registry

	warmsTotal    *prometheus.CounterVec
	warmDuration  *prometheus.HistogramVec
	retriesTotal  *prometheus.CounterVec
	keysWarmed    *prometheus.CounterVec
	sourcesActive prometheus.Gauge
	queueDepth    prometheus.Gauge
	warmsInFlight prometheus.Gauge
}

// New builds and registers the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		warmsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warms_total",
			Help:      "Warm cycles by source and outcome.",
		}, []string{"source", "outcome"}),
		warmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "warm_duration_seconds",
			Help:      "Duration of warm cycles, fetch and cache writes included.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"source"}),
		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retry attempts by source.",
		}, []string{"source"}),
		keysWarmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keys_warmed_total",
			Help:      "Cache keys written by source.",
		}, []string{"source"}),
		sourcesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sources_active",
			Help:      "Currently registered sources.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Scheduled runs waiting in the run queue.",
		}),
		warmsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "warms_in_flight",
			Help:      "Warm cycles currently executing.",
		}),
	}

	registry.MustRegister(
		m.warmsTotal,
		m.warmDuration,
		m.retriesTotal,
		m.keysWarmed,
		m.sourcesActive,
		m.queueDepth,
		m.warmsInFlight,
	)
	return m
}

// Handler serves the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordWarm records one completed warm cycle.
func (m *Metrics) RecordWarm(source, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.warmsTotal.WithLabelValues(source, outcome).Inc()
	m.warmDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordRetry counts one retry attempt.
func (m *Metrics) RecordRetry(source string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(source).Inc()
}

// RecordKeys counts cache keys written by a warm cycle.
func (m *Metrics) RecordKeys(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.keysWarmed.WithLabelValues(source).Add(float64(n))
}

// SetSourcesActive reports the registered source count.
func (m *Metrics) SetSourcesActive(n int) {
	if m == nil {
		return
	}
	m.sourcesActive.Set(float64(n))
}

// SetQueueDepth reports the run queue length.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// WarmStarted and WarmFinished track in-flight warm cycles.
func (m *Metrics) WarmStarted() {
	if m == nil {
		return
	}
	m.warmsInFlight.Inc()
}

func (m *Metrics) WarmFinished() {
	if m == nil {
		return
	}
	m.warmsInFlight.Dec()
}

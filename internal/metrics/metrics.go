package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "relayscope"

// Metrics holds the engine's collectors on a private registry so tests can
// create as many instances as they like.
type Metrics struct {
	registry *prometheus.Registry

	probes        *prometheus.CounterVec
	probeLatency  prometheus.Histogram
	publishes     *prometheus.CounterVec
	failedBatches prometheus.Counter
	aggregations  prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Relay probes by resulting state.",
		}, []string{"state"}),
		probeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_latency_seconds",
			Help:      "Latency of successful relay information fetches.",
			Buckets:   []float64{0.05, 0.1, 0.2, 0.3, 0.5, 1, 2, 5},
		}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_total",
			Help:      "Relay list publications by category and result.",
		}, []string{"category", "result"}),
		failedBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregation_failed_batches_total",
			Help:      "Contact batches whose query failed during aggregation.",
		}),
		aggregations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregations_total",
			Help:      "Social graph aggregation runs.",
		}),
	}

	reg.MustRegister(
		m.probes,
		m.probeLatency,
		m.publishes,
		m.failedBatches,
		m.aggregations,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// The recorders below accept a nil receiver so components can run without metrics.

func (m *Metrics) ObserveProbe(state string, latency *time.Duration) {
	if m == nil {
		return
	}
	m.probes.WithLabelValues(state).Inc()
	if latency != nil {
		m.probeLatency.Observe(latency.Seconds())
	}
}

func (m *Metrics) ObservePublish(category string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.publishes.WithLabelValues(category, result).Inc()
}

func (m *Metrics) ObserveAggregation(failedBatches int) {
	if m == nil {
		return
	}
	m.aggregations.Inc()
	m.failedBatches.Add(float64(failedBatches))
}

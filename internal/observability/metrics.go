package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "turn_engine"

// Metrics holds the engine's Prometheus collectors. The zero value is not
// usable; build one with NewMetrics.
type Metrics struct {
	registry *prometheus.Registry

	turns           *prometheus.CounterVec
	retries         *prometheus.CounterVec
	effects         *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	narratorLatency prometheus.Histogram
	events          *prometheus.CounterVec
}

// NewMetrics registers the engine collectors, plus the Go and process
// collectors, on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Turns finished, by outcome.",
		}, []string{"outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_retries_total",
			Help:      "Narration attempts discarded and retried, by reason.",
		}, []string{"reason"}),
		effects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "effects_applied_total",
			Help:      "Effects in committed batches, by kind.",
		}, []string{"kind"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "effect_rejections_total",
			Help:      "Rejected narration attempts, by error code.",
		}, []string{"code"}),
		narratorLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "narrator_stream_seconds",
			Help:      "Time from narrator request to end of stream.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_events_total",
			Help:      "Events emitted to clients, by type.",
		}, []string{"type"}),
	}

	reg.MustRegister(
		m.turns, m.retries, m.effects, m.rejections, m.narratorLatency, m.events,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) TurnFinished(outcome string) {
	m.turns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AttemptRetried(reason string) {
	m.retries.WithLabelValues(reason).Inc()
}

func (m *Metrics) EffectApplied(kind string) {
	m.effects.WithLabelValues(kind).Inc()
}

func (m *Metrics) EffectRejected(code string) {
	m.rejections.WithLabelValues(code).Inc()
}

func (m *Metrics) NarratorStreamed(d time.Duration) {
	m.narratorLatency.Observe(d.Seconds())
}

func (m *Metrics) EventEmitted(eventType string) {
	m.events.WithLabelValues(eventType).Inc()
}

package risk

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the analysis subsystem.
type Metrics struct {
	GeneratesTotal   *prometheus.CounterVec
	GenerateDuration *prometheus.HistogramVec
	FallbacksTotal   prometheus.Counter
}

// NewMetrics registers and returns analysis metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		GeneratesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_analyses_total",
			Help: "Total analysis generations by scoring source and outcome.",
		}, []string{"source", "outcome"}),
		GenerateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sentinel_analysis_duration_seconds",
			Help:    "Duration of analysis generation in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
		}, []string{"source"}),
		FallbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_analysis_fallbacks_total",
			Help: "Total times the LLM scorer failed and the heuristic ran instead.",
		}),
	}

	reg.MustRegister(
		m.GeneratesTotal,
		m.GenerateDuration,
		m.FallbacksTotal,
	)
	return m
}

// ObserveGenerate records one generation attempt. Nil-safe so the analyzer
// can run without metrics in tests.
func (m *Metrics) ObserveGenerate(source, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	if source == "" {
		source = "none"
	}
	m.GeneratesTotal.WithLabelValues(source, outcome).Inc()
	m.GenerateDuration.WithLabelValues(source).Observe(dur.Seconds())
}

// IncFallback records one LLM-to-heuristic fallback. Nil-safe.
func (m *Metrics) IncFallback() {
	if m == nil {
		return
	}
	m.FallbacksTotal.Inc()
}

package review

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the verification state machine.
type Metrics struct {
	TransitionsTotal *prometheus.CounterVec
}

// NewMetrics registers and returns review metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_review_transitions_total",
			Help: "Total incident review transitions by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.TransitionsTotal)
	return m
}

// IncTransition records one state transition. Nil-safe.
func (m *Metrics) IncTransition(outcome string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(outcome).Inc()
}

package notify

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the rule engine.
type Metrics struct {
	RulesEvaluated       *prometheus.CounterVec
	RulesMatched         *prometheus.CounterVec
	NotificationsCreated *prometheus.CounterVec
	PushErrors           prometheus.Counter
}

// NewMetrics registers and returns rule engine metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RulesEvaluated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_rules_evaluated_total",
			Help: "Total rule evaluations by trigger event.",
		}, []string{"event"}),
		RulesMatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_rules_matched_total",
			Help: "Total rule matches by trigger event.",
		}, []string{"event"}),
		NotificationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_notifications_created_total",
			Help: "Total notifications created by trigger event.",
		}, []string{"event"}),
		PushErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_push_errors_total",
			Help: "Total push fan-out failures.",
		}),
	}

	reg.MustRegister(
		m.RulesEvaluated,
		m.RulesMatched,
		m.NotificationsCreated,
		m.PushErrors,
	)
	return m
}

// IncRuleEvaluated records one rule evaluation. Nil-safe.
func (m *Metrics) IncRuleEvaluated(ev Event) {
	if m == nil {
		return
	}
	m.RulesEvaluated.WithLabelValues(string(ev)).Inc()
}

// IncRuleMatched records one rule match. Nil-safe.
func (m *Metrics) IncRuleMatched(ev Event) {
	if m == nil {
		return
	}
	m.RulesMatched.WithLabelValues(string(ev)).Inc()
}

// AddNotificationsCreated records created notifications. Nil-safe.
func (m *Metrics) AddNotificationsCreated(ev Event, n int) {
	if m == nil || n == 0 {
		return
	}
	m.NotificationsCreated.WithLabelValues(string(ev)).Add(float64(n))
}

// IncPushError records one failed push fan-out. Nil-safe.
func (m *Metrics) IncPushError() {
	if m == nil {
		return
	}
	m.PushErrors.Inc()
}

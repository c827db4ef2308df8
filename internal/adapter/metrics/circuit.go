package metrics

import "github.com/prometheus/client_golang/prometheus"

// CircuitBreakerMetrics tracks breaker transitions per protected component.
type CircuitBreakerMetrics struct {
	StateChanges *prometheus.CounterVec
	State        *prometheus.GaugeVec
}

func NewCircuitBreakerMetrics(reg prometheus.Registerer) *CircuitBreakerMetrics {
	m := &CircuitBreakerMetrics{
		StateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "circuit_breaker",
			Name:      "state_changes_total",
			Help:      "Circuit breaker transitions, by component and new state.",
		}, []string{"component", "state"}),
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "circuit_breaker",
			Name:      "state",
			Help:      "Current breaker state (0 closed, 1 half-open, 2 open).",
		}, []string{"component"}),
	}

	reg.MustRegister(m.StateChanges, m.State)
	return m
}

// Record notes a transition to state (0 closed, 1 half-open, 2 open) for component.
// A nil receiver is a no-op.
func (m *CircuitBreakerMetrics) Record(component, stateName string, state float64) {
	if m == nil {
		return
	}
	m.StateChanges.WithLabelValues(component, stateName).Inc()
	m.State.WithLabelValues(component).Set(state)
}

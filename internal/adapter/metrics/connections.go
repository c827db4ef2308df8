package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConnectionMetrics covers the connection registry.
type ConnectionMetrics struct {
	Active        prometheus.Gauge
	Replaced      prometheus.Counter
	MessagesSent  *prometheus.CounterVec
	SendFailures  prometheus.Counter
	Rejected      *prometheus.CounterVec
	Subscriptions *prometheus.GaugeVec
}

func NewConnectionMetrics(reg prometheus.Registerer) *ConnectionMetrics {
	m := &ConnectionMetrics{
		Active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "active",
			Help:      "Number of live streaming connections.",
		}),
		Replaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "replaced_total",
			Help:      "Connections closed because the same user connected again.",
		}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "messages_sent_total",
			Help:      "Messages written to clients, by message type.",
		}, []string{"type"}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "send_failures_total",
			Help:      "Failed writes that caused a disconnect.",
		}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "rejected_total",
			Help:      "Connection attempts rejected before upgrade, by reason.",
		}, []string{"reason"}),
		Subscriptions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "subscriptions",
			Help:      "Subscribers per channel.",
		}, []string{"channel"}),
	}

	reg.MustRegister(m.Active, m.Replaced, m.MessagesSent, m.SendFailures, m.Rejected, m.Subscriptions)
	return m
}

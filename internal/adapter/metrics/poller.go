package metrics

import "github.com/prometheus/client_golang/prometheus"

// PollerMetrics covers the activity poller loop.
type PollerMetrics struct {
	TickDuration      prometheus.Histogram
	UsersPolled       prometheus.Counter
	UpdatesSent       *prometheus.CounterVec
	UpdatesSuppressed prometheus.Counter
	UserErrors        *prometheus.CounterVec
	LoopErrors        prometheus.Counter
	Sessions          prometheus.Gauge
}

func NewPollerMetrics(reg prometheus.Registerer) *PollerMetrics {
	m := &PollerMetrics{
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one poller tick.",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		UsersPolled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "users_polled_total",
			Help:      "Users whose playback was fetched.",
		}),
		UpdatesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "updates_sent_total",
			Help:      "Mood updates pushed to clients, by mood.",
		}, []string{"mood"}),
		UpdatesSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "updates_suppressed_total",
			Help:      "Polls skipped because the same track is still playing.",
		}),
		UserErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "user_errors_total",
			Help:      "Per-user poll failures, by kind.",
		}, []string{"kind"}),
		LoopErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "loop_errors_total",
			Help:      "Tick-level failures that triggered the error backoff.",
		}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "sessions",
			Help:      "Per-user poll states currently tracked.",
		}),
	}

	reg.MustRegister(m.TickDuration, m.UsersPolled, m.UpdatesSent, m.UpdatesSuppressed, m.UserErrors, m.LoopErrors, m.Sessions)
	return m
}

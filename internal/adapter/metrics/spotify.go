package metrics

import "github.com/prometheus/client_golang/prometheus"

// SpotifyMetrics covers the Spotify Web API client and credential handling.
type SpotifyMetrics struct {
	Requests           *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	RateLimitWaits     prometheus.Counter
	RateLimitRemaining prometheus.Gauge
	TokenRefreshes     *prometheus.CounterVec
	CredentialLookups  *prometheus.CounterVec
}

func NewSpotifyMetrics(reg prometheus.Registerer) *SpotifyMetrics {
	m := &SpotifyMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "spotify",
			Name:      "requests_total",
			Help:      "Spotify API requests, by endpoint and status code.",
		}, []string{"endpoint", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "spotify",
			Name:      "request_duration_seconds",
			Help:      "Spotify API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		RateLimitWaits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "spotify",
			Name:      "rate_limit_waits_total",
			Help:      "Calls that slept until the rate limit window reset.",
		}),
		RateLimitRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "spotify",
			Name:      "rate_limit_remaining",
			Help:      "Remaining request budget reported by the last response.",
		}),
		TokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "spotify",
			Name:      "token_refreshes_total",
			Help:      "Access token refresh attempts, by result.",
		}, []string{"result"}),
		CredentialLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "spotify",
			Name:      "credential_lookups_total",
			Help:      "Credential resolutions, by the layer that answered.",
		}, []string{"source"}),
	}

	reg.MustRegister(m.Requests, m.RequestDuration, m.RateLimitWaits, m.RateLimitRemaining, m.TokenRefreshes, m.CredentialLookups)
	return m
}

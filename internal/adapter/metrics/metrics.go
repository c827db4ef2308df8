package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "spot95"

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Set bundles every metric group the service exports.
type Set struct {
	HTTP        *HTTPMetrics
	Connections *ConnectionMetrics
	Poller      *PollerMetrics
	Spotify     *SpotifyMetrics
	Circuit     *CircuitBreakerMetrics
	Storage     *StorageMetrics
}

// NewSet registers all metric groups on reg.
func NewSet(reg prometheus.Registerer) *Set {
	return &Set{
		HTTP:        NewHTTPMetrics(reg),
		Connections: NewConnectionMetrics(reg),
		Poller:      NewPollerMetrics(reg),
		Spotify:     NewSpotifyMetrics(reg),
		Circuit:     NewCircuitBreakerMetrics(reg),
		Storage:     NewStorageMetrics(reg),
	}
}

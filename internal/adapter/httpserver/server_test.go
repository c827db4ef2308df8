package httpserver

import (
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dragfer/spot95/internal/adapter/metrics"
	"github.com/dragfer/spot95/internal/adapter/websocket"
	"github.com/dragfer/spot95/internal/platform/config"
	"github.com/dragfer/spot95/internal/registry"
)

type testServerOption func(*testServerOptions)

type testServerOptions struct {
	healthChecks []HealthCheck
	limits       *ConnectionLimits
	rateLimit    float64
	rateBurst    int
}

func withHealthChecks(checks ...HealthCheck) testServerOption {
	return func(o *testServerOptions) { o.healthChecks = checks }
}

func withLimits(limits *ConnectionLimits) testServerOption {
	return func(o *testServerOptions) { o.limits = limits }
}

func withRateLimit(ratePerSecond float64, burst int) testServerOption {
	return func(o *testServerOptions) {
		o.rateLimit = ratePerSecond
		o.rateBurst = burst
	}
}

type testServer struct {
	*Server
	registry *registry.Registry
	metrics  *metrics.Set
}

func newTestServer(t *testing.T, opts ...testServerOption) *testServer {
	t.Helper()

	o := testServerOptions{
		limits:    NewConnectionLimits(100, 10),
		rateLimit: 100,
		rateBurst: 100,
	}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := &config.Config{
		AppEnv:      "test",
		Port:        "0",
		AppURL:      "http://localhost:3000",
		WSRateLimit: o.rateLimit,
		WSRateBurst: o.rateBurst,
	}

	promReg := prometheus.NewRegistry()
	m := metrics.NewSet(promReg)
	clock := clockwork.NewRealClock()
	reg := registry.New(clock, m.Connections)

	srv := NewServer(cfg, reg, o.limits, websocket.NewUpgrader(cfg.AppURL, false), m, metrics.Handler(promReg), clock, o.healthChecks)
	return &testServer{Server: srv, registry: reg, metrics: m}
}

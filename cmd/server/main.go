package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dragfer/spot95/internal/adapter/httpserver"
	"github.com/dragfer/spot95/internal/adapter/metrics"
	"github.com/dragfer/spot95/internal/adapter/postgres"
	"github.com/dragfer/spot95/internal/adapter/redis"
	"github.com/dragfer/spot95/internal/adapter/spotify"
	"github.com/dragfer/spot95/internal/adapter/websocket"
	"github.com/dragfer/spot95/internal/app"
	"github.com/dragfer/spot95/internal/mood"
	"github.com/dragfer/spot95/internal/platform/config"
	"github.com/dragfer/spot95/internal/platform/crypto"
	"github.com/dragfer/spot95/internal/platform/logging"
	"github.com/dragfer/spot95/internal/platform/retry"
	"github.com/dragfer/spot95/internal/registry"
)

const (
	startupTimeout  = 90 * time.Second
	shutdownTimeout = 10 * time.Second
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// slog is not configured yet
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func logRetry(dependency string) func(int, error, time.Duration) {
	return func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Dependency not ready, retrying", "dependency", dependency, "attempt", attempt, "backoff", backoff, "error", err)
	}
}

func setupDB(ctx context.Context, cfg *config.Config, tracer *postgres.MetricsTracer) *pgxpool.Pool {
	pool, err := retry.Do(ctx, retry.Startup(logRetry("postgres")), retry.Transient, func(ctx context.Context) (*pgxpool.Pool, error) {
		return postgres.Connect(ctx, cfg.DatabaseURL, tracer)
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	return pool
}

func setupRedis(ctx context.Context, cfg *config.Config, hooks ...goredis.Hook) *goredis.Client {
	client, err := retry.Do(ctx, retry.Startup(logRetry("redis")), retry.Transient, func(ctx context.Context) (*goredis.Client, error) {
		return redis.NewClient(ctx, cfg.RedisURL, hooks...)
	})
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func pollerConfig(cfg *config.Config) app.PollerConfig {
	pc := app.DefaultPollerConfig()
	pc.TickInterval = cfg.PollTickInterval
	pc.UserInterval = cfg.PollUserInterval
	pc.ErrorBackoff = cfg.PollErrorBackoff
	pc.UserTimeout = cfg.PollUserTimeout
	pc.Workers = cfg.PollWorkers
	return pc
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	promRegistry := metrics.NewRegistry()
	m := metrics.NewSet(promRegistry)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), startupTimeout)
	pool := setupDB(startupCtx, cfg, postgres.NewMetricsTracer(m.Storage, clock))
	defer pool.Close()

	// The metrics hook is outermost so commands rejected by an open breaker are counted.
	redisClient := setupRedis(startupCtx, cfg, redis.NewMetricsHook(m.Storage, clock), redis.NewCircuitBreakerHook(m.Circuit))
	defer func() { _ = redisClient.Close() }()
	cancelStartup()

	cryptoSvc, err := crypto.New(cfg.TokenEncryptionKey)
	if err != nil {
		slog.Error("Failed to create crypto service", "error", err)
		os.Exit(1)
	}

	userRepo := postgres.NewUserRepo(pool, cryptoSvc)
	credentialCache := redis.NewCredentialCache(redisClient, cryptoSvc)

	oauthCfg := spotify.NewOAuthConfig(cfg.SpotifyClientID, cfg.SpotifyClientSecret, cfg.SpotifyTokenURL)
	// A failed refresh is not retried before the user's next poll.
	tokens := spotify.NewTokenSource(userRepo, credentialCache, oauthCfg, clock, m.Spotify).
		WithCooldown(cfg.PollUserInterval)
	budget := spotify.NewRateBudget(clock, m.Spotify)
	spotifyClient := spotify.NewClient(spotify.ClientConfig{BaseURL: cfg.SpotifyAPIURL}, tokens, budget, clock, m.Spotify, m.Circuit)

	connections := registry.New(clock, m.Connections)
	poller := app.NewPoller(connections, spotifyClient, mood.NewClassifier(nil), clock, pollerConfig(cfg), m.Poller)

	healthChecks := []httpserver.HealthCheck{
		{Name: "postgres", Check: pool.Ping},
		{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
	}
	limits := httpserver.NewConnectionLimits(int64(cfg.MaxWebSocketConnections), cfg.MaxConnectionsPerIP)
	upgrader := websocket.NewUpgrader(cfg.AppURL, cfg.IsDevelopment())
	srv := httpserver.NewServer(cfg, connections, limits, upgrader, m, metrics.Handler(promRegistry), clock, healthChecks)

	pollCtx, stopPolling := context.WithCancel(context.Background())
	var pollers sync.WaitGroup
	pollers.Add(1)
	go func() {
		defer pollers.Done()
		poller.Run(pollCtx)
	}()

	done := runGracefulShutdown(srv, func() {
		stopPolling()
		pollers.Wait()
	}, connections)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}

// runGracefulShutdown stops accepting connections, lets the poller finish its
// current tick, then closes every live client connection.
func runGracefulShutdown(srv *httpserver.Server, stopPoller func(), connections *registry.Registry) <-chan struct{} {
	done := make(chan struct{})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	go func() {
		defer close(done)
		<-ctx.Done()
		stop()
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		stopPoller()
		connections.CloseAll("Server shutting down")
	}()

	return done
}

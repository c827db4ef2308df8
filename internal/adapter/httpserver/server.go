package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/dragfer/spot95/internal/adapter/metrics"
	"github.com/dragfer/spot95/internal/domain"
	"github.com/dragfer/spot95/internal/platform/config"
	"github.com/dragfer/spot95/internal/registry"
)

// ConnectionRegistry is the subset of the registry the streaming endpoint
// drives.
type ConnectionRegistry interface {
	Connect(userID string, t registry.Transport) *registry.Connection
	Subscribe(userID string, channel domain.Channel)
	SendTo(userID string, msg domain.Message) bool
	Release(userID string, conn *registry.Connection)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	clock  clockwork.Clock

	registry       ConnectionRegistry
	limits         *ConnectionLimits
	upgrader       *websocket.Upgrader
	metrics        *metrics.Set
	metricsHandler http.Handler

	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(cfg *config.Config, reg ConnectionRegistry, limits *ConnectionLimits, upgrader *websocket.Upgrader, m *metrics.Set, metricsHandler http.Handler, clock clockwork.Clock, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:           e,
		config:         cfg,
		clock:          clock,
		registry:       reg,
		limits:         limits,
		upgrader:       upgrader,
		metrics:        m,
		metricsHandler: metricsHandler,
		healthChecks:   healthChecks,
		startTime:      clock.Now(),
	}

	srv.registerRoutes()
	return srv
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

package httpserver

import (
	"bytes"
	"log/slog"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dragfer/spot95/internal/adapter/websocket"
	"github.com/dragfer/spot95/internal/domain"
	apperrors "github.com/dragfer/spot95/internal/platform/errors"
)

// handleWebSocket upgrades the request, registers the connection and
// answers pings until the client goes away or is replaced.
func (s *Server) handleWebSocket(c echo.Context) error {
	userID := c.Param("user_id")
	if _, err := uuid.Parse(userID); err != nil {
		return apperrors.ValidationError("invalid user id").WithContext("user_id", userID)
	}

	ip := c.RealIP()
	if ok, reason := s.limits.Acquire(ip); !ok {
		s.metrics.Connections.Rejected.WithLabelValues(string(reason)).Inc()
		if reason == LimitReasonPerIP {
			return apperrors.RateLimitedError("too many connections from this address")
		}
		return apperrors.UnavailableError("server at connection capacity", nil)
	}
	defer s.limits.Release(ip)

	ctx := c.Request().Context()
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		slog.InfoContext(ctx, "WebSocket upgrade failed", "user_id", userID, "error", err)
		return nil
	}

	transport := websocket.NewTransport(conn, s.clock)
	registered := s.registry.Connect(userID, transport)
	defer s.registry.Release(userID, registered)

	s.registry.Subscribe(userID, domain.ChannelMoodUpdates)
	if !s.registry.SendTo(userID, domain.ConnectionEstablishedMessage(s.clock.Now().UnixMilli())) {
		return nil
	}

	slog.InfoContext(ctx, "Client connected", "user_id", userID, "connection_id", registered.ID, "ip", ip)
	s.readLoop(userID, transport)
	slog.InfoContext(ctx, "Client disconnected", "user_id", userID, "connection_id", registered.ID)
	return nil
}

func (s *Server) readLoop(userID string, transport *websocket.Transport) {
	for {
		payload, err := transport.Receive()
		if err != nil {
			return
		}
		if !isPing(payload) {
			continue
		}
		if !s.registry.SendTo(userID, domain.PongMessage(s.clock.Now().UnixMilli())) {
			return
		}
	}
}

func isPing(payload []byte) bool {
	return bytes.EqualFold(bytes.TrimSpace(payload), []byte("ping"))
}

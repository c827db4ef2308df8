// Package correlation threads a short request or tick identifier through
// context.Context and into every slog record logged with that context.
package correlation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// Header carries a caller-supplied id on HTTP requests and responses.
const Header = "X-Correlation-ID"

const maxInboundLength = 64

type contextKey struct{}

// NewID returns 8 random hex characters.
func NewID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// ID reports ("", false) when ctx carries no id.
func ID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}

// Child derives "<parent>.<new>" so per-user work can be traced back to the
// tick that started it. Without a parent it is a fresh id.
func Child(ctx context.Context) context.Context {
	if parent, ok := ID(ctx); ok {
		return WithID(ctx, parent+"."+NewID())
	}
	return WithID(ctx, NewID())
}

// Accept returns an inbound header value when it is safe to log verbatim,
// otherwise a fresh id.
func Accept(inbound string) string {
	if inbound == "" || len(inbound) > maxInboundLength {
		return NewID()
	}
	for _, r := range inbound {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.', r == '_':
		default:
			return NewID()
		}
	}
	return inbound
}

// Handler adds a "correlation_id" attribute when the context carries one.
type Handler struct {
	inner slog.Handler
}

func NewHandler(inner slog.Handler) *Handler {
	return &Handler{inner: inner}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := ID(ctx); ok {
		r.AddAttrs(slog.String("correlation_id", id))
	}
	if err := h.inner.Handle(ctx, r); err != nil {
		return fmt.Errorf("correlation handler: %w", err)
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{inner: h.inner.WithAttrs(attrs)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name)}
}

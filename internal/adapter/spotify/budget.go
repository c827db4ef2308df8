package spotify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dragfer/spot95/internal/adapter/metrics"
	"github.com/jonboulle/clockwork"
)

const (
	lowWatermark     = 5
	defaultRemaining = 10
	resetGrace       = time.Second
)

// RateBudget tracks the remaining request quota and its reset time. It is shared by every
// request the client makes.
type RateBudget struct {
	clock   clockwork.Clock
	metrics *metrics.SpotifyMetrics

	// gate serializes waiters so concurrent callers queue behind the same check.
	gate chan struct{}

	mu        sync.Mutex
	remaining int
	resetAt   time.Time
}

func NewRateBudget(clock clockwork.Clock, m *metrics.SpotifyMetrics) *RateBudget {
	return &RateBudget{
		clock:     clock,
		metrics:   m,
		gate:      make(chan struct{}, 1),
		remaining: defaultRemaining,
	}
}

// Wait blocks until resetAt+1s when fewer than five requests remain and the window has not
// reset yet. It returns early with an error when ctx is done.
func (b *RateBudget) Wait(ctx context.Context) error {
	select {
	case b.gate <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("rate budget wait: %w", ctx.Err())
	}
	defer func() { <-b.gate }()

	remaining, resetAt := b.Snapshot()
	now := b.clock.Now()
	if remaining >= lowWatermark || !now.Before(resetAt) {
		return nil
	}

	delay := resetAt.Sub(now) + resetGrace
	b.metrics.RateLimitWaits.Inc()
	slog.WarnContext(ctx, "Approaching Spotify rate limit, waiting", "remaining", remaining, "wait", delay)

	select {
	case <-b.clock.After(delay):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("rate budget wait: %w", ctx.Err())
	}
}

// Update refreshes the budget from a response. Missing or malformed X-RateLimit-Remaining
// resets the quota to the default; X-RateLimit-Reset (epoch seconds) only moves the reset
// time when positive. A 429 with Retry-After drains the quota until the retry time.
func (b *RateBudget) Update(h http.Header, status int) {
	now := b.clock.Now()

	remaining := defaultRemaining
	if v, err := strconv.Atoi(h.Get("X-RateLimit-Remaining")); err == nil {
		remaining = v
	}

	b.mu.Lock()
	b.remaining = remaining
	if v, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64); err == nil && v > 0 {
		b.resetAt = time.Unix(v, 0)
	}
	if status == http.StatusTooManyRequests {
		if retryAfter := parseRetryAfter(h, now); retryAfter > 0 {
			b.remaining = 0
			b.resetAt = now.Add(retryAfter)
		}
	}
	remaining = b.remaining
	b.mu.Unlock()

	b.metrics.RateLimitRemaining.Set(float64(remaining))
}

func (b *RateBudget) Snapshot() (remaining int, resetAt time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining, b.resetAt
}

// parseRetryAfter accepts delay-seconds or an HTTP date.
func parseRetryAfter(h http.Header, now time.Time) time.Duration {
	retryAfter := h.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if when, err := http.ParseTime(retryAfter); err == nil {
		if until := when.Sub(now); until > 0 {
			return until
		}
	}

	return 0
}

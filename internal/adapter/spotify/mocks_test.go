package spotify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dragfer/spot95/internal/adapter/metrics"
	"github.com/dragfer/spot95/internal/domain"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

type mockCredentials struct {
	calls             atomic.Int32
	validCredentialFn func(ctx context.Context, userID string) (string, error)
}

func (m *mockCredentials) ValidCredential(ctx context.Context, userID string) (string, error) {
	m.calls.Add(1)
	if m.validCredentialFn != nil {
		return m.validCredentialFn(ctx, userID)
	}
	return "test-token", nil
}

type mockUserRepo struct {
	getByIDFn      func(ctx context.Context, id uuid.UUID) (*domain.User, error)
	updateTokensFn func(ctx context.Context, id uuid.UUID, access, refresh string, expiry time.Time) error
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockUserRepo) GetBySpotifyID(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}

func (m *mockUserRepo) Upsert(context.Context, string, string, string, string, time.Time) (*domain.User, error) {
	return nil, nil
}

func (m *mockUserRepo) UpdateTokens(ctx context.Context, id uuid.UUID, access, refresh string, expiry time.Time) error {
	if m.updateTokensFn != nil {
		return m.updateTokensFn(ctx, id, access, refresh, expiry)
	}
	return nil
}

// memCache is an in-memory credential cache; ttls are recorded but not enforced.
type memCache struct {
	mu     sync.Mutex
	tokens map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newMemCache() *memCache {
	return &memCache{tokens: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (c *memCache) Get(_ context.Context, userID string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", false, c.getErr
	}
	token, ok := c.tokens[userID]
	return token, ok, nil
}

func (c *memCache) Set(_ context.Context, userID, token string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[userID] = token
	c.ttls[userID] = ttl
	return nil
}

func (c *memCache) Invalidate(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, userID)
	return nil
}

func newTestMetrics() (*metrics.SpotifyMetrics, *metrics.CircuitBreakerMetrics) {
	reg := prometheus.NewRegistry()
	return metrics.NewSpotifyMetrics(reg), metrics.NewCircuitBreakerMetrics(reg)
}

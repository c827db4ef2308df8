package spotify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dragfer/spot95/internal/domain"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenServer struct {
	status   int
	body     string
	requests atomic.Int32
	lastForm atomic.Value
}

func (s *tokenServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	_ = r.ParseForm()
	s.lastForm.Store(r.PostForm.Encode())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(s.status)
	_, _ = w.Write([]byte(s.body))
}

type tokenFixture struct {
	source *TokenSource
	clock  *clockwork.FakeClock
	cache  *memCache
	server *tokenServer
	user   *domain.User

	mu      sync.Mutex
	updates []string
}

func newTokenFixture(t *testing.T, expiresIn time.Duration) *tokenFixture {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Now())
	f := &tokenFixture{
		clock:  clock,
		cache:  newMemCache(),
		server: &tokenServer{status: http.StatusOK, body: `{"access_token":"fresh","token_type":"Bearer","expires_in":3600,"refresh_token":"refresh-2"}`},
		user: &domain.User{
			ID:           uuid.New(),
			SpotifyID:    "spotify-user",
			AccessToken:  "stored",
			RefreshToken: "refresh-1",
			TokenExpiry:  clock.Now().Add(expiresIn),
		},
	}

	srv := httptest.NewServer(f.server)
	t.Cleanup(srv.Close)

	repo := &mockUserRepo{
		getByIDFn: func(_ context.Context, id uuid.UUID) (*domain.User, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			if id != f.user.ID {
				return nil, domain.ErrUserNotFound
			}
			u := *f.user
			return &u, nil
		},
		updateTokensFn: func(_ context.Context, _ uuid.UUID, access, refresh string, expiry time.Time) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.updates = append(f.updates, access+"/"+refresh)
			f.user.AccessToken, f.user.RefreshToken, f.user.TokenExpiry = access, refresh, expiry
			return nil
		},
	}

	m, _ := newTestMetrics()
	f.source = NewTokenSource(repo, f.cache, NewOAuthConfig("client-id", "client-secret", srv.URL), clock, m)
	return f
}

func (f *tokenFixture) userID() string {
	return f.user.ID.String()
}

func TestValidCredential_CacheHit(t *testing.T) {
	f := newTokenFixture(t, time.Hour)
	require.NoError(t, f.cache.Set(context.Background(), f.userID(), "cached", time.Minute))

	token, err := f.source.ValidCredential(context.Background(), f.userID())

	require.NoError(t, err)
	assert.Equal(t, "cached", token)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.source.metrics.CredentialLookups.WithLabelValues("cache")))
}

func TestValidCredential_StoredTokenIsCached(t *testing.T) {
	f := newTokenFixture(t, time.Hour)

	token, err := f.source.ValidCredential(context.Background(), f.userID())

	require.NoError(t, err)
	assert.Equal(t, "stored", token)
	assert.Zero(t, f.server.requests.Load())
	assert.Equal(t, "stored", f.cache.tokens[f.userID()])
	assert.Equal(t, time.Hour-expirySkew, f.cache.ttls[f.userID()])
}

func TestValidCredential_CacheErrorFallsThrough(t *testing.T) {
	f := newTokenFixture(t, time.Hour)
	f.cache.getErr = errors.New("redis down")

	token, err := f.source.ValidCredential(context.Background(), f.userID())

	require.NoError(t, err)
	assert.Equal(t, "stored", token)
}

func TestValidCredential_RefreshesNearExpiry(t *testing.T) {
	f := newTokenFixture(t, 30*time.Second)

	token, err := f.source.ValidCredential(context.Background(), f.userID())

	require.NoError(t, err)
	assert.Equal(t, "fresh", token)
	assert.Equal(t, int32(1), f.server.requests.Load())
	assert.Contains(t, f.server.lastForm.Load(), "grant_type=refresh_token")
	assert.Contains(t, f.server.lastForm.Load(), "refresh_token=refresh-1")
	assert.Equal(t, []string{"fresh/refresh-2"}, f.updates)
	assert.Equal(t, "fresh", f.cache.tokens[f.userID()])
	assert.Equal(t, 1.0, testutil.ToFloat64(f.source.metrics.TokenRefreshes.WithLabelValues("success")))
}

func TestValidCredential_KeepsRefreshTokenWhenNotRotated(t *testing.T) {
	f := newTokenFixture(t, -time.Minute)
	f.server.body = `{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`

	_, err := f.source.ValidCredential(context.Background(), f.userID())

	require.NoError(t, err)
	assert.Equal(t, []string{"fresh/refresh-1"}, f.updates)
}

func TestValidCredential_RevokedRefreshToken(t *testing.T) {
	f := newTokenFixture(t, -time.Minute)
	f.server.status = http.StatusBadRequest
	f.server.body = `{"error":"invalid_grant","error_description":"Refresh token revoked"}`

	token, err := f.source.ValidCredential(context.Background(), f.userID())

	assert.Empty(t, token)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCredentialUnavailable)
	assert.True(t, IsRevoked(err))
	assert.Empty(t, f.updates)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.source.metrics.TokenRefreshes.WithLabelValues("revoked")))
}

func TestValidCredential_TransientRefreshFailure(t *testing.T) {
	f := newTokenFixture(t, -time.Minute)
	f.server.status = http.StatusServiceUnavailable
	f.server.body = `{}`

	_, err := f.source.ValidCredential(context.Background(), f.userID())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCredentialUnavailable)
	assert.False(t, IsRevoked(err))
}

func TestValidCredential_FailedRefreshCooldown(t *testing.T) {
	f := newTokenFixture(t, -time.Minute)
	f.server.status = http.StatusBadRequest
	f.server.body = `{"error":"invalid_grant"}`
	ctx := context.Background()

	_, err := f.source.ValidCredential(ctx, f.userID())
	require.Error(t, err)
	_, err = f.source.ValidCredential(ctx, f.userID())
	require.Error(t, err)
	assert.True(t, IsRevoked(err))
	assert.Equal(t, int32(1), f.server.requests.Load(), "one refresh attempt per cooldown")

	f.clock.Advance(DefaultRefreshCooldown)
	f.server.status = http.StatusOK
	f.server.body = `{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`

	token, err := f.source.ValidCredential(ctx, f.userID())
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)
	assert.Equal(t, int32(2), f.server.requests.Load())
}

func TestValidCredential_CustomCooldown(t *testing.T) {
	f := newTokenFixture(t, -time.Minute)
	f.source.WithCooldown(20 * time.Second)
	f.server.status = http.StatusServiceUnavailable
	f.server.body = `{}`
	ctx := context.Background()

	_, err := f.source.ValidCredential(ctx, f.userID())
	require.Error(t, err)

	f.clock.Advance(DefaultRefreshCooldown)
	_, err = f.source.ValidCredential(ctx, f.userID())
	require.Error(t, err)
	assert.Equal(t, int32(1), f.server.requests.Load(), "still inside the longer cooldown")

	f.clock.Advance(15 * time.Second)
	f.server.status = http.StatusOK
	f.server.body = `{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`

	token, err := f.source.ValidCredential(ctx, f.userID())
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)
	assert.Equal(t, int32(2), f.server.requests.Load())
}

func TestWithCooldown_IgnoresNonPositive(t *testing.T) {
	f := newTokenFixture(t, time.Hour)

	f.source.WithCooldown(0)
	assert.Equal(t, DefaultRefreshCooldown, f.source.cooldown)

	f.source.WithCooldown(-time.Second)
	assert.Equal(t, DefaultRefreshCooldown, f.source.cooldown)
}

func TestValidCredential_MissingRefreshToken(t *testing.T) {
	f := newTokenFixture(t, -time.Minute)
	f.user.RefreshToken = ""

	_, err := f.source.ValidCredential(context.Background(), f.userID())

	require.Error(t, err)
	assert.True(t, IsRevoked(err))
	assert.Zero(t, f.server.requests.Load())
}

func TestValidCredential_UnknownUser(t *testing.T) {
	f := newTokenFixture(t, time.Hour)

	tests := []struct {
		name   string
		userID string
	}{
		{"not a uuid", "spotify-user"},
		{"no such user", uuid.NewString()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.source.ValidCredential(context.Background(), tt.userID)

			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrCredentialUnavailable)
			assert.ErrorIs(t, err, domain.ErrUserNotFound)
		})
	}
}

func TestValidCredential_ConcurrentCallersRefreshOnce(t *testing.T) {
	f := newTokenFixture(t, -time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	tokens := make([]string, 8)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], _ = f.source.ValidCredential(ctx, f.userID())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.server.requests.Load())
	for _, token := range tokens {
		assert.Equal(t, "fresh", token)
	}
}

package spotify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dragfer/spot95/internal/adapter/metrics"
	"github.com/dragfer/spot95/internal/domain"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	// Tokens expiring within expirySkew are treated as expired.
	expirySkew = 60 * time.Second

	DefaultRefreshCooldown = 5 * time.Second
	DefaultTokenURL        = "https://accounts.spotify.com/api/token"
	defaultTokenLifetime   = time.Hour
	refreshTimeout         = 10 * time.Second
)

// TokenSource resolves access tokens: credential cache first, then the user record, then a
// refresh_token grant. A failed refresh is remembered for the cooldown so the user is not
// refreshed again within the same poll cycle.
type TokenSource struct {
	users      domain.UserRepository
	cache      domain.CredentialCache
	oauth      *oauth2.Config
	clock      clockwork.Clock
	metrics    *metrics.SpotifyMetrics
	httpClient *http.Client
	cooldown   time.Duration

	group singleflight.Group

	mu       sync.Mutex
	failures map[string]refreshFailure
}

type refreshFailure struct {
	at  time.Time
	err error
}

var _ domain.CredentialSource = (*TokenSource)(nil)

func NewTokenSource(users domain.UserRepository, cache domain.CredentialCache, oauth *oauth2.Config, clock clockwork.Clock, m *metrics.SpotifyMetrics) *TokenSource {
	return &TokenSource{
		users:      users,
		cache:      cache,
		oauth:      oauth,
		clock:      clock,
		metrics:    m,
		httpClient: &http.Client{Timeout: refreshTimeout},
		cooldown:   DefaultRefreshCooldown,
		failures:   make(map[string]refreshFailure),
	}
}

// NewOAuthConfig builds the client-credentials config used for refresh grants.
func NewOAuthConfig(clientID, clientSecret, tokenURL string) *oauth2.Config {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// WithCooldown overrides how long a failed refresh is remembered. The server passes the
// per-user poll interval. Non-positive values keep the default.
func (s *TokenSource) WithCooldown(d time.Duration) *TokenSource {
	if d > 0 {
		s.cooldown = d
	}
	return s
}

// ValidCredential returns a bearer token for userID. Every error matches
// domain.ErrCredentialUnavailable.
func (s *TokenSource) ValidCredential(ctx context.Context, userID string) (string, error) {
	if token, ok := s.fromCache(ctx, userID); ok {
		return token, nil
	}

	if err := s.recentFailure(userID); err != nil {
		return "", err
	}

	v, err, _ := s.group.Do(userID, func() (any, error) {
		return s.resolve(ctx, userID)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *TokenSource) fromCache(ctx context.Context, userID string) (string, bool) {
	token, ok, err := s.cache.Get(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "Credential cache lookup failed", "user_id", userID, "error", err)
		return "", false
	}
	if !ok || token == "" {
		return "", false
	}
	s.metrics.CredentialLookups.WithLabelValues("cache").Inc()
	return token, true
}

func (s *TokenSource) resolve(ctx context.Context, userID string) (string, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrCredentialUnavailable, domain.ErrUserNotFound)
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("%w: load user: %w", domain.ErrCredentialUnavailable, err)
	}

	now := s.clock.Now()
	if user.AccessToken != "" && now.Add(expirySkew).Before(user.TokenExpiry) {
		s.metrics.CredentialLookups.WithLabelValues("database").Inc()
		s.store(ctx, userID, user.AccessToken, user.TokenExpiry)
		return user.AccessToken, nil
	}

	s.metrics.CredentialLookups.WithLabelValues("refresh").Inc()
	token, err := s.refresh(ctx, user)
	if err != nil {
		s.recordFailure(userID, err)
		if IsRevoked(err) {
			s.metrics.TokenRefreshes.WithLabelValues("revoked").Inc()
			if err := s.cache.Invalidate(ctx, userID); err != nil {
				slog.WarnContext(ctx, "Failed to invalidate cached credential", "user_id", userID, "error", err)
			}
		} else {
			s.metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		}
		slog.WarnContext(ctx, "Token refresh failed", "user_id", userID, "revoked", IsRevoked(err), "error", err)
		return "", err
	}
	s.metrics.TokenRefreshes.WithLabelValues("success").Inc()
	s.clearFailure(userID)

	if err := s.users.UpdateTokens(ctx, user.ID, token.AccessToken, token.RefreshToken, token.Expiry); err != nil {
		// The token is still good for this request; the next lookup refreshes again.
		slog.ErrorContext(ctx, "Failed to persist refreshed tokens", "user_id", userID, "error", err)
	}
	s.store(ctx, userID, token.AccessToken, token.Expiry)

	slog.InfoContext(ctx, "Refreshed Spotify token", "user_id", userID, "expires_at", token.Expiry)
	return token.AccessToken, nil
}

func (s *TokenSource) refresh(ctx context.Context, user *domain.User) (*oauth2.Token, error) {
	if user.RefreshToken == "" {
		return nil, &TokenRefreshError{Revoked: true, Err: errors.New("no refresh token stored")}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	token, err := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: user.RefreshToken}).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		revoked := errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
			(retrieveErr.Response.StatusCode == http.StatusBadRequest || retrieveErr.Response.StatusCode == http.StatusUnauthorized)
		return nil, &TokenRefreshError{Revoked: revoked, Err: err}
	}

	if token.RefreshToken == "" {
		token.RefreshToken = user.RefreshToken
	}
	if token.Expiry.IsZero() {
		token.Expiry = s.clock.Now().Add(defaultTokenLifetime)
	}
	return token, nil
}

func (s *TokenSource) store(ctx context.Context, userID, accessToken string, expiry time.Time) {
	ttl := expiry.Sub(s.clock.Now()) - expirySkew
	if ttl <= 0 {
		return
	}
	if err := s.cache.Set(ctx, userID, accessToken, ttl); err != nil {
		slog.WarnContext(ctx, "Failed to cache credential", "user_id", userID, "error", err)
	}
}

func (s *TokenSource) recentFailure(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.failures[userID]
	if !ok {
		return nil
	}
	if s.clock.Since(f.at) >= s.cooldown {
		delete(s.failures, userID)
		return nil
	}
	return f.err
}

func (s *TokenSource) recordFailure(userID string, err error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, f := range s.failures {
		if now.Sub(f.at) >= s.cooldown {
			delete(s.failures, id)
		}
	}
	s.failures[userID] = refreshFailure{at: now, err: err}
}

func (s *TokenSource) clearFailure(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, userID)
}

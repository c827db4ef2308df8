package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dragfer/spot95/internal/adapter/metrics"
	"github.com/dragfer/spot95/internal/domain"
	"github.com/dragfer/spot95/internal/platform/version"
	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
)

const (
	DefaultBaseURL        = "https://api.spotify.com/v1"
	defaultRequestTimeout = 10 * time.Second

	endpointCurrentlyPlaying = "currently_playing"
	endpointRecentlyPlayed   = "recently_played"
	endpointAudioFeatures    = "audio_features"
)

type ClientConfig struct {
	BaseURL        string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

// Client is the Web API client. Build one per process: the rate budget and circuit breaker
// only protect requests that go through the same instance.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	credentials domain.CredentialSource
	budget      *RateBudget
	clock       clockwork.Clock
	metrics     *metrics.SpotifyMetrics
	breaker     *gobreaker.CircuitBreaker
}

func NewClient(cfg ClientConfig, credentials domain.CredentialSource, budget *RateBudget, clock clockwork.Clock, m *metrics.SpotifyMetrics, cbMetrics *metrics.CircuitBreakerMetrics) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = defaultRequestTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		credentials: credentials,
		budget:      budget,
		clock:       clock,
		metrics:     m,
		breaker:     newBreaker(cbMetrics),
	}
}

// newBreaker opens after 5 requests in a 60s window with at least 60% failures
// and probes again after 30s. Cancellation by the caller is not a failure.
func newBreaker(cbMetrics *metrics.CircuitBreakerMetrics) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "spotify",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
			cbMetrics.Record(name, to.String(), breakerStateValue(to))
		},
	})
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// GetCurrentlyPlaying returns the user's playing item, or nil when nothing is playing or the
// request failed.
func (c *Client) GetCurrentlyPlaying(ctx context.Context, userID string) *domain.TrackSnapshot {
	token, err := c.credentials.ValidCredential(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "No valid Spotify credential", "user_id", userID, "error", err)
		return nil
	}
	return c.currentlyPlaying(ctx, userID, token)
}

// GetRecentlyPlayed returns the most recent of the user's last limit plays as a paused
// snapshot, or nil.
func (c *Client) GetRecentlyPlayed(ctx context.Context, userID string, limit int) *domain.TrackSnapshot {
	token, err := c.credentials.ValidCredential(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "No valid Spotify credential", "user_id", userID, "error", err)
		return nil
	}
	return c.recentlyPlayed(ctx, userID, token, limit)
}

// GetAudioFeatures returns the numeric audio features of a track, or nil.
func (c *Client) GetAudioFeatures(ctx context.Context, trackID, token string) domain.FeatureVector {
	var raw map[string]any
	status, err := c.get(ctx, endpointAudioFeatures, "/audio-features/"+url.PathEscape(trackID), token, &raw)
	if err != nil {
		slog.WarnContext(ctx, "Failed to fetch audio features", "track_id", trackID, "error", err)
		return nil
	}
	if status != http.StatusOK || raw == nil {
		return nil
	}

	features := featuresFromWire(raw)
	if len(features) == 0 {
		return nil
	}
	return features
}

// CurrentTrackData resolves the user's credential once, then tries the currently playing
// item, falls back to the most recent play, and attaches audio features. It returns
// (nil, nil) when any stage has no data; an error only when no credential is available.
func (c *Client) CurrentTrackData(ctx context.Context, userID string) (*domain.TrackData, error) {
	token, err := c.credentials.ValidCredential(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve credential for user %s: %w", userID, err)
	}

	track := c.currentlyPlaying(ctx, userID, token)
	if track == nil {
		track = c.recentlyPlayed(ctx, userID, token, 1)
	}
	if track == nil || track.ID == "" {
		return nil, nil
	}

	features := c.GetAudioFeatures(ctx, track.ID, token)
	if features == nil {
		return nil, nil
	}

	return &domain.TrackData{Track: *track, Features: features}, nil
}

func (c *Client) currentlyPlaying(ctx context.Context, userID, token string) *domain.TrackSnapshot {
	var body currentlyPlayingResponse
	status, err := c.get(ctx, endpointCurrentlyPlaying, "/me/player/currently-playing", token, &body)
	if err != nil {
		slog.WarnContext(ctx, "Failed to fetch currently playing", "user_id", userID, "error", err)
		return nil
	}
	if status == http.StatusNoContent || body.Item == nil {
		return nil
	}

	progress := 0
	if body.ProgressMs != nil {
		progress = *body.ProgressMs
	}
	return body.Item.toSnapshot(body.IsPlaying, progress)
}

func (c *Client) recentlyPlayed(ctx context.Context, userID, token string, limit int) *domain.TrackSnapshot {
	if limit <= 0 {
		limit = 1
	}

	var body recentlyPlayedResponse
	path := "/me/player/recently-played?limit=" + strconv.Itoa(limit)
	status, err := c.get(ctx, endpointRecentlyPlayed, path, token, &body)
	if err != nil {
		slog.WarnContext(ctx, "Failed to fetch recently played", "user_id", userID, "error", err)
		return nil
	}
	if status != http.StatusOK || len(body.Items) == 0 || body.Items[0].Track == nil {
		return nil
	}

	return body.Items[0].Track.toSnapshot(false, 0)
}

// get performs one GET through the rate budget and circuit breaker and decodes a 200 body
// into out. 204 returns the status with no error. 5xx and transport errors count against
// the breaker; any other non-200 status is returned as *StatusError.
func (c *Client) get(ctx context.Context, endpoint, path, token string, out any) (int, error) {
	if err := c.budget.Wait(ctx); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("spotify %s: %w", endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	start := c.clock.Now()
	result, err := c.breaker.Execute(func() (any, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		c.budget.Update(resp.Header, resp.StatusCode)
		if resp.StatusCode >= http.StatusInternalServerError {
			drainAndClose(resp.Body)
			return nil, &StatusError{Endpoint: endpoint, Status: resp.StatusCode}
		}
		return resp, nil
	})
	c.metrics.RequestDuration.WithLabelValues(endpoint).Observe(c.clock.Since(start).Seconds())

	if err != nil {
		c.metrics.Requests.WithLabelValues(endpoint, errorLabel(err)).Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return 0, fmt.Errorf("spotify %s: %w", endpoint, err)
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return statusErr.Status, err
		}
		return 0, fmt.Errorf("spotify %s: %w", endpoint, err)
	}

	resp := result.(*http.Response)
	defer drainAndClose(resp.Body)
	c.metrics.Requests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return resp.StatusCode, nil
	default:
		return resp.StatusCode, &StatusError{Endpoint: endpoint, Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return resp.StatusCode, nil
		}
		return resp.StatusCode, fmt.Errorf("spotify %s: decode response: %w", endpoint, err)
	}
	return resp.StatusCode, nil
}

func errorLabel(err error) string {
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		return strconv.Itoa(statusErr.Status)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	default:
		return "error"
	}
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}

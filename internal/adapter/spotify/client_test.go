package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dragfer/spot95/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trackJSON = `{
	"id": "track-1",
	"name": "Blue Monday",
	"artists": [{"name": "New Order"}, {"name": "Guest"}],
	"album": {"name": "Power, Corruption & Lies", "images": [{"url": "https://img/large"}, {"url": "https://img/small"}]},
	"duration_ms": 448000,
	"external_urls": {"spotify": "https://open.spotify.com/track/track-1"}
}`

const featuresJSON = `{
	"id": "track-1",
	"type": "audio_features",
	"danceability": 0.8,
	"energy": 0.9,
	"valence": 0.7,
	"tempo": 130.0,
	"loudness": -6.5,
	"mode": 1
}`

// fakeAPI serves canned responses per path and counts requests.
type fakeAPI struct {
	currentlyPlaying func(w http.ResponseWriter)
	recentlyPlayed   func(w http.ResponseWriter)
	audioFeatures    func(w http.ResponseWriter)
	requests         atomic.Int32
	lastAuth         atomic.Value
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)
	f.lastAuth.Store(r.Header.Get("Authorization"))

	var handler func(w http.ResponseWriter)
	switch {
	case r.URL.Path == "/me/player/currently-playing":
		handler = f.currentlyPlaying
	case r.URL.Path == "/me/player/recently-played":
		handler = f.recentlyPlayed
	case len(r.URL.Path) > len("/audio-features/") && r.URL.Path[:len("/audio-features/")] == "/audio-features/":
		handler = f.audioFeatures
	}
	if handler == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	handler(w)
}

func respond(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("X-RateLimit-Remaining", "42")
		if body != "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func newTestClient(t *testing.T, api *fakeAPI, creds *mockCredentials) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	if creds == nil {
		creds = &mockCredentials{}
	}
	clock := clockwork.NewRealClock()
	m, cb := newTestMetrics()
	return NewClient(ClientConfig{BaseURL: srv.URL + "/"}, creds, NewRateBudget(clock, m), clock, m, cb)
}

func TestCurrentTrackData_CurrentlyPlaying(t *testing.T) {
	api := &fakeAPI{
		currentlyPlaying: respond(http.StatusOK, `{"is_playing": true, "progress_ms": 1234, "item": `+trackJSON+`}`),
		audioFeatures:    respond(http.StatusOK, featuresJSON),
	}
	client := newTestClient(t, api, nil)

	data, err := client.CurrentTrackData(context.Background(), "user-1")

	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, "track-1", data.Track.ID)
	assert.Equal(t, "Blue Monday", data.Track.Name)
	assert.Equal(t, []string{"New Order", "Guest"}, data.Track.Artists)
	assert.Equal(t, "Power, Corruption & Lies", data.Track.AlbumName)
	require.NotNil(t, data.Track.AlbumImage)
	assert.Equal(t, "https://img/large", *data.Track.AlbumImage)
	assert.Equal(t, 448000, data.Track.DurationMs)
	assert.Equal(t, 1234, data.Track.ProgressMs)
	assert.True(t, data.Track.IsPlaying)
	assert.Equal(t, "https://open.spotify.com/track/track-1", data.Track.ExternalURL)

	assert.Equal(t, 0.9, data.Features["energy"])
	assert.Equal(t, 130.0, data.Features["tempo"])
	assert.Equal(t, 1.0, data.Features["mode"])
	assert.NotContains(t, data.Features, "id", "string fields are dropped")
	assert.Equal(t, "Bearer test-token", api.lastAuth.Load())
}

func TestCurrentTrackData_FallsBackToRecentlyPlayed(t *testing.T) {
	api := &fakeAPI{
		currentlyPlaying: respond(http.StatusNoContent, ""),
		recentlyPlayed:   respond(http.StatusOK, `{"items": [{"track": `+trackJSON+`}]}`),
		audioFeatures:    respond(http.StatusOK, featuresJSON),
	}
	client := newTestClient(t, api, nil)

	data, err := client.CurrentTrackData(context.Background(), "user-1")

	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, "track-1", data.Track.ID)
	assert.False(t, data.Track.IsPlaying)
	assert.Zero(t, data.Track.ProgressMs)
}

func TestCurrentTrackData_NullItemFallsBack(t *testing.T) {
	api := &fakeAPI{
		currentlyPlaying: respond(http.StatusOK, `{"is_playing": false, "item": null}`),
		recentlyPlayed:   respond(http.StatusOK, `{"items": [{"track": `+trackJSON+`}]}`),
		audioFeatures:    respond(http.StatusOK, featuresJSON),
	}
	client := newTestClient(t, api, nil)

	data, err := client.CurrentTrackData(context.Background(), "user-1")

	require.NoError(t, err)
	require.NotNil(t, data)
	assert.False(t, data.Track.IsPlaying)
}

func TestCurrentTrackData_NothingPlayed(t *testing.T) {
	api := &fakeAPI{
		currentlyPlaying: respond(http.StatusNoContent, ""),
		recentlyPlayed:   respond(http.StatusOK, `{"items": []}`),
	}
	client := newTestClient(t, api, nil)

	data, err := client.CurrentTrackData(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestCurrentTrackData_UpstreamErrorsCollapseToNil(t *testing.T) {
	tests := []struct {
		name string
		api  *fakeAPI
	}{
		{"server error everywhere", &fakeAPI{
			currentlyPlaying: respond(http.StatusBadGateway, ""),
			recentlyPlayed:   respond(http.StatusBadGateway, ""),
		}},
		{"malformed body", &fakeAPI{
			currentlyPlaying: respond(http.StatusOK, `{"item": [`),
			recentlyPlayed:   respond(http.StatusOK, `not json`),
		}},
		{"features missing", &fakeAPI{
			currentlyPlaying: respond(http.StatusOK, `{"is_playing": true, "item": `+trackJSON+`}`),
			audioFeatures:    respond(http.StatusNotFound, `{"error": {"status": 404}}`),
		}},
		{"unauthorized", &fakeAPI{
			currentlyPlaying: respond(http.StatusUnauthorized, ""),
			recentlyPlayed:   respond(http.StatusUnauthorized, ""),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.api, nil)

			data, err := client.CurrentTrackData(context.Background(), "user-1")

			assert.NoError(t, err)
			assert.Nil(t, data)
		})
	}
}

func TestCurrentTrackData_CredentialFailure(t *testing.T) {
	api := &fakeAPI{}
	creds := &mockCredentials{validCredentialFn: func(context.Context, string) (string, error) {
		return "", &TokenRefreshError{Revoked: true, Err: errors.New("invalid_grant")}
	}}
	client := newTestClient(t, api, creds)

	data, err := client.CurrentTrackData(context.Background(), "user-1")

	assert.Nil(t, data)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCredentialUnavailable)
	assert.True(t, IsRevoked(err))
	assert.Zero(t, api.requests.Load(), "no API call without a credential")
}

func TestCurrentTrackData_ResolvesCredentialOnce(t *testing.T) {
	api := &fakeAPI{
		currentlyPlaying: respond(http.StatusNoContent, ""),
		recentlyPlayed:   respond(http.StatusOK, `{"items": [{"track": `+trackJSON+`}]}`),
		audioFeatures:    respond(http.StatusOK, featuresJSON),
	}
	creds := &mockCredentials{}
	client := newTestClient(t, api, creds)

	_, err := client.CurrentTrackData(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, int32(1), creds.calls.Load())
	assert.Equal(t, int32(3), api.requests.Load())
}

func TestClient_UpdatesBudgetFromEveryResponse(t *testing.T) {
	api := &fakeAPI{currentlyPlaying: respond(http.StatusBadRequest, "")}
	client := newTestClient(t, api, nil)

	assert.Nil(t, client.GetCurrentlyPlaying(context.Background(), "user-1"))

	remaining, _ := client.budget.Snapshot()
	assert.Equal(t, 42, remaining)
}

func TestGetRecentlyPlayed_SendsLimit(t *testing.T) {
	var gotLimit atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit.Store(r.URL.Query().Get("limit"))
		_, _ = fmt.Fprintf(w, `{"items": [{"track": %s}]}`, trackJSON)
	}))
	t.Cleanup(srv.Close)

	clock := clockwork.NewRealClock()
	m, cb := newTestMetrics()
	client := NewClient(ClientConfig{BaseURL: srv.URL}, &mockCredentials{}, NewRateBudget(clock, m), clock, m, cb)

	track := client.GetRecentlyPlayed(context.Background(), "user-1", 3)

	require.NotNil(t, track)
	assert.Equal(t, "3", gotLimit.Load())
	assert.False(t, track.IsPlaying)
}

func TestGetAudioFeatures_EmptyObject(t *testing.T) {
	api := &fakeAPI{audioFeatures: respond(http.StatusOK, `{"id": "x"}`)}
	client := newTestClient(t, api, nil)

	assert.Nil(t, client.GetAudioFeatures(context.Background(), "x", "token"))
}

func TestClient_CircuitOpensAfterRepeatedServerErrors(t *testing.T) {
	api := &fakeAPI{currentlyPlaying: respond(http.StatusInternalServerError, "")}
	client := newTestClient(t, api, nil)
	ctx := context.Background()

	for range 5 {
		assert.Nil(t, client.GetCurrentlyPlaying(ctx, "user-1"))
	}
	require.Equal(t, int32(5), api.requests.Load())

	assert.Nil(t, client.GetCurrentlyPlaying(ctx, "user-1"))
	assert.Equal(t, int32(5), api.requests.Load(), "open circuit must not reach the API")
}

func TestClient_ClientErrorsDoNotTripCircuit(t *testing.T) {
	api := &fakeAPI{currentlyPlaying: respond(http.StatusNotFound, "")}
	client := newTestClient(t, api, nil)
	ctx := context.Background()

	for range 8 {
		client.GetCurrentlyPlaying(ctx, "user-1")
	}

	assert.Equal(t, int32(8), api.requests.Load())
}

func TestClient_CancelledContext(t *testing.T) {
	api := &fakeAPI{currentlyPlaying: func(w http.ResponseWriter) {
		time.Sleep(200 * time.Millisecond)
		respond(http.StatusOK, `{"item": `+trackJSON+`}`)(w)
	}}
	client := newTestClient(t, api, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Nil(t, client.GetCurrentlyPlaying(ctx, "user-1"))
}

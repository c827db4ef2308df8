package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dragfer/spot95/internal/adapter/metrics"
	"github.com/dragfer/spot95/internal/domain"
	"github.com/dragfer/spot95/internal/platform/correlation"
	"github.com/jonboulle/clockwork"
)

// ConnectedUsers is the poller's view of the connection registry.
type ConnectedUsers interface {
	ConnectedUserIDs() []string
	SendTo(userID string, msg domain.Message) bool
}

// TrackSource returns the user's current track with audio features, or nil when there is
// nothing to report. Errors mean the user has no usable credential.
type TrackSource interface {
	CurrentTrackData(ctx context.Context, userID string) (*domain.TrackData, error)
}

type MoodClassifier interface {
	Classify(features domain.FeatureVector) domain.MoodResult
	Describe(mood string, track domain.TrackSnapshot) string
}

type PollerConfig struct {
	TickInterval time.Duration
	UserInterval time.Duration
	ErrorBackoff time.Duration
	UserTimeout  time.Duration
	Workers      int
}

func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		TickInterval: time.Second,
		UserInterval: 5 * time.Second,
		ErrorBackoff: 5 * time.Second,
		UserTimeout:  15 * time.Second,
	}
}

type Poller struct {
	users   ConnectedUsers
	tracks  TrackSource
	moods   MoodClassifier
	clock   clockwork.Clock
	cfg     PollerConfig
	metrics *metrics.PollerMetrics

	mu       sync.Mutex
	sessions map[string]*sessionState
}

func NewPoller(users ConnectedUsers, tracks TrackSource, moods MoodClassifier, clock clockwork.Clock, cfg PollerConfig, m *metrics.PollerMetrics) *Poller {
	defaults := DefaultPollerConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaults.TickInterval
	}
	if cfg.UserInterval <= 0 {
		cfg.UserInterval = defaults.UserInterval
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = defaults.ErrorBackoff
	}
	if cfg.UserTimeout <= 0 {
		cfg.UserTimeout = defaults.UserTimeout
	}

	return &Poller{
		users:    users,
		tracks:   tracks,
		moods:    moods,
		clock:    clock,
		cfg:      cfg,
		metrics:  m,
		sessions: make(map[string]*sessionState),
	}
}

// Run polls once per tick until ctx is cancelled. A failed tick is logged and followed by
// the error backoff; it never stops the loop.
func (p *Poller) Run(ctx context.Context) {
	slog.InfoContext(ctx, "Activity poller started", "tick_interval", p.cfg.TickInterval, "user_interval", p.cfg.UserInterval, "workers", p.cfg.Workers)
	defer slog.InfoContext(ctx, "Activity poller stopped")

	ticker := p.clock.NewTicker(p.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}

		if err := p.Tick(ctx); err != nil {
			p.metrics.LoopErrors.Inc()
			slog.ErrorContext(ctx, "Poller tick failed, backing off", "error", err, "backoff", p.cfg.ErrorBackoff)

			select {
			case <-ctx.Done():
				return
			case <-p.clock.After(p.cfg.ErrorBackoff):
			}
		}
	}
}

// Tick runs one loop body: clean up state of departed users, then poll every connected user
// that is due.
func (p *Poller) Tick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("poller tick panic: %v", r)
		}
	}()

	start := p.clock.Now()
	tickCtx := correlation.WithID(ctx, correlation.NewID())

	userIDs := p.users.ConnectedUserIDs()
	p.cleanup(userIDs)
	p.pollAll(tickCtx, userIDs, start.UnixMilli())

	p.metrics.TickDuration.Observe(p.clock.Since(start).Seconds())
	return nil
}

func (p *Poller) pollUser(ctx context.Context, userID string, tickMs int64) {
	state := p.session(userID)
	now := p.clock.Now()
	if !state.due(now, p.cfg.UserInterval) {
		return
	}
	// Set before fetching so a slow or failing poll still counts against the floor.
	state.lastCheckedAt = now
	p.metrics.UsersPolled.Inc()

	// Shutdown does not abort a poll in progress; the timeout bounds it instead.
	userCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.UserTimeout)
	defer cancel()
	userCtx = correlation.Child(userCtx)

	defer func() {
		if r := recover(); r != nil {
			p.metrics.UserErrors.WithLabelValues("panic").Inc()
			slog.ErrorContext(userCtx, "Panic while processing user", "user_id", userID, "panic", r, "stack", string(debug.Stack()))
			p.users.SendTo(userID, domain.ErrorMessage(domain.AnalysisErrorText))
		}
	}()

	if err := p.processUser(userCtx, userID, state, tickMs); err != nil {
		p.reportError(userCtx, userID, state, err)
	}
}

func (p *Poller) processUser(ctx context.Context, userID string, state *sessionState, tickMs int64) error {
	data, err := p.tracks.CurrentTrackData(ctx, userID)
	if err != nil {
		return err
	}
	if data == nil {
		return nil
	}
	state.credentialReported = false

	if data.Track.ID == state.lastTrackID && data.Track.IsPlaying {
		p.metrics.UpdatesSuppressed.Inc()
		return nil
	}
	state.lastTrackID = data.Track.ID

	result := p.moods.Classify(data.Features)
	update := domain.MoodUpdate{
		Mood:          result.Mood,
		Emoji:         result.Emoji,
		Confidence:    result.Confidence,
		Description:   p.moods.Describe(result.Mood, data.Track),
		Track:         data.Track,
		AudioFeatures: data.Features,
		Timestamp:     tickMs,
	}

	if p.users.SendTo(userID, domain.MoodUpdateMessage(update)) {
		state.delivered = true
		p.metrics.UpdatesSent.WithLabelValues(result.Mood).Inc()
		slog.DebugContext(ctx, "Sent mood update", "user_id", userID, "track_id", data.Track.ID, "mood", result.Mood, "confidence", result.Confidence)
	}
	return nil
}

func (p *Poller) reportError(ctx context.Context, userID string, state *sessionState, err error) {
	if errors.Is(err, domain.ErrCredentialUnavailable) {
		p.metrics.UserErrors.WithLabelValues("credential").Inc()
		if !state.delivered || state.credentialReported {
			slog.DebugContext(ctx, "No credential for user", "user_id", userID, "error", err)
			return
		}
		slog.WarnContext(ctx, "Credential lost mid-session", "user_id", userID, "error", err)
		if p.users.SendTo(userID, domain.ErrorMessage(domain.CredentialErrorText)) {
			state.credentialReported = true
		}
		return
	}

	p.metrics.UserErrors.WithLabelValues("analysis").Inc()
	slog.ErrorContext(ctx, "Error processing user", "user_id", userID, "error", err)
	p.users.SendTo(userID, domain.ErrorMessage(domain.AnalysisErrorText))
}

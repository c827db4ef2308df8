package app

import "time"

// sessionState is the poller's bookkeeping for one connected user. A state is only touched by
// the goroutine that owns the user for the current tick.
type sessionState struct {
	lastCheckedAt time.Time
	lastTrackID   string

	// delivered is set once a mood_update reached the client; credential errors are only
	// reported after that.
	delivered bool
	// credentialReported suppresses repeated credential errors until data flows again.
	credentialReported bool
}

func (s *sessionState) due(now time.Time, interval time.Duration) bool {
	return s.lastCheckedAt.IsZero() || now.Sub(s.lastCheckedAt) >= interval
}

// session returns the state for userID, creating it on first use.
func (p *Poller) session(userID string) *sessionState {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, ok := p.sessions[userID]
	if !ok {
		state = &sessionState{}
		p.sessions[userID] = state
	}
	return state
}

// cleanup drops state for users that are no longer connected.
func (p *Poller) cleanup(connected []string) {
	keep := make(map[string]struct{}, len(connected))
	for _, id := range connected {
		keep[id] = struct{}{}
	}

	p.mu.Lock()
	for id := range p.sessions {
		if _, ok := keep[id]; !ok {
			delete(p.sessions, id)
		}
	}
	n := len(p.sessions)
	p.mu.Unlock()

	p.metrics.Sessions.Set(float64(n))
}

// SessionCount reports how many users currently have poller state.
func (p *Poller) SessionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

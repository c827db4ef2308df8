package registry

import (
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dragfer/spot95/internal/adapter/metrics"
	"github.com/dragfer/spot95/internal/domain"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Transport carries encoded messages to one client.
type Transport interface {
	Send(payload []byte) error
	Close(reason string) error
}

// Connection is one live streaming session.
type Connection struct {
	ID          uuid.UUID
	UserID      string
	ConnectedAt time.Time

	transport Transport
}

type Registry struct {
	clock   clockwork.Clock
	metrics *metrics.ConnectionMetrics

	mu            sync.Mutex
	connections   map[string]*Connection
	subscriptions map[domain.Channel]map[string]struct{}
}

func New(clock clockwork.Clock, m *metrics.ConnectionMetrics) *Registry {
	subscriptions := make(map[domain.Channel]map[string]struct{}, len(domain.Channels))
	for _, ch := range domain.Channels {
		subscriptions[ch] = make(map[string]struct{})
	}

	return &Registry{
		clock:         clock,
		metrics:       m,
		connections:   make(map[string]*Connection),
		subscriptions: subscriptions,
	}
}

// Connect installs t as the user's connection. An existing connection for the same user is
// taken out of the map and closed best-effort before t is installed, so no send reaches two
// sockets. While the old socket closes, SendTo reports the user as not connected. The user's
// subscriptions are kept.
func (r *Registry) Connect(userID string, t Transport) *Connection {
	conn := &Connection{
		ID:          uuid.New(),
		UserID:      userID,
		ConnectedAt: r.clock.Now(),
		transport:   t,
	}

	for {
		r.mu.Lock()
		previous, ok := r.connections[userID]
		if !ok {
			r.connections[userID] = conn
			break
		}
		delete(r.connections, userID)
		r.mu.Unlock()

		r.metrics.Replaced.Inc()
		slog.Debug("Closing previous connection", "user_id", userID, "connection_id", previous.ID.String())
		if err := previous.transport.Close("Replaced by a new connection"); err != nil {
			slog.Warn("Failed to close previous connection", "user_id", userID, "error", err)
		}
	}
	active := len(r.connections)
	r.mu.Unlock()

	r.metrics.Active.Set(float64(active))
	slog.Info("Connection registered", "user_id", userID, "connection_id", conn.ID.String(), "active_connections", active)
	return conn
}

// Disconnect removes the user's connection and every subscription. It is a no-op for unknown users.
func (r *Registry) Disconnect(userID string) {
	r.mu.Lock()
	conn := r.removeLocked(userID)
	r.mu.Unlock()

	if conn != nil {
		r.afterRemove(conn, "Disconnected")
	}
}

// Release is the reader-side teardown: it disconnects the user only while conn is still the
// user's current connection, so a stale reader cannot tear down its replacement.
func (r *Registry) Release(userID string, conn *Connection) {
	r.mu.Lock()
	var removed *Connection
	if current, ok := r.connections[userID]; ok && current == conn {
		removed = r.removeLocked(userID)
	}
	r.mu.Unlock()

	if removed != nil {
		r.afterRemove(removed, "Disconnected")
		return
	}
	if conn != nil {
		_ = conn.transport.Close("Disconnected")
	}
}

// removeLocked must be called with mu held.
func (r *Registry) removeLocked(userID string) *Connection {
	conn, ok := r.connections[userID]
	if !ok {
		return nil
	}
	delete(r.connections, userID)
	for _, members := range r.subscriptions {
		delete(members, userID)
	}
	return conn
}

func (r *Registry) afterRemove(conn *Connection, reason string) {
	_ = conn.transport.Close(reason)
	r.refreshGauges()
	slog.Info("Connection removed", "user_id", conn.UserID, "connection_id", conn.ID.String(), "duration", r.clock.Since(conn.ConnectedAt))
}

// SendTo delivers msg to one user. It returns false when the user is not connected or the write
// failed; a failed write disconnects the user.
func (r *Registry) SendTo(userID string, msg domain.Message) bool {
	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to encode message", "user_id", userID, "type", msg.Type, "error", err)
		return false
	}
	return r.send(userID, msg.Type, payload)
}

func (r *Registry) send(userID string, msgType domain.MessageType, payload []byte) bool {
	r.mu.Lock()
	conn, ok := r.connections[userID]
	r.mu.Unlock()

	if !ok {
		slog.Debug("No active connection", "user_id", userID, "type", msgType)
		return false
	}

	if err := conn.transport.Send(payload); err != nil {
		slog.Warn("Send failed, disconnecting", "user_id", userID, "type", msgType, "error", err)
		r.metrics.SendFailures.Inc()
		r.Release(userID, conn)
		return false
	}

	r.metrics.MessagesSent.WithLabelValues(string(msgType)).Inc()
	return true
}

// Broadcast sends msg to every subscriber of channel. Members whose write fails are pruned;
// delivery to the others continues.
func (r *Registry) Broadcast(msg domain.Message, channel domain.Channel) {
	r.mu.Lock()
	members, ok := r.subscriptions[channel]
	var userIDs []string
	if ok {
		userIDs = make([]string, 0, len(members))
		for id := range members {
			userIDs = append(userIDs, id)
		}
	}
	r.mu.Unlock()

	if !ok {
		slog.Warn("Broadcast to unknown channel", "channel", channel)
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to encode broadcast", "channel", channel, "type", msg.Type, "error", err)
		return
	}

	for _, id := range userIDs {
		r.send(id, msg.Type, payload)
	}
}

// Subscribe adds a connected user to channel. Unknown users and channels are ignored.
func (r *Registry) Subscribe(userID string, channel domain.Channel) {
	r.mu.Lock()
	members, known := r.subscriptions[channel]
	_, connected := r.connections[userID]
	if known && connected {
		members[userID] = struct{}{}
	}
	r.mu.Unlock()

	if known && connected {
		r.refreshGauges()
		slog.Debug("Subscribed", "user_id", userID, "channel", channel)
	}
}

// Unsubscribe removes userID from channel. Unknown channels are ignored.
func (r *Registry) Unsubscribe(userID string, channel domain.Channel) {
	r.mu.Lock()
	members, known := r.subscriptions[channel]
	if known {
		delete(members, userID)
	}
	r.mu.Unlock()

	if known {
		r.refreshGauges()
		slog.Debug("Unsubscribed", "user_id", userID, "channel", channel)
	}
}

// ConnectedUserIDs returns a sorted point-in-time copy of the connected user ids.
func (r *Registry) ConnectedUserIDs() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.connections))
	for id := range r.connections {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	slices.Sort(ids)
	return ids
}

// Subscribers returns a sorted copy of the channel's members, or nil for unknown channels.
func (r *Registry) Subscribers(channel domain.Channel) []string {
	r.mu.Lock()
	members, ok := r.subscriptions[channel]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	slices.Sort(ids)
	return ids
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.connections)
}

// CloseAll closes every connection with reason. Used at shutdown.
func (r *Registry) CloseAll(reason string) {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.connections))
	for id, conn := range r.connections {
		conns = append(conns, conn)
		delete(r.connections, id)
	}
	for _, members := range r.subscriptions {
		clear(members)
	}
	r.mu.Unlock()

	slog.Info("Closing all connections", "count", len(conns), "reason", reason)
	for _, conn := range conns {
		_ = conn.transport.Close(reason)
	}
	r.refreshGauges()
}

func (r *Registry) refreshGauges() {
	r.mu.Lock()
	active := len(r.connections)
	counts := make(map[domain.Channel]int, len(r.subscriptions))
	for ch, members := range r.subscriptions {
		counts[ch] = len(members)
	}
	r.mu.Unlock()

	r.metrics.Active.Set(float64(active))
	for ch, n := range counts {
		r.metrics.Subscriptions.WithLabelValues(string(ch)).Set(float64(n))
	}
}

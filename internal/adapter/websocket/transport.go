package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	writeDeadline = 5 * time.Second
	pingInterval  = 30 * time.Second
	pongDeadline  = 60 * time.Second
	maxFrameSize  = 4096
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("websocket transport closed")

// Transport is the delivery channel for one client. Writes are synchronous and serialized;
// a keepalive goroutine pings the peer until Close.
type Transport struct {
	conn  *websocket.Conn
	clock clockwork.Clock

	writeMu sync.Mutex
	closed  bool

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewTransport(conn *websocket.Conn, clock clockwork.Clock) *Transport {
	t := &Transport{
		conn:  conn,
		clock: clock,
		done:  make(chan struct{}),
	}
	conn.SetReadLimit(maxFrameSize)
	t.configurePongHandler()

	t.wg.Add(1)
	go t.keepalive()
	return t
}

// Send writes one text frame.
func (t *Transport) Send(payload []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.closed {
		return ErrClosed
	}
	t.updateWriteDeadline()
	return t.conn.WriteMessage(websocket.TextMessage, payload)
}

// Receive blocks until the next text frame arrives. Binary frames are skipped.
func (t *Transport) Receive() ([]byte, error) {
	for {
		msgType, payload, err := t.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		t.updateReadDeadline()
		if msgType == websocket.TextMessage {
			return payload, nil
		}
	}
}

// Close stops the keepalive, sends a close frame carrying reason and closes the socket.
// Subsequent calls are no-ops.
func (t *Transport) Close(reason string) error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		t.wg.Wait()

		t.writeMu.Lock()
		t.closed = true
		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		t.updateWriteDeadline()
		_ = t.conn.WriteMessage(websocket.CloseMessage, closeMsg)
		t.writeMu.Unlock()

		err = t.conn.Close()
	})
	return err
}

func (t *Transport) keepalive() {
	defer t.wg.Done()

	ticker := t.clock.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			deadline := t.clock.Now().Add(writeDeadline)
			if err := t.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				// Unblocks the reader, which then releases the connection.
				_ = t.conn.Close()
				return
			}
		case <-t.done:
			return
		}
	}
}

func (t *Transport) configurePongHandler() {
	t.updateReadDeadline()
	t.conn.SetPongHandler(func(string) error {
		t.updateReadDeadline()
		return nil
	})
}

func (t *Transport) updateWriteDeadline() {
	_ = t.conn.SetWriteDeadline(t.clock.Now().Add(writeDeadline))
}

func (t *Transport) updateReadDeadline() {
	_ = t.conn.SetReadDeadline(t.clock.Now().Add(pongDeadline))
}

package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnPair(t *testing.T) (server *ws.Conn, client *ws.Conn) {
	t.Helper()
	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	ready := make(chan *ws.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		ready <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = clientConn.Close() })

	serverConn := <-ready
	t.Cleanup(func() { _ = serverConn.Close() })

	return serverConn, clientConn
}

func TestTransport_SendDeliversTextFrame(t *testing.T) {
	server, client := newTestConnPair(t)
	tr := NewTransport(server, clockwork.NewRealClock())
	t.Cleanup(func() { _ = tr.Close("test done") })

	require.NoError(t, tr.Send([]byte(`{"type":"pong","timestamp":1}`)))

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, payload, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, ws.TextMessage, msgType)
	assert.JSONEq(t, `{"type":"pong","timestamp":1}`, string(payload))
}

func TestTransport_ReceiveSkipsBinaryFrames(t *testing.T) {
	server, client := newTestConnPair(t)
	tr := NewTransport(server, clockwork.NewRealClock())
	t.Cleanup(func() { _ = tr.Close("test done") })

	require.NoError(t, client.WriteMessage(ws.BinaryMessage, []byte{0x01, 0x02}))
	require.NoError(t, client.WriteMessage(ws.TextMessage, []byte("ping")))

	payload, err := tr.Receive()
	require.NoError(t, err)
	assert.Equal(t, "ping", string(payload))
}

func TestTransport_CloseSendsReason(t *testing.T) {
	server, client := newTestConnPair(t)
	tr := NewTransport(server, clockwork.NewRealClock())

	require.NoError(t, tr.Close("Server shutting down"))

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := client.ReadMessage()

	var closeErr *ws.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, ws.CloseNormalClosure, closeErr.Code)
	assert.Equal(t, "Server shutting down", closeErr.Text)
}

func TestTransport_CloseIdempotent(t *testing.T) {
	server, _ := newTestConnPair(t)
	tr := NewTransport(server, clockwork.NewRealClock())

	_ = tr.Close("first")
	assert.NotPanics(t, func() { _ = tr.Close("second") })

	assert.ErrorIs(t, tr.Send([]byte("late")), ErrClosed)
}

func TestTransport_SendAfterClose(t *testing.T) {
	server, _ := newTestConnPair(t)
	tr := NewTransport(server, clockwork.NewRealClock())
	_ = tr.Close("bye")

	assert.ErrorIs(t, tr.Send([]byte("x")), ErrClosed)
}

func TestTransport_SendFailsWhenPeerGone(t *testing.T) {
	server, client := newTestConnPair(t)
	tr := NewTransport(server, clockwork.NewRealClock())
	t.Cleanup(func() { _ = tr.Close("test done") })

	require.NoError(t, client.Close())
	_ = server.UnderlyingConn().Close()

	assert.Error(t, tr.Send([]byte("hello")))
}

func TestTransport_KeepalivePings(t *testing.T) {
	fakeClock := clockwork.NewFakeClockAt(time.Now())
	server, client := newTestConnPair(t)
	tr := NewTransport(server, fakeClock)
	t.Cleanup(func() { _ = tr.Close("test done") })

	pinged := make(chan struct{}, 1)
	client.SetPingHandler(func(string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return nil
	})
	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	require.NoError(t, fakeClock.BlockUntilContext(t.Context(), 1))
	fakeClock.Advance(pingInterval)

	select {
	case <-pinged:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a keepalive ping")
	}
}

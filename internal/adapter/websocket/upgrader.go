package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const handshakeTimeout = 10 * time.Second

// NewUpgrader builds the upgrader for the streaming endpoint, guarded by
// NewCheckOrigin.
func NewUpgrader(appURL string, isDevelopment bool) *websocket.Upgrader {
	return &websocket.Upgrader{
		HandshakeTimeout: handshakeTimeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      NewCheckOrigin(appURL, isDevelopment),
	}
}

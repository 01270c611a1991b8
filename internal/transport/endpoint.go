package transport

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/intervue/internal/interview"
)

const writeTimeout = 5 * time.Second

// wsEndpoint adapts a WebSocket connection to [interview.Endpoint].
type wsEndpoint struct {
	conn   *websocket.Conn
	closed atomic.Bool
}

var _ interview.Endpoint = (*wsEndpoint)(nil)

// Send writes text as a single text message.
func (e *wsEndpoint) Send(ctx context.Context, text string) error {
	if e.closed.Load() {
		return interview.ErrTransportDisconnect
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := e.conn.Write(ctx, websocket.MessageText, []byte(text)); err != nil {
		return fmt.Errorf("%w: %v", interview.ErrTransportDisconnect, err)
	}
	return nil
}

// Close marks the endpoint closed and closes the connection with a policy
// violation status. The registry calls it when a newer connection of the same
// kind takes the endpoint's place.
func (e *wsEndpoint) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	return e.conn.Close(websocket.StatusPolicyViolation, "replaced by a newer connection")
}

func (e *wsEndpoint) markClosed() { e.closed.Store(true) }

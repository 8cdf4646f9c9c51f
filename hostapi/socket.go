package hostapi

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn wraps a single-invocation websocket connection.
type wsConn struct {
	*websocket.Conn
}

const (
	dialRetries   = 3
	dialBaseDelay = 500 * time.Millisecond
	dialMaxDelay  = 5 * time.Second
)

// dialSocket connects to the host's status websocket, retrying with
// exponential backoff. The connection is scoped to one invocation; the shim
// does not keep a long-lived listener.
func (c *Client) dialSocket() (*wsConn, error) {
	wsurl := fmt.Sprintf("ws://%s/ws?clientId=%s", c.serverBaseAddress, c.clientid)

	var lastErr error
	delay := dialBaseDelay
	for attempt := 0; attempt <= dialRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(delay)
			delay *= 2
			if delay > dialMaxDelay {
				delay = dialMaxDelay
			}
		}

		conn, _, err := c.dialer.Dial(wsurl, nil)
		if err == nil {
			return &wsConn{Conn: conn}, nil
		}
		lastErr = err
		slog.Warn("websocket connection attempt failed", "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("connecting to host websocket: %w", lastErr)
}

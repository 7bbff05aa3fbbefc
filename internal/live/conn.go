package live

import (
	"context"
	"fmt"
	stdhttp "net/http"

	"github.com/coder/websocket"
)

// Conn is one live bidirectional channel.
type Conn interface {
	// Read blocks for the next text frame.
	Read(ctx context.Context) ([]byte, error)
	// Write sends one text frame.
	Write(ctx context.Context, data []byte) error
	// Close closes the channel with the given status.
	Close(code websocket.StatusCode, reason string) error
}

// Dialer opens channels.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// WebSocketDialer dials channels with github.com/coder/websocket.
type WebSocketDialer struct {
	// HTTPClient is used for the handshake; nil means http.DefaultClient.
	HTTPClient *stdhttp.Client
	// ReadLimit caps inbound frame size; zero keeps the library default.
	ReadLimit int64
}

// Dial implements Dialer. A handshake refused with 401 or 403 is reported as
// ErrNotAuthenticated.
func (d WebSocketDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	conn, resp, err := websocket.Dial(ctx, endpoint, &websocket.DialOptions{
		HTTPClient: d.HTTPClient,
	})
	if err != nil {
		if resp != nil {
			if resp.Body != nil {
				_ = resp.Body.Close()
			}
			if resp.StatusCode == stdhttp.StatusUnauthorized || resp.StatusCode == stdhttp.StatusForbidden {
				return nil, fmt.Errorf("%w: handshake refused with status %d", ErrNotAuthenticated, resp.StatusCode)
			}
		}
		return nil, fmt.Errorf("dial: %w", err)
	}
	if d.ReadLimit > 0 {
		conn.SetReadLimit(d.ReadLimit)
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	return data, err
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close(code websocket.StatusCode, reason string) error {
	return c.conn.Close(code, reason)
}

// closeCode classifies a read error. Errors that carry no close frame are
// treated as an abnormal closure, as a browser would report them.
func closeCode(err error) websocket.StatusCode {
	if code := websocket.CloseStatus(err); code != -1 {
		return code
	}
	return websocket.StatusAbnormalClosure
}

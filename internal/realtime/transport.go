package realtime

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one live duplex connection to the notification hub.
type Conn interface {
	// ReadMessage blocks until the next server frame or a transport error.
	ReadMessage() ([]byte, error)
	WriteJSON(v interface{}) error
	Close() error
}

// Dialer opens hub connections. The notifier is the only caller;
// exactly one logical connection is live per authenticated session.
type Dialer interface {
	Dial(ctx context.Context, url, token string) (Conn, error)
}

// WebsocketDialer dials the hub over a websocket, authenticating the
// handshake with a bearer token. The transport is fixed: there is no
// protocol negotiation fallback.
type WebsocketDialer struct {
	// HandshakeTimeout defaults to 10s.
	HandshakeTimeout time.Duration
}

// Dial opens the websocket.
func (d *WebsocketDialer) Dial(ctx context.Context, url, token string) (Conn, error) {
	timeout := d.HandshakeTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("websocket dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteJSON(v interface{}) error {
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	c.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	return c.conn.Close()
}

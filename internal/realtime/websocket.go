package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/spec-kit/ticket-board/internal/events"
)

const (
	// Time allowed to write a control message to the peer
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 1024 * 1024 // 1MB

	handshakeTimeout = 10 * time.Second
)

// WebSocketTransport dials the backend's event socket with a bearer token.
type WebSocketTransport struct {
	endpoint    string
	readTimeout time.Duration
	dialer      *websocket.Dialer
}

// NewWebSocketTransport returns a transport for endpoint (ws:// or wss://).
// readTimeout bounds the gap between frames once the peer has sent a ping;
// a peer that never pings is never timed out. Zero disables the deadline.
func NewWebSocketTransport(endpoint string, readTimeout time.Duration) *WebSocketTransport {
	return &WebSocketTransport{
		endpoint:    endpoint,
		readTimeout: readTimeout,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

// Dial implements Transport.
func (t *WebSocketTransport) Dial(ctx context.Context, token string) (Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := t.dialer.DialContext(ctx, t.endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake: %s: %w", resp.Status, err)
		}
		return nil, err
	}

	c := &wsConn{id: uuid.NewString(), conn: conn, readTimeout: t.readTimeout}
	conn.SetReadLimit(maxMessageSize)
	conn.SetPingHandler(func(data string) error {
		c.pinged.Store(true)
		c.extendDeadline()
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	return c, nil
}

type wsConn struct {
	id          string
	conn        *websocket.Conn
	readTimeout time.Duration
	pinged      atomic.Bool
	closeOnce   sync.Once
	closeErr    error
}

func (c *wsConn) ID() string { return c.id }

// extendDeadline pushes the read deadline out, but only for peers known to
// send keepalive pings.
func (c *wsConn) extendDeadline() {
	if c.readTimeout <= 0 || !c.pinged.Load() {
		return
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
}

// Receive reads the next text frame and decodes it as an envelope.
// Undecodable frames are skipped.
func (c *wsConn) Receive(ctx context.Context) (events.Envelope, error) {
	for {
		if err := ctx.Err(); err != nil {
			return events.Envelope{}, err
		}
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return events.Envelope{}, err
		}
		c.extendDeadline()

		var env events.Envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Type == "" {
			continue
		}
		return env, nil
	}
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WebsocketConfig configures WebsocketDialer.
type WebsocketConfig struct {
	// HandshakeTimeout bounds the opening handshake.
	// Default: 10s
	HandshakeTimeout time.Duration

	// ReadLimit is the maximum accepted message size in bytes.
	// Default: 0 (no limit)
	ReadLimit int64

	// EnableCompression negotiates per-message compression.
	EnableCompression bool
}

// WebsocketDialer dials backend websocket endpoints.
type WebsocketDialer struct {
	dialer    *websocket.Dialer
	readLimit int64
}

// NewWebsocketDialer creates a Dialer for ws:// and wss:// URLs.
func NewWebsocketDialer(cfg WebsocketConfig) *WebsocketDialer {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	return &WebsocketDialer{
		dialer: &websocket.Dialer{
			Proxy:             websocket.DefaultDialer.Proxy,
			HandshakeTimeout:  cfg.HandshakeTimeout,
			EnableCompression: cfg.EnableCompression,
		},
		readLimit: cfg.ReadLimit,
	}
}

// Dial implements Dialer.
func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	ws, resp, err := d.dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	if d.readLimit > 0 {
		ws.SetReadLimit(d.readLimit)
	}
	c := &wsConn{ws: ws}
	c.open.Store(true)
	return c, nil
}

type wsConn struct {
	ws   *websocket.Conn
	open atomic.Bool
}

var errConnClosed = errors.New("pool: connection closed")

func (c *wsConn) Send(ctx context.Context, msg []byte) error {
	if !c.open.Load() {
		return errConnClosed
	}
	deadline, _ := ctx.Deadline()
	_ = c.ws.SetWriteDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		_ = c.ws.SetWriteDeadline(time.Now())
	})
	defer stop()

	if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
		c.open.Store(false)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (c *wsConn) Recv(ctx context.Context) ([]byte, error) {
	if !c.open.Load() {
		return nil, errConnClosed
	}
	deadline, _ := ctx.Deadline()
	_ = c.ws.SetReadDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		_ = c.ws.SetReadDeadline(time.Now())
	})
	defer stop()

	_, msg, err := c.ws.ReadMessage()
	if err != nil {
		c.open.Store(false)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return msg, nil
}

func (c *wsConn) Close() error {
	if !c.open.Swap(false) {
		return nil
	}
	return c.ws.Close()
}

func (c *wsConn) Open() bool {
	return c.open.Load()
}

// Package websocket implements the market feed transport over gorilla/websocket.
package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/simaogato/cryptotrade-backend/internal/domain"
)

const defaultWriteTimeout = 10 * time.Second

// Dialer opens feed connections
type Dialer struct {
	dialer      *websocket.Dialer
	readTimeout time.Duration
}

// NewDialer creates a dialer. A positive readTimeout fails ReadMessage when the feed goes
// silent for that long, which the feed treats as a dropped connection.
func NewDialer(handshakeTimeout, readTimeout time.Duration) *Dialer {
	return &Dialer{
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
			Proxy:            websocket.DefaultDialer.Proxy,
		},
		readTimeout: readTimeout,
	}
}

// Dial connects to url
func (d *Dialer) Dial(ctx context.Context, url string) (domain.FeedConn, error) {
	ws, resp, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial %s (status %d): %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	return &conn{ws: ws, readTimeout: d.readTimeout}, nil
}

// conn adapts *websocket.Conn to domain.FeedConn.
// gorilla allows one concurrent reader and one concurrent writer; writes are serialized here.
type conn struct {
	ws          *websocket.Conn
	readTimeout time.Duration
	writeMu     sync.Mutex
}

func (c *conn) ReadMessage() ([]byte, error) {
	if c.readTimeout > 0 {
		if err := c.ws.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return nil, err
		}
	}
	_, data, err := c.ws.ReadMessage()
	return data, err
}

func (c *conn) WriteMessage(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultWriteTimeout)
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *conn) Close() error {
	return c.ws.Close()
}

package hub

import (
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// Client represents a single websocket connection of one user.
type Client struct {
	ConnID string
	UserID string

	ws     *websocket.Conn
	send   chan []byte
	closed int32
}

func NewClient(conn *websocket.Conn, userID string) *Client {
	return &Client{
		ConnID: uuid.NewString(),
		UserID: userID,
		ws:     conn,
		send:   make(chan []byte, 256),
	}
}

// Queue enqueues a frame for the write pump without blocking. A full buffer
// drops the frame; live delivery is best-effort.
func (c *Client) Queue(b []byte) bool {
	if atomic.LoadInt32(&c.closed) == 1 {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

// Outbox exposes the send channel for the write pump (and for tests).
func (c *Client) Outbox() <-chan []byte { return c.send }

// Close makes further Queue calls no-ops and closes the underlying socket.
// The send channel is left open so a racing Queue never panics.
func (c *Client) Close() {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		if c.ws != nil {
			_ = c.ws.Close()
		}
	}
}

// WritePump drains the send channel onto the socket and keeps the connection
// alive with pings. It returns when the socket dies or Close is called.
func (c *Client) WritePump(pingInterval, writeDeadline time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.ws.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		}
	}
}

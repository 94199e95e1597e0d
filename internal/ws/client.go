package ws

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendBuffer   = 256
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
	readLimit    = 64 * 1024
)

// ConnInfo carries the connection's identity and correlation context for
// logging, metrics and event publishing.
type ConnInfo struct {
	ConnID      string
	UserID      int
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// Client is one live websocket connection. All outbound traffic goes through
// the buffered send channel so the write pump is the only writer on the conn.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	userID int
	info   ConnInfo

	// joined room names; guarded by the hub's lock
	rooms map[string]bool

	closed int32
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, info ConnInfo) *Client {
	return &Client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		userID: info.UserID,
		info:   info,
		rooms:  make(map[string]bool),
	}
}

// trySend queues a payload without blocking. False means the buffer is full.
func (c *Client) trySend(payload []byte) bool {
	if atomic.LoadInt32(&c.closed) == 1 {
		return true
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// writePump drains the send channel onto the connection and keeps it alive
// with pings. It exits when the send channel closes or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		}
	}
}

// close shuts the client down exactly once.
func (c *Client) close() {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}
}

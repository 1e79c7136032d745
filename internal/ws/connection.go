// Package ws implements the per-tab Connection spec §4.D describes:
// decode inbound envelopes, encode outbound ones, heartbeat, and
// expose the broadcast.Sink / subscription.Member surfaces the rest
// of the system depends on instead of this package directly.
// Grounded on the teacher's Client/ReadPump/WritePump shape
// (internal/server/websocket/client.go, websocket.go), generalized
// from a JSON table-id client to a MessagePack-codec, multi-audience
// one.
package ws

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hiveboardgame/realtime/internal/lag"
	"github.com/hiveboardgame/realtime/internal/logging"
)

var log = logging.New("ws")

const (
	// HeartbeatInterval is the cadence of transport-level keepalive
	// frames (spec §4.D / §7: "Heartbeat 5 s").
	HeartbeatInterval = 5 * time.Second
	// IdleTimeout closes a connection that has gone this long without
	// a client frame (spec §7: "client-idle 10 s").
	IdleTimeout = 10 * time.Second
	sendBuffer  = 256
)

// Connection is one client tab (spec §4.D's per-tab state machine).
// The zero value is not usable; construct with New.
type Connection struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	mu       sync.RWMutex
	userID   string
	username string
	isBot    bool
	isAdmin  bool
	authed   bool

	lastFrame atomic.Int64 // unix nanos
	closed    atomic.Bool
	pingSeq   atomic.Uint64

	Ping *lag.PingTracker
}

// New wraps conn as an anonymous Connection (spectate-only until
// Authenticate is called).
func New(conn *websocket.Conn) *Connection {
	c := &Connection{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
		Ping: lag.NewPingTracker(),
	}
	c.touch()
	return c
}

// Authenticate binds an account to the connection (spec §4.D:
// "Authenticated(account?)" — anonymous connections remain
// spectate-only until this is called).
func (c *Connection) Authenticate(userID, username string, isBot, isAdmin bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID, c.username, c.isBot, c.isAdmin, c.authed = userID, username, isBot, isAdmin, true
}

// UserID implements broadcast.Sink.
func (c *Connection) UserID() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID, c.authed
}

// Username returns the authenticated username, or "" if anonymous.
func (c *Connection) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

// IsAdmin reports whether the authenticated account is an admin
// (spec §4.F router policy: "Global requires admin").
func (c *Connection) IsAdmin() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isAdmin
}

// Alive implements subscription.Member and broadcast.Sink.
func (c *Connection) Alive() bool {
	return !c.closed.Load()
}

// Send implements broadcast.Sink: a non-blocking enqueue. Returns
// false if the outbound buffer is full (spec §4.F: lossy close —
// caller is expected to Disconnect on false).
func (c *Connection) Send(payload []byte) bool {
	if c.closed.Load() {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Pending drains one buffered outbound payload without blocking, for
// tests that dispatch against a Connection with no live WritePump
// draining it.
func (c *Connection) Pending() ([]byte, bool) {
	select {
	case p := <-c.send:
		return p, true
	default:
		return nil, false
	}
}

// Disconnect implements broadcast.Sink: idempotent close.
func (c *Connection) Disconnect() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.done)
		c.conn.Close()
	}
}

// NextPingNonce implements broadcast.Sink.
func (c *Connection) NextPingNonce() uint64 {
	nonce := c.pingSeq.Add(1)
	c.Ping.RecordPing(nonce, time.Now())
	return nonce
}

// PingValueMs implements broadcast.Sink.
func (c *Connection) PingValueMs() float64 {
	return c.Ping.ValueMs()
}

func (c *Connection) touch() {
	c.lastFrame.Store(time.Now().UnixNano())
}

func (c *Connection) idleSince() time.Duration {
	return time.Since(time.Unix(0, c.lastFrame.Load()))
}

// ReadPump is the connection's single inbound consumer (spec §4.D:
// "a decoded inbound queue — single consumer"). dispatch is called
// with every raw frame; decode errors are the caller's concern (spec:
// "Decode errors are reported to the client as Error(string)... they
// do not close the connection").
func (c *Connection) ReadPump(dispatch func(*Connection, []byte)) {
	defer c.Disconnect()

	c.conn.SetReadDeadline(time.Now().Add(IdleTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.touch()
		c.conn.SetReadDeadline(time.Now().Add(IdleTimeout))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.touch()
		c.conn.SetReadDeadline(time.Now().Add(IdleTimeout))
		dispatch(c, payload)
	}
}

// WritePump drains the send channel and emits a transport-level
// keepalive every HeartbeatInterval (spec §4.D: "the connection sends
// a transport-level keepalive every 5 s").
func (c *Connection) WritePump() {
	ticker := time.NewTicker(HeartbeatInterval)
	defer func() {
		ticker.Stop()
		c.Disconnect()
	}()

	for {
		select {
		case <-c.done:
			return
		case payload, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if c.idleSince() > IdleTimeout {
				log.Printf("closing idle connection user_id=%s", c.userID)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

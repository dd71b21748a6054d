// Package realtime owns the single realtime channel to the Trova platform:
// connection lifecycle with bounded reconnection, room membership, and
// inbound event dispatch.
package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoToken      = errors.New("no auth token available")
	ErrNotConnected = errors.New("not connected")
)

// Options configures the connection. Zero values fall back to the platform
// defaults (5 attempts, 1s initial wait, 5s cap, 20s dial timeout).
type Options struct {
	URL string

	Attempts    int
	InitialWait time.Duration
	MaxWait     time.Duration
	DialTimeout time.Duration

	// OnMessage receives every decoded inbound event, in transport order,
	// from the single read loop. One message is handled fully before the
	// next is read.
	OnMessage func(Message)
	// OnStateChange observes lifecycle transitions.
	OnStateChange func(State)

	Log *logrus.Entry
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.Attempts <= 0 {
		out.Attempts = 5
	}
	if out.InitialWait <= 0 {
		out.InitialWait = time.Second
	}
	if out.MaxWait < out.InitialWait {
		out.MaxWait = 5 * time.Second
	}
	if out.DialTimeout <= 0 {
		out.DialTimeout = 20 * time.Second
	}
	if out.Log == nil {
		out.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	return out
}

// Manager owns the single connection handle. Only the manager creates and
// tears down connections; every other component holds the *Conn it hands out
// and treats it as emit/query only.
type Manager struct {
	mu   sync.Mutex
	opts Options
	conn *Conn
	log  *logrus.Entry
}

// NewManager creates a manager. Nothing connects until Initialize is called.
func NewManager(opts Options) *Manager {
	opts = opts.withDefaults()
	return &Manager{opts: opts, log: opts.Log}
}

// Initialize opens the realtime channel with the given auth token and returns
// the connection handle. If a handle already exists and reports itself
// connected, it is returned as-is. Connecting happens in the background; the
// returned handle is usable immediately (emits fail with ErrNotConnected
// until the connect completes).
func (m *Manager) Initialize(token string) (*Conn, error) {
	if token == "" {
		m.log.Warn("realtime initialize skipped: no auth token")
		return nil, ErrNoToken
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil && m.conn.State() == StateConnected {
		return m.conn, nil
	}
	if m.conn != nil {
		m.conn.close()
	}

	c := newConn(m.opts, token)
	m.conn = c
	go c.connect()
	return c, nil
}

// Disconnect tears down the current connection and nils the handle.
// Safe to call when no connection exists.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return
	}
	m.conn.close()
	m.conn = nil
}

// Conn returns the current handle, or nil when disconnected.
func (m *Manager) Conn() *Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn
}

// Emit forwards to the current connection. ErrNotConnected when no handle
// exists, so room operations issued while disconnected surface as no-ops at
// the coordinator.
func (m *Manager) Emit(event string, data any) error {
	c := m.Conn()
	if c == nil {
		return ErrNotConnected
	}
	return c.Emit(event, data)
}

// IsConnected reports whether a usable connection exists.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// State reports the current connection state (Disconnected when no handle).
func (m *Manager) State() State {
	m.mu.Lock()
	c := m.conn
	m.mu.Unlock()
	if c == nil {
		return StateDisconnected
	}
	return c.State()
}

// Conn is one realtime channel instance. A Conn is created by the Manager,
// lives through any number of automatic reconnects, and dies on explicit
// disconnect or when the reconnect budget is exhausted.
type Conn struct {
	opts  Options
	token string
	log   *logrus.Entry

	mu       sync.Mutex
	ws       *websocket.Conn
	state    State
	attempts int
	closed   bool
	done     chan struct{}

	writeMu sync.Mutex
}

func newConn(opts Options, token string) *Conn {
	return &Conn{
		opts:  opts,
		token: token,
		log:   opts.Log,
		state: StateDisconnected,
		done:  make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the channel is currently usable.
func (c *Conn) IsConnected() bool {
	return c.State() == StateConnected
}

// ReconnectAttempts returns how many attempts the current reconnect cycle
// has used.
func (c *Conn) ReconnectAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Emit sends an event to the server. Fire-and-forget: a nil error means the
// frame was handed to the transport, not that the server acted on it.
func (c *Conn) Emit(event string, data any) error {
	c.mu.Lock()
	ws, state := c.ws, c.state
	c.mu.Unlock()

	if state != StateConnected || ws == nil {
		return ErrNotConnected
	}

	msg := struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}{Event: event, Data: data}

	// gorilla/websocket allows at most one concurrent writer.
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := ws.WriteJSON(msg); err != nil {
		return err
	}
	eventsEmitted.WithLabelValues(event).Inc()
	return nil
}

// connect performs the initial dial (and the fresh dial after an explicit
// server-side disconnect). A dial failure here rolls into the bounded
// reconnect loop.
func (c *Conn) connect() {
	if c.isClosed() {
		return
	}
	c.setState(StateConnecting)

	ws, err := c.dial()
	if err != nil {
		c.log.WithError(err).Warn("realtime connect failed")
		c.reconnect()
		return
	}
	c.install(ws)
}

func (c *Conn) dial() (*websocket.Conn, error) {
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)

	dialer := websocket.Dialer{HandshakeTimeout: c.opts.DialTimeout}
	ws, _, err := dialer.Dial(u.String(), header)
	return ws, err
}

// install adopts a freshly dialed websocket and starts its read loop.
func (c *Conn) install(ws *websocket.Conn) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ws.Close()
		return
	}
	c.ws = ws
	c.state = StateConnected
	c.attempts = 0
	c.mu.Unlock()

	c.notify(StateConnected)
	c.log.Info("realtime connected")
	go c.readLoop(ws)
}

func (c *Conn) readLoop(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.handleDisconnect(err)
			return
		}

		var msg Message
		if jsonErr := json.Unmarshal(data, &msg); jsonErr != nil || msg.Event == "" {
			c.log.WithError(jsonErr).Warn("realtime dropped malformed frame")
			continue
		}
		eventsReceived.WithLabelValues(msg.Event).Inc()
		if c.opts.OnMessage != nil {
			c.opts.OnMessage(msg)
		}
	}
}

// handleDisconnect classifies a read-loop failure. An explicit server-side
// close means the server ended the session: built-in retry would not help,
// so the client re-initiates with a fresh attempt budget. Anything else is
// treated as transport loss and enters the bounded reconnect loop.
func (c *Conn) handleDisconnect(err error) {
	if c.isClosed() {
		return
	}
	c.clearSocket()

	if isServerClose(err) {
		c.log.WithError(err).Info("realtime server closed session, re-initiating")
		go c.connect()
		return
	}

	c.log.WithError(err).Warn("realtime connection lost")
	go c.reconnect()
}

// reconnect retries the dial with capped backoff until it succeeds or the
// attempt budget runs out, after which the connection stays Disconnected
// until Initialize is called again.
func (c *Conn) reconnect() {
	if c.isClosed() {
		return
	}
	c.setState(StateReconnecting)

	wait := c.opts.InitialWait
	for attempt := 1; attempt <= c.opts.Attempts; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(wait):
		}

		c.mu.Lock()
		c.attempts = attempt
		c.mu.Unlock()
		reconnectAttempts.Inc()

		ws, err := c.dial()
		if err == nil {
			c.install(ws)
			return
		}
		c.log.WithError(err).WithField("attempt", attempt).Warn("realtime reconnect failed")

		wait *= 2
		if wait > c.opts.MaxWait {
			wait = c.opts.MaxWait
		}
	}

	c.log.Error("realtime reconnect attempts exhausted")
	c.setState(StateDisconnected)
}

// close tears the connection down for good. Idempotent.
func (c *Conn) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	ws := c.ws
	c.ws = nil
	c.state = StateDisconnected
	close(c.done)
	c.mu.Unlock()

	if ws != nil {
		c.writeMu.Lock()
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		ws.Close()
	}
	c.notify(StateDisconnected)
	c.log.Info("realtime disconnected")
}

func (c *Conn) clearSocket() {
	c.mu.Lock()
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
	c.mu.Unlock()
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()
	c.notify(s)
}

func (c *Conn) notify(s State) {
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(s)
	}
}

// isServerClose reports whether the error is the server deliberately closing
// the session (as opposed to the transport dropping).
func isServerClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

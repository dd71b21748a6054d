package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsServer is a minimal realtime server for exercising the client.
type wsServer struct {
	*httptest.Server
	mu     sync.Mutex
	conns  []*websocket.Conn
	accept chan *websocket.Conn
	tokens chan string
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	upgrader := websocket.Upgrader{}
	s := &wsServer{
		accept: make(chan *websocket.Conn, 8),
		tokens: make(chan string, 8),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case s.tokens <- r.URL.Query().Get("token"):
		default:
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, ws)
		s.mu.Unlock()
		s.accept <- ws
		go func() {
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *wsServer) url() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *wsServer) waitConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case ws := <-s.accept:
		return ws
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for client connection")
		return nil
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testOptions(url string) Options {
	return Options{
		URL:         url,
		Attempts:    3,
		InitialWait: 10 * time.Millisecond,
		MaxWait:     30 * time.Millisecond,
		DialTimeout: time.Second,
	}
}

func TestInitializeRequiresToken(t *testing.T) {
	m := NewManager(testOptions("ws://localhost:1"))
	conn, err := m.Initialize("")
	assert.ErrorIs(t, err, ErrNoToken)
	assert.Nil(t, conn)
	assert.Equal(t, StateDisconnected, m.State())
}

func TestConnectAndReceive(t *testing.T) {
	s := newWSServer(t)

	received := make(chan Message, 8)
	opts := testOptions(s.url())
	opts.OnMessage = func(msg Message) { received <- msg }

	m := NewManager(opts)
	conn, err := m.Initialize("tok-123")
	require.NoError(t, err)

	ws := s.waitConn(t)
	waitFor(t, "connected state", conn.IsConnected)

	// The auth token travels with the dial.
	assert.Equal(t, "tok-123", <-s.tokens)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage,
		[]byte(`{"event":"REPORT_UPDATED","data":{"report":{"id":"r1"}}}`)))

	select {
	case msg := <-received:
		assert.Equal(t, EventReportUpdated, msg.Event)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for inbound event")
	}
}

func TestInitializeIdempotentWhileConnected(t *testing.T) {
	s := newWSServer(t)
	m := NewManager(testOptions(s.url()))

	conn, err := m.Initialize("tok")
	require.NoError(t, err)
	s.waitConn(t)
	waitFor(t, "connected state", conn.IsConnected)

	again, err := m.Initialize("tok")
	require.NoError(t, err)
	assert.Same(t, conn, again)
}

func TestEmitWhileDisconnected(t *testing.T) {
	opts := testOptions("ws://localhost:1")
	c := newConn(opts.withDefaults(), "tok")
	err := c.Emit("joinRoom", "user_1")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestManagerDisconnectIsIdempotent(t *testing.T) {
	s := newWSServer(t)
	m := NewManager(testOptions(s.url()))

	conn, err := m.Initialize("tok")
	require.NoError(t, err)
	s.waitConn(t)
	waitFor(t, "connected state", conn.IsConnected)

	m.Disconnect()
	m.Disconnect() // no handle left, still a no-op

	assert.Equal(t, StateDisconnected, m.State())
	assert.ErrorIs(t, m.Emit("joinRoom", "x"), ErrNotConnected)
}

func TestReconnectAfterTransportLoss(t *testing.T) {
	s := newWSServer(t)
	m := NewManager(testOptions(s.url()))

	conn, err := m.Initialize("tok")
	require.NoError(t, err)
	ws := s.waitConn(t)
	waitFor(t, "connected state", conn.IsConnected)

	// Abrupt TCP drop, no close handshake: transport loss, bounded retry.
	ws.Close()

	s.waitConn(t)
	waitFor(t, "reconnected state", conn.IsConnected)
}

func TestServerDisconnectReinitiates(t *testing.T) {
	s := newWSServer(t)
	m := NewManager(testOptions(s.url()))

	conn, err := m.Initialize("tok")
	require.NoError(t, err)
	ws := s.waitConn(t)
	waitFor(t, "connected state", conn.IsConnected)

	// Explicit server-side close: the client must re-initiate itself.
	deadline := time.Now().Add(time.Second)
	require.NoError(t, ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server disconnect"), deadline))
	ws.Close()

	s.waitConn(t)
	waitFor(t, "reconnected state", conn.IsConnected)
}

func TestReconnectAttemptsExhausted(t *testing.T) {
	s := newWSServer(t)
	url := s.url()
	s.Close() // every dial now fails

	opts := testOptions(url)
	opts.Attempts = 2
	opts.DialTimeout = 200 * time.Millisecond

	m := NewManager(opts)
	conn, err := m.Initialize("tok")
	require.NoError(t, err)

	waitFor(t, "disconnected after exhaustion", func() bool {
		return conn.State() == StateDisconnected
	})
	assert.Equal(t, 2, conn.ReconnectAttempts())

	// No further automatic attempts once the budget is spent.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateDisconnected, conn.State())
}

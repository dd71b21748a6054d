package realtime

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Room name helpers. The formats are part of the server contract.
func StationRoom(stationID string) string { return "policeStation_" + stationID }
func UserRoom(userID string) string       { return "user_" + userID }
func CityRoom(cityName string) string     { return "city_" + cityName }

// Emitter is the slice of the connection the room coordinator needs. The
// Manager and Conn both satisfy it; tests substitute a spy.
type Emitter interface {
	Emit(event string, data any) error
	IsConnected() bool
}

// Rooms tracks which server-side rooms this client wants to be a member of.
// Joins and leaves are fire-and-forget emits: membership is best-effort and
// the server is the source of truth. The tracked set doubles as the desired
// membership re-applied after a reconnect.
type Rooms struct {
	mu     sync.Mutex
	conn   Emitter
	joined map[string]struct{}
	log    *logrus.Entry
}

// NewRooms creates a coordinator bound to a connection.
func NewRooms(conn Emitter, log *logrus.Entry) *Rooms {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Rooms{conn: conn, joined: make(map[string]struct{}), log: log}
}

// Join requests membership of roomID. No-op with a warning when the room id
// is empty or the connection is down; joining while disconnected must never
// be silently assumed to have succeeded.
func (r *Rooms) Join(roomID string) {
	if roomID == "" {
		r.log.Warn("room join skipped: empty room id")
		return
	}
	if r.conn == nil || !r.conn.IsConnected() {
		r.log.WithField("room", roomID).Warn("room join skipped: not connected")
		return
	}

	r.mu.Lock()
	_, already := r.joined[roomID]
	if !already {
		r.joined[roomID] = struct{}{}
	}
	r.mu.Unlock()

	if already {
		r.log.WithField("room", roomID).Debug("room already joined")
		return
	}
	if err := r.conn.Emit(eventJoinRoom, roomID); err != nil {
		r.log.WithError(err).WithField("room", roomID).Warn("room join emit failed")
		return
	}
	roomJoins.Inc()
	r.log.WithField("room", roomID).Debug("joined room")
}

// Leave releases membership of roomID. Callers must pass the exact id they
// joined with. No-op with a warning when disconnected or the id is empty.
func (r *Rooms) Leave(roomID string) {
	if roomID == "" {
		r.log.Warn("room leave skipped: empty room id")
		return
	}

	r.mu.Lock()
	delete(r.joined, roomID)
	r.mu.Unlock()

	if r.conn == nil || !r.conn.IsConnected() {
		r.log.WithField("room", roomID).Warn("room leave skipped: not connected")
		return
	}
	if err := r.conn.Emit(eventLeaveRoom, roomID); err != nil {
		r.log.WithError(err).WithField("room", roomID).Warn("room leave emit failed")
		return
	}
	r.log.WithField("room", roomID).Debug("left room")
}

// Rejoin re-emits a join for every tracked room. Called after the connection
// comes back so membership survives reconnects.
func (r *Rooms) Rejoin() {
	if r.conn == nil || !r.conn.IsConnected() {
		return
	}
	for _, roomID := range r.Joined() {
		if err := r.conn.Emit(eventJoinRoom, roomID); err != nil {
			r.log.WithError(err).WithField("room", roomID).Warn("room rejoin emit failed")
		}
	}
}

// LeaveAll releases every tracked room. Used on teardown.
func (r *Rooms) LeaveAll() {
	for _, roomID := range r.Joined() {
		r.Leave(roomID)
	}
}

// Joined returns the tracked room ids, sorted.
func (r *Rooms) Joined() []string {
	r.mu.Lock()
	out := make([]string, 0, len(r.joined))
	for roomID := range r.joined {
		out = append(out, roomID)
	}
	r.mu.Unlock()
	sort.Strings(out)
	return out
}

// Package agent wires the realtime connection, room membership, event
// dispatch, and notification projection into one owned lifecycle.
package agent

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/trovahq/trova/internal/auth"
	"github.com/trovahq/trova/internal/config"
	"github.com/trovahq/trova/internal/logging"
	"github.com/trovahq/trova/internal/notify"
	"github.com/trovahq/trova/internal/realtime"
)

// Agent owns the client-side realtime subsystem. It derives room membership
// from the auth token's claims, keeps the dispatcher fed from the single
// connection, and publishes projected notifications to the feed.
type Agent struct {
	cfg    config.Config
	claims *auth.Claims

	manager    *realtime.Manager
	rooms      *realtime.Rooms
	dispatcher *realtime.Dispatcher
	projector  *notify.Projector
	feed       *notify.Feed

	subs []*realtime.Subscription
	log  *logrus.Entry
}

// New builds an agent from config. The auth token must carry a user id.
func New(cfg config.Config, log *logrus.Logger) (*Agent, error) {
	claims, err := auth.ParseToken(cfg.AuthToken)
	if err != nil {
		return nil, fmt.Errorf("cannot start agent: %w", err)
	}

	a := &Agent{
		cfg:       cfg,
		claims:    claims,
		feed:      notify.NewFeed(),
		projector: notify.NewProjector(claims.UserID),
		log:       logging.Component(log, "agent"),
	}

	a.dispatcher = realtime.NewDispatcher(logging.Component(log, "dispatch"))
	a.manager = realtime.NewManager(realtime.Options{
		URL:           cfg.SocketURL,
		Attempts:      cfg.Reconnect.Attempts,
		InitialWait:   cfg.Reconnect.InitialWait,
		MaxWait:       cfg.Reconnect.MaxWait,
		DialTimeout:   cfg.Reconnect.DialTimeout,
		OnMessage:     a.dispatcher.Dispatch,
		OnStateChange: a.onStateChange,
		Log:           logging.Component(log, "realtime"),
	})
	a.rooms = realtime.NewRooms(a.manager, logging.Component(log, "rooms"))

	return a, nil
}

// Start opens the realtime channel and registers the event handlers. Room
// joins happen on the connected transition, not here; joining while
// disconnected would be a silent no-op.
func (a *Agent) Start() error {
	// The exclusive slot: at most one new-report surface app-wide.
	a.dispatcher.SetReportHandler(func(data json.RawMessage) {
		a.handleEvent(realtime.EventNewReport, data)
	})

	for _, event := range []string{
		realtime.EventReportUpdated,
		realtime.EventOfficerUpdated,
		realtime.EventDutyStatusChanged,
		realtime.EventFinderReport,
		realtime.EventBroadcastAlert,
	} {
		sub := a.dispatcher.Subscribe(event, func(data json.RawMessage) {
			a.handleEvent(event, data)
		})
		a.subs = append(a.subs, sub)
	}

	if _, err := a.manager.Initialize(a.cfg.AuthToken); err != nil {
		a.teardownHandlers()
		return err
	}
	return nil
}

// Stop releases every acquired resource: rooms, listener registrations, the
// exclusive slot, and the connection itself.
func (a *Agent) Stop() {
	a.rooms.LeaveAll()
	a.teardownHandlers()
	a.manager.Disconnect()
	a.log.Info("agent stopped")
}

func (a *Agent) teardownHandlers() {
	for _, sub := range a.subs {
		sub.Unsubscribe()
	}
	a.subs = nil
	a.dispatcher.ClearReportHandler()
}

// handleEvent projects one raw event and publishes the result. Projection
// errors drop only the offending event.
func (a *Agent) handleEvent(event string, data json.RawMessage) {
	n, err := a.projector.Project(event, data)
	if err != nil {
		a.log.WithError(err).WithField("event", event).Warn("dropped malformed event")
		return
	}
	if n == nil {
		// Not relevant to this user.
		return
	}
	a.log.WithFields(logrus.Fields{
		"type":     n.Type,
		"priority": n.Priority,
	}).Info("notification")
	a.feed.Publish(*n)
}

// onStateChange reapplies room membership every time the connection comes
// back. Tracked rooms are re-emitted first, then the claims-derived rooms
// are joined (a no-op for rooms already tracked).
func (a *Agent) onStateChange(s realtime.State) {
	a.log.WithField("state", s.String()).Debug("connection state changed")
	if s != realtime.StateConnected {
		return
	}

	a.rooms.Rejoin()
	a.rooms.Join(realtime.UserRoom(a.claims.UserID))
	if a.claims.PoliceStationID != "" {
		a.rooms.Join(realtime.StationRoom(a.claims.PoliceStationID))
	}
	if a.claims.City != "" {
		a.rooms.Join(realtime.CityRoom(a.claims.City))
	}
}

// Feed exposes the notification fan-out for UI surfaces.
func (a *Agent) Feed() *notify.Feed { return a.feed }

// Dispatcher exposes the event dispatcher so screens can register their own
// listeners.
func (a *Agent) Dispatcher() *realtime.Dispatcher { return a.dispatcher }

// UserID returns the authenticated user id.
func (a *Agent) UserID() string { return a.claims.UserID }

// State reports the connection state.
func (a *Agent) State() realtime.State { return a.manager.State() }

// Rooms returns the tracked room ids.
func (a *Agent) Rooms() []string { return a.rooms.Joined() }

// ReconnectAttempts reports the current reconnect cycle's used attempts.
func (a *Agent) ReconnectAttempts() int {
	c := a.manager.Conn()
	if c == nil {
		return 0
	}
	return c.ReconnectAttempts()
}

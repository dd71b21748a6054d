package realtime

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// Handler receives the raw payload of one inbound event.
type Handler func(data json.RawMessage)

// Subscription identifies one listener registration. Unsubscribe removes
// only this registration, never a sibling component's listener for the same
// event.
type Subscription struct {
	d     *Dispatcher
	event string
	id    uint64
}

// Unsubscribe removes this registration. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.d == nil {
		return
	}
	s.d.remove(s.event, s.id)
	s.d = nil
}

type listener struct {
	id uint64
	fn Handler
}

// Dispatcher demultiplexes inbound events to interested listeners.
//
// Two registration surfaces exist on purpose: an ordered multi-listener
// registry per event type, and one exclusive "new report" slot. Only one
// new-report modal may be visible app-wide, so the slot is last-writer-wins
// and setting it silently replaces the previous occupant.
type Dispatcher struct {
	mu        sync.Mutex
	listeners map[string][]listener
	nextID    uint64

	reportHandler Handler

	log *logrus.Entry
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(log *logrus.Entry) *Dispatcher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dispatcher{listeners: make(map[string][]listener), log: log}
}

// Subscribe appends fn to the listener list for event. Delivery order is
// registration order.
func (d *Dispatcher) Subscribe(event string, fn Handler) *Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	d.listeners[event] = append(d.listeners[event], listener{id: id, fn: fn})
	return &Subscription{d: d, event: event, id: id}
}

// UnsubscribeAll removes every listener for event, regardless of who
// registered them. Per-caller cleanup should use Subscription.Unsubscribe;
// this is the blanket teardown operation.
func (d *Dispatcher) UnsubscribeAll(event string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.listeners, event)
}

func (d *Dispatcher) remove(event string, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ls := d.listeners[event]
	for i, l := range ls {
		if l.id == id {
			d.listeners[event] = append(ls[:i:i], ls[i+1:]...)
			break
		}
	}
	if len(d.listeners[event]) == 0 {
		delete(d.listeners, event)
	}
}

// SetReportHandler occupies the exclusive new-report slot, silently
// replacing any previous occupant.
func (d *Dispatcher) SetReportHandler(fn Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reportHandler = fn
}

// ClearReportHandler empties the slot.
func (d *Dispatcher) ClearReportHandler() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reportHandler = nil
}

// Dispatch delivers one event: the new-report slot first (when the event is
// NEW_REPORT), then every registered listener in order. A panicking listener
// is isolated so the rest still run. Dispatch is invoked from the single
// read loop, so one event is processed fully before the next begins.
func (d *Dispatcher) Dispatch(msg Message) {
	d.mu.Lock()
	slot := d.reportHandler
	ls := d.listeners[msg.Event]
	snapshot := make([]listener, len(ls))
	copy(snapshot, ls)
	d.mu.Unlock()

	if msg.Event == EventNewReport && slot != nil {
		d.safeCall(msg.Event, slot, msg.Data)
	}
	for _, l := range snapshot {
		d.safeCall(msg.Event, l.fn, msg.Data)
	}
}

func (d *Dispatcher) safeCall(event string, fn Handler, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			listenerPanics.Inc()
			d.log.WithFields(logrus.Fields{
				"event": event,
				"panic": r,
			}).Error("event listener panicked")
		}
	}()
	fn(data)
}

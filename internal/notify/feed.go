package notify

import "sync"

// subscriber holds one observer's buffered channel.
type subscriber struct {
	ch chan Notification
}

// Feed fans projected notifications out to every current observer (UI
// surfaces, the SSE bridge, tests). Best-effort: a slow observer whose
// buffer is full misses the notification rather than stalling delivery to
// the others.
type Feed struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

// NewFeed constructs an empty feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[*subscriber]struct{})}
}

// Subscribe registers an observer. The returned cancel func must be called
// on teardown; it removes the registration and closes the channel.
func (f *Feed) Subscribe() (<-chan Notification, func()) {
	s := &subscriber{ch: make(chan Notification, 32)}
	f.mu.Lock()
	f.subs[s] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, s)
			f.mu.Unlock()
			close(s.ch)
		})
	}
	return s.ch, cancel
}

// Publish delivers n to all current observers.
func (f *Feed) Publish(n Notification) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for s := range f.subs {
		select {
		case s.ch <- n:
		default:
			// Slow observer, drop.
		}
	}
}

// Len returns the current observer count.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

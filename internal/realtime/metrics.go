package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trova",
		Subsystem: "realtime",
		Name:      "events_received_total",
		Help:      "Inbound realtime events by type",
	}, []string{"event"})

	eventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trova",
		Subsystem: "realtime",
		Name:      "events_emitted_total",
		Help:      "Outbound realtime events by type",
	}, []string{"event"})

	reconnectAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trova",
		Subsystem: "realtime",
		Name:      "reconnect_attempts_total",
		Help:      "Reconnect dial attempts",
	})

	roomJoins = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trova",
		Subsystem: "realtime",
		Name:      "room_joins_total",
		Help:      "Room join requests emitted",
	})

	listenerPanics = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trova",
		Subsystem: "realtime",
		Name:      "listener_panics_total",
		Help:      "Listener invocations recovered from panic",
	})
)

package realtime

import "encoding/json"

// Server event names. These are part of the platform wire contract and must
// match the server byte for byte.
const (
	EventNewReport         = "NEW_REPORT"
	EventReportUpdated     = "REPORT_UPDATED"
	EventOfficerUpdated    = "OFFICER_UPDATED"
	EventDutyStatusChanged = "DUTY_STATUS_CHANGED"
	EventFinderReport      = "FINDER_REPORT"
	EventBroadcastAlert    = "BROADCAST_ALERT"

	eventJoinRoom  = "joinRoom"
	eventLeaveRoom = "leaveRoom"
)

// Message is the JSON envelope exchanged on the realtime channel.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Package notify turns raw realtime payloads into the notification model the
// UI renders, and fans notifications out to any number of observers.
package notify

import (
	"encoding/json"
	"time"
)

// Type classifies a notification for the UI.
type Type string

const (
	TypeCaseAssignment    Type = "CASE_ASSIGNMENT"
	TypeReportCreated     Type = "REPORT_CREATED"
	TypeStatusUpdated     Type = "STATUS_UPDATED"
	TypeFinderReport      Type = "FINDER_REPORT"
	TypeBroadcastAlert    Type = "BROADCAST_ALERT"
	TypeOfficerUpdated    Type = "OFFICER_UPDATED"
	TypeDutyStatusChanged Type = "DUTY_STATUS_CHANGED"
)

// Priority drives how loudly the UI surfaces a notification.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityUrgent Priority = "urgent"
)

// Data carries the structured fields the UI needs to act on a notification.
// Raw keeps the original payload for screens that need more than the
// projection extracted.
type Data struct {
	ReportID         string          `json:"reportId,omitempty"`
	CaseID           string          `json:"caseId,omitempty"`
	IsAssigned       bool            `json:"isAssigned,omitempty"`
	IsNearestOfficer bool            `json:"isNearestOfficer,omitempty"`
	Raw              json.RawMessage `json:"raw,omitempty"`
}

// Notification is the normalized, display-ready model. It lives only in
// memory for the current session; read/unread persistence is the REST API's
// concern.
type Notification struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Data      Data      `json:"data"`
	Priority  Priority  `json:"priority"`
	Timestamp time.Time `json:"timestamp"`
}

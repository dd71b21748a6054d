package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trovahq/trova/internal/realtime"
)

// Projector shapes raw server payloads into Notifications for one user.
// Project is a pure function of (event, payload, UserID); Now and NewID
// exist so tests can pin time and ids.
type Projector struct {
	UserID string
	Now    func() time.Time
	NewID  func() string
}

// NewProjector creates a projector for the given user.
func NewProjector(userID string) *Projector {
	return &Projector{UserID: userID}
}

func (p *Projector) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Projector) newID() string {
	if p.NewID != nil {
		return p.NewID()
	}
	return uuid.NewString()
}

type reportPayload struct {
	ID         string `json:"id"`
	CaseID     string `json:"caseId"`
	ReportType string `json:"reportType"`
	Status     string `json:"status"`
}

type eligibleOfficer struct {
	OfficerID        string `json:"officerId"`
	IsAssigned       bool   `json:"isAssigned"`
	IsNearestOfficer bool   `json:"isNearestOfficer"`
}

type newReportEvent struct {
	Report           reportPayload     `json:"report"`
	Message          string            `json:"message"`
	EligibleOfficers []eligibleOfficer `json:"eligibleOfficers"`
}

type reportUpdateEvent struct {
	Report  reportPayload `json:"report"`
	Message string        `json:"message"`
}

type broadcastEvent struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Project converts one raw event into a Notification. It returns (nil, nil)
// when the event is simply not relevant to this user, and an error only for
// malformed payloads, which callers drop without affecting other events.
func (p *Projector) Project(event string, data json.RawMessage) (*Notification, error) {
	switch event {
	case realtime.EventNewReport:
		return p.projectNewReport(data)
	case realtime.EventReportUpdated:
		return p.projectReportUpdate(data)
	case realtime.EventFinderReport:
		return p.projectFinderReport(data)
	case realtime.EventBroadcastAlert:
		return p.projectBroadcast(data)
	case realtime.EventOfficerUpdated:
		return p.projectInfo(data, TypeOfficerUpdated, "DUTY ROSTER UPDATED")
	case realtime.EventDutyStatusChanged:
		return p.projectInfo(data, TypeDutyStatusChanged, "DUTY STATUS CHANGED")
	default:
		return nil, nil
	}
}

// projectNewReport filters against the server-computed eligible-officer list
// and produces nothing when this user is not on it.
func (p *Projector) projectNewReport(data json.RawMessage) (*Notification, error) {
	var ev newReportEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("malformed NEW_REPORT payload: %w", err)
	}
	if ev.Report.ID == "" {
		return nil, fmt.Errorf("NEW_REPORT payload missing report")
	}

	var me *eligibleOfficer
	for i := range ev.EligibleOfficers {
		if ev.EligibleOfficers[i].OfficerID == p.UserID {
			me = &ev.EligibleOfficers[i]
			break
		}
	}
	if me == nil {
		// Not for this client.
		return nil, nil
	}

	n := &Notification{
		ID:        p.newID(),
		Type:      TypeReportCreated,
		Title:     "NEW CASE ALERT",
		Message:   fmt.Sprintf("New %s report. Case %s assigned to your station.", ev.Report.ReportType, ev.Report.CaseID),
		Priority:  PriorityNormal,
		Timestamp: p.now(),
		Data: Data{
			ReportID:         ev.Report.ID,
			CaseID:           ev.Report.CaseID,
			IsAssigned:       me.IsAssigned,
			IsNearestOfficer: me.IsNearestOfficer,
			Raw:              data,
		},
	}
	if me.IsAssigned {
		n.Type = TypeCaseAssignment
		n.Title = "CASE ASSIGNED TO YOU!"
		n.Message = fmt.Sprintf("You have been assigned a %s report. Case %s.", ev.Report.ReportType, ev.Report.CaseID)
		n.Priority = PriorityUrgent
	}
	return n, nil
}

func (p *Projector) projectReportUpdate(data json.RawMessage) (*Notification, error) {
	var ev reportUpdateEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("malformed REPORT_UPDATED payload: %w", err)
	}
	if ev.Report.ID == "" {
		return nil, fmt.Errorf("REPORT_UPDATED payload missing report")
	}

	message := ev.Message
	if message == "" {
		message = fmt.Sprintf("Case %s is now %s.", ev.Report.CaseID, ev.Report.Status)
	}
	return &Notification{
		ID:        p.newID(),
		Type:      TypeStatusUpdated,
		Title:     "CASE STATUS UPDATED",
		Message:   message,
		Priority:  PriorityNormal,
		Timestamp: p.now(),
		Data: Data{
			ReportID: ev.Report.ID,
			CaseID:   ev.Report.CaseID,
			Raw:      data,
		},
	}, nil
}

func (p *Projector) projectFinderReport(data json.RawMessage) (*Notification, error) {
	var ev reportUpdateEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("malformed FINDER_REPORT payload: %w", err)
	}

	message := ev.Message
	if message == "" {
		message = fmt.Sprintf("A sighting was reported for case %s.", ev.Report.CaseID)
	}
	return &Notification{
		ID:        p.newID(),
		Type:      TypeFinderReport,
		Title:     "NEW SIGHTING REPORTED",
		Message:   message,
		Priority:  PriorityUrgent,
		Timestamp: p.now(),
		Data: Data{
			ReportID: ev.Report.ID,
			CaseID:   ev.Report.CaseID,
			Raw:      data,
		},
	}, nil
}

func (p *Projector) projectBroadcast(data json.RawMessage) (*Notification, error) {
	var ev broadcastEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("malformed BROADCAST_ALERT payload: %w", err)
	}

	title := ev.Title
	if title == "" {
		title = "BROADCAST ALERT"
	}
	return &Notification{
		ID:        p.newID(),
		Type:      TypeBroadcastAlert,
		Title:     title,
		Message:   ev.Message,
		Priority:  PriorityUrgent,
		Timestamp: p.now(),
		Data:      Data{Raw: data},
	}, nil
}

func (p *Projector) projectInfo(data json.RawMessage, typ Type, title string) (*Notification, error) {
	var ev reportUpdateEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("malformed %s payload: %w", typ, err)
	}
	return &Notification{
		ID:        p.newID(),
		Type:      typ,
		Title:     title,
		Message:   ev.Message,
		Priority:  PriorityNormal,
		Timestamp: p.now(),
		Data:      Data{Raw: data},
	}, nil
}

package notify

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trovahq/trova/internal/realtime"
)

func testProjector(userID string) *Projector {
	p := NewProjector(userID)
	p.Now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }
	p.NewID = func() string { return "n-1" }
	return p
}

func newReportPayload(officers string) json.RawMessage {
	return json.RawMessage(`{
		"report": {"id": "r-7", "caseId": "CASE-1042", "reportType": "missing_person"},
		"message": "new report",
		"eligibleOfficers": [` + officers + `]
	}`)
}

func TestProjectNewReportNotEligible(t *testing.T) {
	p := testProjector("officer-1")

	n, err := p.Project(realtime.EventNewReport,
		newReportPayload(`{"officerId": "officer-2", "isAssigned": true}`))

	require.NoError(t, err)
	assert.Nil(t, n, "events not addressed to this user produce nothing")
}

func TestProjectNewReportEmptyOfficerList(t *testing.T) {
	p := testProjector("officer-1")

	n, err := p.Project(realtime.EventNewReport, newReportPayload(``))

	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestProjectNewReportAssigned(t *testing.T) {
	p := testProjector("officer-1")

	n, err := p.Project(realtime.EventNewReport,
		newReportPayload(`{"officerId": "officer-1", "isAssigned": true, "isNearestOfficer": true}`))

	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, TypeCaseAssignment, n.Type)
	assert.Equal(t, "CASE ASSIGNED TO YOU!", n.Title)
	assert.Equal(t, PriorityUrgent, n.Priority)
	assert.Contains(t, n.Message, "missing_person")
	assert.Contains(t, n.Message, "CASE-1042")
	assert.True(t, n.Data.IsAssigned)
	assert.True(t, n.Data.IsNearestOfficer)
	assert.Equal(t, "r-7", n.Data.ReportID)
}

func TestProjectNewReportEligibleNotAssigned(t *testing.T) {
	p := testProjector("officer-1")

	n, err := p.Project(realtime.EventNewReport,
		newReportPayload(`{"officerId": "officer-1", "isAssigned": false}`))

	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, TypeReportCreated, n.Type)
	assert.Equal(t, "NEW CASE ALERT", n.Title)
	assert.Equal(t, PriorityNormal, n.Priority)
	assert.Contains(t, n.Message, "missing_person")
	assert.Contains(t, n.Message, "CASE-1042")
	assert.False(t, n.Data.IsAssigned)
}

func TestProjectMalformedPayload(t *testing.T) {
	p := testProjector("officer-1")

	for _, event := range []string{
		realtime.EventNewReport,
		realtime.EventReportUpdated,
		realtime.EventFinderReport,
		realtime.EventBroadcastAlert,
	} {
		n, err := p.Project(event, json.RawMessage(`{not json`))
		assert.Error(t, err, event)
		assert.Nil(t, n, event)
	}
}

func TestProjectReportUpdated(t *testing.T) {
	p := testProjector("officer-1")

	n, err := p.Project(realtime.EventReportUpdated, json.RawMessage(`{
		"report": {"id": "r-7", "caseId": "CASE-1042", "status": "found"}
	}`))

	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, TypeStatusUpdated, n.Type)
	assert.Equal(t, PriorityNormal, n.Priority)
	assert.Contains(t, n.Message, "CASE-1042")
	assert.Contains(t, n.Message, "found")
}

func TestProjectBroadcastAlert(t *testing.T) {
	p := testProjector("officer-1")

	n, err := p.Project(realtime.EventBroadcastAlert, json.RawMessage(`{
		"title": "AMBER ALERT", "message": "city-wide alert"
	}`))

	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, TypeBroadcastAlert, n.Type)
	assert.Equal(t, "AMBER ALERT", n.Title)
	assert.Equal(t, PriorityUrgent, n.Priority)
	assert.Equal(t, "city-wide alert", n.Message)
}

func TestProjectFinderReport(t *testing.T) {
	p := testProjector("officer-1")

	n, err := p.Project(realtime.EventFinderReport, json.RawMessage(`{
		"report": {"id": "r-9", "caseId": "CASE-7"}
	}`))

	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, TypeFinderReport, n.Type)
	assert.Equal(t, PriorityUrgent, n.Priority)
	assert.Contains(t, n.Message, "CASE-7")
}

func TestProjectUnknownEvent(t *testing.T) {
	p := testProjector("officer-1")

	n, err := p.Project("SOMETHING_ELSE", json.RawMessage(`{}`))

	assert.NoError(t, err)
	assert.Nil(t, n)
}

func TestProjectUsesInjectedClock(t *testing.T) {
	p := testProjector("officer-1")

	n, err := p.Project(realtime.EventBroadcastAlert, json.RawMessage(`{"message":"x"}`))

	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC), n.Timestamp)
	assert.Equal(t, "n-1", n.ID)
}

package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store, optionally failing every call.
type memStore struct {
	data map[string][]byte
	fail error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) SaveDraft(slot string, data []byte) error {
	if s.fail != nil {
		return s.fail
	}
	s.data[slot] = data
	return nil
}

func (s *memStore) LoadDraft(slot string) ([]byte, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	return s.data[slot], nil
}

func (s *memStore) DeleteDraft(slot string) error {
	if s.fail != nil {
		return s.fail
	}
	delete(s.data, slot)
	return nil
}

type fakeCreator struct {
	created []map[string]any
	fail    error
}

func (f *fakeCreator) CreateReport(_ context.Context, report map[string]any) error {
	if f.fail != nil {
		return f.fail
	}
	f.created = append(f.created, report)
	return nil
}

func TestNextAdvancesAndMerges(t *testing.T) {
	c := NewController(newMemStore(), nil, nil)

	c.Next(map[string]any{"reportType": "missing_person"})
	c.Next(map[string]any{"policeStationId": "st-1"})

	assert.Equal(t, 3, c.Step())
	data := c.Data()
	assert.Equal(t, "missing_person", data["reportType"])
	assert.Equal(t, "st-1", data["policeStationId"])
}

func TestNextNeverDecreasesAndCapsAtLastStep(t *testing.T) {
	c := NewController(newMemStore(), nil, nil)

	prev := c.Step()
	for i := 0; i < 10; i++ {
		c.Next(nil)
		assert.GreaterOrEqual(t, c.Step(), prev)
		prev = c.Step()
	}
	assert.Equal(t, TotalSteps, c.Step())
}

func TestBackJumpsDirectly(t *testing.T) {
	c := NewController(newMemStore(), nil, nil)

	for n := 1; n <= TotalSteps; n++ {
		c.Back(TotalSteps)
		c.Back(n)
		assert.Equal(t, n, c.Step())
	}
}

func TestBackClampsOutOfRange(t *testing.T) {
	c := NewController(newMemStore(), nil, nil)

	c.Back(0)
	assert.Equal(t, 1, c.Step())
	c.Back(99)
	assert.Equal(t, TotalSteps, c.Step())
}

func TestBackThenNextScenario(t *testing.T) {
	c := NewController(newMemStore(), nil, nil)

	// Collect fields through the first steps.
	c.Next(map[string]any{"reportType": "missing_person"}) // -> 2
	c.Next(map[string]any{"reporterName": "Dana"})         // -> 3
	c.Next(nil)                                            // -> 4
	c.Next(nil)                                            // -> 5
	require.Equal(t, 5, c.Step())

	c.Back(2)
	c.Next(map[string]any{"foo": 1})

	assert.Equal(t, 3, c.Step())
	data := c.Data()
	assert.Equal(t, 1, data["foo"])
	assert.Equal(t, "missing_person", data["reportType"])
	assert.Equal(t, "Dana", data["reporterName"])
}

func TestSaveLoadRoundTripDates(t *testing.T) {
	store := newMemStore()
	c := NewController(store, nil, nil)

	dob := time.Date(1990, 7, 21, 14, 5, 9, 0, time.UTC)
	lastSeen := time.Date(2026, 2, 1, 18, 30, 45, 0, time.UTC)

	c.Next(map[string]any{"reportType": "missing_person"})
	c.Next(map[string]any{
		"personInvolved": map[string]any{
			"fullName":     "Alex Doe",
			"dob":          dob,
			"lastSeenDate": lastSeen,
		},
	})
	require.NoError(t, c.SaveDraft())

	restored := NewController(store, nil, nil)
	result, err := restored.LoadDraft()
	require.NoError(t, err)
	assert.Equal(t, LoadFound, result.Outcome)
	assert.Equal(t, 3, result.LastStep)
	assert.Equal(t, 3, restored.Step())

	data := restored.Data()
	assert.Equal(t, "missing_person", data["reportType"])

	person, ok := data["personInvolved"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Alex Doe", person["fullName"])

	gotDOB, ok := person["dob"].(time.Time)
	require.True(t, ok, "dob must rehydrate to a time value")
	assert.True(t, gotDOB.Truncate(time.Second).Equal(dob.Truncate(time.Second)))

	gotSeen, ok := person["lastSeenDate"].(time.Time)
	require.True(t, ok)
	assert.True(t, gotSeen.Truncate(time.Second).Equal(lastSeen.Truncate(time.Second)))
}

func TestLoadDraftDefaultsUnparseableDates(t *testing.T) {
	store := newMemStore()
	store.data["report_draft"] = []byte(`{
		"personInvolved": {"fullName": "Alex", "dob": "not-a-date"},
		"lastStep": 4
	}`)

	c := NewController(store, nil, nil)
	fixed := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	result, err := c.LoadDraft()
	require.NoError(t, err)
	assert.Equal(t, LoadFound, result.Outcome)
	assert.Equal(t, 4, result.LastStep)

	person := c.Data()["personInvolved"].(map[string]any)
	assert.Equal(t, fixed, person["dob"])
	assert.Equal(t, fixed, person["lastSeenDate"])
}

func TestLoadDraftEmptyStore(t *testing.T) {
	c := NewController(newMemStore(), nil, nil)

	result, err := c.LoadDraft()

	require.NoError(t, err, "an empty store is not an error")
	assert.Equal(t, LoadEmpty, result.Outcome)
	assert.Equal(t, 1, result.LastStep)
}

func TestLoadDraftStoreFailure(t *testing.T) {
	store := newMemStore()
	store.fail = errors.New("storage offline")
	c := NewController(store, nil, nil)
	c.Next(map[string]any{"reportType": "missing_person"})

	_, err := c.LoadDraft()

	assert.Error(t, err)
	// In-memory progress survives the failure.
	assert.Equal(t, "missing_person", c.Data()["reportType"])
	assert.Equal(t, 2, c.Step())
}

func TestSaveDraftStoreFailureKeepsMemory(t *testing.T) {
	store := newMemStore()
	store.fail = errors.New("storage offline")
	c := NewController(store, nil, nil)
	c.Next(map[string]any{"reportType": "missing_person"})

	err := c.SaveDraft()

	assert.Error(t, err)
	assert.Equal(t, "missing_person", c.Data()["reportType"])
	assert.Equal(t, 2, c.Step())
}

func TestSaveDraftStripsNonSerializableFields(t *testing.T) {
	store := newMemStore()
	c := NewController(store, nil, nil)

	c.Next(map[string]any{
		"reportType": "missing_person",
		"event":      make(chan int), // a stray event object merged into form state
	})
	require.NoError(t, c.SaveDraft())

	var doc map[string]any
	require.NoError(t, json.Unmarshal(store.data["report_draft"], &doc))
	assert.Equal(t, "missing_person", doc["reportType"])
	assert.NotContains(t, doc, "event")
	assert.Equal(t, float64(2), doc["lastStep"])
}

func TestDiscardClearsStoreAndMemory(t *testing.T) {
	store := newMemStore()
	c := NewController(store, nil, nil)
	c.Next(map[string]any{"reportType": "missing_person"})
	require.NoError(t, c.SaveDraft())

	require.NoError(t, c.Discard())

	assert.Empty(t, store.data)
	assert.Equal(t, 1, c.Step())
	assert.Empty(t, c.Data())
}

func TestResetRestoresInitialState(t *testing.T) {
	c := NewController(newMemStore(), nil, nil)
	c.Next(map[string]any{"reportType": "missing_person"})
	c.Next(map[string]any{"foo": "bar"})

	c.Reset()

	assert.Equal(t, 1, c.Step())
	assert.Empty(t, c.Data())
	assert.NoError(t, c.Err())
}

func completeDraft() map[string]any {
	return map[string]any{
		"reportType": "missing_person",
		"personInvolved": map[string]any{
			"fullName":     "Alex Doe",
			"dob":          time.Date(1990, 7, 21, 0, 0, 0, 0, time.UTC),
			"lastSeenDate": time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		"location": map[string]any{
			"address": "12 Main St",
			"city":    "Springfield",
		},
		"policeStationId": "st-1",
	}
}

func TestSubmitSuccess(t *testing.T) {
	store := newMemStore()
	creator := &fakeCreator{}
	c := NewController(store, creator, nil)

	c.Next(completeDraft())
	require.NoError(t, c.SaveDraft())

	require.NoError(t, c.Submit(context.Background()))

	require.Len(t, creator.created, 1)
	assert.Equal(t, "missing_person", creator.created[0]["reportType"])
	assert.Empty(t, store.data, "draft slot cleared after successful submit")
	assert.Equal(t, 1, c.Step())
	assert.Empty(t, c.Data())
}

func TestSubmitIncompleteDraftRejected(t *testing.T) {
	creator := &fakeCreator{}
	c := NewController(newMemStore(), creator, nil)
	c.Next(map[string]any{"reportType": "missing_person"})

	err := c.Submit(context.Background())

	assert.Error(t, err)
	assert.Empty(t, creator.created)
	// The aggregate is untouched by a failed submit.
	assert.Equal(t, "missing_person", c.Data()["reportType"])
}

func TestSubmitAPIFailureKeepsDraft(t *testing.T) {
	store := newMemStore()
	creator := &fakeCreator{fail: errors.New("server unreachable")}
	c := NewController(store, creator, nil)
	c.Next(completeDraft())
	require.NoError(t, c.SaveDraft())

	err := c.Submit(context.Background())

	assert.Error(t, err)
	assert.NotEmpty(t, store.data)
	assert.Equal(t, "missing_person", c.Data()["reportType"])
}

func TestSubmitWithoutCreator(t *testing.T) {
	c := NewController(newMemStore(), nil, nil)
	assert.ErrorIs(t, c.Submit(context.Background()), ErrNoReportService)
}

func TestSaveDraftConcurrentWithNext(t *testing.T) {
	store := newMemStore()
	c := NewController(store, nil, nil)
	c.Next(completeDraft())

	// Autosave and form merges run on separate bridge requests; serializing
	// a live reference to the aggregate instead of a snapshot trips the
	// race detector here.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			c.Next(map[string]any{"notes": fmt.Sprintf("note %d", i)})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			assert.NoError(t, c.SaveDraft())
		}
	}()
	wg.Wait()

	require.NoError(t, c.SaveDraft())
	var doc map[string]any
	require.NoError(t, json.Unmarshal(store.data[c.slot], &doc))
	assert.Equal(t, "missing_person", doc["reportType"])
	assert.Equal(t, "note 199", doc["notes"])
}

package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/trovahq/trova/internal/db"
)

var (
	ErrNoReportService = errors.New("no report service configured")
)

// Store is the external draft persistence collaborator. The draft document
// is read and written wholesale through a single named slot.
type Store interface {
	SaveDraft(slot string, data []byte) error
	LoadDraft(slot string) ([]byte, error)
	DeleteDraft(slot string) error
}

// Creator submits a completed report to the platform.
type Creator interface {
	CreateReport(ctx context.Context, report map[string]any) error
}

// LoadOutcome is the tri-state result of LoadDraft.
type LoadOutcome int

const (
	// LoadEmpty means no draft exists; the wizard starts fresh.
	LoadEmpty LoadOutcome = iota
	// LoadFound means a draft was rehydrated; the user decides whether to
	// resume it or discard it.
	LoadFound
)

// LoadResult reports what LoadDraft found.
type LoadResult struct {
	Outcome  LoadOutcome
	LastStep int
}

// Controller owns the wizard aggregate for one composition session. The
// aggregate is a shallow-merged map, matching how the form screens hand
// partial state forward; nested objects like personInvolved are supplied
// whole by the step that owns them.
//
// The in-memory aggregate is never cleared by an I/O failure. It goes away
// only on Reset, Discard, or a successful Submit.
type Controller struct {
	mu      sync.Mutex
	step    int
	data    map[string]any
	lastErr error

	slot    string
	store   Store
	creator Creator
	now     func() time.Time
	log     *logrus.Entry
}

// NewController creates a wizard controller at step 1 with an empty
// aggregate. creator may be nil when submission is not wired (tests).
func NewController(store Store, creator Creator, log *logrus.Entry) *Controller {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Controller{
		step:    1,
		data:    make(map[string]any),
		slot:    db.DefaultDraftSlot,
		store:   store,
		creator: creator,
		now:     time.Now,
		log:     log,
	}
}

// Step returns the current step number, always in [1, TotalSteps].
func (c *Controller) Step() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// Data returns a shallow copy of the aggregate.
func (c *Controller) Data() map[string]any {
	data, _ := c.snapshot()
	return data
}

// snapshot copies the aggregate and step under the lock. Serialization must
// walk the copy, never the live map, because Next keeps writing it while
// save and submit requests run.
func (c *Controller) snapshot() (map[string]any, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]any, len(c.data))
	for k, v := range c.data {
		out[k] = v
	}
	return out, c.step
}

// Err returns the last captured merge error, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Next merges partial into the aggregate (shallow, top-level) and advances
// one step. A merge failure is captured rather than propagated so the wizard
// never loses its current step; Next never moves backward.
func (c *Controller) Next(partial map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A plain map assign cannot panic; this captures failures once the
	// merge grows validation or typed-field hooks.
	defer func() {
		if r := recover(); r != nil {
			c.lastErr = fmt.Errorf("merge failed: %v", r)
			c.log.WithField("step", c.step).WithError(c.lastErr).Error("draft merge failed")
		}
	}()

	for k, v := range partial {
		c.data[k] = v
	}
	if c.step < TotalSteps {
		c.step++
	}
}

// Back jumps directly to targetStep. Non-sequential jumps are allowed (for
// example Preview straight back to step 2). Out-of-range targets are clamped.
func (c *Controller) Back(targetStep int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if targetStep < 1 {
		targetStep = 1
	}
	if targetStep > TotalSteps {
		targetStep = TotalSteps
	}
	c.step = targetStep
}

// Reset restores the initial empty aggregate at step 1.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]any)
	c.step = 1
	c.lastErr = nil
}

// SaveDraft persists the aggregate wholesale: dates to ISO strings,
// transient non-serializable fields stripped, current step stamped as
// lastStep. On failure the in-memory aggregate is untouched and the error is
// returned so the UI can tell the user progress was not saved.
func (c *Controller) SaveDraft() error {
	data, step := c.snapshot()

	doc, err := serialize(data, step)
	if err != nil {
		c.log.WithError(err).Error("draft serialization failed")
		return fmt.Errorf("failed to serialize draft: %w", err)
	}
	if err := c.store.SaveDraft(c.slot, doc); err != nil {
		c.log.WithError(err).Error("draft save failed")
		return fmt.Errorf("failed to save draft: %w", err)
	}
	c.log.WithField("step", step).Info("draft saved")
	return nil
}

// LoadDraft fetches a previously saved draft. When one exists the aggregate
// is rehydrated (ISO strings back to time.Time) and the step jumps to the
// draft's lastStep; the caller then surfaces the resume-vs-discard decision.
// An empty store is a normal LoadEmpty outcome, not an error.
func (c *Controller) LoadDraft() (LoadResult, error) {
	raw, err := c.store.LoadDraft(c.slot)
	if err != nil {
		c.log.WithError(err).Error("draft load failed")
		return LoadResult{}, fmt.Errorf("failed to load draft: %w", err)
	}
	if raw == nil {
		return LoadResult{Outcome: LoadEmpty, LastStep: 1}, nil
	}

	data, lastStep, err := rehydrate(raw, c.now)
	if err != nil {
		c.log.WithError(err).Error("draft rehydration failed")
		return LoadResult{}, fmt.Errorf("failed to rehydrate draft: %w", err)
	}

	c.mu.Lock()
	c.data = data
	c.step = lastStep
	c.mu.Unlock()

	c.log.WithField("last_step", lastStep).Info("draft loaded")
	return LoadResult{Outcome: LoadFound, LastStep: lastStep}, nil
}

// Discard deletes the persisted draft and resets the wizard. The aggregate
// is only cleared after the delete succeeds.
func (c *Controller) Discard() error {
	if err := c.store.DeleteDraft(c.slot); err != nil {
		c.log.WithError(err).Error("draft discard failed")
		return fmt.Errorf("failed to discard draft: %w", err)
	}
	c.Reset()
	c.log.Info("draft discarded")
	return nil
}

// Submit validates the aggregate and sends it to the platform. On success
// the persisted draft is deleted and the wizard resets; on any failure the
// in-memory aggregate survives untouched.
func (c *Controller) Submit(ctx context.Context) error {
	if c.creator == nil {
		return ErrNoReportService
	}

	data, _ := c.snapshot()

	doc, err := serialize(data, TotalSteps)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}
	if err := validateSubmission(doc); err != nil {
		return fmt.Errorf("report is incomplete: %w", err)
	}

	clean, _ := sanitize(data)
	payload, _ := clean.(map[string]any)
	if err := c.creator.CreateReport(ctx, payload); err != nil {
		c.log.WithError(err).Error("report submission failed")
		return fmt.Errorf("failed to submit report: %w", err)
	}

	if err := c.store.DeleteDraft(c.slot); err != nil {
		// Submission already succeeded; a stale draft is recoverable.
		c.log.WithError(err).Warn("failed to delete draft after submit")
	}
	c.Reset()
	c.log.Info("report submitted")
	return nil
}

// ABOUTME: Schedule controller orchestrating the event store and conflict checks.
// ABOUTME: Implements add, update, move, delete, filter, and month export intents.

package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/2389/monthcal/internal/event"
)

// Intent names a user-triggered operation.
type Intent string

const (
	IntentAdd    Intent = "add"
	IntentUpdate Intent = "update"
	IntentMove   Intent = "move"
	IntentDelete Intent = "delete"
	IntentExport Intent = "export"
)

// Controller is the sole mutator of an EventStore. Intents are serialized so
// the overlap check and the mutation that follows it are atomic.
type Controller struct {
	mu       sync.Mutex
	store    *EventStore
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithNotifier adds a notifier that receives every intent outcome.
func WithNotifier(n Notifier) ControllerOption {
	return func(c *Controller) {
		if c.notifier == nil {
			c.notifier = n
			return
		}
		c.notifier = multiNotifier{c.notifier, n}
	}
}

// WithLogger sets the logger used for intent outcomes.
func WithLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l }
}

// WithClock overrides the process clock.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// NewController wraps store.
func NewController(store *EventStore, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Events returns every stored event.
func (c *Controller) Events() []event.Event {
	return c.store.List()
}

// Event returns the event with id.
func (c *Controller) Event(id int64) (event.Event, error) {
	return c.store.Get(id)
}

// Today is the current local calendar day according to the controller clock.
func (c *Controller) Today() event.Date {
	return event.Today(c.now())
}

// AddEvent validates draft and inserts it unless it overlaps an existing
// same-day event.
func (c *Controller) AddEvent(ctx context.Context, draft event.Draft) (event.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored, err := c.add(ctx, draft)
	c.report(IntentAdd, stored, err)
	return stored, err
}

func (c *Controller) add(ctx context.Context, draft event.Draft) (event.Event, error) {
	candidate, err := draft.Build()
	if err != nil {
		return event.Event{}, err
	}
	if existing, found := FindConflict(candidate, c.store.List(), 0); found {
		return event.Event{}, &ConflictError{Candidate: candidate, Existing: existing}
	}
	return c.store.Add(ctx, candidate)
}

// UpdateEvent replaces the event with id by the validated draft. The event is
// not checked against itself, so saving an unchanged event always succeeds.
func (c *Controller) UpdateEvent(ctx context.Context, id int64, draft event.Draft) (event.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	updated, err := c.update(ctx, id, draft)
	c.report(IntentUpdate, updated, err)
	return updated, err
}

func (c *Controller) update(ctx context.Context, id int64, draft event.Draft) (event.Event, error) {
	if _, err := c.store.Get(id); err != nil {
		return event.Event{}, err
	}
	candidate, err := draft.Build()
	if err != nil {
		return event.Event{}, err
	}
	candidate.ID = id
	if existing, found := FindConflict(candidate, c.store.List(), id); found {
		return event.Event{}, &ConflictError{Candidate: candidate, Existing: existing}
	}
	if err := c.store.Replace(ctx, id, candidate); err != nil {
		if errors.Is(err, ErrNotFound) {
			return event.Event{}, err
		}
		return candidate, err
	}
	return candidate, nil
}

// MoveEvent reschedules the event with id onto newDate, keeping its times.
// A conflicting move leaves the event untouched.
func (c *Controller) MoveEvent(ctx context.Context, id int64, newDate event.Date) (event.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	moved, err := c.move(ctx, id, newDate)
	c.report(IntentMove, moved, err)
	return moved, err
}

func (c *Controller) move(ctx context.Context, id int64, newDate event.Date) (event.Event, error) {
	if newDate.IsZero() {
		return event.Event{}, &event.ValidationError{Field: "date", Message: "date is required"}
	}
	current, err := c.store.Get(id)
	if err != nil {
		return event.Event{}, err
	}
	candidate := current
	candidate.Date = newDate
	if existing, found := FindConflict(candidate, c.store.List(), id); found {
		return current, &ConflictError{Candidate: candidate, Existing: existing}
	}
	if err := c.store.Replace(ctx, id, candidate); err != nil {
		if errors.Is(err, ErrNotFound) {
			return event.Event{}, err
		}
		return candidate, err
	}
	return candidate, nil
}

// DeleteEvent removes the event with id. Deleting a missing id succeeds.
func (c *Controller) DeleteEvent(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.store.Remove(ctx, id)
	c.report(IntentDelete, event.Event{ID: id}, err)
	return err
}

// Reset removes every event.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.store.Len()
	if err := c.store.Reset(ctx); err != nil {
		return err
	}
	c.logger.Info("events reset", "removed", n)
	return nil
}

// Search filters the stored events by query.
func (c *Controller) Search(query string) []event.Event {
	return FilterEvents(c.store.List(), query)
}

// EventsOn returns the events of one day ordered by start time.
func (c *Controller) EventsOn(day event.Date, query string) []event.Event {
	var out []event.Event
	for _, e := range FilterEvents(c.store.List(), query) {
		if e.Date == day {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

// Export is a month export ready to be written as a downloadable file.
type Export struct {
	FileName string
	Events   []event.Event
	Data     []byte
}

// Export builds the JSON export of the given month.
func (c *Controller) Export(year int, month time.Month) (Export, error) {
	events := ExportMonth(c.store.List(), year, month)
	data, err := MarshalExport(events)
	if err != nil {
		c.report(IntentExport, event.Event{}, err)
		return Export{}, err
	}
	c.report(IntentExport, event.Event{}, nil)
	return Export{
		FileName: ExportFileName(year, month, "json"),
		Events:   events,
		Data:     data,
	}, nil
}

// FilterEvents keeps events whose name or description contains query,
// ignoring case. An empty query keeps everything. Input order is preserved.
func FilterEvents(events []event.Event, query string) []event.Event {
	q := strings.ToLower(query)
	out := make([]event.Event, 0, len(events))
	for _, e := range events {
		if q == "" ||
			strings.Contains(strings.ToLower(e.Name), q) ||
			strings.Contains(strings.ToLower(e.Description), q) {
			out = append(out, e)
		}
	}
	return out
}

// ExportMonth returns the events dated within year/month, in input order.
func ExportMonth(events []event.Event, year int, month time.Month) []event.Event {
	out := make([]event.Event, 0)
	for _, e := range events {
		if e.Date.InMonth(year, month) {
			out = append(out, e)
		}
	}
	return out
}

// MarshalExport renders events as a pretty-printed JSON array.
func MarshalExport(events []event.Event) ([]byte, error) {
	if events == nil {
		events = []event.Event{}
	}
	return json.MarshalIndent(events, "", "  ")
}

// ExportFileName is events_<year>_<month>.<ext> with a 1-based month.
func ExportFileName(year int, month time.Month, ext string) string {
	return fmt.Sprintf("events_%d_%d.%s", year, int(month), ext)
}

// NotificationFor maps an intent outcome onto the message shown to the user.
func NotificationFor(intent Intent, err error) Notification {
	var validation *event.ValidationError
	switch {
	case err == nil:
		switch intent {
		case IntentAdd:
			return noteAdded
		case IntentUpdate:
			return noteUpdated
		case IntentMove:
			return noteMoved
		case IntentDelete:
			return noteDeleted
		default:
			return noteExported
		}
	case errors.Is(err, ErrConflict):
		if intent == IntentMove {
			return noteMoveOverlap
		}
		return noteOverlap
	case errors.Is(err, ErrNotFound):
		return noteNotFound
	case errors.As(err, &validation):
		n := noteInvalid
		n.Description = validation.Error()
		return n
	case IsStorageError(err):
		return noteStorage
	default:
		return Notification{Title: "Something Went Wrong", Description: err.Error(), Variant: VariantDestructive}
	}
}

func (c *Controller) report(intent Intent, e event.Event, err error) {
	if c.notifier != nil {
		c.notifier.Notify(NotificationFor(intent, err))
	}
	if err != nil {
		c.logger.Warn("schedule intent failed", "intent", intent, "event_id", e.ID, "err", err)
		return
	}
	c.logger.Debug("schedule intent applied", "intent", intent, "event_id", e.ID, "date", e.Date)
}

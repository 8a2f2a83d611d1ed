// ABOUTME: Human-readable outcome notifications for schedule intents.
// ABOUTME: Title/description pairs surfaced to the presentation layer and logs.

package schedule

import (
	"log/slog"
	"sync"
)

// Variant marks how a notification should be presented.
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notification is the outcome of a single intent.
type Notification struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Variant     Variant `json:"variant"`
}

// Notifier receives every intent outcome.
type Notifier interface {
	Notify(n Notification)
}

var (
	noteAdded = Notification{
		Title:       "Event Added",
		Description: "Your event has been successfully added.",
		Variant:     VariantDefault,
	}
	noteUpdated = Notification{
		Title:       "Event Updated",
		Description: "Your event has been successfully updated.",
		Variant:     VariantDefault,
	}
	noteMoved = Notification{
		Title:       "Event Moved",
		Description: "Your event has been moved to the new date.",
		Variant:     VariantDefault,
	}
	noteDeleted = Notification{
		Title:       "Event Deleted",
		Description: "Your event has been successfully deleted.",
		Variant:     VariantDefault,
	}
	noteExported = Notification{
		Title:       "Events Exported",
		Description: "Your events have been exported successfully.",
		Variant:     VariantDefault,
	}
	noteOverlap = Notification{
		Title:       "Event Overlap",
		Description: "This event overlaps with an existing event. Please choose a different time.",
		Variant:     VariantDestructive,
	}
	noteMoveOverlap = Notification{
		Title:       "Event Overlap",
		Description: "This event overlaps with an existing event on the new date.",
		Variant:     VariantDestructive,
	}
	noteNotFound = Notification{
		Title:       "Event Not Found",
		Description: "The event no longer exists. It may have been deleted.",
		Variant:     VariantDestructive,
	}
	noteInvalid = Notification{
		Title:   "Invalid Event",
		Variant: VariantDestructive,
	}
	noteStorage = Notification{
		Title:       "Not Saved",
		Description: "The change is applied for this session but could not be saved to storage.",
		Variant:     VariantDestructive,
	}
)

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if n.Variant == VariantDestructive {
		logger.Warn(n.Title, "description", n.Description)
		return
	}
	logger.Info(n.Title, "description", n.Description)
}

// Recorder keeps every notification it receives, newest last.
type Recorder struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

// All returns the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notes...)
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notes) == 0 {
		return Notification{}, false
	}
	return r.notes[len(r.notes)-1], true
}

type multiNotifier []Notifier

func (m multiNotifier) Notify(n Notification) {
	for _, notifier := range m {
		notifier.Notify(n)
	}
}

// ABOUTME: Error kinds reported by the event store and schedule controller.
// ABOUTME: Conflict, not-found, duplicate id, and storage failures.

package schedule

import (
	"errors"
	"fmt"

	"github.com/2389/monthcal/internal/event"
)

var (
	// ErrConflict means the candidate's time range intersects an existing
	// same-day event. Nothing was mutated.
	ErrConflict = errors.New("event overlaps an existing event")

	// ErrNotFound means the referenced event id does not exist.
	ErrNotFound = errors.New("event not found")

	// ErrDuplicateID means an insert carried an id that is already stored.
	ErrDuplicateID = errors.New("event id already exists")
)

// ConflictError carries the existing event that blocked an intent.
type ConflictError struct {
	Candidate event.Event
	Existing  event.Event
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%v: %q %s-%s on %s overlaps %q %s-%s",
		ErrConflict,
		e.Candidate.Name, e.Candidate.StartTime, e.Candidate.EndTime, e.Candidate.Date,
		e.Existing.Name, e.Existing.StartTime, e.Existing.EndTime)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// StorageError wraps a persistence failure. The in-memory store keeps the
// change; durability is not guaranteed until a later save succeeds.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err is, or wraps, a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

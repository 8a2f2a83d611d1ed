// ABOUTME: Authoritative in-memory event collection with write-through persistence.
// ABOUTME: Hydrates from a Persister at startup and saves after every mutation.

package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/2389/monthcal/internal/event"
)

// Persister loads and saves the whole event collection.
type Persister interface {
	Load(ctx context.Context) ([]event.Event, error)
	Save(ctx context.Context, events []event.Event) error
}

// EventStore is the single source of truth for events during a session.
type EventStore struct {
	mu        sync.RWMutex
	persister Persister
	byID      map[int64]event.Event
	order     []int64
	now       func() time.Time
	lastID    int64
}

// StoreOption configures an EventStore.
type StoreOption func(*EventStore)

// WithStoreClock overrides the clock used for id assignment.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *EventStore) { s.now = now }
}

// NewEventStore hydrates a store from p. Every loaded event must be valid and
// free of overlaps with the events loaded before it.
func NewEventStore(ctx context.Context, p Persister, opts ...StoreOption) (*EventStore, error) {
	s := &EventStore{
		persister: p,
		byID:      make(map[int64]event.Event),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	loaded, err := p.Load(ctx)
	if err != nil {
		return nil, &StorageError{Op: "load", Err: err}
	}
	for _, e := range loaded {
		if e.ID == 0 {
			return nil, &StorageError{Op: "load", Err: fmt.Errorf("event %q has no id", e.Name)}
		}
		if _, exists := s.byID[e.ID]; exists {
			return nil, &StorageError{Op: "load", Err: fmt.Errorf("%w: %d", ErrDuplicateID, e.ID)}
		}
		if err := e.Validate(); err != nil {
			return nil, &StorageError{Op: "load", Err: fmt.Errorf("event %d: %w", e.ID, err)}
		}
		if existing, clash := FindConflict(e, s.snapshot(), 0); clash {
			return nil, &StorageError{Op: "load", Err: &ConflictError{Candidate: e, Existing: existing}}
		}
		s.insert(e)
	}
	return s, nil
}

// List returns all events in insertion order. The slice is a copy.
func (s *EventStore) List() []event.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

// Len returns the number of stored events.
func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Get returns the event with id.
func (s *EventStore) Get(id int64) (event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return event.Event{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return e, nil
}

// Add inserts e, assigning a fresh id when e.ID is zero.
func (s *EventStore) Add(ctx context.Context, e event.Event) (event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == 0 {
		e.ID = s.nextID()
	} else if _, exists := s.byID[e.ID]; exists {
		return event.Event{}, fmt.Errorf("%w: %d", ErrDuplicateID, e.ID)
	}
	s.insert(e)

	return e, s.flush(ctx)
}

// Replace swaps the event stored under id for e. The id never changes.
func (s *EventStore) Replace(ctx context.Context, id int64, e event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	e.ID = id
	s.byID[id] = e

	return s.flush(ctx)
}

// Remove deletes the event with id. Removing a missing id is a no-op.
func (s *EventStore) Remove(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return nil
	}
	delete(s.byID, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	return s.flush(ctx)
}

// Reset drops every event and persists the empty collection.
func (s *EventStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID = make(map[int64]event.Event)
	s.order = nil
	return s.flush(ctx)
}

func (s *EventStore) insert(e event.Event) {
	s.byID[e.ID] = e
	s.order = append(s.order, e.ID)
	if e.ID > s.lastID {
		s.lastID = e.ID
	}
}

// nextID is monotonic: unix milliseconds, bumped past the largest id seen.
func (s *EventStore) nextID() int64 {
	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	return id
}

func (s *EventStore) snapshot() []event.Event {
	out := make([]event.Event, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// flush must be called with mu held.
func (s *EventStore) flush(ctx context.Context) error {
	if err := s.persister.Save(ctx, s.snapshot()); err != nil {
		return &StorageError{Op: "save", Err: err}
	}
	return nil
}

// MemoryPersister keeps the saved collection in memory. It backs ephemeral
// runs and tests.
type MemoryPersister struct {
	mu      sync.Mutex
	events  []event.Event
	Saves   int
	SaveErr error
	LoadErr error
}

// NewMemoryPersister returns a persister preloaded with events.
func NewMemoryPersister(events ...event.Event) *MemoryPersister {
	return &MemoryPersister{events: append([]event.Event(nil), events...)}
}

func (m *MemoryPersister) Load(_ context.Context) ([]event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	return append([]event.Event(nil), m.events...), nil
}

func (m *MemoryPersister) Save(_ context.Context, events []event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.events = append([]event.Event(nil), events...)
	m.Saves++
	return nil
}

// Saved returns the last successfully saved collection.
func (m *MemoryPersister) Saved() []event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]event.Event(nil), m.events...)
}

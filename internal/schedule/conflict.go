// ABOUTME: Same-day overlap detection between events.
// ABOUTME: Half-open [start, end) intervals; adjacent events do not conflict.

package schedule

import "github.com/2389/monthcal/internal/event"

// Overlaps reports whether candidate intersects any event in existing on the
// same date. Events with id excludeID are skipped; zero excludes nothing.
func Overlaps(candidate event.Event, existing []event.Event, excludeID int64) bool {
	_, found := FindConflict(candidate, existing, excludeID)
	return found
}

// FindConflict returns the first event that overlaps candidate.
func FindConflict(candidate event.Event, existing []event.Event, excludeID int64) (event.Event, bool) {
	for _, e := range existing {
		if excludeID != 0 && e.ID == excludeID {
			continue
		}
		if e.Date != candidate.Date {
			continue
		}
		if intervalsIntersect(candidate.StartTime, candidate.EndTime, e.StartTime, e.EndTime) {
			return e, true
		}
	}
	return event.Event{}, false
}

func intervalsIntersect(aStart, aEnd, bStart, bEnd event.TimeOfDay) bool {
	return aStart < bEnd && aEnd > bStart
}

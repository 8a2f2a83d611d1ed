// ABOUTME: Typed form payload for creating and editing events.
// ABOUTME: Validates required fields before a candidate Event is built.

package event

import (
	"fmt"
	"strings"
	"time"
)

// Draft carries raw user input, one field per Event attribute.
type Draft struct {
	Name        string `json:"name"`
	Date        string `json:"date"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// NewDraft returns an empty draft for the selected day with the default
// category, the same starting point as a fresh event form.
func NewDraft(selected Date) Draft {
	return Draft{Date: selected.String(), Category: string(CategoryDefault)}
}

// ValidationError reports a single invalid draft field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Build validates the draft and returns a candidate Event without an ID.
func (d Draft) Build() (Event, error) {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return Event{}, &ValidationError{Field: "name", Message: "name is required"}
	}
	if strings.TrimSpace(d.Date) == "" {
		return Event{}, &ValidationError{Field: "date", Message: "date is required"}
	}
	if strings.TrimSpace(d.StartTime) == "" {
		return Event{}, &ValidationError{Field: "startTime", Message: "start time is required"}
	}
	if strings.TrimSpace(d.EndTime) == "" {
		return Event{}, &ValidationError{Field: "endTime", Message: "end time is required"}
	}

	date, err := ParseDate(d.Date)
	if err != nil {
		return Event{}, &ValidationError{Field: "date", Message: err.Error()}
	}
	start, err := ParseTimeOfDay(d.StartTime)
	if err != nil {
		return Event{}, &ValidationError{Field: "startTime", Message: err.Error()}
	}
	end, err := ParseTimeOfDay(d.EndTime)
	if err != nil {
		return Event{}, &ValidationError{Field: "endTime", Message: err.Error()}
	}
	if start >= end {
		return Event{}, &ValidationError{Field: "endTime", Message: "end time must be after start time"}
	}
	category, err := ParseCategory(d.Category)
	if err != nil {
		return Event{}, &ValidationError{Field: "category", Message: err.Error()}
	}

	return Event{
		Name:        name,
		Date:        date,
		StartTime:   start,
		EndTime:     end,
		Description: d.Description,
		Category:    category,
	}, nil
}

// Validate reports the first problem with the draft, if any.
func (d Draft) Validate() error {
	_, err := d.Build()
	return err
}

// Today is the calendar day of now in the local zone.
func Today(now time.Time) Date {
	return DateOf(now.In(time.Local))
}

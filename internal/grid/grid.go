// ABOUTME: Month calendar grid layout.
// ABOUTME: Computes padded day cells for a month and maps events onto them.

package grid

import (
	"time"

	"github.com/2389/monthcal/internal/event"
)

// DaysPerWeek is the number of columns in the grid.
const DaysPerWeek = 7

// Month describes the layout of one calendar month.
type Month struct {
	Year           int        `json:"year"`
	Month          time.Month `json:"month"`
	DaysInMonth    int        `json:"daysInMonth"`
	FirstDayOffset int        `json:"firstDayOffset"` // 0=Sunday .. 6=Saturday
}

// Cell is one slot of the grid: either leading padding or a day of the month.
type Cell struct {
	Empty      bool          `json:"empty"`
	Day        int           `json:"day,omitempty"`
	Date       *event.Date   `json:"date,omitempty"`
	IsToday    bool          `json:"isToday,omitempty"`
	IsSelected bool          `json:"isSelected,omitempty"`
	Events     []event.Event `json:"events,omitempty"`
}

// HasEvents reports whether any event falls on the cell's day.
func (c Cell) HasEvents() bool {
	return len(c.Events) > 0
}

// BuildMonth derives the month layout containing ref.
func BuildMonth(ref event.Date) Month {
	first := time.Date(ref.Year, ref.Month, 1, 0, 0, 0, 0, time.UTC)
	// Day 0 of the following month is the last day of this one.
	last := time.Date(ref.Year, ref.Month+1, 0, 0, 0, 0, 0, time.UTC)
	return Month{
		Year:           first.Year(),
		Month:          first.Month(),
		DaysInMonth:    last.Day(),
		FirstDayOffset: int(first.Weekday()),
	}
}

// CellsForMonth lays out the month containing ref: FirstDayOffset empty cells
// followed by one cell per day. Trailing padding is left to the renderer.
func CellsForMonth(ref event.Date, events []event.Event, selected, today event.Date) []Cell {
	m := BuildMonth(ref)

	byDate := make(map[event.Date][]event.Event)
	for _, e := range events {
		if e.Date.InMonth(m.Year, m.Month) {
			byDate[e.Date] = append(byDate[e.Date], e)
		}
	}

	cells := make([]Cell, 0, m.FirstDayOffset+m.DaysInMonth)
	for i := 0; i < m.FirstDayOffset; i++ {
		cells = append(cells, Cell{Empty: true})
	}
	for day := 1; day <= m.DaysInMonth; day++ {
		date := event.Date{Year: m.Year, Month: m.Month, Day: day}
		cells = append(cells, Cell{
			Day:        day,
			Date:       &date,
			IsToday:    date == today,
			IsSelected: date == selected,
			Events:     byDate[date],
		})
	}
	return cells
}

// Weeks splits cells into rows of seven. The final row may be short.
func Weeks(cells []Cell) [][]Cell {
	var weeks [][]Cell
	for start := 0; start < len(cells); start += DaysPerWeek {
		end := start + DaysPerWeek
		if end > len(cells) {
			end = len(cells)
		}
		weeks = append(weeks, cells[start:end])
	}
	return weeks
}

// PrevMonth returns the first day of the month before ref.
func PrevMonth(ref event.Date) event.Date {
	return event.NewDate(ref.Year, ref.Month-1, 1)
}

// NextMonth returns the first day of the month after ref.
func NextMonth(ref event.Date) event.Date {
	return event.NewDate(ref.Year, ref.Month+1, 1)
}

// WeekdayNames are the column headers, Sunday first.
var WeekdayNames = [DaysPerWeek]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// Title is the month heading, e.g. "June 2024".
func (m Month) Title() string {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
}

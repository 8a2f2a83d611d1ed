// ABOUTME: iCalendar rendering of month exports.
// ABOUTME: Converts events into VEVENTs with floating local start and end times.

package icsexport

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/2389/monthcal/internal/event"
	"github.com/2389/monthcal/internal/schedule"
)

const (
	productID = "-//monthcal//monthcal//EN"
	uidDomain = "monthcal.local"

	// floatingLayout has no zone suffix, so clients read it as local time.
	floatingLayout = "20060102T150405"
)

// Encode renders events as an iCalendar document. stamp is used for DTSTAMP.
func Encode(events []event.Event, stamp time.Time) []byte {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, e := range events {
		ve := cal.AddEvent(UID(e.ID))
		ve.SetDtStampTime(stamp)
		ve.SetProperty(ical.ComponentPropertyDtStart, e.StartTime.On(e.Date, time.UTC).Format(floatingLayout))
		ve.SetProperty(ical.ComponentPropertyDtEnd, e.EndTime.On(e.Date, time.UTC).Format(floatingLayout))
		ve.SetSummary(e.Name)
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
		ve.SetProperty(ical.ComponentPropertyCategories, strings.ToUpper(string(e.Category)))
	}

	return []byte(cal.Serialize())
}

// FromExport converts a JSON month export into its .ics counterpart.
func FromExport(exp schedule.Export, stamp time.Time) schedule.Export {
	name := strings.TrimSuffix(exp.FileName, ".json") + ".ics"
	return schedule.Export{
		FileName: name,
		Events:   exp.Events,
		Data:     Encode(exp.Events, stamp),
	}
}

// UID is the stable iCalendar identifier for an event id.
func UID(id int64) string {
	return fmt.Sprintf("%d@%s", id, uidDomain)
}

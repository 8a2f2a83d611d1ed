// ABOUTME: Static fallback events used when no OpenAI API key is available.
// ABOUTME: Spreads a fixed set of templates across the days of a month.

package seed

import (
	"time"

	"github.com/2389/monthcal/internal/event"
)

type template struct {
	name        string
	description string
	start, end  string
	category    event.Category
}

var templates = []template{
	{"Team Standup", "Daily sync with the engineering team", "09:00", "09:15", event.CategoryWork},
	{"1:1 with Sarah", "Weekly sync", "10:00", "10:30", event.CategoryWork},
	{"Product Planning", "Q3 roadmap discussion", "14:00", "15:00", event.CategoryWork},
	{"Client Call - Acme Inc", "Quarterly review", "11:00", "12:00", event.CategoryWork},
	{"Dentist Appointment", "Regular checkup with Dr. Smith", "14:00", "15:00", event.CategoryPersonal},
	{"Focus Time", "No meetings, deep work block", "09:00", "12:00", event.CategoryWork},
	{"Team Lunch", "Monthly team lunch at Thai Garden", "12:00", "13:30", event.CategoryWork},
	{"Architecture Review", "Review new services design", "15:00", "16:30", event.CategoryWork},
	{"Coffee with Peter", "Networking chat", "16:00", "17:00", event.CategoryOther},
	{"Gym", "Workout session", "07:00", "08:00", event.CategoryPersonal},
	{"Sprint Planning", "Plan next sprint tasks", "10:00", "11:30", event.CategoryWork},
	{"Interview - Backend Engineer", "Technical interview", "14:00", "15:00", event.CategoryWork},
	{"Happy Hour", "Team social at The Pub", "17:30", "19:30", event.CategoryOther},
	{"Vendor Demo", "Demo of new monitoring tool", "13:00", "14:00", event.CategoryWork},
	{"Car Service", "Oil change at AutoCare", "09:00", "10:30", event.CategoryPersonal},
	{"All Hands Meeting", "Monthly company update", "16:00", "17:00", event.CategoryWork},
	{"Code Review Session", "Review pending PRs as a team", "14:00", "15:30", event.CategoryWork},
	{"Doctor Appointment", "Annual physical", "10:00", "11:00", event.CategoryPersonal},
	{"Project Kickoff", "New project start with client", "11:00", "12:30", event.CategoryWork},
	{"Dinner with Mom", "Sunday family dinner", "18:00", "20:00", event.CategoryPersonal},
	{"Performance Review", "Mid-year review with manager", "14:00", "15:00", event.CategoryWork},
	{"Study Session", "Certification prep", "19:00", "21:00", event.CategoryPersonal},
	{"Game Night", "Board games at a friend's place", "19:00", "23:00", event.CategoryOther},
	{"Retrospective", "Sprint retro", "15:00", "16:00", event.CategoryWork},
	{"Concert", "Live music downtown", "20:00", "23:30", event.CategoryOther},
}

// StaticDrafts returns count drafts for year/month. Draft i lands on day
// i%days+1, so two drafts share a day only once count exceeds the month.
func StaticDrafts(year int, month time.Month, count int) []event.Draft {
	days := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	first := event.NewDate(year, month, 1)

	drafts := make([]event.Draft, 0, count)
	for i := 0; i < count; i++ {
		t := templates[i%len(templates)]
		drafts = append(drafts, event.Draft{
			Name:        t.name,
			Date:        first.AddDays(i % days).String(),
			StartTime:   t.start,
			EndTime:     t.end,
			Description: t.description,
			Category:    string(t.category),
		})
	}
	return drafts
}

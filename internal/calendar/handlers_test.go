// ABOUTME: Tests for the month calendar HTTP handlers.
// ABOUTME: Drives every route through chi with httptest and an in-memory persister.

package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/2389/monthcal/internal/errors"
	"github.com/2389/monthcal/internal/event"
	"github.com/2389/monthcal/internal/schedule"
)

func setupRouter(t *testing.T, seed ...event.Event) (http.Handler, *schedule.MemoryPersister) {
	t.Helper()
	clock := func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	p := schedule.NewMemoryPersister(seed...)
	s, err := schedule.NewEventStore(context.Background(), p, schedule.WithStoreClock(clock))
	if err != nil {
		t.Fatalf("NewEventStore() error = %v", err)
	}
	ctrl := schedule.NewController(s, schedule.WithClock(clock))

	h := NewHandlers(ctrl, nil)
	h.now = clock
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r, p
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeMutation(t *testing.T, rr *httptest.ResponseRecorder) mutationResponse {
	t.Helper()
	var resp mutationResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode mutation: %v (%s)", err, rr.Body.String())
	}
	return resp
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) apierrors.ErrorResponse {
	t.Helper()
	var resp apierrors.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error: %v (%s)", err, rr.Body.String())
	}
	return resp
}

func standupDraft() event.Draft {
	return event.Draft{Name: "Standup", Date: "2024-06-10", StartTime: "09:00", EndTime: "09:30", Category: "work"}
}

func TestHandlers_AddEvent(t *testing.T) {
	r, p := setupRouter(t)

	rr := do(t, r, "POST", "/api/events", standupDraft())
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rr.Code, rr.Body.String())
	}
	resp := decodeMutation(t, rr)
	if resp.Event == nil || resp.Event.ID == 0 || resp.Event.Name != "Standup" {
		t.Errorf("event = %+v", resp.Event)
	}
	if resp.Notification.Title != "Event Added" || resp.Warning != "" {
		t.Errorf("notification = %+v, warning = %q", resp.Notification, resp.Warning)
	}
	if len(p.Saved()) != 1 {
		t.Errorf("persisted %d events, want 1", len(p.Saved()))
	}
}

func TestHandlers_AddEventConflict(t *testing.T) {
	r, p := setupRouter(t)
	do(t, r, "POST", "/api/events", standupDraft())
	saves := p.Saves

	overlap := event.Draft{Name: "Review", Date: "2024-06-10", StartTime: "09:15", EndTime: "09:45"}
	rr := do(t, r, "POST", "/api/events", overlap)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != apierrors.ErrConflict {
		t.Errorf("code = %q", resp.Code)
	}
	if p.Saves != saves {
		t.Error("conflicting add was persisted")
	}

	adjacent := event.Draft{Name: "Planning", Date: "2024-06-10", StartTime: "09:30", EndTime: "10:00"}
	if rr := do(t, r, "POST", "/api/events", adjacent); rr.Code != http.StatusCreated {
		t.Errorf("adjacent add status = %d, want 201", rr.Code)
	}
}

func TestHandlers_AddEventValidation(t *testing.T) {
	r, _ := setupRouter(t)

	tests := []struct {
		name      string
		body      any
		wantCode  string
		wantField string
	}{
		{"missing name", event.Draft{Date: "2024-06-10", StartTime: "09:00", EndTime: "10:00"}, apierrors.ErrValidationFailed, "name"},
		{"end before start", event.Draft{Name: "x", Date: "2024-06-10", StartTime: "10:00", EndTime: "09:00"}, apierrors.ErrValidationFailed, "endTime"},
		{"bad category", event.Draft{Name: "x", Date: "2024-06-10", StartTime: "09:00", EndTime: "10:00", Category: "party"}, apierrors.ErrValidationFailed, "category"},
		{"malformed json", `{"name":`, apierrors.ErrInvalidBody, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, r, "POST", "/api/events", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
			resp := decodeError(t, rr)
			if resp.Code != tt.wantCode || resp.Field != tt.wantField {
				t.Errorf("error = %+v", resp)
			}
		})
	}
}

func TestHandlers_GetAndList(t *testing.T) {
	seed := []event.Event{
		{ID: 1, Name: "Standup", Date: event.NewDate(2024, 6, 10), StartTime: 540, EndTime: 570, Description: "daily"},
		{ID: 2, Name: "Lunch", Date: event.NewDate(2024, 6, 11), StartTime: 720, EndTime: 780, Description: "with the TEAM"},
	}
	r, _ := setupRouter(t, seed...)

	rr := do(t, r, "GET", "/api/events/2", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}
	var got event.Event
	json.Unmarshal(rr.Body.Bytes(), &got)
	if got != seed[1] {
		t.Errorf("get = %+v, want %+v", got, seed[1])
	}

	if rr := do(t, r, "GET", "/api/events/99", nil); rr.Code != http.StatusNotFound {
		t.Errorf("missing id status = %d, want 404", rr.Code)
	}
	if rr := do(t, r, "GET", "/api/events/abc", nil); rr.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rr.Code)
	}

	var list struct {
		Events []event.Event `json:"events"`
		Count  int           `json:"count"`
	}
	rr = do(t, r, "GET", "/api/events?q=team", nil)
	json.Unmarshal(rr.Body.Bytes(), &list)
	if list.Count != 1 || list.Events[0].ID != 2 {
		t.Errorf("filtered list = %+v", list)
	}
}

func TestHandlers_UpdateEvent(t *testing.T) {
	seed := []event.Event{
		{ID: 1, Name: "Standup", Date: event.NewDate(2024, 6, 10), StartTime: 540, EndTime: 570},
		{ID: 2, Name: "Review", Date: event.NewDate(2024, 6, 10), StartTime: 600, EndTime: 660},
	}
	r, _ := setupRouter(t, seed...)

	unchanged := seed[0].Draft()
	rr := do(t, r, "PUT", "/api/events/1", unchanged)
	if rr.Code != http.StatusOK {
		t.Fatalf("self update status = %d: %s", rr.Code, rr.Body.String())
	}
	if resp := decodeMutation(t, rr); resp.Notification.Title != "Event Updated" || resp.Event.ID != 1 {
		t.Errorf("resp = %+v", resp)
	}

	clash := seed[0].Draft()
	clash.StartTime, clash.EndTime = "10:30", "11:00"
	if rr := do(t, r, "PUT", "/api/events/1", clash); rr.Code != http.StatusConflict {
		t.Errorf("conflicting update status = %d, want 409", rr.Code)
	}

	if rr := do(t, r, "PUT", "/api/events/42", unchanged); rr.Code != http.StatusNotFound {
		t.Errorf("missing update status = %d, want 404", rr.Code)
	}
}

func TestHandlers_MoveEvent(t *testing.T) {
	seed := []event.Event{
		{ID: 1, Name: "Standup", Date: event.NewDate(2024, 6, 10), StartTime: 540, EndTime: 570},
		{ID: 2, Name: "Offsite", Date: event.NewDate(2024, 6, 12), StartTime: 480, EndTime: 1020},
	}
	r, p := setupRouter(t, seed...)

	rr := do(t, r, "POST", "/api/events/1/move", moveRequest{Date: "2024-06-11"})
	if rr.Code != http.StatusOK {
		t.Fatalf("move status = %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeMutation(t, rr)
	if resp.Event.Date != event.NewDate(2024, 6, 11) || resp.Event.StartTime != 540 {
		t.Errorf("moved = %+v", resp.Event)
	}

	saves := p.Saves
	rr = do(t, r, "POST", "/api/events/1/move", moveRequest{Date: "2024-06-12"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("conflicting move status = %d, want 409", rr.Code)
	}
	if p.Saves != saves {
		t.Error("conflicting move was persisted")
	}

	if rr := do(t, r, "POST", "/api/events/1/move", moveRequest{Date: "June 12"}); rr.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d, want 400", rr.Code)
	}
}

func TestHandlers_DeleteEvent(t *testing.T) {
	r, p := setupRouter(t, event.Event{ID: 1, Name: "Standup", Date: event.NewDate(2024, 6, 10), StartTime: 540, EndTime: 570})

	if rr := do(t, r, "DELETE", "/api/events/1", nil); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rr.Code)
	}
	if len(p.Saved()) != 0 {
		t.Error("delete not persisted")
	}
	if rr := do(t, r, "DELETE", "/api/events/1", nil); rr.Code != http.StatusNoContent {
		t.Errorf("repeat delete status = %d, want 204", rr.Code)
	}
}

func TestHandlers_StorageFailureKeepsChange(t *testing.T) {
	r, p := setupRouter(t)
	p.SaveErr = errors.New("disk full")

	rr := do(t, r, "POST", "/api/events", standupDraft())
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rr.Code)
	}
	resp := decodeMutation(t, rr)
	if !strings.Contains(resp.Warning, "disk full") {
		t.Errorf("warning = %q", resp.Warning)
	}

	rr = do(t, r, "GET", "/api/events/"+strconv.FormatInt(resp.Event.ID, 10), nil)
	if rr.Code != http.StatusOK {
		t.Errorf("event missing from memory after failed save: %d", rr.Code)
	}
}

func TestHandlers_MonthView(t *testing.T) {
	seed := []event.Event{
		{ID: 1, Name: "Standup", Date: event.NewDate(2024, 6, 10), StartTime: 600, EndTime: 630},
		{ID: 2, Name: "Breakfast", Date: event.NewDate(2024, 6, 10), StartTime: 480, EndTime: 540},
		{ID: 3, Name: "Other month", Date: event.NewDate(2024, 7, 1), StartTime: 480, EndTime: 540},
	}
	r, _ := setupRouter(t, seed...)

	rr := do(t, r, "GET", "/api/calendar/2024/6?selected=2024-06-10", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var resp monthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Title != "June 2024" || resp.Month.FirstDayOffset != 6 || resp.Month.DaysInMonth != 30 {
		t.Errorf("month = %+v %q", resp.Month, resp.Title)
	}
	if len(resp.Cells) != 36 || len(resp.Weeks) != 6 {
		t.Errorf("cells = %d, weeks = %d", len(resp.Cells), len(resp.Weeks))
	}
	if resp.Prev != event.NewDate(2024, 5, 1) || resp.Next != event.NewDate(2024, 7, 1) {
		t.Errorf("prev/next = %s/%s", resp.Prev, resp.Next)
	}
	if resp.Today != event.NewDate(2024, 6, 1) || !resp.Cells[6].IsToday {
		t.Errorf("today = %s, first day cell = %+v", resp.Today, resp.Cells[6])
	}
	if len(resp.DayEvents) != 2 || resp.DayEvents[0].ID != 2 {
		t.Errorf("day events = %+v, want breakfast first", resp.DayEvents)
	}
	if c := resp.Cells[6+9]; !c.IsSelected || len(c.Events) != 2 {
		t.Errorf("cell for 10th = %+v", c)
	}

	rr = do(t, r, "GET", "/api/calendar/2024/6?q=breakfast&selected=2024-06-10", nil)
	var filtered monthResponse
	json.Unmarshal(rr.Body.Bytes(), &filtered)
	if len(filtered.DayEvents) != 1 || len(filtered.Cells[15].Events) != 1 {
		t.Errorf("filter not applied: %+v", filtered.DayEvents)
	}

	for _, path := range []string{"/api/calendar/2024/13", "/api/calendar/x/6", "/api/calendar/2024/6?selected=bad"} {
		if rr := do(t, r, "GET", path, nil); rr.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", path, rr.Code)
		}
	}
}

func TestHandlers_MonthViewDefaultsSelection(t *testing.T) {
	r, _ := setupRouter(t)
	var resp monthResponse

	json.Unmarshal(do(t, r, "GET", "/api/calendar/2024/6", nil).Body.Bytes(), &resp)
	if resp.Selected != event.NewDate(2024, 6, 1) {
		t.Errorf("current month selected = %s, want today", resp.Selected)
	}

	json.Unmarshal(do(t, r, "GET", "/api/calendar/2024/9", nil).Body.Bytes(), &resp)
	if resp.Selected != event.NewDate(2024, 9, 1) {
		t.Errorf("other month selected = %s, want the 1st", resp.Selected)
	}
}

func TestHandlers_DayEvents(t *testing.T) {
	r, _ := setupRouter(t, event.Event{ID: 1, Name: "Standup", Date: event.NewDate(2024, 6, 10), StartTime: 540, EndTime: 570})

	var resp struct {
		Date   event.Date    `json:"date"`
		Events []event.Event `json:"events"`
	}
	json.Unmarshal(do(t, r, "GET", "/api/days/2024-06-10", nil).Body.Bytes(), &resp)
	if resp.Date != event.NewDate(2024, 6, 10) || len(resp.Events) != 1 {
		t.Errorf("resp = %+v", resp)
	}

	rr := do(t, r, "GET", "/api/days/2024-06-11", nil)
	if !strings.Contains(rr.Body.String(), `"events":[]`) {
		t.Errorf("empty day should encode []: %s", rr.Body.String())
	}
}

func TestHandlers_Export(t *testing.T) {
	seed := []event.Event{
		{ID: 1, Name: "Standup", Date: event.NewDate(2024, 6, 10), StartTime: 540, EndTime: 570},
		{ID: 2, Name: "Later", Date: event.NewDate(2024, 7, 10), StartTime: 540, EndTime: 570},
	}
	r, _ := setupRouter(t, seed...)

	rr := do(t, r, "GET", "/api/export/2024/6", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename="events_2024_6.json"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rr.Header().Get("X-Notification") != "Events Exported" {
		t.Errorf("X-Notification = %q", rr.Header().Get("X-Notification"))
	}
	var exported []event.Event
	if err := json.Unmarshal(rr.Body.Bytes(), &exported); err != nil {
		t.Fatal(err)
	}
	if len(exported) != 1 || exported[0].ID != 1 {
		t.Errorf("exported = %+v", exported)
	}
	if !strings.Contains(rr.Body.String(), "\n  {") {
		t.Errorf("export not indented with two spaces:\n%s", rr.Body.String())
	}

	rr = do(t, r, "GET", "/api/export/2024/5", nil)
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("empty month export = %q", rr.Body.String())
	}

	rr = do(t, r, "GET", "/api/export/2024/6?format=ics", nil)
	if !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/calendar") || !strings.Contains(rr.Body.String(), "SUMMARY:Standup") {
		t.Errorf("ics export = %s", rr.Body.String())
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "events_2024_6.ics") {
		t.Errorf("ics Content-Disposition = %q", cd)
	}

	if rr := do(t, r, "GET", "/api/export/2024/6?format=xml", nil); rr.Code != http.StatusBadRequest {
		t.Errorf("bad format status = %d", rr.Code)
	}
}

// ABOUTME: HTTP handlers for the month calendar API.
// ABOUTME: Exposes event intents, the month grid, day lists, and month exports over chi routes.

package calendar

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/2389/monthcal/internal/errors"
	"github.com/2389/monthcal/internal/event"
	"github.com/2389/monthcal/internal/grid"
	"github.com/2389/monthcal/internal/icsexport"
	"github.com/2389/monthcal/internal/schedule"
)

const maxRequestBody = 64 * 1024

type Handlers struct {
	ctrl   *schedule.Controller
	logger *slog.Logger
	now    func() time.Time
}

func NewHandlers(ctrl *schedule.Controller, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{ctrl: ctrl, logger: logger, now: time.Now}
}

func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/events", func(r chi.Router) {
			r.Get("/", h.listEvents)
			r.Post("/", h.addEvent)
			r.Get("/{id}", h.getEvent)
			r.Put("/{id}", h.updateEvent)
			r.Delete("/{id}", h.deleteEvent)
			r.Post("/{id}/move", h.moveEvent)
		})
		r.Get("/calendar/{year}/{month}", h.monthView)
		r.Get("/days/{date}", h.dayEvents)
		r.Get("/export/{year}/{month}", h.exportMonth)
	})
}

type mutationResponse struct {
	Event        *event.Event          `json:"event,omitempty"`
	Notification schedule.Notification `json:"notification"`
	Warning      string                `json:"warning,omitempty"`
}

type moveRequest struct {
	Date string `json:"date"`
}

type monthResponse struct {
	Title     string        `json:"title"`
	Month     grid.Month    `json:"month"`
	Prev      event.Date    `json:"prev"`
	Next      event.Date    `json:"next"`
	Today     event.Date    `json:"today"`
	Selected  event.Date    `json:"selected"`
	Query     string        `json:"query,omitempty"`
	Weekdays  []string      `json:"weekdays"`
	Cells     []grid.Cell   `json:"cells"`
	Weeks     [][]grid.Cell `json:"weeks"`
	DayEvents []event.Event `json:"dayEvents"`
}

func (h *Handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	events := h.ctrl.Search(r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

func (h *Handlers) getEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	e, err := h.ctrl.Event(id)
	if err != nil {
		apierrors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handlers) addEvent(w http.ResponseWriter, r *http.Request) {
	var draft event.Draft
	if !decodeBody(w, r, &draft) {
		return
	}
	e, err := h.ctrl.AddEvent(r.Context(), draft)
	h.writeMutation(w, http.StatusCreated, schedule.IntentAdd, e, err)
}

func (h *Handlers) updateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var draft event.Draft
	if !decodeBody(w, r, &draft) {
		return
	}
	e, err := h.ctrl.UpdateEvent(r.Context(), id, draft)
	h.writeMutation(w, http.StatusOK, schedule.IntentUpdate, e, err)
}

func (h *Handlers) moveEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req moveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	date, err := event.ParseDate(req.Date)
	if err != nil {
		apierrors.WriteErrorWithField(w, http.StatusBadRequest, apierrors.ErrValidationFailed, "date must be YYYY-MM-DD", "date")
		return
	}
	e, err := h.ctrl.MoveEvent(r.Context(), id, date)
	h.writeMutation(w, http.StatusOK, schedule.IntentMove, e, err)
}

func (h *Handlers) deleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	err := h.ctrl.DeleteEvent(r.Context(), id)
	if err == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeMutation(w, http.StatusOK, schedule.IntentDelete, event.Event{}, err)
}

// writeMutation reports an intent outcome. Storage failures keep the success
// status because the change is live in memory; the response carries a warning.
func (h *Handlers) writeMutation(w http.ResponseWriter, status int, intent schedule.Intent, e event.Event, err error) {
	if err != nil && !schedule.IsStorageError(err) {
		apierrors.WriteDomainError(w, err)
		return
	}
	resp := mutationResponse{Notification: schedule.NotificationFor(intent, nil)}
	if e.ID != 0 {
		resp.Event = &e
	}
	if err != nil {
		h.logger.Warn("change not persisted", "intent", intent, "event_id", e.ID, "err", err)
		resp.Warning = err.Error()
	}
	writeJSON(w, status, resp)
}

func (h *Handlers) monthView(w http.ResponseWriter, r *http.Request) {
	ref, ok := parseMonth(w, r)
	if !ok {
		return
	}
	today := h.ctrl.Today()
	query := r.URL.Query().Get("q")

	selected := ref
	if today.InMonth(ref.Year, ref.Month) {
		selected = today
	}
	if s := r.URL.Query().Get("selected"); s != "" {
		d, err := event.ParseDate(s)
		if err != nil {
			apierrors.WriteErrorWithField(w, http.StatusBadRequest, apierrors.ErrValidationFailed, "selected must be YYYY-MM-DD", "selected")
			return
		}
		selected = d
	}

	events := h.ctrl.Search(query)
	cells := grid.CellsForMonth(ref, events, selected, today)
	dayEvents := h.ctrl.EventsOn(selected, query)
	if dayEvents == nil {
		dayEvents = []event.Event{}
	}

	m := grid.BuildMonth(ref)
	writeJSON(w, http.StatusOK, monthResponse{
		Title:     m.Title(),
		Month:     m,
		Prev:      grid.PrevMonth(ref),
		Next:      grid.NextMonth(ref),
		Today:     today,
		Selected:  selected,
		Query:     query,
		Weekdays:  grid.WeekdayNames[:],
		Cells:     cells,
		Weeks:     grid.Weeks(cells),
		DayEvents: dayEvents,
	})
}

func (h *Handlers) dayEvents(w http.ResponseWriter, r *http.Request) {
	date, err := event.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		apierrors.WriteErrorWithField(w, http.StatusBadRequest, apierrors.ErrValidationFailed, "date must be YYYY-MM-DD", "date")
		return
	}
	events := h.ctrl.EventsOn(date, r.URL.Query().Get("q"))
	if events == nil {
		events = []event.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":   date,
		"events": events,
	})
}

func (h *Handlers) exportMonth(w http.ResponseWriter, r *http.Request) {
	ref, ok := parseMonth(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "ics" {
		apierrors.WriteErrorWithField(w, http.StatusBadRequest, apierrors.ErrInvalidRequest, "format must be json or ics", "format")
		return
	}

	exp, err := h.ctrl.Export(ref.Year, ref.Month)
	if err != nil {
		apierrors.WriteDomainError(w, err)
		return
	}

	contentType := "application/json"
	if format == "ics" {
		exp = icsexport.FromExport(exp, h.now())
		contentType = "text/calendar; charset=utf-8"
	}

	note := schedule.NotificationFor(schedule.IntentExport, nil)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exp.FileName))
	w.Header().Set("X-Notification", note.Title)
	w.WriteHeader(http.StatusOK)
	w.Write(exp.Data)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		apierrors.WriteError(w, http.StatusBadRequest, apierrors.ErrInvalidRequest, "event id must be a positive integer")
		return 0, false
	}
	return id, true
}

// parseMonth reads {year}/{month} and returns the first day of that month.
func parseMonth(w http.ResponseWriter, r *http.Request) (event.Date, bool) {
	year, yerr := strconv.Atoi(chi.URLParam(r, "year"))
	month, merr := strconv.Atoi(chi.URLParam(r, "month"))
	if yerr != nil || merr != nil || month < 1 || month > 12 || year < 1 || year > 9999 {
		apierrors.WriteError(w, http.StatusBadRequest, apierrors.ErrInvalidRequest, "year and month must be numeric, month 1-12")
		return event.Date{}, false
	}
	return event.NewDate(year, time.Month(month), 1), true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(v); err != nil {
		apierrors.WriteErrorWithDetails(w, http.StatusBadRequest, apierrors.ErrInvalidBody, "Request body is not valid JSON", err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ABOUTME: HTTP handlers for the admin API.
// ABOUTME: Reports event totals and request log statistics as JSON.

package admin

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/2389/monthcal/internal/errors"
	"github.com/2389/monthcal/internal/schedule"
	"github.com/2389/monthcal/internal/store"
)

// RouteGroups are the API groups reported on the stats page.
var RouteGroups = []string{"events", "calendar", "days", "export"}

// LogSource is the request log query surface of *store.Store.
type LogSource interface {
	GetRequestLogs(q *store.RequestLogQuery) ([]*store.RequestLog, error)
	GetRequestLogStats() (*store.RequestLogStats, error)
	GetTopEndpoints(limit int) ([]map[string]any, error)
	GetGroupErrorRate(group string, since time.Time) (float64, error)
}

type Handlers struct {
	ctrl *schedule.Controller
	logs LogSource
	now  func() time.Time
}

// NewHandlers wires the admin API. logs may be nil when request logging is off.
func NewHandlers(ctrl *schedule.Controller, logs LogSource) *Handlers {
	return &Handlers{ctrl: ctrl, logs: logs, now: time.Now}
}

func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Get("/stats", h.stats)
		r.Get("/logs", h.logsList)
	})
}

type groupStats struct {
	Group     string  `json:"group"`
	ErrorRate float64 `json:"errorRate24h"`
}

type statsResponse struct {
	Events         int                    `json:"events"`
	EventsToday    int                    `json:"eventsToday"`
	RequestLogging bool                   `json:"requestLogging"`
	Requests       *store.RequestLogStats `json:"requests,omitempty"`
	TopEndpoints   []map[string]any       `json:"topEndpoints,omitempty"`
	Groups         []groupStats           `json:"groups,omitempty"`
}

func (h *Handlers) stats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{
		Events:      len(h.ctrl.Events()),
		EventsToday: len(h.ctrl.EventsOn(h.ctrl.Today(), "")),
	}
	if h.logs == nil {
		writeJSON(w, resp)
		return
	}
	resp.RequestLogging = true

	stats, err := h.logs.GetRequestLogStats()
	if err != nil {
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrStorageError, err.Error())
		return
	}
	resp.Requests = stats

	top, err := h.logs.GetTopEndpoints(10)
	if err != nil {
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrStorageError, err.Error())
		return
	}
	resp.TopEndpoints = top

	yesterday := h.now().Add(-24 * time.Hour)
	for _, g := range RouteGroups {
		rate, err := h.logs.GetGroupErrorRate(g, yesterday)
		if err != nil {
			apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrStorageError, err.Error())
			return
		}
		resp.Groups = append(resp.Groups, groupStats{Group: g, ErrorRate: rate})
	}

	writeJSON(w, resp)
}

func (h *Handlers) logsList(w http.ResponseWriter, r *http.Request) {
	if h.logs == nil {
		apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrNotFound, "request logging is disabled for this storage backend")
		return
	}

	q := r.URL.Query()
	query := &store.RequestLogQuery{
		Limit:      100,
		RouteGroup: q.Get("group"),
		Client:     q.Get("client"),
		Method:     q.Get("method"),
		PathPrefix: q.Get("path"),
	}
	for name, dst := range map[string]*int{"limit": &query.Limit, "offset": &query.Offset, "status": &query.StatusCode} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			apierrors.WriteErrorWithField(w, http.StatusBadRequest, apierrors.ErrInvalidRequest, name+" must be a non-negative integer", name)
			return
		}
		*dst = n
	}

	logs, err := h.logs.GetRequestLogs(query)
	if err != nil {
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrStorageError, err.Error())
		return
	}
	if logs == nil {
		logs = []*store.RequestLog{}
	}

	if q.Get("pretty") == "true" {
		for _, log := range logs {
			log.RequestBody = prettyJSON(log.RequestBody)
			log.ResponseBody = prettyJSON(log.ResponseBody)
		}
	}

	writeJSON(w, map[string]any{
		"logs":  logs,
		"count": len(logs),
	})
}

// prettyJSON formats JSON with indentation, or returns original string if not valid JSON
func prettyJSON(s string) string {
	if s == "" {
		return s
	}
	var obj any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return s
	}
	formatted, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return s
	}
	return string(formatted)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

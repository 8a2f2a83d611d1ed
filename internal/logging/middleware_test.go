// ABOUTME: Tests for HTTP request logging middleware.
// ABOUTME: Verifies body buffering limits, status capture, route grouping, and recorded entries.

package logging

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/2389/monthcal/internal/auth"
	"github.com/2389/monthcal/internal/store"
)

type recordingLogger struct {
	logs chan *store.RequestLog
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{logs: make(chan *store.RequestLog, 10)}
}

func (r *recordingLogger) LogRequest(log *store.RequestLog) error {
	r.logs <- log
	return nil
}

func (r *recordingLogger) next(t *testing.T) *store.RequestLog {
	t.Helper()
	select {
	case log := <-r.logs:
		return log
	case <-time.After(2 * time.Second):
		t.Fatal("no request logged")
		return nil
	}
}

func TestResponseWriter_BuffersResponseBody(t *testing.T) {
	tests := []struct {
		name           string
		responseBody   string
		expectedCapped bool
	}{
		{"small response", "Hello, World!", false},
		{"response at limit", strings.Repeat("x", maxBodySize), false},
		{"response exceeds limit", strings.Repeat("x", maxBodySize+1000), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			wrapped := &responseWriter{ResponseWriter: rr, statusCode: 200, body: &bytes.Buffer{}}

			n, err := wrapped.Write([]byte(tt.responseBody))
			if err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			if n != len(tt.responseBody) {
				t.Errorf("Write() returned %d, want %d", n, len(tt.responseBody))
			}

			buffered := wrapped.body.String()
			if len(buffered) > maxBodySize {
				t.Errorf("Buffered body size %d exceeds maxBodySize %d", len(buffered), maxBodySize)
			}
			if tt.expectedCapped && len(buffered) != maxBodySize {
				t.Errorf("Expected buffered body to be capped at %d, got %d", maxBodySize, len(buffered))
			}
		})
	}
}

func TestResponseWriter_CapturesStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		explicit bool
		code     int
	}{
		{"explicit status", true, http.StatusConflict},
		{"implicit status", false, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := &responseWriter{ResponseWriter: httptest.NewRecorder(), statusCode: 200, body: &bytes.Buffer{}}
			if tt.explicit {
				wrapped.WriteHeader(tt.code)
			}
			wrapped.Write([]byte("body"))

			if wrapped.statusCode != tt.code {
				t.Errorf("statusCode = %d, want %d", wrapped.statusCode, tt.code)
			}
		})
	}
}

func TestRouteGroup(t *testing.T) {
	tests := map[string]string{
		"/api/events":          "events",
		"/api/events/42/move":  "events",
		"/api/calendar/2024/6": "calendar",
		"/api/days/2024-06-10": "days",
		"/api/export/2024/6":   "export",
		"/api/":                "other",
		"/healthz":             "other",
		"/apix/events":         "other",
	}
	for path, want := range tests {
		if got := RouteGroup(path); got != want {
			t.Errorf("RouteGroup(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestMiddleware_RecordsRequest(t *testing.T) {
	l := newRecordingLogger()
	handler := NewRecorder(l).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"code":"conflict"}`))
	}))

	req := httptest.NewRequest("POST", "/api/events", strings.NewReader(`{"name":"Standup"}`))
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	got := l.next(t)
	if got.RouteGroup != "events" || got.Method != "POST" || got.StatusCode != http.StatusConflict {
		t.Errorf("entry = %+v", got)
	}
	if got.IPAddress != "10.0.0.1" {
		t.Errorf("IPAddress = %q", got.IPAddress)
	}
	if got.RequestBody != `{"name":"Standup"}` || got.ResponseBody != `{"code":"conflict"}` {
		t.Errorf("bodies = %q / %q", got.RequestBody, got.ResponseBody)
	}
	if got.Error != "Conflict" {
		t.Errorf("Error = %q", got.Error)
	}
	if got.Client != auth.ClientAnonymous {
		t.Errorf("Client = %q, want %q", got.Client, auth.ClientAnonymous)
	}
}

func TestMiddleware_RecordsAuthenticatedClient(t *testing.T) {
	l := newRecordingLogger()
	inner := NewRecorder(l).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler := auth.Middleware("s3cret")(inner)

	req := httptest.NewRequest("GET", "/api/events", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got := l.next(t); got.Client != auth.ClientToken {
		t.Errorf("Client = %q, want %q", got.Client, auth.ClientToken)
	}
}

type slowLogger struct {
	delay time.Duration
	mu    sync.Mutex
	count int
}

func (s *slowLogger) LogRequest(*store.RequestLog) error {
	time.Sleep(s.delay)
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	return nil
}

func TestRecorder_WaitDrainsPendingWrites(t *testing.T) {
	l := &slowLogger{delay: 50 * time.Millisecond}
	rec := NewRecorder(l)
	handler := rec.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/events", nil))
	}
	rec.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count != 5 {
		t.Errorf("writes finished before Wait returned = %d, want 5", l.count)
	}
}

func TestMiddleware_SkipsHealthcheck(t *testing.T) {
	l := newRecordingLogger()
	handler := NewRecorder(l).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", rr.Code, http.StatusOK)
	}
	select {
	case log := <-l.logs:
		t.Errorf("healthz logged: %+v", log)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMiddleware_HandlerSeesFullLargeBody(t *testing.T) {
	l := newRecordingLogger()
	original := strings.Repeat("x", maxBodySize+1000)
	var handlerReadBody string

	handler := NewRecorder(l).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		handlerReadBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/events", strings.NewReader(original)))

	if handlerReadBody != original {
		t.Errorf("handler read %d bytes, want %d", len(handlerReadBody), len(original))
	}
	if got := l.next(t); len(got.RequestBody) != maxBodySize {
		t.Errorf("captured %d bytes, want %d", len(got.RequestBody), maxBodySize)
	}
}

func TestMiddleware_WritesToSQLiteStore(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "monthcal.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	handler := NewRecorder(s).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("DELETE", "/api/events/1", nil))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		logs, err := s.GetRequestLogs(&store.RequestLogQuery{RouteGroup: "events"})
		if err != nil {
			t.Fatal(err)
		}
		if len(logs) == 1 {
			if logs[0].StatusCode != http.StatusNoContent {
				t.Errorf("StatusCode = %d", logs[0].StatusCode)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("request never reached the store")
}

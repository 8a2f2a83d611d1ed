// ABOUTME: HTTP request logging middleware.
// ABOUTME: Captures method, path, status, duration, and bodies, and records them per API route group.

package logging

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/2389/monthcal/internal/auth"
	"github.com/2389/monthcal/internal/store"
)

const maxBodySize = 10 * 1024 // 10KB limit for body capture

// RequestLogger persists captured requests. *store.Store implements it.
type RequestLogger interface {
	LogRequest(log *store.RequestLog) error
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
	body       *bytes.Buffer
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.statusCode = http.StatusOK
		rw.written = true
	}
	if rw.body.Len() < maxBodySize {
		toCopy := len(b)
		if rw.body.Len()+toCopy > maxBodySize {
			toCopy = maxBodySize - rw.body.Len()
		}
		rw.body.Write(b[:toCopy])
	}
	return rw.ResponseWriter.Write(b)
}

// RouteGroup names the API area a path belongs to, e.g. "events" for
// /api/events/42. Paths outside /api are "other".
func RouteGroup(path string) string {
	rest, ok := strings.CutPrefix(path, "/api/")
	if !ok {
		return "other"
	}
	group, _, _ := strings.Cut(rest, "/")
	if group == "" {
		return "other"
	}
	return group
}

// Recorder captures API requests and persists them off the request path.
// Wait blocks until every write already started has finished.
type Recorder struct {
	l  RequestLogger
	wg sync.WaitGroup
}

// NewRecorder returns a Recorder writing through l.
func NewRecorder(l RequestLogger) *Recorder {
	return &Recorder{l: l}
}

// Wait drains pending writes. Call it after the server stops and before the
// store closes.
func (rec *Recorder) Wait() {
	rec.wg.Wait()
}

// Middleware records every API request. Failed writes are logged and dropped.
// It must run inside auth.Middleware so the client is known.
func (rec *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || r.URL.Path == "/favicon.ico" {
			next.ServeHTTP(w, r)
			return
		}

		// Capture the head of the body and hand the full stream on.
		var requestBody string
		if r.Body != nil {
			head, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
			if err == nil {
				requestBody = string(head)
				r.Body = struct {
					io.Reader
					io.Closer
				}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}
			}
		}

		start := time.Now()
		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
			body:           &bytes.Buffer{},
		}

		next.ServeHTTP(wrapped, r)

		ip := r.RemoteAddr
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			ip = strings.TrimSpace(strings.Split(forwarded, ",")[0])
		}

		entry := &store.RequestLog{
			RouteGroup:   RouteGroup(r.URL.Path),
			Client:       auth.ClientFromContext(r.Context()),
			Method:       r.Method,
			Path:         r.URL.Path,
			StatusCode:   wrapped.statusCode,
			DurationMs:   int(time.Since(start).Milliseconds()),
			IPAddress:    ip,
			UserAgent:    r.Header.Get("User-Agent"),
			RequestBody:  requestBody,
			ResponseBody: wrapped.body.String(),
		}
		if wrapped.statusCode >= 400 {
			entry.Error = http.StatusText(wrapped.statusCode)
		}

		rec.wg.Add(1)
		go func() {
			defer rec.wg.Done()
			if err := rec.l.LogRequest(entry); err != nil {
				slog.Warn("request log write failed", "path", entry.Path, "error", err)
			}
		}()
	})
}

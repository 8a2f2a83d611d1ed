// ABOUTME: Stress tests for concurrent scheduling and database access.
// ABOUTME: Tests that overlapping intents race safely and the SQLite store stays consistent under load.

package stress

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/2389/monthcal/internal/calendar"
	"github.com/2389/monthcal/internal/event"
	"github.com/2389/monthcal/internal/schedule"
	"github.com/2389/monthcal/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "stress.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newController(t *testing.T, p schedule.Persister) *schedule.Controller {
	t.Helper()
	es, err := schedule.NewEventStore(context.Background(), p)
	if err != nil {
		t.Fatalf("NewEventStore() error = %v", err)
	}
	return schedule.NewController(es)
}

// TestConcurrentOverlappingAdds races many adds for the same slot; exactly one may win.
func TestConcurrentOverlappingAdds(t *testing.T) {
	ctrl := newController(t, openStore(t))

	numGoroutines := 50
	var wg sync.WaitGroup
	var wins, conflicts, other int32

	start := make(chan struct{})
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			<-start
			_, err := ctrl.AddEvent(context.Background(), event.Draft{
				Name:      fmt.Sprintf("Meeting %d", id),
				Date:      "2030-03-04",
				StartTime: "10:00",
				EndTime:   fmt.Sprintf("10:%02d", 15+id%40),
			})
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, schedule.ErrConflict):
				atomic.AddInt32(&conflicts, 1)
			default:
				atomic.AddInt32(&other, 1)
				t.Logf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if wins != 1 || conflicts != int32(numGoroutines-1) || other != 0 {
		t.Errorf("wins=%d conflicts=%d other=%d, want 1/%d/0", wins, conflicts, other, numGoroutines-1)
	}
	if n := len(ctrl.Events()); n != 1 {
		t.Errorf("stored %d events, want 1", n)
	}
}

// TestConcurrentDisjointAdds books one slot per goroutine; all must succeed with unique ids.
func TestConcurrentDisjointAdds(t *testing.T) {
	s := openStore(t)
	ctrl := newController(t, s)

	numGoroutines := 24
	perGoroutine := 4
	var wg sync.WaitGroup
	var errorCount int32

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(hour int) {
			defer wg.Done()
			for day := 1; day <= perGoroutine; day++ {
				_, err := ctrl.AddEvent(context.Background(), event.Draft{
					Name:      fmt.Sprintf("Slot %02d", hour),
					Date:      fmt.Sprintf("2030-03-%02d", day),
					StartTime: fmt.Sprintf("%02d:00", hour),
					EndTime:   fmt.Sprintf("%02d:30", hour),
				})
				if err != nil {
					atomic.AddInt32(&errorCount, 1)
					t.Logf("Error adding event: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()

	if errorCount > 0 {
		t.Fatalf("%d adds failed", errorCount)
	}

	events := ctrl.Events()
	if len(events) != numGoroutines*perGoroutine {
		t.Fatalf("stored %d events, want %d", len(events), numGoroutines*perGoroutine)
	}
	ids := make(map[int64]bool)
	for _, e := range events {
		if ids[e.ID] {
			t.Errorf("duplicate id %d", e.ID)
		}
		ids[e.ID] = true
	}

	persisted, err := s.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(persisted) != len(events) {
		t.Errorf("persisted %d events, want %d", len(persisted), len(events))
	}
}

// TestConcurrentDatabaseWrites tests multiple goroutines writing request logs simultaneously
func TestConcurrentDatabaseWrites(t *testing.T) {
	s := openStore(t)

	numGoroutines := 20
	logsPerGoroutine := 50
	var wg sync.WaitGroup
	var errorCount int32

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < logsPerGoroutine; j++ {
				log := &store.RequestLog{
					Timestamp:  time.Now(),
					RouteGroup: []string{"events", "calendar", "days", "export"}[id%4],
					Method:     []string{"GET", "POST", "PUT", "DELETE"}[j%4],
					Path:       fmt.Sprintf("/api/events/%d", j),
					StatusCode: 200,
					DurationMs: j % 100,
				}
				if err := s.LogRequest(log); err != nil {
					atomic.AddInt32(&errorCount, 1)
					t.Logf("Error logging request: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()

	if errorCount > 0 {
		t.Errorf("Got %d errors during concurrent writes", errorCount)
	}
	stats, err := s.GetRequestLogStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if want := numGoroutines * logsPerGoroutine; stats.TotalRequests != want {
		t.Errorf("TotalRequests = %d, want %d", stats.TotalRequests, want)
	}
}

// TestConcurrentHTTPMutations mixes reads and writes through the HTTP handlers.
func TestConcurrentHTTPMutations(t *testing.T) {
	ctrl := newController(t, openStore(t))
	r := chi.NewRouter()
	calendar.NewHandlers(ctrl, nil).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	numWriters := 10
	numReaders := 10
	var wg sync.WaitGroup
	var created, serverErrors int32

	for i := 0; i < numWriters; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				body := fmt.Sprintf(`{"name":"w%d-%d","date":"2030-04-%02d","startTime":"%02d:00","endTime":"%02d:45"}`, id, j, j+1, 8+id, 8+id)
				resp, err := http.Post(srv.URL+"/api/events", "application/json", strings.NewReader(body))
				if err != nil {
					atomic.AddInt32(&serverErrors, 1)
					continue
				}
				resp.Body.Close()
				switch {
				case resp.StatusCode == http.StatusCreated:
					atomic.AddInt32(&created, 1)
				case resp.StatusCode >= 500:
					atomic.AddInt32(&serverErrors, 1)
				}
			}
		}(i)
	}
	for i := 0; i < numReaders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				resp, err := http.Get(srv.URL + "/api/calendar/2030/4")
				if err != nil || resp.StatusCode != http.StatusOK {
					atomic.AddInt32(&serverErrors, 1)
				}
				if resp != nil {
					resp.Body.Close()
				}
			}
		}()
	}
	wg.Wait()

	if serverErrors > 0 {
		t.Errorf("%d requests failed", serverErrors)
	}
	if int(created) != numWriters*5 || len(ctrl.Events()) != numWriters*5 {
		t.Errorf("created=%d stored=%d, want %d", created, len(ctrl.Events()), numWriters*5)
	}
}

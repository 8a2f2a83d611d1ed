// ABOUTME: Scheduled exports of the current month to a snapshot directory.
// ABOUTME: Runs on a cron schedule and writes JSON or iCalendar files atomically.

package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/2389/monthcal/internal/icsexport"
	"github.com/2389/monthcal/internal/jsonfile"
	"github.com/2389/monthcal/internal/schedule"
)

// Exporter produces the export for one month. *schedule.Controller satisfies it.
type Exporter interface {
	Export(year int, month time.Month) (schedule.Export, error)
}

// Job writes the month containing "now" to Dir.
type Job struct {
	exporter Exporter
	dir      string
	format   string
	now      func() time.Time
	logger   *slog.Logger
	cron     *cron.Cron
}

type Option func(*Job)

func WithClock(now func() time.Time) Option {
	return func(j *Job) { j.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(j *Job) { j.logger = l }
}

// New validates format ("json" or "ics") and returns an idle job.
func New(exporter Exporter, dir, format string, opts ...Option) (*Job, error) {
	if dir == "" {
		return nil, fmt.Errorf("snapshot dir is empty")
	}
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "ics" {
		return nil, fmt.Errorf("unknown snapshot format %q", format)
	}
	j := &Job{
		exporter: exporter,
		dir:      dir,
		format:   format,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(j)
	}
	j.logger = j.logger.With("component", "snapshot")
	return j, nil
}

// RunOnce writes one snapshot and returns the file path.
func (j *Job) RunOnce(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	now := j.now()
	exp, err := j.exporter.Export(now.Year(), now.Month())
	if err != nil {
		return "", fmt.Errorf("export %d-%02d: %w", now.Year(), now.Month(), err)
	}
	if j.format == "ics" {
		exp = icsexport.FromExport(exp, now)
	}
	path, err := jsonfile.WriteExport(j.dir, exp)
	if err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	j.logger.Info("snapshot written", "path", path, "events", len(exp.Events))
	return path, nil
}

// ValidateSchedule reports whether spec is a five-field cron expression or descriptor.
func ValidateSchedule(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid snapshot schedule %q: %w", spec, err)
	}
	return nil
}

// Start schedules RunOnce on spec. Failures are logged and the schedule continues.
func (j *Job) Start(spec string) error {
	if j.cron != nil {
		return fmt.Errorf("snapshot job already started")
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if _, err := j.RunOnce(context.Background()); err != nil {
			j.logger.Error("snapshot failed", "err", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid snapshot schedule %q: %w", spec, err)
	}
	j.cron = c
	c.Start()
	j.logger.Info("snapshot schedule started", "cron", spec, "dir", j.dir, "format", j.format)
	return nil
}

// Stop halts the schedule and waits for a running snapshot, bounded by ctx.
func (j *Job) Stop(ctx context.Context) {
	if j.cron == nil {
		return
	}
	select {
	case <-j.cron.Stop().Done():
	case <-ctx.Done():
	}
	j.cron = nil
}

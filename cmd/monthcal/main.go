// ABOUTME: Entry point for the monthcal month calendar server and CLI.
// ABOUTME: Wires config, storage, the schedule controller, and HTTP handlers behind cobra commands.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/2389/monthcal/internal/admin"
	"github.com/2389/monthcal/internal/applog"
	"github.com/2389/monthcal/internal/auth"
	"github.com/2389/monthcal/internal/calendar"
	"github.com/2389/monthcal/internal/config"
	"github.com/2389/monthcal/internal/jsonfile"
	"github.com/2389/monthcal/internal/logging"
	"github.com/2389/monthcal/internal/pgstore"
	"github.com/2389/monthcal/internal/schedule"
	"github.com/2389/monthcal/internal/snapshot"
	"github.com/2389/monthcal/internal/store"
)

// globalFlags override the config file for a single invocation.
type globalFlags struct {
	configPath string
	storage    string
	dbPath     string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "monthcal",
		Short: "monthcal - month calendar event scheduler",
		Long: `monthcal keeps a month calendar of timed events and refuses to book
two events on the same day whose times overlap.

Storage backends:
  • sqlite    (default) single-file database with request logging
  • json      one JSON file, rewritten atomically on every change
  • postgres  shared PostgreSQL table
  • memory    nothing persisted, useful for demos

Quick Start:
  monthcal seed          # Fill the current month with sample events
  monthcal grid          # Print the current month
  monthcal serve         # Start the HTTP API on 127.0.0.1:9000`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", config.DefaultPath(), "Config file path")
	pf.StringVar(&flags.storage, "storage", "", "Storage backend: sqlite, json, postgres, memory")
	pf.StringVarP(&flags.dbPath, "db", "d", "", "SQLite database path, or JSON file path with --storage json")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the monthcal HTTP server.

The server provides:
  • Event API at /api/events
  • Month grid at /api/calendar/{year}/{month}
  • Month export at /api/export/{year}/{month}?format=json|ics
  • Admin stats at /api/admin/stats
  • Health check at /healthz

Authentication:
  Set api_token in the config (or MONTHCAL_API_TOKEN) to require
  "Authorization: Bearer <token>" on every /api route.

Environment Variables:
  MONTHCAL_LISTEN          Listen address (default: 127.0.0.1:9000)
  MONTHCAL_SNAPSHOT_CRON   Cron schedule for month snapshots
  OPENAI_API_KEY           Enable AI-generated seed events`,
		RunE: func(cmd *cobra.Command, args []string) error {
			listen, _ := cmd.Flags().GetString("listen")
			return runServe(cmd.Context(), flags, listen)
		},
	}
	serveCmd.Flags().StringP("listen", "l", "", "Listen address (overrides config)")

	rootCmd.AddCommand(
		serveCmd,
		newAddCmd(flags),
		newListCmd(flags),
		newUpdateCmd(flags),
		newMoveCmd(flags),
		newDeleteCmd(flags),
		newGridCmd(flags),
		newExportCmd(flags),
		newSeedCmd(flags),
		newResetCmd(flags),
	)
	return rootCmd
}

// loadConfig reads the config file and applies environment and flag overrides.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	config.LoadDotEnv()
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flags.storage != "" {
		cfg.Storage = flags.storage
	}
	if flags.dbPath != "" {
		if cfg.Storage == config.StorageJSON {
			cfg.JSONPath = flags.dbPath
		} else {
			cfg.DBPath = flags.dbPath
		}
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// app is an opened event store plus whatever backs it.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *schedule.EventStore
	ctrl     *schedule.Controller
	logs     *store.Store
	requests *logging.Recorder
	closers  []func()
}

func openApp(ctx context.Context, flags *globalFlags) (*app, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	logger := applog.Setup(cfg.LogLevel)
	return openAppWithConfig(ctx, cfg, logger)
}

func openAppWithConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	p, err := a.openPersister(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	es, err := schedule.NewEventStore(ctx, p)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load events: %w", err)
	}
	a.store = es
	a.ctrl = schedule.NewController(es,
		schedule.WithLogger(logger),
		schedule.WithNotifier(schedule.LogNotifier{Logger: logger}),
	)
	logger.Debug("events loaded", "storage", cfg.Storage, "count", es.Len())
	return a, nil
}

func (a *app) openPersister(ctx context.Context) (schedule.Persister, error) {
	switch a.cfg.Storage {
	case config.StorageSQLite:
		path, err := config.ValidatePath(a.cfg.DBPath)
		if err != nil {
			return nil, err
		}
		s, err := store.New(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		a.logs = s
		a.requests = logging.NewRecorder(s)
		// Closers run in reverse, so pending log writes drain before the close.
		a.closers = append(a.closers, func() { s.Close() }, a.requests.Wait)
		return s, nil
	case config.StorageJSON:
		return jsonfile.New(a.cfg.JSONPath), nil
	case config.StoragePostgres:
		p, err := pgstore.Connect(ctx, a.cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			p.Close(ctx)
		})
		return p, nil
	case config.StorageMemory:
		return schedule.NewMemoryPersister(), nil
	}
	return nil, fmt.Errorf("unknown storage %q", a.cfg.Storage)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func newServer(a *app) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(auth.Middleware(a.cfg.APIToken))
	if a.requests != nil {
		r.Use(a.requests.Middleware)
	}

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "events": len(a.ctrl.Events())})
	})

	r.Get("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	calendar.NewHandlers(a.ctrl, a.logger).RegisterRoutes(r)

	var logs admin.LogSource
	if a.logs != nil {
		logs = a.logs
	}
	admin.NewHandlers(a.ctrl, logs).RegisterRoutes(r)

	return r
}

func runServe(ctx context.Context, flags *globalFlags, listen string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, flags)
	if err != nil {
		return err
	}
	defer a.Close()
	if listen != "" {
		a.cfg.Listen = listen
	}

	var job *snapshot.Job
	if a.cfg.Snapshot.Cron != "" {
		job, err = snapshot.New(a.ctrl, a.cfg.Snapshot.Dir, a.cfg.Snapshot.Format, snapshot.WithLogger(a.logger))
		if err != nil {
			return err
		}
		if err := job.Start(a.cfg.Snapshot.Cron); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           newServer(a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("monthcal server listening", "addr", a.cfg.Listen, "storage", a.cfg.Storage)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if job != nil {
			job.Stop(context.Background())
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if job != nil {
		job.Stop(shutdownCtx)
	}
	return srv.Shutdown(shutdownCtx)
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/italolelis/torrent_feeder/internal/cleanup"
	"github.com/italolelis/torrent_feeder/internal/config"
	"github.com/italolelis/torrent_feeder/internal/dc"
	delugeclient "github.com/italolelis/torrent_feeder/internal/dc/deluge"
	"github.com/italolelis/torrent_feeder/internal/download"
	"github.com/italolelis/torrent_feeder/internal/http/rest"
	"github.com/italolelis/torrent_feeder/internal/logctx"
	"github.com/italolelis/torrent_feeder/internal/notifier"
	"github.com/italolelis/torrent_feeder/internal/plugins/builtin"
	"github.com/italolelis/torrent_feeder/internal/plugins/deluge"
	"github.com/italolelis/torrent_feeder/internal/plugins/dump"
	"github.com/italolelis/torrent_feeder/internal/storage/sqlite"
	"github.com/italolelis/torrent_feeder/internal/task"
	"github.com/italolelis/torrent_feeder/internal/telemetry"
)

// app is the wired process: config, telemetry, history and the task runner.
type app struct {
	ctx       context.Context
	cfg       *config.Config
	opts      task.Options
	taskNames []string
	tasksFile string
	tempDir   string

	db        *sql.DB
	history   *sqlite.InstrumentedHistoryRepository
	telemetry *telemetry.Telemetry
	runner    *task.Runner
}

func setup(ctx context.Context, ro *runOptions) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	opts, err := ro.taskOptions()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg, ro.debug)
	ctx = logctx.WithLogger(ctx, logger)

	logger.Info("torrent feeder starting...", "log_level", cfg.LogLevel)

	a := &app{ctx: ctx, cfg: cfg, opts: opts, taskNames: ro.tasks, tasksFile: cfg.TasksFile}
	if ro.tasksFile != "" {
		a.tasksFile = ro.tasksFile
	}

	a.tempDir = cfg.TempDir
	if a.tempDir == "" {
		a.tempDir = filepath.Join(os.TempDir(), "torrent_feeder")
	}

	// =========================================================================
	// Start Telemetry
	a.telemetry, err = telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start telemetry: %w", err)
	}

	// =========================================================================
	// Start Database
	a.db, err = sqlite.InitDB(cfg.DBPath)
	if err != nil {
		a.Close()

		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	a.history = sqlite.NewInstrumentedHistoryRepository(a.db, a.telemetry)

	// =========================================================================
	// Register Plugins
	a.runner = a.buildRunner()

	return a, nil
}

func (a *app) buildRunner() *task.Runner {
	var dialer dc.Dialer = &delugeclient.Dialer{
		APIPath:   a.cfg.Deluge.APIPath,
		Insecure:  a.cfg.Deluge.Insecure,
		Telemetry: a.telemetry,
	}
	dialer = dc.NewInstrumentedDialer(dialer, a.telemetry)

	defaults := dc.ConnectionInfo{
		Host:     a.cfg.Deluge.Host,
		Port:     a.cfg.Deluge.Port,
		User:     a.cfg.Deluge.User,
		Password: a.cfg.Deluge.Password,
	}

	var notif notifier.Notifier
	if a.cfg.DiscordWebhookURL != "" {
		notif = notifier.NewDiscordNotifier(a.cfg.DiscordWebhookURL)
	}

	r := task.NewRunner()
	r.Register(dump.New(os.Stdout), true)
	r.Register(builtin.Mock{}, false)
	r.Register(builtin.AcceptAll{}, false)
	r.Register(&builtin.Download{}, false)
	r.Register(deluge.NewInputPlugin(dialer, defaults), false)
	r.Register(deluge.NewOutputPlugin(dialer, defaults,
		deluge.WithFetcher(download.NewFetcher(a.tempDir, nil)),
		deluge.WithHistory(a.history),
		deluge.WithNotifier(notif),
		deluge.WithTelemetry(a.telemetry),
		deluge.WithBatchTimeout(a.cfg.BatchTimeout),
		deluge.WithMaxParallel(a.cfg.MaxParallel),
	), false)

	return r
}

func (a *app) Close() {
	logger := logctx.LoggerFromContext(a.ctx)

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logger.Error("failed to close database", "err", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(a.ctx), 5*time.Second)
	defer cancel()

	if err := a.telemetry.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown telemetry", "err", err)
	}
}

// Execute runs the selected tasks once. Tasks are independent: one aborting
// does not stop the others.
func (a *app) Execute(ctx context.Context) error {
	tf, err := config.LoadTaskFile(a.tasksFile)
	if err != nil {
		return err
	}

	tasks, err := tf.Build(a.taskNames, a.opts)
	if err != nil {
		return err
	}

	logger := logctx.LoggerFromContext(ctx).With("run_id", uuid.NewString())
	ctx = logctx.WithLogger(ctx, logger)

	var errs []error

	for _, t := range tasks {
		if ctx.Err() != nil {
			break
		}

		if err := a.runner.Run(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Daemon runs the tasks every RunInterval and serves the status API until the
// context is cancelled.
func (a *app) Daemon(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start API Service

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	server := a.setupServer(ctx)

	go func() {
		logger.Info("Initializing API support", "host", a.cfg.Web.BindAddress)
		serverErrors <- server.ListenAndServe()
	}()

	// =========================================================================
	// Start Cleanup
	a.setupCleanup(ctx)

	logger.Info("waiting for the next run...",
		"tasks_file", a.tasksFile,
		"run_interval", a.cfg.RunInterval.String(),
		"retention", a.cfg.HistoryRetention.String(),
	)

	a.runOnce(ctx)

	// =========================================================================
	// Start Main Loop
	ticker := time.NewTicker(a.cfg.RunInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
			logger.Info("start shutdown")

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Web.ShutdownTimeout)
			defer cancel()

			if err := server.Shutdown(ctx); err != nil {
				logger.Error("failed to gracefully shutdown the server", "err", err)

				if err = server.Close(); err != nil {
					return fmt.Errorf("could not stop server gracefully: %w", err)
				}
			}

			return nil
		case <-ticker.C:
			a.runOnce(ctx)
		}
	}
}

func (a *app) runOnce(ctx context.Context) {
	if err := a.Execute(ctx); err != nil {
		logctx.LoggerFromContext(ctx).Error("task run failed", "err", err)
	}
}

// setupServer prepares the handlers and services to create the http rest server.
func (a *app) setupServer(ctx context.Context) *http.Server {
	handler := rest.NewStatusHandler(a.cfg.Web.Username, a.cfg.Web.Password, a.history, a.telemetry)

	r := chi.NewRouter()
	r.Use(telemetry.RequestID, a.telemetry.Middleware, telemetry.HTTPLogging)
	r.Mount("/", handler.Routes())

	return &http.Server{
		Addr:         a.cfg.Web.BindAddress,
		ReadTimeout:  a.cfg.Web.ReadTimeout,
		WriteTimeout: a.cfg.Web.WriteTimeout,
		IdleTimeout:  a.cfg.Web.IdleTimeout,
		Handler:      r,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}

func (a *app) setupCleanup(ctx context.Context) {
	logger := logctx.LoggerFromContext(ctx)

	go func() {
		cleanupTicker := time.NewTicker(a.cfg.CleanupInterval)
		defer cleanupTicker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Info("cleanup goroutine shutting down.")

				return
			case <-cleanupTicker.C:
				deleted, err := a.history.DeleteOlderThan(ctx, time.Now().Add(-a.cfg.HistoryRetention))
				if err != nil {
					logger.Error("failed to delete expired history", "err", err)
				} else if deleted > 0 {
					logger.Info("deleted expired history", "count", deleted)
				}

				// Temp files outlive a run only when the process died mid-batch.
				if _, err := cleanup.DeleteExpiredTempFiles(ctx, a.tempDir, a.cfg.CleanupInterval); err != nil {
					logger.Error("failed to delete expired temp files", "err", err)
				}
			}
		}
	}()
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/shelfd/internal/config"
	"github.com/phrazzld/shelfd/internal/platform/cover"
	"github.com/phrazzld/shelfd/internal/platform/mail"
	"github.com/phrazzld/shelfd/internal/platform/postgres"
	"github.com/phrazzld/shelfd/internal/schedule"
	"github.com/phrazzld/shelfd/internal/service"
	"github.com/phrazzld/shelfd/internal/service/auth"
	"github.com/phrazzld/shelfd/internal/task"
	"github.com/phrazzld/shelfd/internal/taskstatus"
)

// application holds the long-lived dependencies and owns their shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	library     *postgres.LibraryStore
	pool        *task.WorkerPool
	factory     *task.Factory
	scheduler   *schedule.Scheduler
	jwtService  auth.JWTService
	taskService service.TaskService
}

// newApplication wires the store, worker pool, scheduler and services. The
// pool is started but nothing is scheduled until Run.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{config: cfg, logger: logger}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	app.library = postgres.NewLibraryStore(db, reopenFunc(cfg.Database.URL), logger)

	app.pool = task.NewWorkerPool(poolConfig(cfg.Task), logger)

	app.factory = buildFactory(cfg, app.library, app.pool, logger)
	app.scheduler = schedule.New(app.pool, app.factory, logger)

	translators, err := taskstatus.NewTranslators()
	if err != nil {
		return nil, fmt.Errorf("failed to load task status translations: %w", err)
	}

	app.taskService, err = service.NewTaskService(app.pool, app.factory, app.scheduler, app.library, translators, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	app.pool.Start()
	logger.Info("application initialized",
		slog.Int("worker_count", cfg.Task.WorkerCount),
		slog.Bool("mail_enabled", app.factory.Mailer != nil),
		slog.Bool("converter_enabled", cfg.Library.ConverterPath != ""))
	return app, nil
}

func poolConfig(cfg config.TaskConfig) task.WorkerPoolConfig {
	return task.WorkerPoolConfig{
		WorkerCount:   cfg.WorkerCount,
		Retention:     cfg.Retention,
		SettleAfter:   time.Duration(cfg.SettleAfterMinutes) * time.Minute,
		SweepInterval: time.Duration(cfg.SweepIntervalSeconds) * time.Second,
		StuckTaskAge:  time.Duration(cfg.StuckTaskAgeMinutes) * time.Minute,
	}
}

// buildFactory binds the task variants to their collaborators. Without a
// mail host the e-mail tasks fail with task.ErrMailNotConfigured.
func buildFactory(
	cfg *config.Config,
	library *postgres.LibraryStore,
	submitter task.Submitter,
	logger *slog.Logger,
) *task.Factory {
	f := &task.Factory{
		Library:        library,
		Converter:      task.CommandConverter{Path: cfg.Library.ConverterPath},
		Renderer:       cover.Renderer{},
		Submitter:      submitter,
		BookPath:       cfg.Library.BookPath,
		TempDir:        cfg.Library.TempDir,
		ThumbnailDir:   cfg.Library.ThumbnailDir,
		ThumbnailWidth: cfg.Library.ThumbnailWidth,
		ExportLanguage: cfg.Library.ExportLanguage,
	}

	sender, err := mail.NewSender(cfg.Mail, logger)
	switch {
	case err == nil:
		f.Mailer = sender
	case errors.Is(err, mail.ErrNotConfigured):
		logger.Info("mail server not configured, e-mail tasks will fail")
	default:
		logger.Warn("mail server configuration rejected", slog.String("error", err.Error()))
	}

	return f
}

// Run registers the maintenance schedule, queues the startup tasks and
// serves HTTP until ctx is done.
func (app *application) Run(ctx context.Context) error {
	defer app.cleanup()

	if err := app.scheduler.Register(schedule.SettingsFromConfig(app.config.Schedule)); err != nil {
		return fmt.Errorf("failed to register maintenance schedule: %w", err)
	}
	app.scheduler.RegisterStartup(app.config.Server.AppMode)

	return app.startHTTPServer(ctx, app.setupRouter())
}

// cleanup stops scheduling, drains the pool and closes the database.
func (app *application) cleanup() {
	if app.scheduler != nil {
		app.scheduler.Stop()
	}
	if app.pool != nil {
		app.pool.Stop()
	}
	if app.library != nil {
		if err := app.library.Close(); err != nil {
			app.logger.Error("error closing database connection", slog.String("error", err.Error()))
		}
	}
	app.logger.Info("application shutdown completed")
}

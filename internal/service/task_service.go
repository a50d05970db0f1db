package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phrazzld/shelfd/internal/domain"
	"github.com/phrazzld/shelfd/internal/platform/logger"
	"github.com/phrazzld/shelfd/internal/schedule"
	"github.com/phrazzld/shelfd/internal/service/auth"
	"github.com/phrazzld/shelfd/internal/store"
	"github.com/phrazzld/shelfd/internal/task"
	"github.com/phrazzld/shelfd/internal/taskstatus"
)

// TaskPool is the part of the worker pool the service drives.
type TaskPool interface {
	Submit(user string, t task.Task, opts ...task.SubmitOption) (int64, error)
	Cancel(id int64) (bool, error)
	Entries() []task.EntrySnapshot
}

// TaskFactory builds the tasks the API can request.
type TaskFactory interface {
	Convert(user string, bookID int64, from, to, ereaderMail string) task.Task
	BackupMetadata(setDirty bool) task.Task
	GenerateCoverThumbnails(bookID int64) task.Task
	ClearCoverThumbnails(bookID int64) task.Task
	SendEmail(msg task.Email, message string) task.Task
	Upload(title string) task.Task
}

// ScheduleRegistrar owns the maintenance window.
type ScheduleRegistrar interface {
	Register(settings schedule.Settings) error
	Settings() schedule.Settings
}

// ConvertRequest asks for one stored format of a book to be converted.
type ConvertRequest struct {
	BookID      int64
	From        string
	To          string
	EreaderMail string
}

// TaskService provides the task operations exposed over HTTP.
type TaskService interface {
	// ListTasks renders the entries visible to p. Hidden entries are only
	// included for admins that ask for them.
	ListTasks(ctx context.Context, p auth.Principal, includeHidden bool, locale string) []taskstatus.Record

	// CancelTask requests cancellation of a waiting or running task. Admin only.
	CancelTask(ctx context.Context, p auth.Principal, id int64) error

	// Schedule returns the registered maintenance settings.
	Schedule(ctx context.Context) schedule.Settings

	// UpdateSchedule validates and registers new maintenance settings. Admin only.
	UpdateSchedule(ctx context.Context, p auth.Principal, settings schedule.Settings) error

	// QueueMetadataBackup marks every book for the next metadata backup. Admin only.
	QueueMetadataBackup(ctx context.Context, p auth.Principal) (int64, error)

	// RefreshThumbnails generates missing cover thumbnails. Admin only.
	RefreshThumbnails(ctx context.Context, p auth.Principal) (int64, error)

	// ClearThumbnails empties the cover thumbnail cache. Admin only.
	ClearThumbnails(ctx context.Context, p auth.Principal) (int64, error)

	// ConvertBook queues a conversion for p.
	ConvertBook(ctx context.Context, p auth.Principal, req ConvertRequest) (int64, error)

	// SendTestEmail queues a test message to the given address. Admin only.
	SendTestEmail(ctx context.Context, p auth.Principal, to string) (int64, error)

	// RecordUpload lists a finished upload in the caller's task list.
	RecordUpload(ctx context.Context, p auth.Principal, title string) (int64, error)
}

type taskServiceImpl struct {
	pool        TaskPool
	factory     TaskFactory
	scheduler   ScheduleRegistrar
	books       store.BookReader
	translators *taskstatus.Translators
	now         func() time.Time
	logger      *slog.Logger
}

var _ TaskService = (*taskServiceImpl)(nil)

// NewTaskService wires the task use cases. books is used to validate
// conversion requests before anything is queued.
func NewTaskService(
	pool TaskPool,
	factory TaskFactory,
	scheduler ScheduleRegistrar,
	books store.BookReader,
	translators *taskstatus.Translators,
	logger *slog.Logger,
) (TaskService, error) {
	if pool == nil || factory == nil || scheduler == nil || books == nil || translators == nil {
		return nil, fmt.Errorf("task service: pool, factory, scheduler, books and translators are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &taskServiceImpl{
		pool:        pool,
		factory:     factory,
		scheduler:   scheduler,
		books:       books,
		translators: translators,
		now:         time.Now,
		logger:      logger.With(slog.String("component", "task_service")),
	}, nil
}

func (s *taskServiceImpl) ListTasks(
	ctx context.Context,
	p auth.Principal,
	includeHidden bool,
	locale string,
) []taskstatus.Record {
	viewer := taskstatus.Viewer{
		Name:          p.Name,
		Admin:         p.Admin,
		IncludeHidden: includeHidden && p.Admin,
	}
	return taskstatus.Render(s.pool.Entries(), viewer, s.translators.For(locale), s.now())
}

func (s *taskServiceImpl) CancelTask(ctx context.Context, p auth.Principal, id int64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !p.Admin {
		return ErrAdminRequired
	}

	cancelled, err := s.pool.Cancel(id)
	if err != nil {
		log.Debug("task cancellation rejected", slog.Int64("task_id", id), slog.String("error", err.Error()))
		return err
	}
	if !cancelled {
		return fmt.Errorf("%w: task %d", task.ErrTaskFinished, id)
	}

	log.Info("task cancellation requested", slog.Int64("task_id", id), slog.String("by", p.Name))
	return nil
}

func (s *taskServiceImpl) Schedule(ctx context.Context) schedule.Settings {
	return s.scheduler.Settings()
}

func (s *taskServiceImpl) UpdateSchedule(ctx context.Context, p auth.Principal, settings schedule.Settings) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !p.Admin {
		return ErrAdminRequired
	}
	if err := s.scheduler.Register(settings); err != nil {
		return err
	}

	log.Info("maintenance schedule updated",
		slog.Int("start_hour", settings.StartHour),
		slog.Int("duration_minutes", settings.DurationMinutes),
		slog.String("by", p.Name))
	return nil
}

func (s *taskServiceImpl) QueueMetadataBackup(ctx context.Context, p auth.Principal) (int64, error) {
	if !p.Admin {
		return 0, ErrAdminRequired
	}
	return s.submit(ctx, p, s.factory.BackupMetadata(true))
}

func (s *taskServiceImpl) RefreshThumbnails(ctx context.Context, p auth.Principal) (int64, error) {
	if !p.Admin {
		return 0, ErrAdminRequired
	}
	return s.submit(ctx, p, s.factory.GenerateCoverThumbnails(0))
}

func (s *taskServiceImpl) ClearThumbnails(ctx context.Context, p auth.Principal) (int64, error) {
	if !p.Admin {
		return 0, ErrAdminRequired
	}
	return s.submit(ctx, p, s.factory.ClearCoverThumbnails(task.ClearAllThumbnails))
}

func (s *taskServiceImpl) ConvertBook(ctx context.Context, p auth.Principal, req ConvertRequest) (int64, error) {
	from := strings.ToUpper(strings.TrimSpace(req.From))
	to := strings.ToUpper(strings.TrimSpace(req.To))
	if from == "" || to == "" {
		return 0, fmt.Errorf("%w: source and target format are required", ErrInvalidRequest)
	}
	if from == to {
		return 0, fmt.Errorf("%w: source and target format are the same", ErrInvalidRequest)
	}

	book, err := s.books.Book(ctx, req.BookID)
	if err != nil {
		return 0, err
	}
	if _, err := book.FindFormat(from); err != nil {
		return 0, err
	}

	return s.submit(ctx, p, s.factory.Convert(p.Name, book.ID, from, to, strings.TrimSpace(req.EreaderMail)))
}

func (s *taskServiceImpl) SendTestEmail(ctx context.Context, p auth.Principal, to string) (int64, error) {
	if !p.Admin {
		return 0, ErrAdminRequired
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return 0, fmt.Errorf("%w: recipient is required", ErrInvalidRequest)
	}

	msg := task.Email{
		To:      to,
		Subject: "shelfd test e-mail",
		Text:    "This e-mail has been sent via shelfd.",
	}
	return s.submit(ctx, p, s.factory.SendEmail(msg, "Test e-mail"))
}

func (s *taskServiceImpl) RecordUpload(ctx context.Context, p auth.Principal, title string) (int64, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return 0, fmt.Errorf("%w: title is required", ErrInvalidRequest)
	}
	return s.submit(ctx, p, s.factory.Upload(title))
}

func (s *taskServiceImpl) submit(ctx context.Context, p auth.Principal, t task.Task) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	id, err := s.pool.Submit(p.Name, t)
	if err != nil {
		log.Error("failed to submit task",
			slog.String("task_kind", string(t.Kind())),
			slog.String("error", err.Error()))
		return 0, err
	}

	log.Debug("task submitted", slog.Int64("task_id", id), slog.String("task_kind", string(t.Kind())))
	return id, nil
}

// IsClientError reports whether err was caused by the request rather than
// by the server.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, schedule.ErrInvalidSettings) ||
		errors.Is(err, domain.ErrFormatNotFound) ||
		errors.Is(err, domain.ErrInvalidFormat)
}

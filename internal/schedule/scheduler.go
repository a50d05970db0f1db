package schedule

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/shelfd/internal/config"
	"github.com/phrazzld/shelfd/internal/task"
)

// ErrInvalidSettings is returned by Register for out-of-range settings.
var ErrInvalidSettings = errors.New("invalid schedule settings")

// Pool is the part of the worker pool the scheduler needs.
type Pool interface {
	Submit(user string, t task.Task, opts ...task.SubmitOption) (int64, error)
	CancelScheduled() int
}

// TaskFactory builds the maintenance tasks. *task.Factory implements it.
type TaskFactory interface {
	ReconnectDatabase() task.Task
	DeleteTempFolder() task.Task
	BackupMetadata(setDirty bool) task.Task
	ClearCoverThumbnails(bookID int64) task.Task
	GenerateCoverThumbnails(bookID int64) task.Task
	GenerateSeriesThumbnails() task.Task
}

// Settings describe the maintenance window and which tasks it runs.
type Settings struct {
	StartHour            int  `json:"start_hour" validate:"gte=0,lte=23"`
	DurationMinutes      int  `json:"duration_minutes" validate:"gte=1,lte=60"`
	Reconnect            bool `json:"reconnect"`
	MetadataBackup       bool `json:"metadata_backup"`
	GenerateBookCovers   bool `json:"generate_book_covers"`
	GenerateSeriesCovers bool `json:"generate_series_covers"`
}

// DefaultSettings is a ten minute window at 04:00 that only reconnects the
// database and clears the temp folder.
func DefaultSettings() Settings {
	return Settings{StartHour: 4, DurationMinutes: 10, Reconnect: true}
}

// SettingsFromConfig converts the schedule section of the configuration.
func SettingsFromConfig(cfg config.ScheduleConfig) Settings {
	return Settings{
		StartHour:            cfg.StartHour,
		DurationMinutes:      cfg.DurationMinutes,
		Reconnect:            cfg.Reconnect,
		MetadataBackup:       cfg.MetadataBackup,
		GenerateBookCovers:   cfg.GenerateBookCovers,
		GenerateSeriesCovers: cfg.GenerateSeriesCovers,
	}
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// Scheduler owns the daily start and end triggers. Only the triggers of the
// latest registration are ever active.
type Scheduler struct {
	pool     Pool
	factory  TaskFactory
	logger   *slog.Logger
	clock    Clock
	validate *validator.Validate

	mu       sync.Mutex
	settings Settings
	triggers []Trigger
	stop     chan struct{}

	wg sync.WaitGroup
}

// New creates a scheduler. Nothing fires until Register is called.
func New(pool Pool, factory TaskFactory, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		pool:     pool,
		factory:  factory,
		logger:   logger.With("component", "scheduler"),
		clock:    realClock{},
		validate: validator.New(),
		settings: DefaultSettings(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register replaces the current schedule. Outstanding scheduled cancellable
// tasks are cancelled and existing triggers removed before the start and end
// triggers for settings are installed. When the new window is already open
// the batch is submitted right away.
func (s *Scheduler) Register(settings Settings) error {
	if err := s.validate.Struct(settings); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	s.mu.Lock()
	s.unregisterLocked()
	cancelled := s.pool.CancelScheduled()

	now := s.clock.Now()
	end := EndTime(settings.StartHour, settings.DurationMinutes, now)
	startTrigger := Trigger{Name: "start scheduled tasks", Hour: settings.StartHour}
	endTrigger := Trigger{Name: "end scheduled tasks", Hour: end.Hour(), Minute: end.Minute()}

	done := make(chan struct{})
	s.stop = done
	s.settings = settings
	s.triggers = []Trigger{startTrigger, endTrigger}

	s.wg.Add(2)
	go s.runTrigger(done, startTrigger, func() { s.submitBatch(done, settings, true) })
	go s.runTrigger(done, endTrigger, func() { s.endScheduledTasks(done) })

	active := WindowActive(settings.StartHour, settings.DurationMinutes, now)
	s.mu.Unlock()

	s.logger.Info("scheduled tasks registered",
		"start_hour", settings.StartHour,
		"duration_minutes", settings.DurationMinutes,
		"end", fmt.Sprintf("%02d:%02d", end.Hour(), end.Minute()),
		"cancelled", cancelled,
		"window_active", active)

	if active {
		s.submitBatch(done, settings, true)
	}
	return nil
}

// RegisterStartup submits the tasks that run once at boot. In development
// and test mode the whole batch (without a database reconnect) runs unless
// the window is open, in which case Register has already submitted it.
// Otherwise only the temp folder is cleared.
func (s *Scheduler) RegisterStartup(appMode string) {
	settings := s.Settings()
	now := s.clock.Now()

	devMode := appMode == "development" || appMode == "test"
	if devMode && !WindowActive(settings.StartHour, settings.DurationMinutes, now) {
		s.submitBatch(nil, settings, false)
		return
	}
	s.submit(s.factory.DeleteTempFolder(), true)
}

// UnregisterAll removes every trigger. Tasks already submitted keep running.
func (s *Scheduler) UnregisterAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unregisterLocked()
}

// Stop removes all triggers and waits for their goroutines to exit.
func (s *Scheduler) Stop() {
	s.UnregisterAll()
	s.wg.Wait()
}

// Settings returns the settings of the latest registration.
func (s *Scheduler) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Triggers returns the active triggers.
func (s *Scheduler) Triggers() []Trigger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Trigger(nil), s.triggers...)
}

func (s *Scheduler) unregisterLocked() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	s.triggers = nil
}

func (s *Scheduler) runTrigger(done <-chan struct{}, tr Trigger, fire func()) {
	defer s.wg.Done()

	for {
		now := s.clock.Now()
		ch, stop := s.clock.Timer(tr.Next(now).Sub(now))

		select {
		case <-done:
			stop()
			return
		case <-ch:
		}

		// unregistered while the timer fired
		select {
		case <-done:
			return
		default:
		}

		s.logger.Debug("trigger fired", "trigger", tr.Name)
		fire()
	}
}

type batchItem struct {
	task   task.Task
	hidden bool
}

// batch lists the maintenance tasks in submission order.
func (s *Scheduler) batch(settings Settings, reconnect bool) []batchItem {
	var items []batchItem
	if reconnect && settings.Reconnect {
		items = append(items, batchItem{task: s.factory.ReconnectDatabase()})
	}
	items = append(items, batchItem{task: s.factory.DeleteTempFolder(), hidden: true})
	if settings.MetadataBackup {
		items = append(items, batchItem{task: s.factory.BackupMetadata(false)})
	}
	if settings.GenerateBookCovers {
		items = append(items,
			batchItem{task: s.factory.ClearCoverThumbnails(0), hidden: true},
			batchItem{task: s.factory.GenerateCoverThumbnails(0)},
		)
	}
	if settings.GenerateSeriesCovers {
		items = append(items, batchItem{task: s.factory.GenerateSeriesThumbnails()})
	}
	return items
}

// submitBatch submits the batch unless done, the registration it belongs to,
// has been superseded. A nil done never is. The check and the submissions
// happen under s.mu, so a concurrent Register either sees these tasks in its
// sweep or stops them from being submitted.
func (s *Scheduler) submitBatch(done <-chan struct{}, settings Settings, reconnect bool) {
	items := s.batch(settings, reconnect)

	s.mu.Lock()
	if superseded(done) {
		s.mu.Unlock()
		s.logger.Debug("skipping batch of a replaced schedule")
		return
	}
	for _, item := range items {
		s.submit(item.task, item.hidden)
	}
	s.mu.Unlock()

	s.logger.Info("scheduled tasks submitted", "count", len(items))
}

func (s *Scheduler) submit(t task.Task, hidden bool) {
	opts := []task.SubmitOption{task.Scheduled()}
	if hidden {
		opts = append(opts, task.Hidden())
	}
	if _, err := s.pool.Submit("", t, opts...); err != nil {
		s.logger.Error("failed to submit scheduled task", "task", t.Name(), "error", err)
	}
}

func (s *Scheduler) endScheduledTasks(done <-chan struct{}) {
	s.mu.Lock()
	if superseded(done) {
		s.mu.Unlock()
		return
	}
	n := s.pool.CancelScheduled()
	s.mu.Unlock()

	s.logger.Info("maintenance window ended", "cancelled", n)
}

func superseded(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
		return false
	}
}

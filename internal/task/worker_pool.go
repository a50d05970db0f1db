package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/phrazzld/shelfd/internal/platform/logger"
	"github.com/phrazzld/shelfd/internal/redact"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// WorkerPool runs submitted tasks with at most WorkerCount running at a time.
// Waiting entries are started strictly in submission order. Finished entries
// stay listed until retention evicts them.
type WorkerPool struct {
	// mu guards everything below up to wake
	mu      sync.Mutex
	entries []*entry // ordered by id
	waiting []*entry // FIFO of entries in StatusWaiting
	running int
	nextID  int64
	started bool
	stopped bool

	// wake signals the coordination loop; buffered so signalling never blocks
	wake chan struct{}

	workerCount   int
	retention     int
	settleAfter   time.Duration
	sweepInterval time.Duration
	stuckTaskAge  time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	loopWG sync.WaitGroup
	taskWG sync.WaitGroup

	now     func() time.Time
	logger  *slog.Logger
	meter   metric.Meter
	metrics *poolMetrics
	tracer  trace.Tracer

	// errorHandler is called after a task fails; if nil, errors are only logged
	errorHandler func(EntrySnapshot, error)
}

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many tasks may run at once.
	// If zero or negative, defaults to 1
	WorkerCount int

	// Retention caps the number of listed entries. Only finished entries are
	// evicted, oldest first.
	Retention int

	// SettleAfter is how long a finished or failed entry keeps its status
	// before it settles to Ended.
	SettleAfter time.Duration

	// SweepInterval is how often settle, retention and stuck checks run.
	SweepInterval time.Duration

	// StuckTaskAge is how long a task may run before it is reported as stuck.
	// Zero disables the check.
	StuckTaskAge time.Duration
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount:   1,
		Retention:     20,
		SettleAfter:   10 * time.Minute,
		SweepInterval: 30 * time.Second,
		StuckTaskAge:  2 * time.Hour,
	}
}

// PoolOption customizes a WorkerPool.
type PoolOption func(*WorkerPool)

// WithClock replaces time.Now for entry timestamps and settling.
func WithClock(now func() time.Time) PoolOption {
	return func(p *WorkerPool) {
		p.now = now
	}
}

// WithMeter records pool metrics on m instead of the global meter provider.
func WithMeter(m metric.Meter) PoolOption {
	return func(p *WorkerPool) {
		p.meter = m
	}
}

// WithTracer records one span per task run on t instead of the global tracer
// provider.
func WithTracer(t trace.Tracer) PoolOption {
	return func(p *WorkerPool) {
		p.tracer = t
	}
}

// SubmitOption customizes a single submission.
type SubmitOption func(*submitOptions)

type submitOptions struct {
	hidden    bool
	scheduled bool
}

// Hidden keeps the entry out of default status listings.
func Hidden() SubmitOption {
	return func(o *submitOptions) { o.hidden = true }
}

// Scheduled marks the entry as submitted by the maintenance scheduler, which
// makes it subject to the end-of-window sweep.
func Scheduled() SubmitOption {
	return func(o *submitOptions) { o.scheduled = true }
}

// NewWorkerPool creates a new worker pool with the specified configuration
func NewWorkerPool(config WorkerPoolConfig, logger *slog.Logger, opts ...PoolOption) *WorkerPool {
	defaults := DefaultWorkerPoolConfig()

	// Apply defaults for invalid config values
	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}
	if config.Retention <= 0 {
		config.Retention = defaults.Retention
	}
	if config.SettleAfter <= 0 {
		config.SettleAfter = defaults.SettleAfter
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = defaults.SweepInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &WorkerPool{
		wake:          make(chan struct{}, 1),
		workerCount:   workerCount,
		retention:     config.Retention,
		settleAfter:   config.SettleAfter,
		sweepInterval: config.SweepInterval,
		stuckTaskAge:  config.StuckTaskAge,
		ctx:           ctx,
		cancel:        cancel,
		now:           time.Now,
		logger:        logger.With("component", "worker_pool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.metrics = newPoolMetrics(p.meter, p.logger)
	if p.tracer == nil {
		p.tracer = otel.Tracer(meterName)
	}

	return p
}

// SetErrorHandler allows setting a custom error handler for task execution failures
func (p *WorkerPool) SetErrorHandler(handler func(EntrySnapshot, error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errorHandler = handler
}

// Start launches the coordination loop. Entries submitted before Start wait
// until it is called. Calling Start more than once has no effect.
func (p *WorkerPool) Start() {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.logger.Info("starting worker pool", "worker_count", p.workerCount, "retention", p.retention)

	p.loopWG.Add(1)
	go p.loop()
}

// Stop cancels running cancellable tasks and waits for every running task to
// return. Tasks that are not cancellable are waited for until they finish on
// their own. Waiting cancellable entries become Cancelled; waiting entries
// that are not cancellable stay Waiting and never run.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	now := p.now()
	for _, e := range p.waiting {
		if e.status == StatusWaiting && e.task.Cancellable() {
			e.status = StatusCancelled
			e.ended = now
			p.metrics.finished(e.task.Kind(), StatusCancelled)
		}
	}
	p.waiting = nil
	p.mu.Unlock()

	p.logger.Info("stopping worker pool")
	p.cancel()
	p.loopWG.Wait()
	p.taskWG.Wait()
	p.logger.Info("worker pool stopped")
}

// Submit queues t and returns its entry id. It never blocks on running work.
// An empty user marks a system task.
func (p *WorkerPool) Submit(user string, t Task, opts ...SubmitOption) (int64, error) {
	if t == nil {
		return 0, fmt.Errorf("%w: task is nil", ErrInvalidTask)
	}

	var so submitOptions
	for _, opt := range opts {
		opt(&so)
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return 0, ErrPoolStopped
	}

	p.nextID++
	now := p.now()
	e := &entry{
		id:        p.nextID,
		user:      user,
		hidden:    so.hidden,
		scheduled: so.scheduled,
		submitted: now,
		task:      t,
		status:    StatusWaiting,
		message:   t.Message(),
	}

	marker, isMarker := t.(Marker)
	done := isMarker && marker.AlreadyDone()
	if done {
		e.status = StatusFinishSuccess
		e.progress = 1
		e.started = now
		e.ended = now
	} else {
		p.waiting = append(p.waiting, e)
	}
	p.entries = append(p.entries, e)
	p.evictLocked()
	id := e.id
	p.mu.Unlock()

	p.metrics.submitted(t.Kind())
	if done {
		p.metrics.finished(t.Kind(), StatusFinishSuccess)
	}

	p.logger.Debug("task submitted",
		"task_id", id,
		"task_kind", t.Kind(),
		"user", user,
		"hidden", so.hidden,
		"scheduled", so.scheduled)

	p.signal()
	return id, nil
}

// Cancel requests cancellation of the entry with the given id.
//
// A waiting entry becomes Cancelled immediately and never runs. For a running
// entry the task context is cancelled and true is returned; the entry turns
// Cancelled once the task returns. Cancelling a task that is not cancellable
// returns ErrNotCancellable, and cancelling a finished entry returns
// ErrTaskFinished.
func (p *WorkerPool) Cancel(id int64) (bool, error) {
	p.mu.Lock()
	e := p.findLocked(id)
	if e == nil {
		p.mu.Unlock()
		return false, fmt.Errorf("%w: id %d", ErrTaskNotFound, id)
	}
	if e.status.Terminal() {
		p.mu.Unlock()
		return false, fmt.Errorf("%w: id %d is %s", ErrTaskFinished, id, e.status)
	}
	if !e.task.Cancellable() {
		p.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrNotCancellable, e.task.Name())
	}
	p.cancelLocked(e)
	p.mu.Unlock()

	p.logger.Info("task cancellation requested", "task_id", id)
	p.signal()
	return true, nil
}

// CancelScheduled cancels every waiting or running entry that was submitted
// by the scheduler and is cancellable. It returns the number of entries
// affected.
func (p *WorkerPool) CancelScheduled() int {
	p.mu.Lock()
	count := 0
	for _, e := range p.entries {
		if !e.scheduled || !e.task.Cancellable() || e.status.Terminal() {
			continue
		}
		if e.status == StatusStarted && e.cancelRequested {
			continue
		}
		p.cancelLocked(e)
		count++
	}
	p.mu.Unlock()

	if count > 0 {
		p.logger.Info("cancelled scheduled tasks", "count", count)
		p.signal()
	}
	return count
}

// Entries returns a snapshot of all listed entries ordered by id.
func (p *WorkerPool) Entries() []EntrySnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]EntrySnapshot, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e.snapshot())
	}
	return out
}

// Snapshot returns the entry with the given id.
func (p *WorkerPool) Snapshot(id int64) (EntrySnapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e := p.findLocked(id); e != nil {
		return e.snapshot(), true
	}
	return EntrySnapshot{}, false
}

// cancelLocked assumes e is cancellable and not terminal.
func (p *WorkerPool) cancelLocked(e *entry) {
	switch e.status {
	case StatusWaiting:
		e.status = StatusCancelled
		e.ended = p.now()
		p.removeWaitingLocked(e)
		p.metrics.finished(e.task.Kind(), StatusCancelled)
	case StatusStarted:
		e.cancelRequested = true
		if e.cancel != nil {
			e.cancel()
		}
	}
}

func (p *WorkerPool) findLocked(id int64) *entry {
	for _, e := range p.entries {
		if e.id == id {
			return e
		}
	}
	return nil
}

func (p *WorkerPool) removeWaitingLocked(target *entry) {
	for i, e := range p.waiting {
		if e == target {
			p.waiting = append(p.waiting[:i], p.waiting[i+1:]...)
			return
		}
	}
}

func (p *WorkerPool) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// loop promotes waiting entries and runs periodic maintenance until Stop.
func (p *WorkerPool) loop() {
	defer p.loopWG.Done()

	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()

	for {
		p.dispatch()

		select {
		case <-p.ctx.Done():
			p.logger.Debug("coordination loop stopping")
			return
		case <-p.wake:
		case <-ticker.C:
			p.maintain()
		}
	}
}

// dispatch starts waiting entries in FIFO order while slots are free.
func (p *WorkerPool) dispatch() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}

	for p.running < p.workerCount && len(p.waiting) > 0 {
		e := p.waiting[0]
		p.waiting = p.waiting[1:]
		if e.status != StatusWaiting {
			continue
		}

		base := p.ctx
		if !e.task.Cancellable() {
			base = context.WithoutCancel(p.ctx)
		}
		ctx, cancel := context.WithCancel(base)

		e.status = StatusStarted
		e.started = p.now()
		e.cancel = cancel
		p.running++
		p.metrics.runningDelta(e.task.Kind(), 1)

		p.taskWG.Add(1)
		go p.run(ctx, e)
	}
}

func (p *WorkerPool) run(ctx context.Context, e *entry) {
	defer p.taskWG.Done()

	log := p.logger.With(
		"task_id", e.id,
		"task_kind", e.task.Kind(),
		"user", e.user,
	)
	ctx = logger.WithLogger(ctx, log)

	ctx, span := p.tracer.Start(ctx, "task."+string(e.task.Kind()),
		trace.WithAttributes(
			attribute.Int64("task.id", e.id),
			attribute.String("task.kind", string(e.task.Kind())),
			attribute.Bool("task.scheduled", e.scheduled),
		))
	defer span.End()

	log.Info("task started")

	err := p.execute(ctx, e, log)
	snap, handler := p.finish(e, err)

	span.SetAttributes(attribute.String("task.status", snap.Status.String()))
	if snap.Status == StatusFail {
		span.RecordError(err)
		span.SetStatus(codes.Error, snap.Message)
	}

	switch snap.Status {
	case StatusFail:
		log.Error("task failed", redact.ErrorAttr(err), "runtime", snap.Runtime(snap.EndTime))
		if handler != nil {
			handler(snap, err)
		}
	case StatusCancelled:
		log.Info("task cancelled", "runtime", snap.Runtime(snap.EndTime))
	default:
		log.Info("task finished", "runtime", snap.Runtime(snap.EndTime))
	}

	p.signal()
}

// execute runs the task body, converting a panic into an error.
func (p *WorkerPool) execute(ctx context.Context, e *entry, log *slog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("recovered from panic in task", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()

	return e.task.Run(ctx, &reporter{pool: p, entry: e})
}

// finish records the outcome of a task run and frees its slot.
func (p *WorkerPool) finish(e *entry, err error) (EntrySnapshot, func(EntrySnapshot, error)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
	}
	p.running--
	p.metrics.runningDelta(e.task.Kind(), -1)
	e.ended = p.now()

	switch {
	case e.cancelRequested:
		e.status = StatusCancelled
	case err != nil && errors.Is(err, context.Canceled) && p.ctx.Err() != nil:
		// pool shutdown interrupted the task
		e.status = StatusCancelled
	case err != nil:
		e.status = StatusFail
		e.message = err.Error()
	default:
		e.status = StatusFinishSuccess
		e.progress = 1
	}
	p.metrics.finished(e.task.Kind(), e.status)
	p.evictLocked()

	return e.snapshot(), p.errorHandler
}

// maintain settles old finished entries, applies retention and reports tasks
// running longer than the stuck threshold.
func (p *WorkerPool) maintain() {
	p.mu.Lock()
	now := p.now()
	var stuck []EntrySnapshot
	settled := 0
	for _, e := range p.entries {
		switch e.status {
		case StatusFinishSuccess, StatusFail:
			if now.Sub(e.ended) >= p.settleAfter {
				e.status = StatusEnded
				settled++
			}
		case StatusStarted:
			if p.stuckTaskAge > 0 && now.Sub(e.started) > p.stuckTaskAge {
				stuck = append(stuck, e.snapshot())
			}
		}
	}
	evicted := p.evictLocked()
	p.mu.Unlock()

	if settled > 0 || evicted > 0 {
		p.logger.Debug("task list maintenance", "settled", settled, "evicted", evicted)
	}
	for _, s := range stuck {
		p.logger.Warn("task running longer than expected",
			"task_id", s.ID,
			"task_kind", s.Kind,
			"running_for", s.Runtime(now).String())
	}
}

// evictLocked drops the oldest terminal entries while the list exceeds the
// retention cap. Waiting and started entries are never evicted.
func (p *WorkerPool) evictLocked() int {
	excess := len(p.entries) - p.retention
	if excess <= 0 {
		return 0
	}

	kept := p.entries[:0]
	evicted := 0
	for _, e := range p.entries {
		if evicted < excess && e.status.Terminal() {
			evicted++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(p.entries); i++ {
		p.entries[i] = nil
	}
	p.entries = kept
	return evicted
}

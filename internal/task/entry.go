package task

import (
	"context"
	"time"
)

// entry is the pool-owned record of one submission. All fields are guarded by
// the pool mutex.
type entry struct {
	id        int64
	user      string
	hidden    bool
	scheduled bool
	submitted time.Time
	task      Task

	status   Status
	message  string
	progress float64
	started  time.Time
	ended    time.Time

	cancelRequested bool
	cancel          context.CancelFunc
}

func (e *entry) snapshot() EntrySnapshot {
	return EntrySnapshot{
		ID:          e.id,
		User:        e.user,
		Hidden:      e.hidden,
		Scheduled:   e.scheduled,
		Submitted:   e.submitted,
		Kind:        e.task.Kind(),
		Name:        e.task.Name(),
		Cancellable: e.task.Cancellable(),
		Status:      e.status,
		Message:     e.message,
		Progress:    e.progress,
		StartTime:   e.started,
		EndTime:     e.ended,
	}
}

// EntrySnapshot is an immutable copy of a queue entry.
type EntrySnapshot struct {
	ID          int64
	User        string // empty for system tasks
	Hidden      bool
	Scheduled   bool
	Submitted   time.Time
	Kind        Kind
	Name        string
	Cancellable bool
	Status      Status
	Message     string
	Progress    float64
	StartTime   time.Time
	EndTime     time.Time
}

// Runtime returns how long the task ran, or has been running as of now.
// It is zero for entries that never started.
func (s EntrySnapshot) Runtime(now time.Time) time.Duration {
	if s.StartTime.IsZero() {
		return 0
	}
	if !s.EndTime.IsZero() {
		return s.EndTime.Sub(s.StartTime)
	}
	return now.Sub(s.StartTime)
}

// SystemTask reports whether the entry was submitted without a user.
func (s EntrySnapshot) SystemTask() bool {
	return s.User == ""
}

// reporter implements Progress for a running entry.
type reporter struct {
	pool  *WorkerPool
	entry *entry
}

func (r *reporter) SetProgress(fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	r.pool.mu.Lock()
	defer r.pool.mu.Unlock()
	if r.entry.status == StatusStarted && fraction > r.entry.progress {
		r.entry.progress = fraction
	}
}

func (r *reporter) SetMessage(msg string) {
	r.pool.mu.Lock()
	defer r.pool.mu.Unlock()
	if r.entry.status == StatusStarted {
		r.entry.message = msg
	}
}

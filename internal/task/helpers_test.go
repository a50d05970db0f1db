package task

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// gate is a task body that blocks until released or, when the context is
// cancelled, returns the context error.
type gate struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) task(name string, cancellable bool) *MockTask {
	t := NewMockTask(name, cancellable)
	t.RunFn = func(ctx context.Context, p Progress) error {
		g.once.Do(func() { close(g.started) })
		select {
		case <-g.release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return t
}

func (g *gate) open() { close(g.release) }

func (g *gate) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-g.started:
	case <-time.After(waitTimeout):
		t.Fatal("task never started")
	}
}

func startPool(t *testing.T, cfg WorkerPoolConfig, opts ...PoolOption) *WorkerPool {
	t.Helper()
	pool := NewWorkerPool(cfg, setupTestLogger(), opts...)
	pool.Start()
	t.Cleanup(pool.Stop)
	return pool
}

func submit(t *testing.T, pool *WorkerPool, user string, task Task, opts ...SubmitOption) int64 {
	t.Helper()
	id, err := pool.Submit(user, task, opts...)
	require.NoError(t, err)
	return id
}

func waitForStatus(t *testing.T, pool *WorkerPool, id int64, want Status) EntrySnapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		s, ok := pool.Snapshot(id)
		return ok && s.Status == want
	}, waitTimeout, 5*time.Millisecond, "task %d never reached %s", id, want)

	snap, _ := pool.Snapshot(id)
	return snap
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

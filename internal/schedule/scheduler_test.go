package schedule

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/shelfd/internal/config"
	"github.com/phrazzld/shelfd/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTimer struct {
	at   time.Time
	ch   chan time.Time
	done bool
}

// fakeClock fires timers only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock(hour, minute int) *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 10, hour, minute, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Timer(d time.Duration) (<-chan time.Time, func() bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{at: c.now.Add(d), ch: make(chan time.Time, 1)}
	c.timers = append(c.timers, t)
	return t.ch, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if t.done {
			return false
		}
		t.done = true
		return true
	}
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
	for _, t := range c.timers {
		if !t.done && !t.at.After(c.now) {
			t.done = true
			t.ch <- c.now
		}
	}
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done {
			n++
		}
	}
	return n
}

func (c *fakeClock) waitPending(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return c.pending() == n }, waitTimeout, 2*time.Millisecond,
		"expected %d armed timers", n)
}

// fakeFactory mirrors the real variants' names and cancellability. Cancellable
// tasks block until cancelled, the others until release is closed.
type fakeFactory struct {
	release chan struct{}
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{release: make(chan struct{})}
}

func (f *fakeFactory) make(name string, kind task.Kind, cancellable, blocks bool) task.Task {
	t := task.NewMockTask(name, cancellable)
	t.TaskKind = kind
	if blocks {
		t.RunFn = func(ctx context.Context, p task.Progress) error {
			if cancellable {
				<-ctx.Done()
				return ctx.Err()
			}
			<-f.release
			return nil
		}
	}
	return t
}

func (f *fakeFactory) ReconnectDatabase() task.Task {
	return f.make("Reconnect Database", task.KindReconnectDatabase, false, true)
}

func (f *fakeFactory) DeleteTempFolder() task.Task {
	return f.make("Delete Temp Folder", task.KindDeleteTempFolder, false, false)
}

func (f *fakeFactory) BackupMetadata(bool) task.Task {
	return f.make("Metadata backup", task.KindMetadataBackup, true, true)
}

func (f *fakeFactory) ClearCoverThumbnails(int64) task.Task {
	return f.make("Clear Cover Thumbnails", task.KindClearThumbnailCache, false, false)
}

func (f *fakeFactory) GenerateCoverThumbnails(int64) task.Task {
	return f.make("Cover Thumbnails", task.KindCoverThumbnails, true, true)
}

func (f *fakeFactory) GenerateSeriesThumbnails() task.Task {
	return f.make("Series Thumbnails", task.KindSeriesThumbnails, true, true)
}

type submitted struct {
	Name   string
	Hidden bool
}

func entriesOf(pool *task.WorkerPool) []submitted {
	var out []submitted
	for _, e := range pool.Entries() {
		out = append(out, submitted{Name: e.Name, Hidden: e.Hidden})
	}
	return out
}

func TestWindowHelpers(t *testing.T) {
	day := func(h, m int) time.Time { return time.Date(2024, 5, 10, h, m, 0, 0, time.UTC) }

	tests := []struct {
		name     string
		start    int
		duration int
		now      time.Time
		active   bool
	}{
		{"inside", 4, 10, day(4, 5), true},
		{"at start is not inside", 4, 10, day(4, 0), false},
		{"at end is not inside", 4, 10, day(4, 10), false},
		{"before", 4, 10, day(3, 59), false},
		{"after", 4, 10, day(5, 0), false},
		{"full hour", 23, 60, day(23, 59), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.active, WindowActive(tt.start, tt.duration, tt.now))
		})
	}

	assert.Equal(t, day(4, 10), EndTime(4, 10, day(12, 0)))
	assert.Equal(t, time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC), EndTime(23, 60, day(1, 0)))
}

func TestTriggerNext(t *testing.T) {
	tr := Trigger{Hour: 4, Minute: 10}

	assert.Equal(t, time.Date(2024, 5, 10, 4, 10, 0, 0, time.UTC),
		tr.Next(time.Date(2024, 5, 10, 3, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2024, 5, 11, 4, 10, 0, 0, time.UTC),
		tr.Next(time.Date(2024, 5, 10, 4, 10, 0, 0, time.UTC)), "firing time itself rolls to tomorrow")
	assert.Equal(t, time.Date(2024, 5, 11, 4, 10, 0, 0, time.UTC),
		tr.Next(time.Date(2024, 5, 10, 22, 0, 0, 0, time.UTC)))
}

func TestRegister_InvalidSettings(t *testing.T) {
	pool := task.NewWorkerPool(task.DefaultWorkerPoolConfig(), testLogger())
	s := New(pool, newFakeFactory(), testLogger(), WithClock(newFakeClock(12, 0)))

	for _, settings := range []Settings{
		{StartHour: 24, DurationMinutes: 10},
		{StartHour: -1, DurationMinutes: 10},
		{StartHour: 4, DurationMinutes: 0},
		{StartHour: 4, DurationMinutes: 61},
	} {
		err := s.Register(settings)
		assert.ErrorIs(t, err, ErrInvalidSettings, "settings %+v", settings)
	}
	assert.Empty(t, s.Triggers())
}

func TestRegister_BatchComposition(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		want     []submitted
	}{
		{
			name:     "defaults",
			settings: DefaultSettings(),
			want: []submitted{
				{"Reconnect Database", false},
				{"Delete Temp Folder", true},
			},
		},
		{
			name: "everything",
			settings: Settings{
				StartHour: 4, DurationMinutes: 10, Reconnect: true, MetadataBackup: true,
				GenerateBookCovers: true, GenerateSeriesCovers: true,
			},
			want: []submitted{
				{"Reconnect Database", false},
				{"Delete Temp Folder", true},
				{"Metadata backup", false},
				{"Clear Cover Thumbnails", true},
				{"Cover Thumbnails", false},
				{"Series Thumbnails", false},
			},
		},
		{
			name:     "no reconnect",
			settings: Settings{StartHour: 4, DurationMinutes: 10, GenerateSeriesCovers: true},
			want: []submitted{
				{"Delete Temp Folder", true},
				{"Series Thumbnails", false},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := task.NewWorkerPool(task.DefaultWorkerPoolConfig(), testLogger())
			s := New(pool, newFakeFactory(), testLogger(), WithClock(newFakeClock(4, 5)))
			t.Cleanup(s.Stop)

			require.NoError(t, s.Register(tt.settings))

			assert.Equal(t, tt.want, entriesOf(pool))
			for _, e := range pool.Entries() {
				assert.True(t, e.Scheduled)
				assert.True(t, e.SystemTask())
			}
		})
	}
}

func TestRegister_OutsideWindow(t *testing.T) {
	pool := task.NewWorkerPool(task.DefaultWorkerPoolConfig(), testLogger())
	clock := newFakeClock(12, 0)
	s := New(pool, newFakeFactory(), testLogger(), WithClock(clock))
	t.Cleanup(s.Stop)

	require.NoError(t, s.Register(Settings{StartHour: 23, DurationMinutes: 45}))

	assert.Empty(t, pool.Entries())
	assert.Equal(t, []Trigger{
		{Name: "start scheduled tasks", Hour: 23, Minute: 0},
		{Name: "end scheduled tasks", Hour: 23, Minute: 45},
	}, s.Triggers())
	clock.waitPending(t, 2)
}

func TestRegister_ReplacesPreviousRegistration(t *testing.T) {
	pool := task.NewWorkerPool(task.DefaultWorkerPoolConfig(), testLogger())
	clock := newFakeClock(4, 5)
	s := New(pool, newFakeFactory(), testLogger(), WithClock(clock))
	t.Cleanup(s.Stop)

	require.NoError(t, s.Register(Settings{StartHour: 4, DurationMinutes: 30, Reconnect: true, MetadataBackup: true}))
	clock.waitPending(t, 2)
	before := pool.Entries()
	require.Len(t, before, 3)

	require.NoError(t, s.Register(Settings{StartHour: 22, DurationMinutes: 15}))
	clock.waitPending(t, 2)

	assert.Equal(t, []Trigger{
		{Name: "start scheduled tasks", Hour: 22, Minute: 0},
		{Name: "end scheduled tasks", Hour: 22, Minute: 15},
	}, s.Triggers())
	assert.Equal(t, 22, s.Settings().StartHour)

	statuses := map[string]task.Status{}
	for _, e := range pool.Entries() {
		statuses[e.Name] = e.Status
	}
	assert.Equal(t, task.StatusCancelled, statuses["Metadata backup"])
	assert.Equal(t, task.StatusWaiting, statuses["Reconnect Database"])
	assert.Equal(t, task.StatusWaiting, statuses["Delete Temp Folder"])
}

func TestReplacedRegistrationCannotSubmit(t *testing.T) {
	pool := task.NewWorkerPool(task.DefaultWorkerPoolConfig(), testLogger())
	clock := newFakeClock(12, 5)
	s := New(pool, newFakeFactory(), testLogger(), WithClock(clock))
	t.Cleanup(s.Stop)

	first := Settings{StartHour: 23, DurationMinutes: 30, MetadataBackup: true}
	require.NoError(t, s.Register(first))
	s.mu.Lock()
	stale := s.stop
	s.mu.Unlock()

	require.NoError(t, s.Register(Settings{StartHour: 22, DurationMinutes: 15}))

	// a start trigger of the first registration that fired just before the
	// second Register closed its channel
	s.submitBatch(stale, first, true)
	assert.Empty(t, pool.Entries())

	require.NoError(t, s.Register(Settings{StartHour: 12, DurationMinutes: 30, MetadataBackup: true}))
	require.Len(t, pool.Entries(), 2)

	s.endScheduledTasks(stale)
	for _, e := range pool.Entries() {
		assert.Equal(t, task.StatusWaiting, e.Status, "%s was swept by a replaced end trigger", e.Name)
	}
}

func TestTriggers_StartAndEndOfWindow(t *testing.T) {
	pool := task.NewWorkerPool(task.WorkerPoolConfig{WorkerCount: 3}, testLogger())
	pool.Start()
	t.Cleanup(pool.Stop)

	factory := newFakeFactory()
	clock := newFakeClock(3, 59)
	s := New(pool, factory, testLogger(), WithClock(clock))
	t.Cleanup(s.Stop)

	require.NoError(t, s.Register(Settings{StartHour: 4, DurationMinutes: 10, Reconnect: true, MetadataBackup: true}))
	clock.waitPending(t, 2)
	assert.Empty(t, pool.Entries())

	clock.Advance(time.Minute)

	var reconnect, backup int64
	require.Eventually(t, func() bool {
		started := 0
		for _, e := range pool.Entries() {
			if e.Status != task.StatusStarted {
				continue
			}
			started++
			switch e.Kind {
			case task.KindReconnectDatabase:
				reconnect = e.ID
			case task.KindMetadataBackup:
				backup = e.ID
			}
		}
		return started == 2
	}, waitTimeout, 5*time.Millisecond, "start trigger should launch the batch")

	// start trigger re-armed for tomorrow, end trigger still pending
	clock.waitPending(t, 2)

	clock.Advance(10 * time.Minute)

	require.Eventually(t, func() bool {
		snap, _ := pool.Snapshot(backup)
		return snap.Status == task.StatusCancelled
	}, waitTimeout, 5*time.Millisecond, "end trigger should cancel the backup")

	snap, _ := pool.Snapshot(reconnect)
	assert.Equal(t, task.StatusStarted, snap.Status, "non-cancellable task is left running")

	close(factory.release)
	require.Eventually(t, func() bool {
		snap, _ := pool.Snapshot(reconnect)
		return snap.Status == task.StatusFinishSuccess
	}, waitTimeout, 5*time.Millisecond)

	clock.waitPending(t, 2)
}

func TestRegisterStartup(t *testing.T) {
	everything := Settings{
		StartHour: 4, DurationMinutes: 10, Reconnect: true, MetadataBackup: true,
		GenerateBookCovers: true, GenerateSeriesCovers: true,
	}

	t.Run("development outside window runs batch without reconnect", func(t *testing.T) {
		pool := task.NewWorkerPool(task.DefaultWorkerPoolConfig(), testLogger())
		s := New(pool, newFakeFactory(), testLogger(), WithClock(newFakeClock(12, 0)))
		t.Cleanup(s.Stop)
		require.NoError(t, s.Register(everything))

		s.RegisterStartup("development")

		assert.Equal(t, []submitted{
			{"Delete Temp Folder", true},
			{"Metadata backup", false},
			{"Clear Cover Thumbnails", true},
			{"Cover Thumbnails", false},
			{"Series Thumbnails", false},
		}, entriesOf(pool))
	})

	t.Run("development inside window only clears temp", func(t *testing.T) {
		pool := task.NewWorkerPool(task.DefaultWorkerPoolConfig(), testLogger())
		s := New(pool, newFakeFactory(), testLogger(), WithClock(newFakeClock(4, 5)))
		t.Cleanup(s.Stop)
		require.NoError(t, s.Register(everything))
		registered := len(pool.Entries())

		s.RegisterStartup("test")

		entries := pool.Entries()
		require.Len(t, entries, registered+1)
		last := entries[len(entries)-1]
		assert.Equal(t, "Delete Temp Folder", last.Name)
		assert.True(t, last.Hidden)
		assert.True(t, last.Scheduled)
	})

	t.Run("production only clears temp", func(t *testing.T) {
		pool := task.NewWorkerPool(task.DefaultWorkerPoolConfig(), testLogger())
		s := New(pool, newFakeFactory(), testLogger(), WithClock(newFakeClock(12, 0)))
		t.Cleanup(s.Stop)
		require.NoError(t, s.Register(everything))

		s.RegisterStartup("production")

		assert.Equal(t, []submitted{{"Delete Temp Folder", true}}, entriesOf(pool))
	})
}

func TestStop(t *testing.T) {
	pool := task.NewWorkerPool(task.DefaultWorkerPoolConfig(), testLogger())
	clock := newFakeClock(3, 0)
	s := New(pool, newFakeFactory(), testLogger(), WithClock(clock))

	require.NoError(t, s.Register(DefaultSettings()))
	clock.waitPending(t, 2)

	s.Stop()
	assert.Empty(t, s.Triggers())
	assert.Equal(t, 0, clock.pending())

	clock.Advance(2 * time.Hour)
	assert.Empty(t, pool.Entries())
}

func TestSettingsFromConfig(t *testing.T) {
	got := SettingsFromConfig(config.ScheduleConfig{
		StartHour: 2, DurationMinutes: 30, MetadataBackup: true, GenerateSeriesCovers: true,
	})
	assert.Equal(t, Settings{StartHour: 2, DurationMinutes: 30, MetadataBackup: true, GenerateSeriesCovers: true}, got)
}

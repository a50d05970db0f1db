package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/phrazzld/shelfd/internal/domain"
	"github.com/phrazzld/shelfd/internal/schedule"
	"github.com/phrazzld/shelfd/internal/service/auth"
	"github.com/phrazzld/shelfd/internal/store"
	"github.com/phrazzld/shelfd/internal/task"
	"github.com/phrazzld/shelfd/internal/taskstatus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin = auth.Principal{Name: "admin", Admin: true}
	alice = auth.Principal{Name: "alice"}
)

type fakeRegistrar struct {
	settings schedule.Settings
	err      error
	calls    int
}

func (f *fakeRegistrar) Register(s schedule.Settings) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.settings = s
	return nil
}

func (f *fakeRegistrar) Settings() schedule.Settings { return f.settings }

type fixture struct {
	svc       TaskService
	pool      *task.WorkerPool
	registrar *fakeRegistrar
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	library := task.NewMemoryLibrary(domain.Book{
		ID:      7,
		Title:   "Dune",
		Path:    "Frank Herbert/Dune (7)",
		Formats: []domain.Format{{Format: "EPUB", Name: "Dune"}},
	})

	// the pool is never started so submitted entries stay waiting
	pool := task.NewWorkerPool(task.DefaultWorkerPoolConfig(), logger)
	t.Cleanup(pool.Stop)

	factory := &task.Factory{Library: library, Submitter: pool}
	registrar := &fakeRegistrar{settings: schedule.DefaultSettings()}

	translators, err := taskstatus.NewTranslators()
	require.NoError(t, err)

	svc, err := NewTaskService(pool, factory, registrar, library, translators, logger)
	require.NoError(t, err)

	return fixture{svc: svc, pool: pool, registrar: registrar}
}

func TestNewTaskService_RequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := NewTaskService(nil, nil, nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestTaskService_AdminOnlyOperations(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.QueueMetadataBackup(ctx, alice)
	assert.ErrorIs(t, err, ErrAdminRequired)

	_, err = f.svc.RefreshThumbnails(ctx, alice)
	assert.ErrorIs(t, err, ErrAdminRequired)

	_, err = f.svc.ClearThumbnails(ctx, alice)
	assert.ErrorIs(t, err, ErrAdminRequired)

	_, err = f.svc.SendTestEmail(ctx, alice, "alice@example.com")
	assert.ErrorIs(t, err, ErrAdminRequired)

	assert.ErrorIs(t, f.svc.CancelTask(ctx, alice, 1), ErrAdminRequired)
	assert.ErrorIs(t, f.svc.UpdateSchedule(ctx, alice, schedule.DefaultSettings()), ErrAdminRequired)

	assert.Empty(t, f.pool.Entries())
	assert.Zero(t, f.registrar.calls)
}

func TestTaskService_AdminSubmissions(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	backupID, err := f.svc.QueueMetadataBackup(ctx, admin)
	require.NoError(t, err)
	refreshID, err := f.svc.RefreshThumbnails(ctx, admin)
	require.NoError(t, err)
	clearID, err := f.svc.ClearThumbnails(ctx, admin)
	require.NoError(t, err)
	mailID, err := f.svc.SendTestEmail(ctx, admin, " reader@example.com ")
	require.NoError(t, err)

	kinds := map[int64]task.Kind{}
	for _, e := range f.pool.Entries() {
		assert.Equal(t, "admin", e.User)
		assert.Equal(t, task.StatusWaiting, e.Status)
		kinds[e.ID] = e.Kind
	}
	assert.Equal(t, task.KindMetadataBackup, kinds[backupID])
	assert.Equal(t, task.KindCoverThumbnails, kinds[refreshID])
	assert.Equal(t, task.KindClearThumbnailCache, kinds[clearID])
	assert.Equal(t, task.KindEmail, kinds[mailID])

	_, err = f.svc.SendTestEmail(ctx, admin, "  ")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestTaskService_ConvertBook(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	tests := []struct {
		name    string
		req     ConvertRequest
		wantErr error
	}{
		{
			name: "valid request",
			req:  ConvertRequest{BookID: 7, From: "epub", To: "mobi"},
		},
		{
			name:    "missing target",
			req:     ConvertRequest{BookID: 7, From: "epub"},
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "same format",
			req:     ConvertRequest{BookID: 7, From: "EPUB", To: "epub"},
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "unknown book",
			req:     ConvertRequest{BookID: 99, From: "EPUB", To: "MOBI"},
			wantErr: store.ErrBookNotFound,
		},
		{
			name:    "missing source format",
			req:     ConvertRequest{BookID: 7, From: "PDF", To: "MOBI"},
			wantErr: domain.ErrFormatNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			id, err := f.svc.ConvertBook(ctx, alice, tc.req)

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Empty(t, f.pool.Entries())
				return
			}

			require.NoError(t, err)
			snap, ok := f.pool.Snapshot(id)
			require.True(t, ok)
			assert.Equal(t, task.KindConvert, snap.Kind)
			assert.Equal(t, "alice", snap.User)
		})
	}
}

func TestTaskService_RecordUpload(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.RecordUpload(ctx, alice, "Dune")
	require.NoError(t, err)

	snap, ok := f.pool.Snapshot(id)
	require.True(t, ok)
	assert.Equal(t, task.StatusFinishSuccess, snap.Status)
	assert.Equal(t, "Dune", snap.Message)

	_, err = f.svc.RecordUpload(ctx, alice, "")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestTaskService_CancelTask(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	backupID, err := f.svc.QueueMetadataBackup(ctx, admin)
	require.NoError(t, err)
	mailID, err := f.svc.SendTestEmail(ctx, admin, "reader@example.com")
	require.NoError(t, err)

	require.NoError(t, f.svc.CancelTask(ctx, admin, backupID))
	snap, ok := f.pool.Snapshot(backupID)
	require.True(t, ok)
	assert.Equal(t, task.StatusCancelled, snap.Status)

	assert.ErrorIs(t, f.svc.CancelTask(ctx, admin, backupID), task.ErrTaskFinished)
	assert.ErrorIs(t, f.svc.CancelTask(ctx, admin, mailID), task.ErrNotCancellable)
	assert.ErrorIs(t, f.svc.CancelTask(ctx, admin, 999), task.ErrTaskNotFound)
}

func TestTaskService_ListTasks(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RecordUpload(ctx, alice, "Dune")
	require.NoError(t, err)
	_, err = f.svc.RecordUpload(ctx, auth.Principal{Name: "bob"}, "Emma")
	require.NoError(t, err)
	_, err = f.pool.Submit("", task.NewMockTask("maintenance", true), task.Hidden())
	require.NoError(t, err)

	t.Run("users see only their own entries", func(t *testing.T) {
		records := f.svc.ListTasks(ctx, alice, true, "en")
		require.Len(t, records, 1)
		assert.Equal(t, "alice", records[0].User)
		assert.Contains(t, records[0].Message, "Dune")
	})

	t.Run("admins see every visible entry", func(t *testing.T) {
		records := f.svc.ListTasks(ctx, admin, false, "en")
		assert.Len(t, records, 2)
	})

	t.Run("admins may include hidden entries", func(t *testing.T) {
		records := f.svc.ListTasks(ctx, admin, true, "en")
		assert.Len(t, records, 3)
	})

	t.Run("labels follow the locale", func(t *testing.T) {
		records := f.svc.ListTasks(ctx, alice, false, "de")
		require.Len(t, records, 1)
		assert.Equal(t, "Beendet", records[0].Label)
	})
}

func TestTaskService_Schedule(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, schedule.DefaultSettings(), f.svc.Schedule(ctx))

	next := schedule.Settings{StartHour: 2, DurationMinutes: 30, MetadataBackup: true}
	require.NoError(t, f.svc.UpdateSchedule(ctx, admin, next))
	assert.Equal(t, next, f.svc.Schedule(ctx))

	f.registrar.err = schedule.ErrInvalidSettings
	err := f.svc.UpdateSchedule(ctx, admin, schedule.Settings{StartHour: 30})
	assert.ErrorIs(t, err, schedule.ErrInvalidSettings)
	assert.True(t, IsClientError(err))
}

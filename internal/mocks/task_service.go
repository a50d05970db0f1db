package mocks

import (
	"context"

	"github.com/phrazzld/shelfd/internal/schedule"
	"github.com/phrazzld/shelfd/internal/service"
	"github.com/phrazzld/shelfd/internal/service/auth"
	"github.com/phrazzld/shelfd/internal/taskstatus"
	"github.com/stretchr/testify/mock"
)

// TestifyMockTaskService is a mock of service.TaskService for use with testify/mock
type TestifyMockTaskService struct {
	mock.Mock
}

var _ service.TaskService = (*TestifyMockTaskService)(nil)

// ListTasks is a mock implementation of service.TaskService.ListTasks
func (m *TestifyMockTaskService) ListTasks(
	ctx context.Context,
	p auth.Principal,
	includeHidden bool,
	locale string,
) []taskstatus.Record {
	args := m.Called(ctx, p, includeHidden, locale)
	if records, ok := args.Get(0).([]taskstatus.Record); ok {
		return records
	}
	return nil
}

// CancelTask is a mock implementation of service.TaskService.CancelTask
func (m *TestifyMockTaskService) CancelTask(ctx context.Context, p auth.Principal, id int64) error {
	args := m.Called(ctx, p, id)
	return args.Error(0)
}

// Schedule is a mock implementation of service.TaskService.Schedule
func (m *TestifyMockTaskService) Schedule(ctx context.Context) schedule.Settings {
	args := m.Called(ctx)
	if s, ok := args.Get(0).(schedule.Settings); ok {
		return s
	}
	return schedule.Settings{}
}

// UpdateSchedule is a mock implementation of service.TaskService.UpdateSchedule
func (m *TestifyMockTaskService) UpdateSchedule(ctx context.Context, p auth.Principal, s schedule.Settings) error {
	args := m.Called(ctx, p, s)
	return args.Error(0)
}

// QueueMetadataBackup is a mock implementation of service.TaskService.QueueMetadataBackup
func (m *TestifyMockTaskService) QueueMetadataBackup(ctx context.Context, p auth.Principal) (int64, error) {
	args := m.Called(ctx, p)
	return idResult(args)
}

// RefreshThumbnails is a mock implementation of service.TaskService.RefreshThumbnails
func (m *TestifyMockTaskService) RefreshThumbnails(ctx context.Context, p auth.Principal) (int64, error) {
	args := m.Called(ctx, p)
	return idResult(args)
}

// ClearThumbnails is a mock implementation of service.TaskService.ClearThumbnails
func (m *TestifyMockTaskService) ClearThumbnails(ctx context.Context, p auth.Principal) (int64, error) {
	args := m.Called(ctx, p)
	return idResult(args)
}

// ConvertBook is a mock implementation of service.TaskService.ConvertBook
func (m *TestifyMockTaskService) ConvertBook(
	ctx context.Context,
	p auth.Principal,
	req service.ConvertRequest,
) (int64, error) {
	args := m.Called(ctx, p, req)
	return idResult(args)
}

// SendTestEmail is a mock implementation of service.TaskService.SendTestEmail
func (m *TestifyMockTaskService) SendTestEmail(ctx context.Context, p auth.Principal, to string) (int64, error) {
	args := m.Called(ctx, p, to)
	return idResult(args)
}

// RecordUpload is a mock implementation of service.TaskService.RecordUpload
func (m *TestifyMockTaskService) RecordUpload(ctx context.Context, p auth.Principal, title string) (int64, error) {
	args := m.Called(ctx, p, title)
	return idResult(args)
}

func idResult(args mock.Arguments) (int64, error) {
	id, _ := args.Get(0).(int64)
	return id, args.Error(1)
}

package task

import "context"

// MockTask is a configurable Task for tests.
type MockTask struct {
	TaskKind      Kind
	TaskName      string
	TaskMessage   string
	IsCancellable bool
	RunFn         func(ctx context.Context, p Progress) error
}

// NewMockTask creates a MockTask that succeeds immediately.
func NewMockTask(name string, cancellable bool) *MockTask {
	return &MockTask{
		TaskKind:      Kind("mock"),
		TaskName:      name,
		IsCancellable: cancellable,
	}
}

// Kind returns the configured kind.
func (t *MockTask) Kind() Kind { return t.TaskKind }

// Name returns the configured name.
func (t *MockTask) Name() string { return t.TaskName }

// Message returns the configured initial message.
func (t *MockTask) Message() string { return t.TaskMessage }

// Cancellable returns the configured cancellability.
func (t *MockTask) Cancellable() bool { return t.IsCancellable }

// Run calls RunFn when set.
func (t *MockTask) Run(ctx context.Context, p Progress) error {
	if t.RunFn == nil {
		return nil
	}
	return t.RunFn(ctx, p)
}

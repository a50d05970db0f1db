package task

import "errors"

// Error definitions for the task package.
var (
	// ErrTaskNotFound is returned when no entry exists for the given id.
	ErrTaskNotFound = errors.New("task not found")

	// ErrNotCancellable is returned when cancelling a task whose variant
	// ignores cancellation.
	ErrNotCancellable = errors.New("task is not cancellable")

	// ErrTaskFinished is returned when cancelling an entry that already
	// reached a terminal state.
	ErrTaskFinished = errors.New("task already finished")

	// ErrPoolStopped is returned by Submit after Stop.
	ErrPoolStopped = errors.New("worker pool is stopped")

	// ErrInvalidTask is returned when submitting a nil task.
	ErrInvalidTask = errors.New("invalid task")

	// ErrTaskPanicked wraps the value recovered from a panicking task.
	ErrTaskPanicked = errors.New("task panicked")
)

// Errors returned by task variants.
var (
	// ErrConverterNotConfigured is returned by a conversion when no converter
	// binary is set.
	ErrConverterNotConfigured = errors.New("converter not configured")

	// ErrTargetFormatExists is returned when converting into a format the
	// book already has and no e-reader delivery was requested.
	ErrTargetFormatExists = errors.New("target format already exists")

	// ErrMailNotConfigured is returned by the e-mail task when no mailer is set.
	ErrMailNotConfigured = errors.New("mail server not configured")
)

package task

import (
	"context"
	"fmt"
)

// Kind identifies a task variant.
type Kind string

// Known task kinds.
const (
	KindConvert             Kind = "convert"
	KindMetadataBackup      Kind = "metadata_backup"
	KindCoverThumbnails     Kind = "cover_thumbnails"
	KindSeriesThumbnails    Kind = "series_thumbnails"
	KindClearThumbnailCache Kind = "clear_thumbnail_cache"
	KindEmail               Kind = "email"
	KindReconnectDatabase   Kind = "reconnect_database"
	KindDeleteTempFolder    Kind = "delete_temp_folder"
	KindUpload              Kind = "upload"
)

// Status is the lifecycle state of a queue entry. The numeric values are part
// of the status API and must not change.
type Status int

const (
	StatusWaiting       Status = 0
	StatusFail          Status = 1
	StatusStarted       Status = 2
	StatusFinishSuccess Status = 3
	StatusEnded         Status = 4
	StatusCancelled     Status = 5
)

// String returns a lower-case name for logs.
func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusFail:
		return "failed"
	case StatusStarted:
		return "started"
	case StatusFinishSuccess:
		return "finished"
	case StatusEnded:
		return "ended"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Terminal reports whether no further transition can happen except settling
// from FinishSuccess or Fail to Ended.
func (s Status) Terminal() bool {
	switch s {
	case StatusFail, StatusFinishSuccess, StatusEnded, StatusCancelled:
		return true
	default:
		return false
	}
}

// Task represents a unit of background work.
type Task interface {
	// Kind returns the variant tag.
	Kind() Kind

	// Name returns the short label shown in status listings.
	Name() string

	// Message returns the initial human-readable description of the work.
	Message() string

	// Cancellable reports whether the task honors cancellation requests.
	Cancellable() bool

	// Run executes the task. Cancellable tasks must check ctx at safe points
	// and return once it is done.
	Run(ctx context.Context, p Progress) error
}

// Progress lets a running task report on its own entry.
type Progress interface {
	// SetProgress records completion in [0,1]. Values are clamped and a value
	// lower than the current one is ignored.
	SetProgress(fraction float64)

	// SetMessage replaces the entry's message.
	SetMessage(msg string)
}

// Marker is implemented by tasks that only annotate the task list. The pool
// records them as finished on submission and never runs them.
type Marker interface {
	Task
	AlreadyDone() bool
}

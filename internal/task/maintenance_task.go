package task

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/phrazzld/shelfd/internal/platform/logger"
	"github.com/phrazzld/shelfd/internal/store"
)

type reconnectTask struct {
	reconnector store.Reconnector
}

func (t *reconnectTask) Kind() Kind        { return KindReconnectDatabase }
func (t *reconnectTask) Name() string      { return "Reconnect Database" }
func (t *reconnectTask) Cancellable() bool { return false }
func (t *reconnectTask) Message() string   { return "Reconnecting library database" }

func (t *reconnectTask) Run(ctx context.Context, _ Progress) error {
	if err := t.reconnector.Reconnect(ctx); err != nil {
		return fmt.Errorf("failed to reconnect database: %w", err)
	}
	return nil
}

// tempFolderTask removes the temporary upload folder. Failures are logged and
// never fail the task.
type tempFolderTask struct {
	dir string
}

func (t *tempFolderTask) Kind() Kind        { return KindDeleteTempFolder }
func (t *tempFolderTask) Name() string      { return "Delete Temp Folder" }
func (t *tempFolderTask) Cancellable() bool { return false }
func (t *tempFolderTask) Message() string   { return "Delete temp folder contents" }

func (t *tempFolderTask) Run(ctx context.Context, _ Progress) error {
	if t.dir == "" {
		return nil
	}
	if err := os.RemoveAll(t.dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.FromContext(ctx).Error("error deleting temp folder", "dir", t.dir, "error", err)
	}
	return nil
}

// uploadTask only annotates the task list with a finished upload.
type uploadTask struct {
	title string
}

func (t *uploadTask) Kind() Kind                         { return KindUpload }
func (t *uploadTask) Name() string                       { return "Upload" }
func (t *uploadTask) Cancellable() bool                  { return false }
func (t *uploadTask) Message() string                    { return t.title }
func (t *uploadTask) AlreadyDone() bool                  { return true }
func (t *uploadTask) Run(context.Context, Progress) error { return nil }

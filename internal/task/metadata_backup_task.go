package task

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/phrazzld/shelfd/internal/platform/logger"
	"github.com/phrazzld/shelfd/internal/store"
)

type metadataBackupTask struct {
	store          store.MetadataStore
	bookPath       string
	exportLanguage string
	setDirty       bool
}

func (t *metadataBackupTask) Kind() Kind        { return KindMetadataBackup }
func (t *metadataBackupTask) Name() string      { return "Metadata backup" }
func (t *metadataBackupTask) Cancellable() bool { return true }

func (t *metadataBackupTask) Message() string {
	if t.setDirty {
		return "Queue all books for metadata backup"
	}
	return "Backing up Metadata"
}

func (t *metadataBackupTask) Run(ctx context.Context, p Progress) error {
	if t.setDirty {
		return t.markAllDirty(ctx, p)
	}
	return t.backup(ctx, p)
}

func (t *metadataBackupTask) markAllDirty(ctx context.Context, p Progress) error {
	n, err := t.store.MarkAllDirty(ctx)
	if err != nil {
		return fmt.Errorf("error adding book for backup: %w", err)
	}
	logger.FromContext(ctx).Info("queued books for metadata backup", "count", n)
	p.SetMessage(fmt.Sprintf("Queued %d books for metadata backup", n))
	return nil
}

func (t *metadataBackupTask) backup(ctx context.Context, p Progress) error {
	log := logger.FromContext(ctx)

	ids, err := t.store.DirtyBooks(ctx)
	if err != nil {
		return fmt.Errorf("error creating metadata backup: %w", err)
	}

	count := len(ids)
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}

		book, lookupErr := t.store.Book(ctx, id)
		if lookupErr != nil && !store.IsNotFoundError(lookupErr) {
			return fmt.Errorf("error creating metadata backup for book %d: %w", id, lookupErr)
		}
		if err := t.store.ClearDirty(ctx, id); err != nil {
			return fmt.Errorf("error creating metadata backup for book %d: %w", id, err)
		}

		if lookupErr != nil {
			log.Error("book not found in database", "book_id", id)
		} else {
			path := filepath.Join(book.Dir(t.bookPath), "metadata.opf")
			if err := writeOPF(path, newOPFPackage(book, t.exportLanguage)); err != nil {
				return fmt.Errorf("error creating metadata backup for book %d: %w", id, err)
			}
		}

		p.SetProgress(float64(i+1) / float64(count))
	}

	log.Info("metadata backup complete", "books", count)
	return nil
}

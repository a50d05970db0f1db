package task

import (
	"context"
	"fmt"

	"github.com/phrazzld/shelfd/internal/domain"
	"github.com/phrazzld/shelfd/internal/platform/logger"
	"github.com/phrazzld/shelfd/internal/store"
)

// ClearAllThumbnails passed to Factory.ClearCoverThumbnails empties the whole
// cover thumbnail cache.
const ClearAllThumbnails int64 = -1

type clearThumbnailTask struct {
	store        store.ThumbnailStore
	thumbnailDir string
	bookID       int64
}

func (t *clearThumbnailTask) Kind() Kind        { return KindClearThumbnailCache }
func (t *clearThumbnailTask) Name() string      { return "Clear Cover Thumbnails" }
func (t *clearThumbnailTask) Cancellable() bool { return false }

func (t *clearThumbnailTask) Message() string {
	switch {
	case t.bookID == 0:
		return "Delete superfluous cover thumbnails"
	case t.bookID < 0:
		return "Delete all cover thumbnails"
	default:
		return fmt.Sprintf("Delete cover thumbnails for book %d", t.bookID)
	}
}

func (t *clearThumbnailTask) Run(ctx context.Context, p Progress) error {
	var (
		thumbs []domain.Thumbnail
		err    error
	)
	switch {
	case t.bookID == 0:
		thumbs, err = t.store.OrphanThumbnails(ctx)
	case t.bookID < 0:
		thumbs, err = t.store.Thumbnails(ctx, domain.ThumbnailBook)
	default:
		thumbs, err = t.store.ThumbnailsFor(ctx, domain.ThumbnailBook, t.bookID)
	}
	if err != nil {
		return fmt.Errorf("failed to list thumbnails: %w", err)
	}

	for i, th := range thumbs {
		if err := removeThumbnail(ctx, t.store, t.thumbnailDir, th); err != nil {
			return err
		}
		p.SetProgress(float64(i+1) / float64(len(thumbs)))
	}

	logger.FromContext(ctx).Info("cover thumbnails removed", "count", len(thumbs), "book_id", t.bookID)
	return nil
}

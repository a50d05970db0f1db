package task

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/shelfd/internal/domain"
	"github.com/phrazzld/shelfd/internal/platform/logger"
	"github.com/phrazzld/shelfd/internal/store"
)

const defaultThumbnailWidth = 300

// thumbnailer holds what the thumbnail variants share.
type thumbnailer struct {
	store    store.ThumbnailStore
	renderer Renderer
	bookPath string
	dir      string
	width    int
}

// refresh renders a thumbnail for the entity unless a current one exists on
// disk. Stale rows and files are removed. It reports whether a new
// thumbnail was written.
func (th thumbnailer) refresh(
	ctx context.Context,
	kind domain.ThumbnailKind,
	entityID int64,
	source domain.Book,
) (bool, error) {
	existing, err := th.store.ThumbnailsFor(ctx, kind, entityID)
	if err != nil {
		return false, fmt.Errorf("failed to list thumbnails: %w", err)
	}

	for _, t := range existing {
		if t.Resolution == th.width && source.ThumbnailCurrent(t) && fileExists(filepath.Join(th.dir, t.Filename)) {
			return false, nil
		}
	}
	for _, t := range existing {
		if err := removeThumbnail(ctx, th.store, th.dir, t); err != nil {
			return false, err
		}
	}

	if err := os.MkdirAll(th.dir, 0o755); err != nil {
		return false, fmt.Errorf("failed to create thumbnail directory: %w", err)
	}

	filename := uuid.NewString() + ".jpg"
	if err := th.renderer.Render(ctx, source.CoverPath(th.bookPath), filepath.Join(th.dir, filename), th.width); err != nil {
		return false, err
	}

	_, err = th.store.SaveThumbnail(ctx, domain.Thumbnail{
		Kind:        kind,
		EntityID:    entityID,
		Filename:    filename,
		Resolution:  th.width,
		GeneratedAt: time.Now().UTC(),
	})
	if err != nil {
		_ = os.Remove(filepath.Join(th.dir, filename))
		return false, fmt.Errorf("failed to save thumbnail: %w", err)
	}
	return true, nil
}

func removeThumbnail(ctx context.Context, s store.ThumbnailStore, dir string, t domain.Thumbnail) error {
	if err := os.Remove(filepath.Join(dir, t.Filename)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove thumbnail file %s: %w", t.Filename, err)
	}
	if err := s.DeleteThumbnail(ctx, t.ID); err != nil && !store.IsNotFoundError(err) {
		return fmt.Errorf("failed to delete thumbnail %d: %w", t.ID, err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

type coverThumbnailTask struct {
	thumbnailer
	bookID int64
}

func (t *coverThumbnailTask) Kind() Kind        { return KindCoverThumbnails }
func (t *coverThumbnailTask) Name() string      { return "Cover Thumbnails" }
func (t *coverThumbnailTask) Cancellable() bool { return true }

func (t *coverThumbnailTask) Message() string {
	if t.bookID > 0 {
		return fmt.Sprintf("Generating cover thumbnails for book %d", t.bookID)
	}
	return "Generating cover thumbnails"
}

func (t *coverThumbnailTask) Run(ctx context.Context, p Progress) error {
	log := logger.FromContext(ctx)

	var books []domain.Book
	if t.bookID > 0 {
		b, err := t.store.Book(ctx, t.bookID)
		if err != nil {
			return fmt.Errorf("failed to load book %d: %w", t.bookID, err)
		}
		books = []domain.Book{b}
	} else {
		var err error
		if books, err = t.store.Books(ctx); err != nil {
			return fmt.Errorf("failed to list books: %w", err)
		}
	}

	generated, failed := 0, 0
	for i, b := range books {
		if err := ctx.Err(); err != nil {
			return err
		}

		if b.HasCover {
			written, err := t.refresh(ctx, domain.ThumbnailBook, b.ID, b)
			switch {
			case err != nil:
				failed++
				log.Error("error generating thumbnail", "book_id", b.ID, "error", err)
			case written:
				generated++
			}
		}

		p.SetProgress(float64(i+1) / float64(len(books)))
	}

	p.SetMessage(thumbnailSummary("cover", generated, failed))
	log.Info("cover thumbnails generated", "generated", generated, "failed", failed, "books", len(books))
	return nil
}

type seriesThumbnailTask struct {
	thumbnailer
}

func (t *seriesThumbnailTask) Kind() Kind        { return KindSeriesThumbnails }
func (t *seriesThumbnailTask) Name() string      { return "Series Thumbnails" }
func (t *seriesThumbnailTask) Cancellable() bool { return true }
func (t *seriesThumbnailTask) Message() string   { return "Generating series thumbnails" }

func (t *seriesThumbnailTask) Run(ctx context.Context, p Progress) error {
	log := logger.FromContext(ctx)

	series, err := t.store.Series(ctx)
	if err != nil {
		return fmt.Errorf("failed to list series: %w", err)
	}

	generated, failed := 0, 0
	for i, s := range series {
		if err := ctx.Err(); err != nil {
			return err
		}

		if cover, ok := firstWithCover(s.Books); ok {
			written, err := t.refresh(ctx, domain.ThumbnailSeries, s.ID, cover)
			switch {
			case err != nil:
				failed++
				log.Error("error generating series thumbnail", "series_id", s.ID, "error", err)
			case written:
				generated++
			}
		}

		p.SetProgress(float64(i+1) / float64(len(series)))
	}

	p.SetMessage(thumbnailSummary("series", generated, failed))
	return nil
}

func firstWithCover(books []domain.Book) (domain.Book, bool) {
	for _, b := range books {
		if b.HasCover {
			return b, true
		}
	}
	return domain.Book{}, false
}

func thumbnailSummary(what string, generated, failed int) string {
	if failed > 0 {
		return fmt.Sprintf("Generated %d %s thumbnails, %d failed", generated, what, failed)
	}
	return fmt.Sprintf("Generated %d %s thumbnails", generated, what)
}

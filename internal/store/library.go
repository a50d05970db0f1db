package store

import (
	"context"

	"github.com/phrazzld/shelfd/internal/domain"
)

// BookReader reads book records.
type BookReader interface {
	// Book returns the book with the given id or ErrBookNotFound.
	Book(ctx context.Context, id int64) (domain.Book, error)

	// Books returns every book ordered by id.
	Books(ctx context.Context) ([]domain.Book, error)
}

// FormatStore records newly produced book files.
type FormatStore interface {
	// AddFormat attaches f to the book. Returns ErrFormatExists when the book
	// already carries that format.
	AddFormat(ctx context.Context, bookID int64, f domain.Format) error
}

// MetadataStore tracks books whose metadata.opf must be rewritten.
type MetadataStore interface {
	BookReader

	// DirtyBooks returns the ids of books queued for a metadata backup.
	DirtyBooks(ctx context.Context) ([]int64, error)

	// ClearDirty removes the book from the backup queue.
	ClearDirty(ctx context.Context, bookID int64) error

	// MarkAllDirty queues every book and returns how many were queued.
	MarkAllDirty(ctx context.Context) (int, error)
}

// ThumbnailStore persists the thumbnail cache index.
type ThumbnailStore interface {
	BookReader

	// Series returns every series with its books ordered by series index.
	Series(ctx context.Context) ([]domain.Series, error)

	// ThumbnailsFor returns the thumbnails of one book or series.
	ThumbnailsFor(ctx context.Context, kind domain.ThumbnailKind, entityID int64) ([]domain.Thumbnail, error)

	// Thumbnails returns every thumbnail of the given kind.
	Thumbnails(ctx context.Context, kind domain.ThumbnailKind) ([]domain.Thumbnail, error)

	// OrphanThumbnails returns book thumbnails whose book no longer exists.
	OrphanThumbnails(ctx context.Context) ([]domain.Thumbnail, error)

	// SaveThumbnail inserts th and returns its id.
	SaveThumbnail(ctx context.Context, th domain.Thumbnail) (int64, error)

	// DeleteThumbnail removes one thumbnail row.
	DeleteThumbnail(ctx context.Context, id int64) error
}

// Reconnector re-establishes the database connection.
type Reconnector interface {
	Reconnect(ctx context.Context) error
}

// LibraryStore is the complete library persistence surface.
type LibraryStore interface {
	MetadataStore
	ThumbnailStore
	FormatStore
	Reconnector
}

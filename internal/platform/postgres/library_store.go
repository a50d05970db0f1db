package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/phrazzld/shelfd/internal/domain"
	"github.com/phrazzld/shelfd/internal/platform/logger"
	"github.com/phrazzld/shelfd/internal/store"
)

// listSeparator joins array columns into one text value for scanning.
const listSeparator = "\x1f"

const bookColumns = `
	b.id, b.uuid::text, b.title, array_to_string(b.authors, E'\x1f'), b.path, b.has_cover,
	b.isbn, b.language, b.publisher, b.description, array_to_string(b.tags, E'\x1f'),
	COALESCE(b.series_id, 0), COALESCE(s.name, ''), b.series_index, b.pubdate, b.last_modified`

const bookFrom = `
	FROM books b
	LEFT JOIN series s ON s.id = b.series_id`

const thumbnailColumns = `id, kind, entity_id, filename, resolution, generated_at`

// OpenFunc opens a fresh connection pool.
type OpenFunc func(ctx context.Context) (*sql.DB, error)

// LibraryStore implements store.LibraryStore on PostgreSQL.
type LibraryStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	open   OpenFunc
	logger *slog.Logger
}

// Ensure LibraryStore implements store.LibraryStore interface
var _ store.LibraryStore = (*LibraryStore)(nil)

// NewLibraryStore wraps db. open is used by Reconnect to replace the pool;
// without it Reconnect always fails.
// If logger is nil, a default logger will be used.
func NewLibraryStore(db *sql.DB, open OpenFunc, logger *slog.Logger) *LibraryStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &LibraryStore{
		db:     db,
		open:   open,
		logger: logger.With(slog.String("component", "library_store")),
	}
}

// DB returns the current connection pool.
func (s *LibraryStore) DB() *sql.DB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

// PingContext checks the current connection pool.
func (s *LibraryStore) PingContext(ctx context.Context) error {
	if err := s.DB().PingContext(ctx); err != nil {
		return MapError(err)
	}
	return nil
}

// Close closes the current connection pool.
func (s *LibraryStore) Close() error {
	return s.DB().Close()
}

// Book implements store.BookReader.Book.
func (s *LibraryStore) Book(ctx context.Context, id int64) (domain.Book, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	db := s.DB()

	query := `SELECT` + bookColumns + bookFrom + ` WHERE b.id = $1`
	book, err := scanBook(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("book not found", slog.Int64("book_id", id))
			return domain.Book{}, fmt.Errorf("%w: %d", store.ErrBookNotFound, id)
		}
		log.Error("failed to get book", slog.String("error", err.Error()), slog.Int64("book_id", id))
		return domain.Book{}, MapError(err)
	}

	formats, err := s.formats(ctx, db, `WHERE book_id = $1`, id)
	if err != nil {
		return domain.Book{}, err
	}
	book.Formats = formats[id]

	return book, nil
}

// Books implements store.BookReader.Books.
func (s *LibraryStore) Books(ctx context.Context) ([]domain.Book, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	db := s.DB()

	rows, err := db.QueryContext(ctx, `SELECT`+bookColumns+bookFrom+` ORDER BY b.id`)
	if err != nil {
		log.Error("failed to list books", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var books []domain.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, MapError(err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	formats, err := s.formats(ctx, db, "")
	if err != nil {
		return nil, err
	}
	for i := range books {
		books[i].Formats = formats[books[i].ID]
	}

	log.Debug("listed books", slog.Int("count", len(books)))
	return books, nil
}

// Series implements store.ThumbnailStore.Series.
func (s *LibraryStore) Series(ctx context.Context) ([]domain.Series, error) {
	db := s.DB()

	rows, err := db.QueryContext(ctx, `SELECT id, name FROM series ORDER BY id`)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var series []domain.Series
	index := make(map[int64]int)
	for rows.Next() {
		var sr domain.Series
		if err := rows.Scan(&sr.ID, &sr.Name); err != nil {
			return nil, MapError(err)
		}
		index[sr.ID] = len(series)
		series = append(series, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	if len(series) == 0 {
		return nil, nil
	}

	bookRows, err := db.QueryContext(ctx,
		`SELECT`+bookColumns+bookFrom+` WHERE b.series_id IS NOT NULL ORDER BY b.series_id, b.series_index, b.id`)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = bookRows.Close() }()

	for bookRows.Next() {
		book, err := scanBook(bookRows)
		if err != nil {
			return nil, MapError(err)
		}
		if i, ok := index[book.SeriesID]; ok {
			series[i].Books = append(series[i].Books, book)
		}
	}
	if err := bookRows.Err(); err != nil {
		return nil, MapError(err)
	}

	return series, nil
}

// AddFormat implements store.FormatStore.AddFormat.
func (s *LibraryStore) AddFormat(ctx context.Context, bookID int64, f domain.Format) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	format := strings.ToUpper(strings.TrimSpace(f.Format))
	if format == "" || strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("%w: format and name are required", store.ErrInvalidEntity)
	}

	query := `
		INSERT INTO book_formats (book_id, format, name, uncompressed_size)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.DB().ExecContext(ctx, query, bookID, format, f.Name, f.UncompressedSize)
	if err != nil {
		switch {
		case IsUniqueViolation(err):
			log.Debug("format already stored", slog.Int64("book_id", bookID), slog.String("format", format))
			return fmt.Errorf("%w: %s for book %d", store.ErrFormatExists, format, bookID)
		case IsForeignKeyViolation(err):
			return fmt.Errorf("%w: %d", store.ErrBookNotFound, bookID)
		}
		log.Error("failed to add format",
			slog.String("error", err.Error()),
			slog.Int64("book_id", bookID),
			slog.String("format", format))
		return MapError(err)
	}

	log.Info("format added", slog.Int64("book_id", bookID), slog.String("format", format))
	return nil
}

// DirtyBooks implements store.MetadataStore.DirtyBooks.
func (s *LibraryStore) DirtyBooks(ctx context.Context) ([]int64, error) {
	rows, err := s.DB().QueryContext(ctx, `SELECT book_id FROM metadata_dirtied ORDER BY book_id`)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, MapError(err)
		}
		ids = append(ids, id)
	}
	return ids, MapError(rows.Err())
}

// ClearDirty implements store.MetadataStore.ClearDirty. Clearing a book that
// is not queued is not an error.
func (s *LibraryStore) ClearDirty(ctx context.Context, bookID int64) error {
	_, err := s.DB().ExecContext(ctx, `DELETE FROM metadata_dirtied WHERE book_id = $1`, bookID)
	return MapError(err)
}

// MarkAllDirty implements store.MetadataStore.MarkAllDirty.
func (s *LibraryStore) MarkAllDirty(ctx context.Context) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	db := s.DB()

	var count int
	err := store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO metadata_dirtied (book_id)
			SELECT id FROM books
			ON CONFLICT (book_id) DO NOTHING
		`); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM metadata_dirtied`).Scan(&count)
	})
	if err != nil {
		log.Error("failed to queue books for metadata backup", slog.String("error", err.Error()))
		return 0, MapError(err)
	}

	log.Info("queued books for metadata backup", slog.Int("count", count))
	return count, nil
}

// ThumbnailsFor implements store.ThumbnailStore.ThumbnailsFor.
func (s *LibraryStore) ThumbnailsFor(
	ctx context.Context,
	kind domain.ThumbnailKind,
	entityID int64,
) ([]domain.Thumbnail, error) {
	query := `SELECT ` + thumbnailColumns + ` FROM thumbnails WHERE kind = $1 AND entity_id = $2 ORDER BY id`
	return s.thumbnails(ctx, query, kind.String(), entityID)
}

// Thumbnails implements store.ThumbnailStore.Thumbnails.
func (s *LibraryStore) Thumbnails(ctx context.Context, kind domain.ThumbnailKind) ([]domain.Thumbnail, error) {
	query := `SELECT ` + thumbnailColumns + ` FROM thumbnails WHERE kind = $1 ORDER BY id`
	return s.thumbnails(ctx, query, kind.String())
}

// OrphanThumbnails implements store.ThumbnailStore.OrphanThumbnails.
func (s *LibraryStore) OrphanThumbnails(ctx context.Context) ([]domain.Thumbnail, error) {
	query := `
		SELECT ` + thumbnailColumns + `
		FROM thumbnails t
		WHERE t.kind = $1
		  AND NOT EXISTS (SELECT 1 FROM books b WHERE b.id = t.entity_id)
		ORDER BY t.id`
	return s.thumbnails(ctx, query, domain.ThumbnailBook.String())
}

// SaveThumbnail implements store.ThumbnailStore.SaveThumbnail.
func (s *LibraryStore) SaveThumbnail(ctx context.Context, th domain.Thumbnail) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if th.Filename == "" || th.Resolution <= 0 {
		return 0, fmt.Errorf("%w: thumbnail needs a filename and resolution", store.ErrInvalidEntity)
	}
	generated := th.GeneratedAt
	if generated.IsZero() {
		generated = time.Now().UTC()
	}

	query := `
		INSERT INTO thumbnails (kind, entity_id, filename, resolution, generated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	var id int64
	err := s.DB().QueryRowContext(ctx, query, th.Kind.String(), th.EntityID, th.Filename, th.Resolution, generated).
		Scan(&id)
	if err != nil {
		log.Error("failed to save thumbnail",
			slog.String("error", err.Error()),
			slog.String("kind", th.Kind.String()),
			slog.Int64("entity_id", th.EntityID))
		return 0, MapError(err)
	}

	return id, nil
}

// DeleteThumbnail implements store.ThumbnailStore.DeleteThumbnail.
func (s *LibraryStore) DeleteThumbnail(ctx context.Context, id int64) error {
	result, err := s.DB().ExecContext(ctx, `DELETE FROM thumbnails WHERE id = $1`, id)
	if err != nil {
		return MapError(err)
	}
	if err := CheckRowsAffected(result, ""); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %d", store.ErrThumbnailNotFound, id)
		}
		return err
	}
	return nil
}

// Reconnect implements store.Reconnector. The pool is replaced and the old
// one closed once the new one answers a ping.
func (s *LibraryStore) Reconnect(ctx context.Context) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if s.open == nil {
		return fmt.Errorf("%w: no reconnect function configured", store.ErrUnavailable)
	}

	fresh, err := s.open(ctx)
	if err != nil {
		log.Error("failed to open database", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if err := fresh.PingContext(ctx); err != nil {
		_ = fresh.Close()
		log.Error("database ping failed", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	s.mu.Lock()
	old := s.db
	s.db = fresh
	s.mu.Unlock()

	if err := old.Close(); err != nil {
		log.Warn("failed to close previous connection pool", slog.String("error", err.Error()))
	}
	log.Info("database reconnected")
	return nil
}

func (s *LibraryStore) formats(
	ctx context.Context,
	db store.DBTX,
	where string,
	args ...any,
) (map[int64][]domain.Format, error) {
	query := `SELECT book_id, format, name, uncompressed_size FROM book_formats ` + where + ` ORDER BY book_id, id`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[int64][]domain.Format)
	for rows.Next() {
		var bookID int64
		var f domain.Format
		if err := rows.Scan(&bookID, &f.Format, &f.Name, &f.UncompressedSize); err != nil {
			return nil, MapError(err)
		}
		out[bookID] = append(out[bookID], f)
	}
	return out, MapError(rows.Err())
}

func (s *LibraryStore) thumbnails(ctx context.Context, query string, args ...any) ([]domain.Thumbnail, error) {
	rows, err := s.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Thumbnail
	for rows.Next() {
		var th domain.Thumbnail
		var kind string
		if err := rows.Scan(&th.ID, &kind, &th.EntityID, &th.Filename, &th.Resolution, &th.GeneratedAt); err != nil {
			return nil, MapError(err)
		}
		th.Kind = parseThumbnailKind(kind)
		out = append(out, th)
	}
	return out, MapError(rows.Err())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (domain.Book, error) {
	var b domain.Book
	var authors, tags string
	err := row.Scan(
		&b.ID,
		&b.UUID,
		&b.Title,
		&authors,
		&b.Path,
		&b.HasCover,
		&b.ISBN,
		&b.Language,
		&b.Publisher,
		&b.Description,
		&tags,
		&b.SeriesID,
		&b.SeriesName,
		&b.SeriesIndex,
		&b.PubDate,
		&b.LastModified,
	)
	if err != nil {
		return domain.Book{}, err
	}
	b.Authors = splitList(authors)
	b.Tags = splitList(tags)
	return b, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, listSeparator)
}

func parseThumbnailKind(s string) domain.ThumbnailKind {
	if s == domain.ThumbnailSeries.String() {
		return domain.ThumbnailSeries
	}
	return domain.ThumbnailBook
}

package task

import (
	"context"
	"sort"
	"sync"

	"github.com/phrazzld/shelfd/internal/domain"
	"github.com/phrazzld/shelfd/internal/store"
)

// MemoryLibrary is an in-memory store.LibraryStore for tests.
type MemoryLibrary struct {
	mu         sync.Mutex
	books      map[int64]domain.Book
	series     []domain.Series
	dirty      map[int64]bool
	thumbs     map[int64]domain.Thumbnail
	nextThumb  int64
	reconnects int

	// ReconnectErr is returned by Reconnect when set.
	ReconnectErr error
}

var _ store.LibraryStore = (*MemoryLibrary)(nil)

// NewMemoryLibrary creates a library holding books.
func NewMemoryLibrary(books ...domain.Book) *MemoryLibrary {
	m := &MemoryLibrary{
		books:  make(map[int64]domain.Book),
		dirty:  make(map[int64]bool),
		thumbs: make(map[int64]domain.Thumbnail),
	}
	for _, b := range books {
		m.books[b.ID] = b
	}
	return m
}

// AddSeries registers a series.
func (m *MemoryLibrary) AddSeries(s domain.Series) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series = append(m.series, s)
}

// RemoveBook deletes a book without touching its thumbnails.
func (m *MemoryLibrary) RemoveBook(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.books, id)
}

// MarkDirty queues ids for metadata backup.
func (m *MemoryLibrary) MarkDirty(ids ...int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.dirty[id] = true
	}
}

// Reconnects returns how often Reconnect was called.
func (m *MemoryLibrary) Reconnects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconnects
}

// AllThumbnails returns every stored thumbnail ordered by id.
func (m *MemoryLibrary) AllThumbnails() []domain.Thumbnail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedThumbs(func(domain.Thumbnail) bool { return true })
}

func (m *MemoryLibrary) Book(_ context.Context, id int64) (domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return domain.Book{}, store.ErrBookNotFound
	}
	return b, nil
}

func (m *MemoryLibrary) Books(context.Context) ([]domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Book, 0, len(m.books))
	for _, b := range m.books {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryLibrary) AddFormat(_ context.Context, bookID int64, f domain.Format) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[bookID]
	if !ok {
		return store.ErrBookNotFound
	}
	if _, err := b.FindFormat(f.Format); err == nil {
		return store.ErrFormatExists
	}
	b.Formats = append(b.Formats, f)
	m.books[bookID] = b
	return nil
}

func (m *MemoryLibrary) DirtyBooks(context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.dirty))
	for id := range m.dirty {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *MemoryLibrary) ClearDirty(_ context.Context, bookID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.dirty, bookID)
	return nil
}

func (m *MemoryLibrary) MarkAllDirty(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.books {
		m.dirty[id] = true
	}
	return len(m.books), nil
}

func (m *MemoryLibrary) Series(context.Context) ([]domain.Series, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Series(nil), m.series...), nil
}

func (m *MemoryLibrary) ThumbnailsFor(_ context.Context, kind domain.ThumbnailKind, entityID int64) ([]domain.Thumbnail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedThumbs(func(t domain.Thumbnail) bool {
		return t.Kind == kind && t.EntityID == entityID
	}), nil
}

func (m *MemoryLibrary) Thumbnails(_ context.Context, kind domain.ThumbnailKind) ([]domain.Thumbnail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedThumbs(func(t domain.Thumbnail) bool { return t.Kind == kind }), nil
}

func (m *MemoryLibrary) OrphanThumbnails(context.Context) ([]domain.Thumbnail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedThumbs(func(t domain.Thumbnail) bool {
		_, ok := m.books[t.EntityID]
		return t.Kind == domain.ThumbnailBook && !ok
	}), nil
}

func (m *MemoryLibrary) SaveThumbnail(_ context.Context, th domain.Thumbnail) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextThumb++
	th.ID = m.nextThumb
	m.thumbs[th.ID] = th
	return th.ID, nil
}

func (m *MemoryLibrary) DeleteThumbnail(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.thumbs[id]; !ok {
		return store.ErrThumbnailNotFound
	}
	delete(m.thumbs, id)
	return nil
}

func (m *MemoryLibrary) Reconnect(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnects++
	return m.ReconnectErr
}

func (m *MemoryLibrary) sortedThumbs(keep func(domain.Thumbnail) bool) []domain.Thumbnail {
	out := make([]domain.Thumbnail, 0)
	for _, t := range m.thumbs {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

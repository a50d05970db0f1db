package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Book is a library entry as far as background tasks need to know it.
// Path is relative to the library root and names the folder holding the
// book files, cover.jpg and metadata.opf.
type Book struct {
	ID           int64     `json:"id"`
	UUID         string    `json:"uuid"`
	Title        string    `json:"title"`
	Authors      []string  `json:"authors"`
	Path         string    `json:"path"`
	HasCover     bool      `json:"has_cover"`
	ISBN         string    `json:"isbn,omitempty"`
	Language     string    `json:"language,omitempty"`
	Publisher    string    `json:"publisher,omitempty"`
	Description  string    `json:"description,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	SeriesID     int64     `json:"series_id,omitempty"`
	SeriesName   string    `json:"series_name,omitempty"`
	SeriesIndex  float64   `json:"series_index,omitempty"`
	PubDate      time.Time `json:"pubdate"`
	LastModified time.Time `json:"last_modified"`
	Formats      []Format  `json:"formats,omitempty"`
}

// Format is one stored file of a book, e.g. the EPUB or MOBI variant.
// Name is the file name without extension.
type Format struct {
	Format           string `json:"format"`
	Name             string `json:"name"`
	UncompressedSize int64  `json:"uncompressed_size"`
}

// Series groups books; thumbnails for a series use the cover of its first book.
type Series struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Books []Book `json:"books,omitempty"`
}

// ThumbnailKind distinguishes book cover thumbnails from series thumbnails.
type ThumbnailKind int

const (
	ThumbnailBook ThumbnailKind = iota
	ThumbnailSeries
)

// String returns the kind as stored in the thumbnails table.
func (k ThumbnailKind) String() string {
	switch k {
	case ThumbnailBook:
		return "book"
	case ThumbnailSeries:
		return "series"
	default:
		return fmt.Sprintf("ThumbnailKind(%d)", int(k))
	}
}

// Thumbnail is a rendered cover image kept in the thumbnail cache directory.
type Thumbnail struct {
	ID          int64         `json:"id"`
	Kind        ThumbnailKind `json:"kind"`
	EntityID    int64         `json:"entity_id"`
	Filename    string        `json:"filename"`
	Resolution  int           `json:"resolution"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// CoverPath returns the location of the book's cover below root.
func (b Book) CoverPath(root string) string {
	return filepath.Join(root, b.Path, "cover.jpg")
}

// Dir returns the book folder below root.
func (b Book) Dir(root string) string {
	return filepath.Join(root, b.Path)
}

// FindFormat returns the stored format matching name, case-insensitively.
func (b Book) FindFormat(name string) (Format, error) {
	if strings.TrimSpace(name) == "" {
		return Format{}, ErrInvalidFormat
	}
	for _, f := range b.Formats {
		if strings.EqualFold(f.Format, name) {
			return f, nil
		}
	}
	return Format{}, fmt.Errorf("%w: %s for book %d", ErrFormatNotFound, strings.ToUpper(name), b.ID)
}

// FormatPath returns the full path of the given stored format below root,
// including the lower-cased extension.
func (b Book) FormatPath(root string, f Format) string {
	return filepath.Join(root, b.Path, f.Name+"."+strings.ToLower(f.Format))
}

// ThumbnailCurrent reports whether th was generated after the book was last
// modified.
func (b Book) ThumbnailCurrent(th Thumbnail) bool {
	return !th.GeneratedAt.Before(b.LastModified)
}

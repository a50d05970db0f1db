package task

import (
	"fmt"
	"strings"

	"github.com/phrazzld/shelfd/internal/store"
)

// Factory builds task variants bound to the library collaborators.
// Submitter may be set after construction, once the pool exists.
type Factory struct {
	Library   store.LibraryStore
	Converter Converter
	Renderer  Renderer
	Mailer    Mailer
	Submitter Submitter

	BookPath       string
	TempDir        string
	ThumbnailDir   string
	ThumbnailWidth int
	ExportLanguage string
}

// Convert returns a task converting one format of a book into another. When
// ereaderMail is set, the converted file is sent there by a follow-up e-mail
// task submitted for user.
func (f *Factory) Convert(user string, bookID int64, from, to, ereaderMail string) Task {
	return &convertTask{
		store:       f.Library,
		converter:   f.Converter,
		factory:     f,
		bookPath:    f.BookPath,
		user:        user,
		bookID:      bookID,
		from:        strings.ToUpper(from),
		to:          strings.ToUpper(to),
		ereaderMail: ereaderMail,
	}
}

// BackupMetadata returns a task writing metadata.opf for every dirty book,
// or, with setDirty, a task queuing every book for the next backup.
func (f *Factory) BackupMetadata(setDirty bool) Task {
	return &metadataBackupTask{
		store:          f.Library,
		bookPath:       f.BookPath,
		exportLanguage: f.ExportLanguage,
		setDirty:       setDirty,
	}
}

// GenerateCoverThumbnails returns a task rendering missing or outdated cover
// thumbnails. A bookID of 0 covers the whole library.
func (f *Factory) GenerateCoverThumbnails(bookID int64) Task {
	return &coverThumbnailTask{thumbnailer: f.thumbnailer(), bookID: bookID}
}

// GenerateSeriesThumbnails returns a task rendering series thumbnails.
func (f *Factory) GenerateSeriesThumbnails() Task {
	return &seriesThumbnailTask{thumbnailer: f.thumbnailer()}
}

// ClearCoverThumbnails returns a task pruning the cover thumbnail cache.
// bookID 0 removes thumbnails of deleted books, ClearAllThumbnails removes
// everything and a positive id removes that book's thumbnails.
func (f *Factory) ClearCoverThumbnails(bookID int64) Task {
	return &clearThumbnailTask{
		store:        f.Library,
		thumbnailDir: f.ThumbnailDir,
		bookID:       bookID,
	}
}

// SendEmail returns a task delivering msg. message is the status line shown
// while the task is listed.
func (f *Factory) SendEmail(msg Email, message string) Task {
	if message == "" {
		message = fmt.Sprintf("E-mail: %s", msg.Subject)
	}
	return &emailTask{mailer: f.Mailer, msg: msg, message: message}
}

// ReconnectDatabase returns a task re-opening the library database connection.
func (f *Factory) ReconnectDatabase() Task {
	return &reconnectTask{reconnector: f.Library}
}

// DeleteTempFolder returns a task removing the temporary upload folder.
func (f *Factory) DeleteTempFolder() Task {
	return &tempFolderTask{dir: f.TempDir}
}

// Upload returns a marker entry recording that title was uploaded.
func (f *Factory) Upload(title string) Task {
	return &uploadTask{title: title}
}

func (f *Factory) thumbnailer() thumbnailer {
	width := f.ThumbnailWidth
	if width <= 0 {
		width = defaultThumbnailWidth
	}
	return thumbnailer{
		store:    f.Library,
		renderer: f.Renderer,
		bookPath: f.BookPath,
		dir:      f.ThumbnailDir,
		width:    width,
	}
}

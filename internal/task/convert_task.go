package task

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/phrazzld/shelfd/internal/domain"
	"github.com/phrazzld/shelfd/internal/platform/logger"
	"github.com/phrazzld/shelfd/internal/store"
)

type bookFormatStore interface {
	store.BookReader
	store.FormatStore
}

type convertTask struct {
	store       bookFormatStore
	converter   Converter
	factory     *Factory
	bookPath    string
	user        string
	bookID      int64
	from        string
	to          string
	ereaderMail string
}

func (t *convertTask) Kind() Kind        { return KindConvert }
func (t *convertTask) Name() string      { return "Convert" }
func (t *convertTask) Cancellable() bool { return false }

func (t *convertTask) Message() string {
	return fmt.Sprintf("Convert book %d from %s to %s", t.bookID, t.from, t.to)
}

func (t *convertTask) Run(ctx context.Context, p Progress) error {
	log := logger.FromContext(ctx)

	book, err := t.store.Book(ctx, t.bookID)
	if err != nil {
		return fmt.Errorf("failed to load book %d: %w", t.bookID, err)
	}
	p.SetMessage(fmt.Sprintf("Convert %s from %s to %s", book.Title, t.from, t.to))

	src, err := book.FindFormat(t.from)
	if err != nil {
		return err
	}
	out := filepath.Join(book.Dir(t.bookPath), src.Name+"."+strings.ToLower(t.to))

	if _, err := book.FindFormat(t.to); err == nil {
		if t.ereaderMail == "" {
			return fmt.Errorf("%w: %s already has %s", ErrTargetFormatExists, book.Title, t.to)
		}
		log.Info("target format exists, sending existing file", "book_id", book.ID, "format", t.to)
		p.SetProgress(0.9)
		return t.sendToEreader(book, out)
	} else if !errors.Is(err, domain.ErrFormatNotFound) {
		return err
	}

	if t.converter == nil {
		return ErrConverterNotConfigured
	}

	p.SetProgress(0.1)
	if err := t.converter.Convert(ctx, book.FormatPath(t.bookPath, src), out); err != nil {
		return err
	}
	p.SetProgress(0.8)

	info, err := os.Stat(out)
	if err != nil {
		return fmt.Errorf("converted file missing: %w", err)
	}

	format := domain.Format{Format: t.to, Name: src.Name, UncompressedSize: info.Size()}
	if err := t.store.AddFormat(ctx, book.ID, format); err != nil && !store.IsDuplicateError(err) {
		return fmt.Errorf("failed to record %s format: %w", t.to, err)
	}
	log.Info("book converted", "book_id", book.ID, "from", t.from, "to", t.to, "size", info.Size())
	p.SetProgress(0.9)

	if t.ereaderMail != "" {
		return t.sendToEreader(book, out)
	}
	return nil
}

func (t *convertTask) sendToEreader(book domain.Book, attachment string) error {
	if t.factory == nil || t.factory.Submitter == nil {
		return errors.New("no submitter available for e-reader delivery")
	}

	msg := Email{
		To:         t.ereaderMail,
		Subject:    "Send to E-Reader",
		Text:       fmt.Sprintf("This e-mail has been sent via shelfd: %s", book.Title),
		Attachment: attachment,
	}
	follow := t.factory.SendEmail(msg, fmt.Sprintf("Send %s to E-Reader", book.Title))
	if _, err := t.factory.Submitter.Submit(t.user, follow); err != nil {
		return fmt.Errorf("failed to queue e-reader delivery: %w", err)
	}
	return nil
}

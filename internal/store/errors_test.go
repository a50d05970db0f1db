package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("some error"), false},
		{"ErrNotFound", ErrNotFound, true},
		{"wrapped ErrNotFound", fmt.Errorf("failed to load: %w", ErrNotFound), true},
		{"ErrBookNotFound", ErrBookNotFound, true},
		{"wrapped ErrSeriesNotFound", fmt.Errorf("series 3: %w", ErrSeriesNotFound), true},
		{"ErrThumbnailNotFound", ErrThumbnailNotFound, true},
		{"ErrDuplicate", ErrDuplicate, false},
		{"StoreError wrapping not found", NewStoreError("book", "get", "missing", ErrBookNotFound), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsNotFoundError(tt.err))
		})
	}
}

func TestIsDuplicateError(t *testing.T) {
	assert.True(t, IsDuplicateError(ErrDuplicate))
	assert.True(t, IsDuplicateError(ErrFormatExists))
	assert.True(t, IsDuplicateError(fmt.Errorf("add EPUB: %w", ErrFormatExists)))
	assert.False(t, IsDuplicateError(ErrNotFound))
	assert.False(t, IsDuplicateError(nil))
}

func TestStoreError(t *testing.T) {
	t.Run("without wrapped error", func(t *testing.T) {
		err := NewStoreError("thumbnail", "delete", "no rows", nil)
		assert.Equal(t, "delete operation on thumbnail failed: no rows", err.Error())
		assert.Nil(t, err.Unwrap())
	})

	t.Run("with wrapped error", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := NewStoreError("book", "select", "query failed", cause)
		assert.Equal(t, "select operation on book failed: query failed: connection reset", err.Error())
		assert.ErrorIs(t, err, cause)

		var se *StoreError
		assert.True(t, errors.As(fmt.Errorf("outer: %w", err), &se))
		assert.Equal(t, "book", se.Entity)
	})
}

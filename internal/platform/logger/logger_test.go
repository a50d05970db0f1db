package logger_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/phrazzld/shelfd/internal/config"
	"github.com/phrazzld/shelfd/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in    string
		want  slog.Level
		known bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{" warn ", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := logger.ParseLevel(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.known, ok)
		})
	}
}

func TestSetupWithWriter(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	buf := &logger.LogBuffer{}
	l, err := logger.SetupWithWriter(config.ServerConfig{LogLevel: "warn"}, buf)
	require.NoError(t, err)
	require.NotNil(t, l)

	l.Info("dropped")
	l.Warn("kept", "task_id", 7)

	entries, err := buf.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0]["msg"])
	assert.Equal(t, "shelfd", entries[0]["service"])
	assert.EqualValues(t, 7, entries[0]["task_id"])
	assert.Same(t, l, slog.Default())
}

func TestSetupWithWriter_InvalidLevel(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	buf := &logger.LogBuffer{}
	l, err := logger.SetupWithWriter(config.ServerConfig{LogLevel: "chatty"}, buf)
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("visible")

	entries, err := buf.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2, "warning about the level plus the info line")
	assert.Equal(t, "invalid log level configured, using default level", entries[0]["msg"])
	assert.Equal(t, "chatty", entries[0]["configured_level"])
	assert.Equal(t, "visible", entries[1]["msg"])
}

func TestFromContextOrDefault(t *testing.T) {
	stored := slog.New(slog.NewTextHandler(io.Discard, nil))
	fallback := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("logger in context", func(t *testing.T) {
		ctx := logger.WithLogger(context.Background(), stored)
		assert.Same(t, stored, logger.FromContextOrDefault(ctx, fallback))
		assert.Same(t, stored, logger.FromContext(ctx))
	})

	t.Run("no logger uses fallback", func(t *testing.T) {
		assert.Same(t, fallback, logger.FromContextOrDefault(context.Background(), fallback))
	})

	t.Run("nil fallback uses default", func(t *testing.T) {
		assert.Same(t, slog.Default(), logger.FromContextOrDefault(context.Background(), nil))
		assert.Same(t, slog.Default(), logger.FromContext(context.Background()))
	})
}

func TestSetupWithWriter_TeesToExtraHandlers(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	var primary logger.LogBuffer
	var extra logger.LogBuffer
	errorsOnly := slog.NewJSONHandler(&extra, &slog.HandlerOptions{Level: slog.LevelError})

	log, err := logger.SetupWithWriter(config.ServerConfig{LogLevel: "debug"}, &primary, errorsOnly)
	require.NoError(t, err)

	log.With("task_id", 4).Debug("detail")
	log.Error("boom")

	primaryEntries, err := primary.Entries()
	require.NoError(t, err)
	assert.Len(t, primaryEntries, 2)

	extraEntries, err := extra.Entries()
	require.NoError(t, err)
	require.Len(t, extraEntries, 1)
	assert.Equal(t, "boom", extraEntries[0]["msg"])
	assert.Equal(t, "shelfd", extraEntries[0]["service"])
}

func TestTee_Enabled(t *testing.T) {
	warn := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn})
	errs := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})
	h := logger.Tee(warn, errs)

	ctx := context.Background()
	assert.False(t, h.Enabled(ctx, slog.LevelInfo))
	assert.True(t, h.Enabled(ctx, slog.LevelWarn))
	assert.True(t, h.WithGroup("g").Enabled(ctx, slog.LevelError))
}

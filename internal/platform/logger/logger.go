package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/phrazzld/shelfd/internal/config"
)

// ParseLevel converts a configured level name into a slog.Level. The second
// return value is false when the name is not recognized, in which case the
// info level is returned.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// Setup initializes the application's logging system based on the provided
// configuration. It creates a structured JSON logger writing to stdout and
// sets it as the default logger for the application. Records are also
// passed to every extra handler, e.g. an OpenTelemetry log bridge.
func Setup(cfg config.ServerConfig, extra ...slog.Handler) (*slog.Logger, error) {
	return SetupWithWriter(cfg, os.Stdout, extra...)
}

// SetupWithWriter behaves like Setup but writes to w.
func SetupWithWriter(cfg config.ServerConfig, w io.Writer, extra ...slog.Handler) (*slog.Logger, error) {
	level, ok := ParseLevel(cfg.LogLevel)

	var handler slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	if len(extra) > 0 {
		handler = Tee(append([]slog.Handler{handler}, extra...)...)
	}
	logger := slog.New(handler).With("service", "shelfd")

	if !ok {
		logger.Warn("invalid log level configured, using default level",
			"configured_level", cfg.LogLevel,
			"default_level", "info")
	}

	// Allow slog.Info etc. from packages that are not handed a logger.
	slog.SetDefault(logger)

	return logger, nil
}

// Package logger provides structured logging for the application.
//
// It configures a log/slog JSON handler from the server configuration and
// offers helpers to carry request- or task-scoped loggers through a context.
package logger

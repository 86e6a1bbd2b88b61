// Package logging provides structured logging configuration using log/slog.
//
// Log entries carry chi's request id when one is present and the validation
// id assigned by the handler, so a support code quoted by a user can be
// traced back to one invocation.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey int

const validationIDKey ctxKey = iota

// Setup configures the global slog logger based on level and format.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
func Setup(level, format string) {
	slog.SetDefault(New(os.Stdout, level, format))
}

// New builds a logger writing to w. The CLI passes os.Stderr so stdout only
// carries the result.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithValidationID stores the id of the current validation in ctx.
func WithValidationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, validationIDKey, id)
}

// ValidationID returns the id stored by WithValidationID, or "".
func ValidationID(ctx context.Context) string {
	id, _ := ctx.Value(validationIDKey).(string)
	return id
}

// FromContext returns the default logger enriched with request context.
//
// Usage:
//
//	func handleValidate(w http.ResponseWriter, r *http.Request) {
//	    logger := logging.FromContext(r.Context())
//	    logger.Info("validation requested", "format", format)
//	}
func FromContext(ctx context.Context) *slog.Logger {
	return Enrich(ctx, slog.Default())
}

// Enrich adds the request and validation ids found in ctx to logger.
func Enrich(ctx context.Context, logger *slog.Logger) *slog.Logger {
	// Chi's RequestID middleware stores the ID in context
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if id := ValidationID(ctx); id != "" {
		logger = logger.With("validation_id", id)
	}
	return logger
}

// WithFields returns a logger with additional structured fields.
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}

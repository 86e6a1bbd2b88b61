package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "info", "json").Info("hello", "rows", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, float64(3), entry["rows"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", "text")

	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestEnrich_AddsIDs(t *testing.T) {
	var buf bytes.Buffer
	base := New(&buf, "info", "json")

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	ctx = WithValidationID(ctx, "val-1")
	Enrich(ctx, base).Info("done")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "val-1", entry["validation_id"])
}

func TestEnrich_NoIDs(t *testing.T) {
	var buf bytes.Buffer
	Enrich(context.Background(), New(&buf, "info", "json")).Info("done")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, "request_id")
	assert.NotContains(t, entry, "validation_id")
}

func TestValidationID_Empty(t *testing.T) {
	assert.Equal(t, "", ValidationID(context.Background()))
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(New(&buf, "info", "json"))
	defer slog.SetDefault(prev)

	ctx := WithValidationID(context.Background(), "val-1")
	WithFields(ctx, "path", "/api/validate").Info("request error")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "/api/validate", entry["path"])
	assert.Equal(t, "val-1", entry["validation_id"])
}

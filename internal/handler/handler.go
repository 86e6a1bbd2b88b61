// Package handler turns a validation event into a response envelope.
//
// Every invocation runs the same pipeline: obtain the file bytes (inline
// base64 or an object fetch), load them into a table, run the health checks,
// and encode the result. Every failure, including a panic, ends up as a 400
// response; nothing escapes to the caller as an error.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/sheethealth/internal/core"
	"github.com/JonMunkholm/sheethealth/internal/logging"
)

// Fetcher reads an object named by an event.
type Fetcher interface {
	Fetch(ctx context.Context, bucket, key string) ([]byte, error)
}

// Config configures a Handler.
type Config struct {
	Rules    core.Rules
	Sheet    string       // default sheet; empty selects the first one
	MaxBytes int64        // zero disables the size check
	Fetcher  Fetcher      // nil disables object sources
	Logger   *slog.Logger // nil uses slog.Default()
}

// Handler validates spreadsheets against a fixed set of rules. It holds no
// per-request state and is safe for concurrent use.
type Handler struct {
	validator *core.Validator
	sheet     string
	maxBytes  int64
	fetcher   Fetcher
	logger    *slog.Logger
}

// New creates a Handler.
func New(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		validator: core.NewValidator(cfg.Rules),
		sheet:     cfg.Sheet,
		maxBytes:  cfg.MaxBytes,
		fetcher:   cfg.Fetcher,
		logger:    logger,
	}
}

// Rules returns the rules this handler validates against.
func (h *Handler) Rules() core.Rules {
	return h.validator.Rules()
}

// Handle validates the file carried or named by req.
func (h *Handler) Handle(ctx context.Context, req Request) Response {
	return h.respond(ctx, func(ctx context.Context) (core.ValidationResult, int) {
		data, err := h.fileBytes(ctx, req)
		if err != nil {
			return h.failure(err), 0
		}
		format, err := core.ParseFormat(req.Format)
		if err != nil {
			return h.failure(&DecodeError{Field: "format", Err: err}), len(data)
		}
		return h.validate(data, format, req.Sheet), len(data)
	})
}

// HandleFile validates raw file bytes, as received from a multipart upload.
func (h *Handler) HandleFile(ctx context.Context, data []byte, format, sheet string) Response {
	return h.respond(ctx, func(ctx context.Context) (core.ValidationResult, int) {
		f, err := core.ParseFormat(format)
		if err != nil {
			return h.failure(&DecodeError{Field: "format", Err: err}), len(data)
		}
		return h.validate(data, f, sheet), len(data)
	})
}

// respond runs fn with a fresh validation id, recovers panics, logs the
// outcome and builds the envelope.
func (h *Handler) respond(ctx context.Context, fn func(context.Context) (core.ValidationResult, int)) Response {
	id := uuid.NewString()
	ctx = logging.WithValidationID(ctx, id)
	logger := logging.Enrich(ctx, h.logger)
	start := time.Now()

	result, size := h.safeRun(ctx, fn)

	statusCode := http.StatusOK
	if !result.OK() {
		statusCode = http.StatusBadRequest
	}

	body, err := encodeResult(result)
	if err != nil {
		statusCode = http.StatusBadRequest
		body = `{"status":"error","kind":"unexpected","message":"encode result"}`
	}

	attrs := []any{
		"status", result.Status,
		"kind", result.Kind,
		"bytes", size,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	switch result.Kind {
	case core.KindOK:
		logger.Info("validation passed", attrs...)
	case core.KindValidation:
		logger.Info("validation failed", append(attrs, "errors", strings.Join(result.Errors, "; "))...)
	case core.KindUnexpected:
		logger.Error("validation errored", append(attrs, "error", result.Message)...)
	default:
		logger.Warn("validation rejected", append(attrs, "error", result.Message)...)
	}

	return Response{
		StatusCode: statusCode,
		Headers: map[string]string{
			"Content-Type":     "application/json",
			HeaderValidationID: id,
		},
		Body: body,
	}
}

// encodeResult marshals without HTML escaping so column names keep their
// characters.
func encodeResult(result core.ValidationResult) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(result); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func (h *Handler) safeRun(ctx context.Context, fn func(context.Context) (core.ValidationResult, int)) (result core.ValidationResult, size int) {
	defer func() {
		if r := recover(); r != nil {
			result = h.failure(&UnexpectedError{Err: fmt.Errorf("panic: %v", r)})
		}
	}()
	return fn(ctx)
}

// fileBytes returns the inline file or fetches the named object.
func (h *Handler) fileBytes(ctx context.Context, req Request) ([]byte, error) {
	if strings.TrimSpace(req.FileBase64) != "" {
		data, err := decodeBase64(req.FileBase64)
		if err != nil {
			return nil, &DecodeError{Field: "file", Err: err}
		}
		return data, nil
	}

	if !req.HasObject() {
		return nil, &DecodeError{Field: "file", Err: ErrNoFile}
	}
	if h.fetcher == nil {
		return nil, &DecodeError{Field: "source", Err: ErrStorageDisabled}
	}

	data, err := h.fetcher.Fetch(ctx, req.S3Bucket, req.S3Key)
	if err != nil {
		return nil, &DecodeError{Field: "source", Err: err}
	}
	return data, nil
}

func (h *Handler) validate(data []byte, format core.Format, sheet string) core.ValidationResult {
	if sheet == "" {
		sheet = h.sheet
	}
	table, err := core.LoadTable(data, core.LoadOptions{
		Format:   format,
		Sheet:    sheet,
		MaxBytes: h.maxBytes,
	})
	if err != nil {
		return h.failure(err)
	}
	return h.validator.Validate(table)
}

func (h *Handler) failure(err error) core.ValidationResult {
	return core.ErrorResult(kindOf(err), err)
}

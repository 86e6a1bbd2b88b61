package web

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/sheethealth/internal/core"
	"github.com/JonMunkholm/sheethealth/internal/handler"
)

// Bytes allowed on top of the file itself for JSON fields and multipart
// boundaries.
const bodyOverhead = 64 << 10

// healthResponse is the body of GET /healthz.
type healthResponse struct {
	Status       string             `json:"status"`
	Validations  core.LimiterStatus `json:"validations"`
	Headers      []string           `json:"required_headers"`
	UniqueColumn string             `json:"unique_column"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	rules := s.handler.Rules()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:       "ok",
		Validations:  s.limiter.Status(),
		Headers:      rules.RequiredHeaders,
		UniqueColumn: rules.UniqueColumn,
	})
}

// handleInvoke returns the handler envelope itself with HTTP 200.
func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeEvent(w, r)
	if !ok {
		return
	}
	if !s.acquire(w, r) {
		return
	}
	defer s.limiter.Release()

	writeJSON(w, http.StatusOK, s.handler.Handle(r.Context(), req))
}

// handleValidate maps the envelope onto the HTTP response.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeEvent(w, r)
	if !ok {
		return
	}
	if !s.acquire(w, r) {
		return
	}
	defer s.limiter.Release()

	writeEnvelope(w, s.handler.Handle(r.Context(), req))
}

// handleUpload validates a multipart "file" field. The format defaults to
// the file extension; "format" and "sheet" form fields override it.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !s.acquire(w, r) {
		return
	}
	defer s.limiter.Release()

	maxSize := s.cfg.Upload.MaxFileSize + bodyOverhead
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		s.bodyError(w, r, err, maxSize)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, handler.ErrNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.bodyError(w, r, err, maxSize)
		return
	}

	format := r.FormValue("format")
	if format == "" {
		format = formatFromName(header.Filename)
	}

	writeEnvelope(w, s.handler.HandleFile(r.Context(), data, format, r.FormValue("sheet")))
}

// decodeEvent reads the JSON event. The body may hold base64 of a file up to
// the configured size.
func (s *Server) decodeEvent(w http.ResponseWriter, r *http.Request) (handler.Request, bool) {
	var req handler.Request

	maxSize := int64(base64.StdEncoding.EncodedLen(int(s.cfg.Upload.MaxFileSize))) + bodyOverhead
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.bodyError(w, r, err, maxSize)
		return req, false
	}
	return req, true
}

// acquire takes a validation slot or writes 503.
func (s *Server) acquire(w http.ResponseWriter, r *http.Request) bool {
	if err := s.limiter.Acquire(r.Context()); err != nil {
		w.Header().Set("Retry-After", "5")
		writeError(w, r, err, http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (s *Server) bodyError(w http.ResponseWriter, r *http.Request, err error, limit int64) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, r, fmt.Errorf("%w: request body exceeds %d bytes", core.ErrFileTooLarge, limit), http.StatusRequestEntityTooLarge)
		return
	}
	writeError(w, r, fmt.Errorf("invalid request: %w", err), http.StatusBadRequest)
}

// writeEnvelope copies the envelope's headers and status onto w and writes
// the body verbatim.
func writeEnvelope(w http.ResponseWriter, resp handler.Response) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, resp.Body)
}

func formatFromName(name string) string {
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		return string(core.FormatCSV)
	}
	return string(core.FormatXLSX)
}

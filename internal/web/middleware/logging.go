// Package middleware provides HTTP middleware for the validation server.
package middleware

import (
	"net/http"
	"time"

	"github.com/JonMunkholm/sheethealth/internal/logging"
)

// Logger logs one structured entry per request.
//
// Log fields:
//   - method, path, status, duration_ms, bytes
//   - ip: client IP after TrustedRealIP
//   - validation_id: the X-Validation-Id response header, when set
//
// 5xx responses are logged at error level and 4xx at warn.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(ww, r)

		logger := logging.FromContext(r.Context())
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", ww.bytes,
			"ip", r.RemoteAddr,
		}
		if id := ww.Header().Get("X-Validation-Id"); id != "" {
			attrs = append(attrs, "validation_id", id)
		}

		switch {
		case ww.status >= http.StatusInternalServerError:
			logger.Error("request", attrs...)
		case ww.status >= http.StatusBadRequest:
			logger.Warn("request", attrs...)
		default:
			logger.Info("request", attrs...)
		}
	})
}

// responseWriter records the status code and body size.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

package web

// errors.go renders transport-level failures: rate limiting, a busy
// limiter, bodies that are too large or not JSON. Validation outcomes are
// never rendered here; they come back from the handler as envelopes.
//
// The technical error is logged with the request id; the client gets the
// catalogue entry from core.MapError.

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/sheethealth/internal/core"
	"github.com/JonMunkholm/sheethealth/internal/logging"
)

// ErrorResponse is the JSON body of every transport error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// writeError logs err and writes its catalogue entry with the given status.
// Errors outside the catalogue are logged at error level.
func writeError(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := core.MapError(err)

	logger := logging.WithFields(r.Context(),
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
	)
	if core.IsUserFacing(err) {
		logger.Warn("request error", "error", err.Error())
	} else {
		logger.Error("request error", "error", err.Error())
	}

	writeJSON(w, status, ErrorResponse{
		Error:   core.FormatUserError(err),
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// writeJSON encodes v with the given status. Encoding errors are logged
// since the header is already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

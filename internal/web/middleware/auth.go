package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/JonMunkholm/sheethealth/internal/config"
	"github.com/JonMunkholm/sheethealth/internal/logging"
)

// Auth error codes returned in the JSON body.
const (
	CodeMissingKey = "AUTH001"
	CodeInvalidKey = "AUTH002"
)

// APIKeyAuth checks the X-API-Key header, or an "Authorization: Bearer"
// token, against the configured keys. With RequireAPIKey off every request
// passes. With it on and no keys configured every request is rejected.
func APIKeyAuth(cfg config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			logger := logging.FromContext(r.Context()).With(
				"path", r.URL.Path,
				"method", r.Method,
				"remote_addr", r.RemoteAddr,
			)

			key := apiKeyFromRequest(r)
			if key == "" {
				logger.Warn("auth: missing API key")
				writeAuthError(w, http.StatusUnauthorized, CodeMissingKey, "missing API key")
				return
			}

			if !isValidAPIKey(key, cfg.APIKeys) {
				logger.Warn("auth: invalid API key")
				writeAuthError(w, http.StatusForbidden, CodeInvalidKey, "invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func apiKeyFromRequest(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > len("Bearer ") && strings.EqualFold(auth[:len("Bearer ")], "Bearer ") {
		return strings.TrimSpace(auth[len("Bearer "):])
	}
	return ""
}

// isValidAPIKey compares against every key in constant time.
func isValidAPIKey(key string, validKeys []string) bool {
	valid := 0
	for _, validKey := range validKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(validKey))
	}
	return valid == 1
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   message,
		"message": message,
		"action":  "Send a valid key in the X-API-Key header",
		"code":    code,
	})
}

package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"inventory-console/internal/models"
)

// ParseAPIKeys splits a comma separated key list, dropping blanks
func ParseAPIKeys(value string) []string {
	var keys []string
	for _, key := range strings.Split(value, ",") {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// APIKeyMiddleware requires X-API-Key to match one of validKeys. With no keys configured
// every request passes.
func APIKeyMiddleware(validKeys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(validKeys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				slog.Warn("Authentication failed: missing API key", "remote_addr", r.RemoteAddr)
				writeAuthError(w, "API key required")
				return
			}

			if !isValidAPIKey(apiKey, validKeys) {
				slog.Warn("Authentication failed: invalid API key", "remote_addr", r.RemoteAddr)
				writeAuthError(w, "Invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AdminAPIKeyMiddleware guards admin routes. Unlike APIKeyMiddleware it refuses every
// request with 403 when no admin key is configured.
func AdminAPIKeyMiddleware(validKeys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(validKeys) == 0 {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				slog.Warn("Admin request refused: no admin API key configured", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				writeJSONError(w, http.StatusForbidden, "forbidden", "Admin API is disabled")
			})
		}
		return APIKeyMiddleware(validKeys)(next)
	}
}

func isValidAPIKey(apiKey string, validKeys []string) bool {
	for _, validKey := range validKeys {
		if subtle.ConstantTimeCompare([]byte(validKey), []byte(apiKey)) == 1 {
			return true
		}
	}
	return false
}

func writeAuthError(w http.ResponseWriter, message string) {
	writeJSONError(w, http.StatusUnauthorized, "unauthorized", message)
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

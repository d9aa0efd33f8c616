package web

// errors.go centralizes JSON response and error handling for the API.
// Technical errors are logged server-side with the request path; the
// client receives a sanitized message so internal details (connection
// strings, SQL, file paths) never leak.

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// writeError writes a JSON error response.
// Logs the full error server-side but returns a sanitized message to the client.
func writeError(w http.ResponseWriter, status int, message string) {
	slog.Error("request failed", "status", status, "error", message)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": sanitizeErrorMessage(message)})
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", "error", err)
	}
}

// sanitizeErrorMessage strips internals that must not reach clients.
// Messages mentioning database drivers, hosts, or file system paths are
// replaced with a generic text; everything else passes through.
func sanitizeErrorMessage(message string) string {
	lower := strings.ToLower(message)
	for _, marker := range []string{"postgres://", "pgx", "sqlstate", "dial tcp", "/root/", "/home/", "/var/"} {
		if strings.Contains(lower, marker) {
			return "internal error"
		}
	}
	return message
}

// Package shared holds response helpers and context keys used by both
// the API handlers and the middleware, avoiding an import cycle
// between them.
package shared

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// ContextKey is a private key type for request context values.
type ContextKey string

// UserIDContextKey is the context key under which the authenticated
// user's ID is stored.
const UserIDContextKey ContextKey = "userID"

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// UserIDFromContext retrieves the authenticated user ID set by the
// auth middleware, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDContextKey).(string)
	return id, ok
}

// WithUserID returns a context carrying the authenticated user ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDContextKey, userID)
}

// RespondWithJSON writes a JSON response with the given status code.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response",
			"error", err,
			"path", r.URL.Path,
			"method", r.Method)
	}
}

// RespondWithError writes a standard error response. The message must
// already be safe to show callers; raw error strings never go on the
// wire.
func RespondWithError(w http.ResponseWriter, r *http.Request, status int, message string) {
	slog.Debug("sending error response",
		"status_code", status,
		"message", message,
		"path", r.URL.Path,
		"method", r.Method)

	RespondWithJSON(w, r, status, ErrorResponse{Error: message, Code: status})
}

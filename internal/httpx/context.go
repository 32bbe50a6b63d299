package httpx

import (
	"context"
	"net/http"
)

type contextKey string

const (
	userIDKey    contextKey = "userID"
	permsKey     contextKey = "perms"
	requestIDKey contextKey = "requestID"
)

// UserIDFrom retrieves the authenticated user id from the request context.
// Empty means anonymous.
func UserIDFrom(r *http.Request) string {
	if v, ok := r.Context().Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// PermissionsFrom retrieves the caller's granted permission names.
func PermissionsFrom(r *http.Request) []string {
	if v, ok := r.Context().Value(permsKey).([]string); ok {
		return v
	}
	return nil
}

// ContextWithIdentity returns a new context carrying the user id and
// permission names.
func ContextWithIdentity(ctx context.Context, userID string, perms []string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, permsKey, perms)
}

// RequestIDFrom retrieves the request id from the request context.
func RequestIDFrom(r *http.Request) string {
	if v, ok := r.Context().Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithRequestID returns a new context with the request id.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

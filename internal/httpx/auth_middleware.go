package httpx

import (
	"net/http"
	"strings"

	"locallibrary/internal/platform/crypto"
)

// AuthMiddleware parses a bearer token and stashes the caller's id and
// permission names in the request context. Requests without a valid token
// are rejected; use OptionalAuthMiddleware for routes open to anonymous
// callers.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := parseBearer(secret, r)
			if !ok {
				JSONError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "A valid bearer token is required", nil)
				return
			}
			ctx := ContextWithIdentity(r.Context(), claims.Sub, claims.Perms)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthMiddleware attaches identity when a valid token is present
// and passes the request through anonymously otherwise.
func OptionalAuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims, ok := parseBearer(secret, r); ok {
				ctx := ContextWithIdentity(r.Context(), claims.Sub, claims.Perms)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission rejects callers whose token does not grant the named
// permission. Must run after an auth middleware.
func RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if UserIDFrom(r) == "" {
				JSONError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "Authentication is required", nil)
				return
			}
			for _, p := range PermissionsFrom(r) {
				if p == permission {
					next.ServeHTTP(w, r)
					return
				}
			}
			JSONError(w, r, http.StatusForbidden, "PERMISSION_DENIED", "Missing required permission", nil)
		})
	}
}

func parseBearer(secret string, r *http.Request) (*crypto.Claims, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, false
	}
	claims, err := crypto.ParseToken(secret, strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		return nil, false
	}
	return claims, true
}

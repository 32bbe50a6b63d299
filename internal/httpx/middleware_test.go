package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"locallibrary/internal/httpx"
	"locallibrary/internal/loan"
	"locallibrary/internal/testutil"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = httpx.RequestIDFrom(r)
		w.WriteHeader(http.StatusOK)
	})

	t.Run("generates an id when missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		httpx.RequestIDMiddleware(inner).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get("X-Request-Id"))
	})

	t.Run("keeps a caller supplied id", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Request-Id", "req-123")
		w := httptest.NewRecorder()
		httpx.RequestIDMiddleware(inner).ServeHTTP(w, r)

		assert.Equal(t, "req-123", seen)
		assert.Equal(t, "req-123", w.Header().Get("X-Request-Id"))
	})
}

func TestAuthMiddleware(t *testing.T) {
	mw := httpx.AuthMiddleware(testutil.JWTSecret)

	t.Run("rejects missing token", func(t *testing.T) {
		w := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		resp := testutil.RecordHTTPResponse(w)
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
		assert.Equal(t, "UNAUTHENTICATED", testutil.ErrorCode(resp.Body))
	})

	t.Run("rejects expired token", func(t *testing.T) {
		token := testutil.GenerateExpiredToken(testutil.JWTSecret, "u-1")
		w := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(w, testutil.NewRequestWithAuth(http.MethodGet, "/", nil, token))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("attaches identity from a valid token", func(t *testing.T) {
		var gotUser string
		var gotPerms []string
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUser = httpx.UserIDFrom(r)
			gotPerms = httpx.PermissionsFrom(r)
			w.WriteHeader(http.StatusOK)
		})

		token := testutil.GenerateTestToken(testutil.JWTSecret, testutil.Staff)
		w := httptest.NewRecorder()
		mw(inner).ServeHTTP(w, testutil.NewRequestWithAuth(http.MethodGet, "/", nil, token))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, testutil.Staff.UserID, gotUser)
		assert.Contains(t, gotPerms, loan.CanManageLoans)
	})
}

func TestOptionalAuthMiddleware(t *testing.T) {
	mw := httpx.OptionalAuthMiddleware(testutil.JWTSecret)

	t.Run("anonymous passes through", func(t *testing.T) {
		var gotUser string
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUser = httpx.UserIDFrom(r)
			w.WriteHeader(http.StatusOK)
		})

		w := httptest.NewRecorder()
		mw(inner).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, gotUser)
	})

	t.Run("valid token attaches identity", func(t *testing.T) {
		var gotUser string
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUser = httpx.UserIDFrom(r)
			w.WriteHeader(http.StatusOK)
		})

		token := testutil.GenerateTestToken(testutil.JWTSecret, testutil.Member)
		w := httptest.NewRecorder()
		mw(inner).ServeHTTP(w, testutil.NewRequestWithAuth(http.MethodGet, "/", nil, token))

		assert.Equal(t, testutil.Member.UserID, gotUser)
	})
}

func TestRequirePermission(t *testing.T) {
	mw := httpx.RequirePermission(loan.CanManageLoans)

	t.Run("anonymous gets 401", func(t *testing.T) {
		w := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))

		resp := testutil.RecordHTTPResponse(w)
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
		assert.Equal(t, "UNAUTHENTICATED", testutil.ErrorCode(resp.Body))
	})

	t.Run("authenticated without permission gets 403", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r = r.WithContext(httpx.ContextWithIdentity(r.Context(), "u-member", nil))
		w := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(w, r)

		resp := testutil.RecordHTTPResponse(w)
		assert.Equal(t, http.StatusForbidden, resp.Code)
		assert.Equal(t, "PERMISSION_DENIED", testutil.ErrorCode(resp.Body))
	})

	t.Run("permission holder passes", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r = r.WithContext(httpx.ContextWithIdentity(r.Context(), "u-staff", []string{loan.CanManageLoans}))
		w := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	httpx.RecoveryMiddleware(panicking).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	resp := testutil.RecordHTTPResponse(w)
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, "INTERNAL_ERROR", testutil.ErrorCode(resp.Body))
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := httpx.NewRateLimitMiddleware(1, 2)
	handler := rl.Middleware(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "10.0.0.1:5000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// a different client keeps its own bucket
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.2:5000"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	w := httptest.NewRecorder()
	httpx.SecurityHeadersMiddleware(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	w := httptest.NewRecorder()
	httpx.Chain(okHandler(), tag("outer"), tag("inner")).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner"}, order)
}

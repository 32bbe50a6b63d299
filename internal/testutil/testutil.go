package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"locallibrary/internal/loan"
	"locallibrary/internal/platform/crypto"
)

// JWTSecret is the signing secret shared by handler tests.
const JWTSecret = "test-secret"

// Member is an ordinary authenticated caller.
var Member = loan.Identity{UserID: "user-member-1"}

// Staff holds the loan-management permission.
var Staff = loan.Identity{
	UserID:      "user-staff-1",
	Permissions: []string{loan.CanManageLoans},
}

// GenerateTestToken issues a token for the given identity.
func GenerateTestToken(secret string, id loan.Identity) string {
	role := "USER"
	if id.Can(loan.CanManageLoans) {
		role = "STAFF"
	}
	token, _ := crypto.GenerateToken(secret, id.UserID, role, id.Permissions, time.Hour)
	return token
}

// GenerateExpiredToken issues a token well past its expiry.
func GenerateExpiredToken(secret, userID string) string {
	claims := crypto.Claims{
		Sub:  userID,
		Role: "USER",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	return token
}

// NewRequest creates an HTTP request, marshalling body to JSON when set.
func NewRequest(method, path string, body interface{}) *http.Request {
	if body == nil {
		return httptest.NewRequest(method, path, nil)
	}
	raw, _ := json.Marshal(body)
	r := httptest.NewRequest(method, path, bytes.NewReader(raw))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// NewRequestWithAuth creates a request carrying a bearer token.
func NewRequestWithAuth(method, path string, body interface{}, token string) *http.Request {
	r := NewRequest(method, path, body)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

// RecordResponse is a decoded HTTP response for assertions.
type RecordResponse struct {
	Code   int
	Header http.Header
	Body   map[string]interface{}
}

// RecordHTTPResponse drains a recorder into a RecordResponse.
func RecordHTTPResponse(w *httptest.ResponseRecorder) RecordResponse {
	result := w.Result()
	defer result.Body.Close()

	var body map[string]interface{}
	_ = json.NewDecoder(result.Body).Decode(&body)

	return RecordResponse{Code: result.StatusCode, Header: result.Header, Body: body}
}

// ErrorCode digs the error code out of an envelope body.
func ErrorCode(body map[string]interface{}) string {
	errBody, ok := body["error"].(map[string]interface{})
	if !ok {
		return ""
	}
	code, _ := errBody["code"].(string)
	return code
}

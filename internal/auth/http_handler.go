package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"locallibrary/internal/httpx"
	"locallibrary/internal/platform/crypto"
	"locallibrary/internal/user"
)

type Handler struct {
	svc         *Service
	userService *user.Service
}

func NewHandler(svc *Service, userService *user.Service) *Handler {
	return &Handler{svc: svc, userService: userService}
}

type registerPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=8"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var payload registerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Malformed JSON body", nil)
		return
	}
	if details := httpx.ValidateStruct(&payload); details != nil {
		httpx.JSONError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid registration payload", details)
		return
	}

	u, err := h.svc.Register(r.Context(), payload.Email, payload.Username, payload.Password)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrAlreadyExists):
			httpx.JSONError(w, r, http.StatusConflict, "ALREADY_EXISTS", "Email or username already registered", nil)
		case errors.Is(err, crypto.ErrPasswordTooShort),
			errors.Is(err, crypto.ErrPasswordNoUpper),
			errors.Is(err, crypto.ErrPasswordNoLower),
			errors.Is(err, crypto.ErrPasswordNoNumber):
			httpx.JSONError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		default:
			httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", nil)
		}
		return
	}
	httpx.JSONSuccessCreated(w, r, u)
}

type loginPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Malformed JSON body", nil)
		return
	}
	if details := httpx.ValidateStruct(&payload); details != nil {
		httpx.JSONError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid login payload", details)
		return
	}

	token, expiresIn, err := h.svc.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "Invalid email or password", nil)
		return
	}
	httpx.JSONSuccess(w, r, map[string]interface{}{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   expiresIn,
	}, nil)
}

// Me returns the authenticated account.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFrom(r)
	if userID == "" {
		httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "Authentication is required", nil)
		return
	}
	u, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Account not found", nil)
			return
		}
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", nil)
		return
	}
	httpx.JSONSuccess(w, r, u, nil)
}

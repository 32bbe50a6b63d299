package loan

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"locallibrary/internal/catalog"
	"locallibrary/internal/httpx"
)

// Handler exposes the loan workflow over HTTP. The caller's identity is
// rebuilt from the request context and handed to the service explicitly.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func identityFrom(r *http.Request) Identity {
	return Identity{
		UserID:      httpx.UserIDFrom(r),
		Permissions: httpx.PermissionsFrom(r),
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	switch {
	case errors.Is(err, ErrUnauthenticated):
		httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "Authentication is required", nil)
	case errors.Is(err, ErrPermissionDenied):
		httpx.JSONError(w, r, http.StatusForbidden, "PERMISSION_DENIED", "Missing required permission", nil)
	case errors.Is(err, ErrInvalidTransition):
		httpx.JSONError(w, r, http.StatusConflict, "INVALID_TRANSITION", "Instance is not in the required state", nil)
	case errors.As(err, &verr):
		httpx.JSONError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", verr.Reason, nil)
	case errors.Is(err, catalog.ErrNotFound):
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Instance not found", nil)
	default:
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", nil)
	}
}

func pageFrom(r *http.Request) (catalog.Page, int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize <= 0 || pageSize > catalog.MaxPageSize {
		pageSize = catalog.DefaultPageSize
	}
	return catalog.Page{Limit: pageSize, Offset: (page - 1) * pageSize}, page, pageSize
}

func (h *Handler) Borrow(w http.ResponseWriter, r *http.Request) {
	inst, err := h.svc.Borrow(r.Context(), identityFrom(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, inst, nil)
}

func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	inst, err := h.svc.Return(r.Context(), identityFrom(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, inst, nil)
}

type renewPayload struct {
	RenewalDate string `json:"renewal_date" validate:"required,date"`
}

func (h *Handler) Renew(w http.ResponseWriter, r *http.Request) {
	var payload renewPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Malformed JSON body", nil)
		return
	}
	if details := httpx.ValidateStruct(&payload); details != nil {
		httpx.JSONError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid renewal payload", details)
		return
	}
	date, err := time.Parse("2006-01-02", payload.RenewalDate)
	if err != nil {
		httpx.JSONError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "renewal_date must be YYYY-MM-DD", nil)
		return
	}

	inst, err := h.svc.Renew(r.Context(), identityFrom(r), r.PathValue("id"), date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, inst, nil)
}

// RenewalProposal returns the suggested renewal date for the form, after
// confirming the caller may renew and the instance exists.
func (h *Handler) RenewalProposal(w http.ResponseWriter, r *http.Request) {
	proposed, err := h.svc.RenewalProposal(r.Context(), identityFrom(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, map[string]string{
		"renewal_date": proposed.Format("2006-01-02"),
	}, nil)
}

type statusPayload struct {
	Status string `json:"status" validate:"required,oneof=AVAILABLE MAINTENANCE RESERVED"`
}

func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var payload statusPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Malformed JSON body", nil)
		return
	}
	if details := httpx.ValidateStruct(&payload); details != nil {
		httpx.JSONError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid status payload", details)
		return
	}

	inst, err := h.svc.SetStatus(r.Context(), identityFrom(r), r.PathValue("id"), payload.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, inst, nil)
}

func (h *Handler) MyLoans(w http.ResponseWriter, r *http.Request) {
	p, page, pageSize := pageFrom(r)
	loans, total, err := h.svc.LoansForUser(r.Context(), identityFrom(r), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, loans, httpx.PageMeta(page, pageSize, total))
}

func (h *Handler) AllLoans(w http.ResponseWriter, r *http.Request) {
	p, page, pageSize := pageFrom(r)
	loans, total, err := h.svc.AllLoans(r.Context(), identityFrom(r), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, loans, httpx.PageMeta(page, pageSize, total))
}

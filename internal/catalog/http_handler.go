package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"locallibrary/internal/httpx"
)

// Handler exposes the catalog store over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
	case errors.Is(err, ErrIntegrity):
		httpx.JSONError(w, r, http.StatusConflict, "INTEGRITY_VIOLATION", err.Error(), nil)
	case errors.Is(err, ErrInvalid):
		httpx.JSONError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	default:
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", nil)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Malformed JSON body", nil)
		return false
	}
	return true
}

// pageFrom reads page/page_size query params, defaulting to page 1 of 10.
func pageFrom(r *http.Request) (Page, int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}
	return Page{Limit: pageSize, Offset: (page - 1) * pageSize}, page, pageSize
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type authorPayload struct {
	FirstName   string  `json:"first_name" validate:"required,max=100"`
	LastName    string  `json:"last_name" validate:"required,max=100"`
	DateOfBirth *string `json:"date_of_birth" validate:"omitempty,date"`
	DateOfDeath *string `json:"date_of_death" validate:"omitempty,date"`
}

func (p *authorPayload) toAuthor(w http.ResponseWriter, r *http.Request) (Author, bool) {
	if details := httpx.ValidateStruct(p); details != nil {
		httpx.JSONError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid author payload", details)
		return Author{}, false
	}
	born, err := parseDate(p.DateOfBirth)
	if err != nil {
		httpx.JSONError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "date_of_birth must be YYYY-MM-DD", nil)
		return Author{}, false
	}
	died, err := parseDate(p.DateOfDeath)
	if err != nil {
		httpx.JSONError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "date_of_death must be YYYY-MM-DD", nil)
		return Author{}, false
	}
	return Author{
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		DateOfBirth: born,
		DateOfDeath: died,
	}, true
}

func (h *Handler) CreateAuthor(w http.ResponseWriter, r *http.Request) {
	var payload authorPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	a, ok := payload.toAuthor(w, r)
	if !ok {
		return
	}
	if err := h.svc.CreateAuthor(r.Context(), &a); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccessCreated(w, r, a)
}

func (h *Handler) GetAuthor(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.GetAuthor(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, a, nil)
}

func (h *Handler) UpdateAuthor(w http.ResponseWriter, r *http.Request) {
	var payload authorPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	a, ok := payload.toAuthor(w, r)
	if !ok {
		return
	}
	a.ID = r.PathValue("id")
	if err := h.svc.UpdateAuthor(r.Context(), &a); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, a, nil)
}

func (h *Handler) DeleteAuthor(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteAuthor(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccessNoContent(w)
}

func (h *Handler) ListAuthors(w http.ResponseWriter, r *http.Request) {
	p, page, pageSize := pageFrom(r)
	authors, total, err := h.svc.ListAuthors(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, authors, httpx.PageMeta(page, pageSize, total))
}

type namePayload struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (h *Handler) CreateGenre(w http.ResponseWriter, r *http.Request) {
	var payload namePayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	if details := httpx.ValidateStruct(&payload); details != nil {
		httpx.JSONError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid genre payload", details)
		return
	}
	g := Genre{Name: payload.Name}
	if err := h.svc.CreateGenre(r.Context(), &g); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccessCreated(w, r, g)
}

func (h *Handler) DeleteGenre(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteGenre(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccessNoContent(w)
}

func (h *Handler) ListGenres(w http.ResponseWriter, r *http.Request) {
	p, page, pageSize := pageFrom(r)
	genres, total, err := h.svc.ListGenres(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, genres, httpx.PageMeta(page, pageSize, total))
}

func (h *Handler) CreateLanguage(w http.ResponseWriter, r *http.Request) {
	var payload namePayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	if details := httpx.ValidateStruct(&payload); details != nil {
		httpx.JSONError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid language payload", details)
		return
	}
	l := Language{Name: payload.Name}
	if err := h.svc.CreateLanguage(r.Context(), &l); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccessCreated(w, r, l)
}

func (h *Handler) DeleteLanguage(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteLanguage(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccessNoContent(w)
}

func (h *Handler) ListLanguages(w http.ResponseWriter, r *http.Request) {
	p, page, pageSize := pageFrom(r)
	languages, total, err := h.svc.ListLanguages(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, languages, httpx.PageMeta(page, pageSize, total))
}

type bookPayload struct {
	Title      string   `json:"title" validate:"required,max=200"`
	Summary    string   `json:"summary" validate:"max=2000"`
	ISBN       string   `json:"isbn" validate:"required,isbn"`
	AuthorID   *string  `json:"author_id"`
	LanguageID string   `json:"language_id" validate:"required"`
	GenreIDs   []string `json:"genre_ids"`
}

func (p *bookPayload) toBook(w http.ResponseWriter, r *http.Request) (Book, bool) {
	if details := httpx.ValidateStruct(p); details != nil {
		httpx.JSONError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid book payload", details)
		return Book{}, false
	}
	b := Book{
		Title:      p.Title,
		Summary:    p.Summary,
		ISBN:       p.ISBN,
		AuthorID:   p.AuthorID,
		LanguageID: p.LanguageID,
	}
	for _, id := range p.GenreIDs {
		b.Genres = append(b.Genres, Genre{ID: id})
	}
	return b, true
}

func (h *Handler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var payload bookPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	b, ok := payload.toBook(w, r)
	if !ok {
		return
	}
	if err := h.svc.CreateBook(r.Context(), &b); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccessCreated(w, r, b)
}

func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.GetBook(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, b, nil)
}

func (h *Handler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	var payload bookPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	b, ok := payload.toBook(w, r)
	if !ok {
		return
	}
	b.ID = r.PathValue("id")
	if err := h.svc.UpdateBook(r.Context(), &b); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, b, nil)
}

func (h *Handler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteBook(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccessNoContent(w)
}

func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	p, page, pageSize := pageFrom(r)
	books, total, err := h.svc.ListBooks(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, books, httpx.PageMeta(page, pageSize, total))
}

type instancePayload struct {
	BookID  string `json:"book_id" validate:"required"`
	Imprint string `json:"imprint" validate:"max=200"`
	Status  string `json:"status" validate:"omitempty,oneof=AVAILABLE MAINTENANCE"`
}

func (h *Handler) CreateInstance(w http.ResponseWriter, r *http.Request) {
	var payload instancePayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	if details := httpx.ValidateStruct(&payload); details != nil {
		httpx.JSONError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid instance payload", details)
		return
	}
	i := BookInstance{
		BookID:  payload.BookID,
		Imprint: payload.Imprint,
		Status:  payload.Status,
	}
	if err := h.svc.CreateInstance(r.Context(), &i); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccessCreated(w, r, i)
}

func (h *Handler) GetInstance(w http.ResponseWriter, r *http.Request) {
	i, err := h.svc.GetInstance(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, i, nil)
}

func (h *Handler) DeleteInstance(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteInstance(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccessNoContent(w)
}

func (h *Handler) ListInstancesByBook(w http.ResponseWriter, r *http.Request) {
	p, page, pageSize := pageFrom(r)
	instances, total, err := h.svc.ListInstancesByBook(r.Context(), r.PathValue("id"), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, instances, httpx.PageMeta(page, pageSize, total))
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, st, nil)
}

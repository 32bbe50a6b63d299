package catalog

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

var (
	isbn10Pattern = regexp.MustCompile(`^\d{9}[\dX]$`)
	isbn13Pattern = regexp.MustCompile(`^\d{13}$`)
)

// ValidateISBN accepts 10 or 13 digit ISBNs, with dashes and spaces ignored.
func ValidateISBN(isbn string) error {
	s := strings.ReplaceAll(isbn, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	if isbn10Pattern.MatchString(s) || isbn13Pattern.MatchString(s) {
		return nil
	}
	return fmt.Errorf("%w: isbn must be 10 or 13 digits", ErrInvalid)
}

func validateAuthor(a *Author) error {
	if strings.TrimSpace(a.FirstName) == "" || strings.TrimSpace(a.LastName) == "" {
		return fmt.Errorf("%w: author name is required", ErrInvalid)
	}
	if a.DateOfBirth != nil && a.DateOfDeath != nil && a.DateOfDeath.Before(*a.DateOfBirth) {
		return fmt.Errorf("%w: date of death precedes date of birth", ErrIntegrity)
	}
	return nil
}

// NormalizePage clamps pagination to sane bounds.
func NormalizePage(p Page) Page {
	if p.Limit <= 0 || p.Limit > MaxPageSize {
		p.Limit = DefaultPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Service provides catalog business logic over a Repository.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateAuthor(ctx context.Context, a *Author) error {
	if err := validateAuthor(a); err != nil {
		return err
	}
	return s.repo.CreateAuthor(ctx, a)
}

func (s *Service) GetAuthor(ctx context.Context, id string) (Author, error) {
	return s.repo.GetAuthor(ctx, id)
}

func (s *Service) UpdateAuthor(ctx context.Context, a *Author) error {
	if err := validateAuthor(a); err != nil {
		return err
	}
	return s.repo.UpdateAuthor(ctx, a)
}

// DeleteAuthor fails with ErrIntegrity while any book references the author.
func (s *Service) DeleteAuthor(ctx context.Context, id string) error {
	return s.repo.DeleteAuthor(ctx, id)
}

func (s *Service) ListAuthors(ctx context.Context, p Page) ([]Author, int, error) {
	return s.repo.ListAuthors(ctx, NormalizePage(p))
}

func (s *Service) CreateGenre(ctx context.Context, g *Genre) error {
	if strings.TrimSpace(g.Name) == "" {
		return fmt.Errorf("%w: genre name is required", ErrInvalid)
	}
	return s.repo.CreateGenre(ctx, g)
}

func (s *Service) DeleteGenre(ctx context.Context, id string) error {
	return s.repo.DeleteGenre(ctx, id)
}

func (s *Service) ListGenres(ctx context.Context, p Page) ([]Genre, int, error) {
	return s.repo.ListGenres(ctx, NormalizePage(p))
}

func (s *Service) CreateLanguage(ctx context.Context, l *Language) error {
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("%w: language name is required", ErrInvalid)
	}
	return s.repo.CreateLanguage(ctx, l)
}

func (s *Service) DeleteLanguage(ctx context.Context, id string) error {
	return s.repo.DeleteLanguage(ctx, id)
}

func (s *Service) ListLanguages(ctx context.Context, p Page) ([]Language, int, error) {
	return s.repo.ListLanguages(ctx, NormalizePage(p))
}

func (s *Service) CreateBook(ctx context.Context, b *Book) error {
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if err := ValidateISBN(b.ISBN); err != nil {
		return err
	}
	return s.repo.CreateBook(ctx, b)
}

func (s *Service) GetBook(ctx context.Context, id string) (Book, error) {
	return s.repo.GetBook(ctx, id)
}

func (s *Service) UpdateBook(ctx context.Context, b *Book) error {
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if err := ValidateISBN(b.ISBN); err != nil {
		return err
	}
	return s.repo.UpdateBook(ctx, b)
}

func (s *Service) DeleteBook(ctx context.Context, id string) error {
	return s.repo.DeleteBook(ctx, id)
}

func (s *Service) ListBooks(ctx context.Context, p Page) ([]Book, int, error) {
	return s.repo.ListBooks(ctx, NormalizePage(p))
}

// CreateInstance registers a newly acquired physical copy. A copy enters the
// catalog as AVAILABLE or MAINTENANCE; loan states are reached only through
// the loan workflow.
func (s *Service) CreateInstance(ctx context.Context, i *BookInstance) error {
	if i.Status == "" {
		i.Status = StatusAvailable
	}
	if i.Status != StatusAvailable && i.Status != StatusMaintenance {
		return fmt.Errorf("%w: new instances must be AVAILABLE or MAINTENANCE", ErrInvalid)
	}
	return s.repo.CreateInstance(ctx, i)
}

func (s *Service) GetInstance(ctx context.Context, id string) (BookInstance, error) {
	return s.repo.GetInstance(ctx, id)
}

// DeleteInstance fails with ErrIntegrity while the copy is on loan.
func (s *Service) DeleteInstance(ctx context.Context, id string) error {
	return s.repo.DeleteInstance(ctx, id)
}

func (s *Service) ListInstancesByBook(ctx context.Context, bookID string, p Page) ([]BookInstance, int, error) {
	return s.repo.ListInstancesByBook(ctx, bookID, NormalizePage(p))
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx)
}

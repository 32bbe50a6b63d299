package catalog

import (
	"errors"
	"time"
)

// ErrNotFound is returned when an identifier does not resolve to a row.
var ErrNotFound = errors.New("catalog: not found")

// ErrIntegrity is returned when a write would break a uniqueness or
// foreign-key constraint, or the author date rule.
var ErrIntegrity = errors.New("catalog: integrity violation")

// ErrInvalid is returned when caller-supplied input fails a business rule
// before it ever reaches the store.
var ErrInvalid = errors.New("catalog: invalid input")

// Book instance statuses.
const (
	StatusMaintenance = "MAINTENANCE"
	StatusAvailable   = "AVAILABLE"
	StatusReserved    = "RESERVED"
	StatusOnLoan      = "ON_LOAN"
)

func ValidStatus(status string) bool {
	switch status {
	case StatusMaintenance, StatusAvailable, StatusReserved, StatusOnLoan:
		return true
	}
	return false
}

type Author struct {
	ID          string     `json:"id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	DateOfDeath *time.Time `json:"date_of_death,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Genre struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Language struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Book is a catalog entry, not a physical item; physical copies are
// BookInstances owned by the book.
type Book struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Summary    string    `json:"summary,omitempty"`
	ISBN       string    `json:"isbn"`
	AuthorID   *string   `json:"author_id,omitempty"`
	LanguageID string    `json:"language_id"`
	Genres     []Genre   `json:"genres,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// BookInstance is one loanable copy of a Book. Borrower and DueBack are
// set exactly while the copy is on loan.
type BookInstance struct {
	ID         string     `json:"id"`
	BookID     string     `json:"book_id"`
	Imprint    string     `json:"imprint,omitempty"`
	Status     string     `json:"status"`
	DueBack    *time.Time `json:"due_back,omitempty"`
	BorrowerID *string    `json:"borrower_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Page defines offset pagination for list operations.
type Page struct {
	Limit  int
	Offset int
}

// Stats are the summary counts shown on the landing page.
type Stats struct {
	Books              int      `json:"books"`
	Instances          int      `json:"instances"`
	InstancesAvailable int      `json:"instances_available"`
	Authors            int      `json:"authors"`
	Genres             []string `json:"genres"`
}

package loan

import (
	"errors"
	"time"

	"locallibrary/internal/catalog"
)

// CanManageLoans is the staff capability checked before renewals, returns
// and manual status changes.
const CanManageLoans = "catalog.can_manage_loans"

var (
	// ErrUnauthenticated is returned when an operation requires an identity
	// and none was supplied.
	ErrUnauthenticated = errors.New("loan: unauthenticated")

	// ErrPermissionDenied is returned when the caller is authenticated but
	// lacks the required permission.
	ErrPermissionDenied = errors.New("loan: permission denied")

	// ErrInvalidTransition is returned when an instance is not in the state
	// the operation requires.
	ErrInvalidTransition = errors.New("loan: invalid transition")
)

// ValidationError reports a caller-supplied value that fails a business
// rule, e.g. a renewal date in the past.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "loan: validation failed: " + e.Reason
}

// Identity carries the caller's user id and granted permission names.
// The zero value is an anonymous caller.
type Identity struct {
	UserID      string
	Permissions []string
}

func (id Identity) Authenticated() bool {
	return id.UserID != ""
}

func (id Identity) Can(permission string) bool {
	for _, p := range id.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// Loan is an on-loan instance joined with its book title for display.
type Loan struct {
	Instance  catalog.BookInstance `json:"instance"`
	BookTitle string               `json:"book_title"`
}

// Policy holds the date rules around loans.
type Policy struct {
	// LoanPeriod is added to today to compute the due date on borrow.
	LoanPeriod time.Duration
	// RenewalHorizon bounds how far out a renewal date may be set.
	RenewalHorizon time.Duration
	// ProposedRenewal is the suggested extension offered to staff.
	ProposedRenewal time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		LoanPeriod:      21 * 24 * time.Hour,
		RenewalHorizon:  4 * 7 * 24 * time.Hour,
		ProposedRenewal: 3 * 7 * 24 * time.Hour,
	}
}

package loan

import (
	"context"
	"time"

	"locallibrary/internal/catalog"
)

// Repository is the loan workflow's view of instance storage. Transition
// methods are compare-and-set: they mutate the row only if it is in the
// expected state and report whether a row matched, so a concurrent race on
// the same instance has exactly one winner.
type Repository interface {
	GetInstance(ctx context.Context, id string) (catalog.BookInstance, error)

	// Borrow moves an AVAILABLE instance to ON_LOAN.
	Borrow(ctx context.Context, instanceID, borrowerID string, dueBack time.Time) (bool, error)
	// Return moves an ON_LOAN instance back to AVAILABLE, clearing the
	// borrower and due date.
	Return(ctx context.Context, instanceID string) (bool, error)
	// Renew sets a new due date on an ON_LOAN instance.
	Renew(ctx context.Context, instanceID string, dueBack time.Time) (bool, error)
	// SetStatus moves an instance from one non-loan status to another.
	SetStatus(ctx context.Context, instanceID, from, to string) (bool, error)

	ListOnLoanByBorrower(ctx context.Context, borrowerID string, p catalog.Page) ([]Loan, int, error)
	ListOnLoan(ctx context.Context, p catalog.Page) ([]Loan, int, error)
}

package loan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"locallibrary/internal/catalog"
)

// Service is the only component that changes a BookInstance's loan state.
// Caller identity and permissions arrive as explicit arguments; the current
// date comes from an injected clock so the date rules stay testable.
type Service struct {
	repo   Repository
	policy Policy
	now    func() time.Time
}

func NewService(repo Repository, policy Policy, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, policy: policy, now: now}
}

// today truncates the clock to day granularity; all loan dates are dates.
func (s *Service) today() time.Time {
	t := s.now()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Borrow checks out an AVAILABLE instance to the caller and stamps the due
// date at today plus the loan period.
func (s *Service) Borrow(ctx context.Context, caller Identity, instanceID string) (catalog.BookInstance, error) {
	if !caller.Authenticated() {
		return catalog.BookInstance{}, ErrUnauthenticated
	}
	dueBack := s.today().Add(s.policy.LoanPeriod)
	ok, err := s.repo.Borrow(ctx, instanceID, caller.UserID, dueBack)
	if err != nil {
		return catalog.BookInstance{}, err
	}
	if !ok {
		return catalog.BookInstance{}, s.transitionError(ctx, instanceID)
	}
	return s.repo.GetInstance(ctx, instanceID)
}

// Return marks an ON_LOAN instance as back on the shelf.
func (s *Service) Return(ctx context.Context, caller Identity, instanceID string) (catalog.BookInstance, error) {
	if err := requirePermission(caller, CanManageLoans); err != nil {
		return catalog.BookInstance{}, err
	}
	ok, err := s.repo.Return(ctx, instanceID)
	if err != nil {
		return catalog.BookInstance{}, err
	}
	if !ok {
		return catalog.BookInstance{}, s.transitionError(ctx, instanceID)
	}
	return s.repo.GetInstance(ctx, instanceID)
}

// Renew extends an active loan to renewalDate. The date must be strictly
// after today and no further out than the renewal horizon; date rules are
// checked before permissions so a bad date reads the same to every caller.
func (s *Service) Renew(ctx context.Context, caller Identity, instanceID string, renewalDate time.Time) (catalog.BookInstance, error) {
	today := s.today()
	date := time.Date(renewalDate.Year(), renewalDate.Month(), renewalDate.Day(), 0, 0, 0, 0, time.UTC)
	if !date.After(today) {
		return catalog.BookInstance{}, &ValidationError{Reason: "date in past"}
	}
	if date.After(today.Add(s.policy.RenewalHorizon)) {
		return catalog.BookInstance{}, &ValidationError{Reason: "date out of range"}
	}

	if err := requirePermission(caller, CanManageLoans); err != nil {
		return catalog.BookInstance{}, err
	}

	ok, err := s.repo.Renew(ctx, instanceID, date)
	if err != nil {
		return catalog.BookInstance{}, err
	}
	if !ok {
		return catalog.BookInstance{}, s.transitionError(ctx, instanceID)
	}
	return s.repo.GetInstance(ctx, instanceID)
}

// ProposedRenewalDate is the default extension offered on the renewal form.
func (s *Service) ProposedRenewalDate() time.Time {
	return s.today().Add(s.policy.ProposedRenewal)
}

// RenewalProposal returns the default renewal date for an existing copy.
// Like Renew itself, it is a staff operation.
func (s *Service) RenewalProposal(ctx context.Context, caller Identity, instanceID string) (time.Time, error) {
	if err := requirePermission(caller, CanManageLoans); err != nil {
		return time.Time{}, err
	}
	if _, err := s.repo.GetInstance(ctx, instanceID); err != nil {
		return time.Time{}, err
	}
	return s.ProposedRenewalDate(), nil
}

// SetStatus performs the manual staff transitions: a copy moves between
// MAINTENANCE or RESERVED and AVAILABLE, never in or out of ON_LOAN.
func (s *Service) SetStatus(ctx context.Context, caller Identity, instanceID, target string) (catalog.BookInstance, error) {
	if err := requirePermission(caller, CanManageLoans); err != nil {
		return catalog.BookInstance{}, err
	}

	var from string
	switch target {
	case catalog.StatusAvailable:
		// reachable from either parked state; resolve the current one
		inst, err := s.repo.GetInstance(ctx, instanceID)
		if err != nil {
			return catalog.BookInstance{}, err
		}
		if inst.Status != catalog.StatusMaintenance && inst.Status != catalog.StatusReserved {
			return catalog.BookInstance{}, ErrInvalidTransition
		}
		from = inst.Status
	case catalog.StatusMaintenance, catalog.StatusReserved:
		from = catalog.StatusAvailable
	default:
		if !catalog.ValidStatus(target) {
			return catalog.BookInstance{}, &ValidationError{Reason: fmt.Sprintf("unknown status %q", target)}
		}
		// ON_LOAN is a real status but only borrow/return may enter or leave it
		return catalog.BookInstance{}, &ValidationError{Reason: "loans are managed through borrow and return"}
	}

	ok, err := s.repo.SetStatus(ctx, instanceID, from, target)
	if err != nil {
		return catalog.BookInstance{}, err
	}
	if !ok {
		return catalog.BookInstance{}, s.transitionError(ctx, instanceID)
	}
	return s.repo.GetInstance(ctx, instanceID)
}

// LoansForUser lists the caller's active loans ordered by due date.
func (s *Service) LoansForUser(ctx context.Context, caller Identity, p catalog.Page) ([]Loan, int, error) {
	if !caller.Authenticated() {
		return nil, 0, ErrUnauthenticated
	}
	return s.repo.ListOnLoanByBorrower(ctx, caller.UserID, catalog.NormalizePage(p))
}

// AllLoans lists every active loan ordered by due date. Staff only.
func (s *Service) AllLoans(ctx context.Context, caller Identity, p catalog.Page) ([]Loan, int, error) {
	if err := requirePermission(caller, CanManageLoans); err != nil {
		return nil, 0, err
	}
	return s.repo.ListOnLoan(ctx, catalog.NormalizePage(p))
}

func requirePermission(caller Identity, permission string) error {
	if !caller.Authenticated() {
		return ErrUnauthenticated
	}
	if !caller.Can(permission) {
		return ErrPermissionDenied
	}
	return nil
}

// transitionError decides why a compare-and-set matched nothing: the
// instance is either missing or in the wrong state.
func (s *Service) transitionError(ctx context.Context, instanceID string) error {
	if _, err := s.repo.GetInstance(ctx, instanceID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return catalog.ErrNotFound
		}
		return err
	}
	return ErrInvalidTransition
}

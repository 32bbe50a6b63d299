package loan

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"locallibrary/internal/catalog"
)

// fakeRepo is an in-memory Repository with the same compare-and-set
// semantics as the postgres implementation.
type fakeRepo struct {
	mu        sync.Mutex
	instances map[string]catalog.BookInstance
	titles    map[string]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		instances: make(map[string]catalog.BookInstance),
		titles:    make(map[string]string),
	}
}

func (f *fakeRepo) add(i catalog.BookInstance, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instances[i.ID] = i
	f.titles[i.BookID] = title
}

func (f *fakeRepo) GetInstance(_ context.Context, id string) (catalog.BookInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.instances[id]
	if !ok {
		return catalog.BookInstance{}, catalog.ErrNotFound
	}
	return i, nil
}

func (f *fakeRepo) Borrow(_ context.Context, instanceID, borrowerID string, dueBack time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.instances[instanceID]
	if !ok || i.Status != catalog.StatusAvailable {
		return false, nil
	}
	i.Status = catalog.StatusOnLoan
	i.BorrowerID = &borrowerID
	i.DueBack = &dueBack
	f.instances[instanceID] = i
	return true, nil
}

func (f *fakeRepo) Return(_ context.Context, instanceID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.instances[instanceID]
	if !ok || i.Status != catalog.StatusOnLoan {
		return false, nil
	}
	i.Status = catalog.StatusAvailable
	i.BorrowerID = nil
	i.DueBack = nil
	f.instances[instanceID] = i
	return true, nil
}

func (f *fakeRepo) Renew(_ context.Context, instanceID string, dueBack time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.instances[instanceID]
	if !ok || i.Status != catalog.StatusOnLoan {
		return false, nil
	}
	i.DueBack = &dueBack
	f.instances[instanceID] = i
	return true, nil
}

func (f *fakeRepo) SetStatus(_ context.Context, instanceID, from, to string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.instances[instanceID]
	if !ok || i.Status != from {
		return false, nil
	}
	i.Status = to
	f.instances[instanceID] = i
	return true, nil
}

func (f *fakeRepo) ListOnLoanByBorrower(_ context.Context, borrowerID string, p catalog.Page) ([]Loan, int, error) {
	return f.list(func(i catalog.BookInstance) bool {
		return i.Status == catalog.StatusOnLoan && i.BorrowerID != nil && *i.BorrowerID == borrowerID
	}, p)
}

func (f *fakeRepo) ListOnLoan(_ context.Context, p catalog.Page) ([]Loan, int, error) {
	return f.list(func(i catalog.BookInstance) bool {
		return i.Status == catalog.StatusOnLoan
	}, p)
}

func (f *fakeRepo) list(match func(catalog.BookInstance) bool, p catalog.Page) ([]Loan, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var loans []Loan
	for _, i := range f.instances {
		if match(i) {
			loans = append(loans, Loan{Instance: i, BookTitle: f.titles[i.BookID]})
		}
	}
	sort.Slice(loans, func(a, b int) bool {
		return loans[a].Instance.DueBack.Before(*loans[b].Instance.DueBack)
	})
	total := len(loans)
	if p.Offset > total {
		return nil, total, nil
	}
	end := p.Offset + p.Limit
	if end > total {
		end = total
	}
	return loans[p.Offset:end], total, nil
}

var fixedNow = time.Date(2024, 5, 10, 15, 30, 0, 0, time.UTC)

func today() time.Time {
	return time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
}

func newTestService(repo Repository) *Service {
	return NewService(repo, DefaultPolicy(), func() time.Time { return fixedNow })
}

var (
	member = Identity{UserID: "user-member-1"}
	staff  = Identity{UserID: "user-staff-1", Permissions: []string{CanManageLoans}}
)

func availableInstance(id string) catalog.BookInstance {
	return catalog.BookInstance{
		ID:     id,
		BookID: "book-1",
		Status: catalog.StatusAvailable,
	}
}

func TestBorrowRequiresAuthentication(t *testing.T) {
	repo := newFakeRepo()
	repo.add(availableInstance("copy-1"), "Test")
	svc := newTestService(repo)

	_, err := svc.Borrow(context.Background(), Identity{}, "copy-1")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	got, _ := repo.GetInstance(context.Background(), "copy-1")
	assert.Equal(t, catalog.StatusAvailable, got.Status)
}

func TestBorrowSetsBorrowerAndDueDate(t *testing.T) {
	repo := newFakeRepo()
	repo.add(availableInstance("copy-1"), "Test")
	svc := newTestService(repo)

	inst, err := svc.Borrow(context.Background(), member, "copy-1")
	require.NoError(t, err)

	assert.Equal(t, catalog.StatusOnLoan, inst.Status)
	require.NotNil(t, inst.BorrowerID)
	assert.Equal(t, member.UserID, *inst.BorrowerID)
	require.NotNil(t, inst.DueBack)
	assert.Equal(t, today().Add(21*24*time.Hour), *inst.DueBack)
}

func TestBorrowNotAvailable(t *testing.T) {
	for _, status := range []string{catalog.StatusOnLoan, catalog.StatusMaintenance, catalog.StatusReserved} {
		t.Run(status, func(t *testing.T) {
			repo := newFakeRepo()
			i := availableInstance("copy-1")
			i.Status = status
			if status == catalog.StatusOnLoan {
				borrower := "someone-else"
				due := today().Add(24 * time.Hour)
				i.BorrowerID = &borrower
				i.DueBack = &due
			}
			repo.add(i, "Test")
			svc := newTestService(repo)

			_, err := svc.Borrow(context.Background(), member, "copy-1")
			assert.ErrorIs(t, err, ErrInvalidTransition)

			got, _ := repo.GetInstance(context.Background(), "copy-1")
			assert.Equal(t, status, got.Status)
		})
	}
}

func TestBorrowUnknownInstance(t *testing.T) {
	svc := newTestService(newFakeRepo())
	_, err := svc.Borrow(context.Background(), member, "no-such-copy")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestConcurrentBorrowSingleWinner(t *testing.T) {
	repo := newFakeRepo()
	repo.add(availableInstance("copy-1"), "Test")
	svc := newTestService(repo)

	callers := []Identity{{UserID: "user-a"}, {UserID: "user-b"}}
	errs := make([]error, len(callers))

	var wg sync.WaitGroup
	for n, caller := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[n] = svc.Borrow(context.Background(), caller, "copy-1")
		}()
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrInvalidTransition):
			conflicts++
		default:
			t.Fatalf("unexpected borrow error: %v", err)
		}
	}
	assert.Equal(t, 1, wins, "exactly one borrow must succeed")
	assert.Equal(t, 1, conflicts, "the other must observe an invalid transition")

	got, _ := repo.GetInstance(context.Background(), "copy-1")
	assert.Equal(t, catalog.StatusOnLoan, got.Status)
}

func TestReturnClearsLoan(t *testing.T) {
	repo := newFakeRepo()
	repo.add(availableInstance("copy-1"), "Test")
	svc := newTestService(repo)

	_, err := svc.Borrow(context.Background(), member, "copy-1")
	require.NoError(t, err)

	inst, err := svc.Return(context.Background(), staff, "copy-1")
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusAvailable, inst.Status)
	assert.Nil(t, inst.BorrowerID)
	assert.Nil(t, inst.DueBack)
}

func TestReturnNotOnLoan(t *testing.T) {
	repo := newFakeRepo()
	repo.add(availableInstance("copy-1"), "Test")
	svc := newTestService(repo)

	_, err := svc.Return(context.Background(), staff, "copy-1")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, _ := repo.GetInstance(context.Background(), "copy-1")
	assert.Equal(t, catalog.StatusAvailable, got.Status)
}

func TestReturnRequiresPermission(t *testing.T) {
	repo := newFakeRepo()
	repo.add(availableInstance("copy-1"), "Test")
	svc := newTestService(repo)

	_, err := svc.Borrow(context.Background(), member, "copy-1")
	require.NoError(t, err)

	_, err = svc.Return(context.Background(), member, "copy-1")
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = svc.Return(context.Background(), Identity{}, "copy-1")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRenewPastDateFailsRegardlessOfPermission(t *testing.T) {
	repo := newFakeRepo()
	repo.add(availableInstance("copy-1"), "Test")
	svc := newTestService(repo)

	_, err := svc.Borrow(context.Background(), member, "copy-1")
	require.NoError(t, err)

	yesterday := today().Add(-24 * time.Hour)
	for _, caller := range []Identity{staff, member, {}} {
		_, err := svc.Renew(context.Background(), caller, "copy-1", yesterday)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "date in past", verr.Reason)
	}

	// today itself is not a valid renewal date either
	_, err = svc.Renew(context.Background(), staff, "copy-1", today())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "date in past", verr.Reason)
}

func TestRenewDateOutOfRange(t *testing.T) {
	repo := newFakeRepo()
	repo.add(availableInstance("copy-1"), "Test")
	svc := newTestService(repo)

	_, err := svc.Borrow(context.Background(), member, "copy-1")
	require.NoError(t, err)

	tooFar := today().Add(4*7*24*time.Hour + 24*time.Hour)
	_, err = svc.Renew(context.Background(), staff, "copy-1", tooFar)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "date out of range", verr.Reason)

	// the horizon itself is allowed
	_, err = svc.Renew(context.Background(), staff, "copy-1", today().Add(4*7*24*time.Hour))
	assert.NoError(t, err)
}

func TestRenewWithoutPermission(t *testing.T) {
	repo := newFakeRepo()
	repo.add(availableInstance("copy-1"), "Test")
	svc := newTestService(repo)

	_, err := svc.Borrow(context.Background(), member, "copy-1")
	require.NoError(t, err)

	validDate := today().Add(14 * 24 * time.Hour)
	_, err = svc.Renew(context.Background(), member, "copy-1", validDate)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = svc.Renew(context.Background(), Identity{}, "copy-1", validDate)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRenewNotOnLoan(t *testing.T) {
	repo := newFakeRepo()
	repo.add(availableInstance("copy-1"), "Test")
	svc := newTestService(repo)

	_, err := svc.Renew(context.Background(), staff, "copy-1", today().Add(14*24*time.Hour))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestProposedRenewalDate(t *testing.T) {
	svc := newTestService(newFakeRepo())
	assert.Equal(t, today().Add(3*7*24*time.Hour), svc.ProposedRenewalDate())
}

func TestRenewalProposal(t *testing.T) {
	repo := newFakeRepo()
	repo.add(availableInstance("copy-1"), "Test")
	svc := newTestService(repo)
	ctx := context.Background()

	proposed, err := svc.RenewalProposal(ctx, staff, "copy-1")
	require.NoError(t, err)
	assert.Equal(t, today().Add(3*7*24*time.Hour), proposed)

	_, err = svc.RenewalProposal(ctx, member, "copy-1")
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = svc.RenewalProposal(ctx, staff, "copy-missing")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestSetStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		wantErr error
	}{
		{"available to maintenance", catalog.StatusAvailable, catalog.StatusMaintenance, nil},
		{"available to reserved", catalog.StatusAvailable, catalog.StatusReserved, nil},
		{"maintenance to available", catalog.StatusMaintenance, catalog.StatusAvailable, nil},
		{"reserved to available", catalog.StatusReserved, catalog.StatusAvailable, nil},
		{"maintenance to reserved", catalog.StatusMaintenance, catalog.StatusReserved, ErrInvalidTransition},
		{"reserved to maintenance", catalog.StatusReserved, catalog.StatusMaintenance, ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo()
			i := availableInstance("copy-1")
			i.Status = tt.from
			repo.add(i, "Test")
			svc := newTestService(repo)

			inst, err := svc.SetStatus(context.Background(), staff, "copy-1", tt.to)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				got, _ := repo.GetInstance(context.Background(), "copy-1")
				assert.Equal(t, tt.from, got.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, inst.Status)
		})
	}
}

func TestSetStatusNeverTouchesLoans(t *testing.T) {
	repo := newFakeRepo()
	repo.add(availableInstance("copy-1"), "Test")
	svc := newTestService(repo)

	_, err := svc.Borrow(context.Background(), member, "copy-1")
	require.NoError(t, err)

	for _, target := range []string{catalog.StatusAvailable, catalog.StatusMaintenance, catalog.StatusReserved} {
		_, err := svc.SetStatus(context.Background(), staff, "copy-1", target)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	}

	var verr *ValidationError
	_, err = svc.SetStatus(context.Background(), staff, "copy-1", "ON_LOAN")
	assert.ErrorAs(t, err, &verr)
}

func TestSetStatusRejectsUnknownTarget(t *testing.T) {
	repo := newFakeRepo()
	repo.add(availableInstance("copy-1"), "Test")
	svc := newTestService(repo)

	var verr *ValidationError
	_, err := svc.SetStatus(context.Background(), staff, "copy-1", "LOST")
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "unknown status")

	// ON_LOAN is a real status, so the reason points at the loan workflow
	_, err = svc.SetStatus(context.Background(), staff, "copy-1", catalog.StatusOnLoan)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "borrow and return")

	got, _ := repo.GetInstance(context.Background(), "copy-1")
	assert.Equal(t, catalog.StatusAvailable, got.Status)
}

func TestSetStatusRequiresPermission(t *testing.T) {
	repo := newFakeRepo()
	repo.add(availableInstance("copy-1"), "Test")
	svc := newTestService(repo)

	_, err := svc.SetStatus(context.Background(), member, "copy-1", catalog.StatusMaintenance)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

// Full lifecycle: acquire -> borrow -> renew -> return.
func TestLoanLifecycle(t *testing.T) {
	repo := newFakeRepo()
	repo.add(catalog.BookInstance{
		ID:     "copy-1",
		BookID: "book-test",
		Status: catalog.StatusAvailable,
	}, "Test")
	svc := newTestService(repo)
	ctx := context.Background()

	inst, err := svc.Borrow(ctx, member, "copy-1")
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusOnLoan, inst.Status)
	require.NotNil(t, inst.BorrowerID)
	assert.Equal(t, member.UserID, *inst.BorrowerID)
	require.NotNil(t, inst.DueBack)
	assert.Equal(t, today().Add(21*24*time.Hour), *inst.DueBack)

	twoWeeks := today().Add(14 * 24 * time.Hour)
	inst, err = svc.Renew(ctx, staff, "copy-1", twoWeeks)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusOnLoan, inst.Status)
	require.NotNil(t, inst.DueBack)
	assert.Equal(t, twoWeeks, *inst.DueBack)

	inst, err = svc.Return(ctx, staff, "copy-1")
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusAvailable, inst.Status)
	assert.Nil(t, inst.BorrowerID)
	assert.Nil(t, inst.DueBack)
}

func TestAllLoansOrderedByDueDate(t *testing.T) {
	repo := newFakeRepo()
	repo.add(availableInstance("copy-1"), "Test")
	second := availableInstance("copy-2")
	repo.add(second, "Test")
	svc := newTestService(repo)
	ctx := context.Background()

	// borrow copy-2 first, then renew copy-1's loan ahead of it so the
	// due dates invert insertion order
	_, err := svc.Borrow(ctx, member, "copy-2")
	require.NoError(t, err)
	_, err = svc.Borrow(ctx, Identity{UserID: "user-other"}, "copy-1")
	require.NoError(t, err)
	_, err = svc.Renew(ctx, staff, "copy-1", today().Add(7*24*time.Hour))
	require.NoError(t, err)

	loans, total, err := svc.AllLoans(ctx, staff, catalog.Page{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, loans, 2)
	assert.Equal(t, "copy-1", loans[0].Instance.ID)
	assert.Equal(t, "copy-2", loans[1].Instance.ID)
	assert.True(t, loans[0].Instance.DueBack.Before(*loans[1].Instance.DueBack))
}

func TestAllLoansRequiresPermission(t *testing.T) {
	svc := newTestService(newFakeRepo())
	_, _, err := svc.AllLoans(context.Background(), member, catalog.Page{Limit: 10})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestLoansForUserFiltersBorrower(t *testing.T) {
	repo := newFakeRepo()
	repo.add(availableInstance("copy-1"), "Test")
	repo.add(availableInstance("copy-2"), "Test")
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Borrow(ctx, member, "copy-1")
	require.NoError(t, err)
	_, err = svc.Borrow(ctx, Identity{UserID: "user-other"}, "copy-2")
	require.NoError(t, err)

	loans, total, err := svc.LoansForUser(ctx, member, catalog.Page{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, loans, 1)
	assert.Equal(t, "copy-1", loans[0].Instance.ID)

	_, _, err = svc.LoansForUser(ctx, Identity{}, catalog.Page{Limit: 10})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

package loan

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"locallibrary/internal/catalog"
)

// PostgresRepo implements Repository with single-statement conditional
// updates. Each transition is one atomic read-modify-write on its row.
type PostgresRepo struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresRepo(db *pgxpool.Pool, timeout time.Duration) *PostgresRepo {
	return &PostgresRepo{db: db, timeout: timeout}
}

func (r *PostgresRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *PostgresRepo) GetInstance(ctx context.Context, id string) (catalog.BookInstance, error) {
	const sql = `
		SELECT id, book_id, imprint, status, due_back, borrower_id, created_at, updated_at
		FROM book_instances
		WHERE id = $1`
	var i catalog.BookInstance
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	err := r.db.QueryRow(timeoutCtx, sql, id).
		Scan(&i.ID, &i.BookID, &i.Imprint, &i.Status, &i.DueBack, &i.BorrowerID, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.BookInstance{}, catalog.ErrNotFound
		}
		return catalog.BookInstance{}, err
	}
	return i, nil
}

func (r *PostgresRepo) Borrow(ctx context.Context, instanceID, borrowerID string, dueBack time.Time) (bool, error) {
	const sql = `
		UPDATE book_instances
		SET status = 'ON_LOAN', borrower_id = $2, due_back = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'AVAILABLE'`
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(timeoutCtx, sql, instanceID, borrowerID, dueBack)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepo) Return(ctx context.Context, instanceID string) (bool, error) {
	const sql = `
		UPDATE book_instances
		SET status = 'AVAILABLE', borrower_id = NULL, due_back = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'ON_LOAN'`
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(timeoutCtx, sql, instanceID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepo) Renew(ctx context.Context, instanceID string, dueBack time.Time) (bool, error) {
	const sql = `
		UPDATE book_instances
		SET due_back = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'ON_LOAN'`
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(timeoutCtx, sql, instanceID, dueBack)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepo) SetStatus(ctx context.Context, instanceID, from, to string) (bool, error) {
	const sql = `
		UPDATE book_instances
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(timeoutCtx, sql, instanceID, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepo) ListOnLoanByBorrower(ctx context.Context, borrowerID string, p catalog.Page) ([]Loan, int, error) {
	const countSQL = `
		SELECT COUNT(*)
		FROM book_instances
		WHERE borrower_id = $1 AND status = 'ON_LOAN'`
	var total int
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.db.QueryRow(timeoutCtx, countSQL, borrowerID).Scan(&total); err != nil {
		return nil, 0, err
	}

	const dataSQL = `
		SELECT i.id, i.book_id, i.imprint, i.status, i.due_back, i.borrower_id,
		       i.created_at, i.updated_at, b.title
		FROM book_instances i
		JOIN books b ON b.id = i.book_id
		WHERE i.borrower_id = $1 AND i.status = 'ON_LOAN'
		ORDER BY i.due_back ASC, i.id
		LIMIT $2 OFFSET $3`
	timeoutCtx2, cancel2 := r.withTimeout(ctx)
	defer cancel2()
	rows, err := r.db.Query(timeoutCtx2, dataSQL, borrowerID, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return scanLoans(rows, total)
}

func (r *PostgresRepo) ListOnLoan(ctx context.Context, p catalog.Page) ([]Loan, int, error) {
	const countSQL = `SELECT COUNT(*) FROM book_instances WHERE status = 'ON_LOAN'`
	var total int
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.db.QueryRow(timeoutCtx, countSQL).Scan(&total); err != nil {
		return nil, 0, err
	}

	const dataSQL = `
		SELECT i.id, i.book_id, i.imprint, i.status, i.due_back, i.borrower_id,
		       i.created_at, i.updated_at, b.title
		FROM book_instances i
		JOIN books b ON b.id = i.book_id
		WHERE i.status = 'ON_LOAN'
		ORDER BY i.due_back ASC, i.id
		LIMIT $1 OFFSET $2`
	timeoutCtx2, cancel2 := r.withTimeout(ctx)
	defer cancel2()
	rows, err := r.db.Query(timeoutCtx2, dataSQL, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return scanLoans(rows, total)
}

func scanLoans(rows pgx.Rows, total int) ([]Loan, int, error) {
	var loans []Loan
	for rows.Next() {
		var l Loan
		i := &l.Instance
		if err := rows.Scan(&i.ID, &i.BookID, &i.Imprint, &i.Status, &i.DueBack, &i.BorrowerID,
			&i.CreatedAt, &i.UpdatedAt, &l.BookTitle); err != nil {
			return nil, 0, err
		}
		loans = append(loans, l)
	}
	return loans, total, rows.Err()
}

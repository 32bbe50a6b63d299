package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepo implements Repository on a pgx pool.
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

// mapPgError translates driver errors into the catalog taxonomy. Codes
// 23505/23503/23514 are unique, foreign-key and check violations.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "23503", "23514":
			return fmt.Errorf("%w: %s", ErrIntegrity, pgErr.ConstraintName)
		}
	}
	return err
}

func (r *PostgresRepo) CreateAuthor(ctx context.Context, a *Author) error {
	const sql = `
		INSERT INTO authors (first_name, last_name, date_of_birth, date_of_death)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	err := r.db.QueryRow(timeoutCtx, sql, a.FirstName, a.LastName, a.DateOfBirth, a.DateOfDeath).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	return mapPgError(err)
}

func (r *PostgresRepo) GetAuthor(ctx context.Context, id string) (Author, error) {
	const sql = `
		SELECT id, first_name, last_name, date_of_birth, date_of_death, created_at, updated_at
		FROM authors
		WHERE id = $1`
	var a Author
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	err := r.db.QueryRow(timeoutCtx, sql, id).
		Scan(&a.ID, &a.FirstName, &a.LastName, &a.DateOfBirth, &a.DateOfDeath, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Author{}, mapPgError(err)
	}
	return a, nil
}

func (r *PostgresRepo) UpdateAuthor(ctx context.Context, a *Author) error {
	const sql = `
		UPDATE authors
		SET first_name = $2, last_name = $3, date_of_birth = $4, date_of_death = $5, updated_at = NOW()
		WHERE id = $1`
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(timeoutCtx, sql, a.ID, a.FirstName, a.LastName, a.DateOfBirth, a.DateOfDeath)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) DeleteAuthor(ctx context.Context, id string) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(timeoutCtx, `DELETE FROM authors WHERE id = $1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) ListAuthors(ctx context.Context, p Page) ([]Author, int, error) {
	var total int
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.db.QueryRow(timeoutCtx, `SELECT COUNT(*) FROM authors`).Scan(&total); err != nil {
		return nil, 0, mapPgError(err)
	}

	const sql = `
		SELECT id, first_name, last_name, date_of_birth, date_of_death, created_at, updated_at
		FROM authors
		ORDER BY last_name, first_name
		LIMIT $1 OFFSET $2`
	timeoutCtx2, cancel2 := r.withTimeout(ctx)
	defer cancel2()
	rows, err := r.db.Query(timeoutCtx2, sql, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, mapPgError(err)
	}
	defer rows.Close()

	var authors []Author
	for rows.Next() {
		var a Author
		if err := rows.Scan(&a.ID, &a.FirstName, &a.LastName, &a.DateOfBirth, &a.DateOfDeath, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, 0, err
		}
		authors = append(authors, a)
	}
	return authors, total, rows.Err()
}

func (r *PostgresRepo) CreateGenre(ctx context.Context, g *Genre) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	err := r.db.QueryRow(timeoutCtx, `INSERT INTO genres (name) VALUES ($1) RETURNING id`, g.Name).
		Scan(&g.ID)
	return mapPgError(err)
}

func (r *PostgresRepo) DeleteGenre(ctx context.Context, id string) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(timeoutCtx, `DELETE FROM genres WHERE id = $1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) ListGenres(ctx context.Context, p Page) ([]Genre, int, error) {
	var total int
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.db.QueryRow(timeoutCtx, `SELECT COUNT(*) FROM genres`).Scan(&total); err != nil {
		return nil, 0, mapPgError(err)
	}

	timeoutCtx2, cancel2 := r.withTimeout(ctx)
	defer cancel2()
	rows, err := r.db.Query(timeoutCtx2,
		`SELECT id, name FROM genres ORDER BY name LIMIT $1 OFFSET $2`, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, mapPgError(err)
	}
	defer rows.Close()

	var genres []Genre
	for rows.Next() {
		var g Genre
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, 0, err
		}
		genres = append(genres, g)
	}
	return genres, total, rows.Err()
}

func (r *PostgresRepo) CreateLanguage(ctx context.Context, l *Language) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	err := r.db.QueryRow(timeoutCtx, `INSERT INTO languages (name) VALUES ($1) RETURNING id`, l.Name).
		Scan(&l.ID)
	return mapPgError(err)
}

func (r *PostgresRepo) DeleteLanguage(ctx context.Context, id string) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(timeoutCtx, `DELETE FROM languages WHERE id = $1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) ListLanguages(ctx context.Context, p Page) ([]Language, int, error) {
	var total int
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.db.QueryRow(timeoutCtx, `SELECT COUNT(*) FROM languages`).Scan(&total); err != nil {
		return nil, 0, mapPgError(err)
	}

	timeoutCtx2, cancel2 := r.withTimeout(ctx)
	defer cancel2()
	rows, err := r.db.Query(timeoutCtx2,
		`SELECT id, name FROM languages ORDER BY name LIMIT $1 OFFSET $2`, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, mapPgError(err)
	}
	defer rows.Close()

	var languages []Language
	for rows.Next() {
		var l Language
		if err := rows.Scan(&l.ID, &l.Name); err != nil {
			return nil, 0, err
		}
		languages = append(languages, l)
	}
	return languages, total, rows.Err()
}

func (r *PostgresRepo) Stats(ctx context.Context) (Stats, error) {
	const sql = `
		SELECT
			(SELECT COUNT(*) FROM books),
			(SELECT COUNT(*) FROM book_instances),
			(SELECT COUNT(*) FROM book_instances WHERE status = 'AVAILABLE'),
			(SELECT COUNT(*) FROM authors)`
	var st Stats
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.db.QueryRow(timeoutCtx, sql).
		Scan(&st.Books, &st.Instances, &st.InstancesAvailable, &st.Authors); err != nil {
		return Stats{}, mapPgError(err)
	}

	timeoutCtx2, cancel2 := r.withTimeout(ctx)
	defer cancel2()
	rows, err := r.db.Query(timeoutCtx2, `SELECT name FROM genres ORDER BY name`)
	if err != nil {
		return Stats{}, mapPgError(err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return Stats{}, err
		}
		st.Genres = append(st.Genres, name)
	}
	return st, rows.Err()
}

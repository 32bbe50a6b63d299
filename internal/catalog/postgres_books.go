package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (r *PostgresRepo) CreateBook(ctx context.Context, b *Book) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.Begin(timeoutCtx)
	if err != nil {
		return mapPgError(err)
	}
	defer tx.Rollback(timeoutCtx)

	const sql = `
		INSERT INTO books (title, summary, isbn, author_id, language_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	if err := tx.QueryRow(timeoutCtx, sql, b.Title, b.Summary, b.ISBN, b.AuthorID, b.LanguageID).
		Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return mapPgError(err)
	}
	if err := insertBookGenres(timeoutCtx, tx, b.ID, b.Genres); err != nil {
		return err
	}
	return mapPgError(tx.Commit(timeoutCtx))
}

func insertBookGenres(ctx context.Context, tx pgx.Tx, bookID string, genres []Genre) error {
	for _, g := range genres {
		if _, err := tx.Exec(ctx,
			`INSERT INTO book_genres (book_id, genre_id) VALUES ($1, $2)`, bookID, g.ID); err != nil {
			return mapPgError(err)
		}
	}
	return nil
}

func (r *PostgresRepo) GetBook(ctx context.Context, id string) (Book, error) {
	const sql = `
		SELECT id, title, summary, isbn, author_id, language_id, created_at, updated_at
		FROM books
		WHERE id = $1`
	var b Book
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	err := r.db.QueryRow(timeoutCtx, sql, id).
		Scan(&b.ID, &b.Title, &b.Summary, &b.ISBN, &b.AuthorID, &b.LanguageID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return Book{}, mapPgError(err)
	}

	genres, err := r.bookGenres(ctx, []string{b.ID})
	if err != nil {
		return Book{}, err
	}
	b.Genres = genres[b.ID]
	return b, nil
}

func (r *PostgresRepo) bookGenres(ctx context.Context, bookIDs []string) (map[string][]Genre, error) {
	const sql = `
		SELECT bg.book_id, g.id, g.name
		FROM book_genres bg
		JOIN genres g ON g.id = bg.genre_id
		WHERE bg.book_id = ANY($1)
		ORDER BY g.name`
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Query(timeoutCtx, sql, bookIDs)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	out := make(map[string][]Genre)
	for rows.Next() {
		var bookID string
		var g Genre
		if err := rows.Scan(&bookID, &g.ID, &g.Name); err != nil {
			return nil, err
		}
		out[bookID] = append(out[bookID], g)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) UpdateBook(ctx context.Context, b *Book) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.Begin(timeoutCtx)
	if err != nil {
		return mapPgError(err)
	}
	defer tx.Rollback(timeoutCtx)

	const sql = `
		UPDATE books
		SET title = $2, summary = $3, isbn = $4, author_id = $5, language_id = $6, updated_at = NOW()
		WHERE id = $1`
	tag, err := tx.Exec(timeoutCtx, sql, b.ID, b.Title, b.Summary, b.ISBN, b.AuthorID, b.LanguageID)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	// genre set is replaced wholesale
	if _, err := tx.Exec(timeoutCtx, `DELETE FROM book_genres WHERE book_id = $1`, b.ID); err != nil {
		return mapPgError(err)
	}
	if err := insertBookGenres(timeoutCtx, tx, b.ID, b.Genres); err != nil {
		return err
	}
	return mapPgError(tx.Commit(timeoutCtx))
}

func (r *PostgresRepo) DeleteBook(ctx context.Context, id string) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(timeoutCtx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) ListBooks(ctx context.Context, p Page) ([]Book, int, error) {
	var total int
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.db.QueryRow(timeoutCtx, `SELECT COUNT(*) FROM books`).Scan(&total); err != nil {
		return nil, 0, mapPgError(err)
	}

	const sql = `
		SELECT id, title, summary, isbn, author_id, language_id, created_at, updated_at
		FROM books
		ORDER BY title
		LIMIT $1 OFFSET $2`
	timeoutCtx2, cancel2 := r.withTimeout(ctx)
	defer cancel2()
	rows, err := r.db.Query(timeoutCtx2, sql, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, mapPgError(err)
	}
	defer rows.Close()

	var books []Book
	var ids []string
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Summary, &b.ISBN, &b.AuthorID, &b.LanguageID, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, 0, err
		}
		books = append(books, b)
		ids = append(ids, b.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if len(ids) > 0 {
		genres, err := r.bookGenres(ctx, ids)
		if err != nil {
			return nil, 0, err
		}
		for i := range books {
			books[i].Genres = genres[books[i].ID]
		}
	}
	return books, total, nil
}

func (r *PostgresRepo) CreateInstance(ctx context.Context, i *BookInstance) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	const sql = `
		INSERT INTO book_instances (id, book_id, imprint, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	err := r.db.QueryRow(timeoutCtx, sql, i.ID, i.BookID, i.Imprint, i.Status).
		Scan(&i.CreatedAt, &i.UpdatedAt)
	return mapPgError(err)
}

func (r *PostgresRepo) GetInstance(ctx context.Context, id string) (BookInstance, error) {
	const sql = `
		SELECT id, book_id, imprint, status, due_back, borrower_id, created_at, updated_at
		FROM book_instances
		WHERE id = $1`
	var i BookInstance
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	err := r.db.QueryRow(timeoutCtx, sql, id).
		Scan(&i.ID, &i.BookID, &i.Imprint, &i.Status, &i.DueBack, &i.BorrowerID, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return BookInstance{}, mapPgError(err)
	}
	return i, nil
}

// DeleteInstance refuses to remove a copy with an active loan.
func (r *PostgresRepo) DeleteInstance(ctx context.Context, id string) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(timeoutCtx,
		`DELETE FROM book_instances WHERE id = $1 AND status <> 'ON_LOAN'`, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetInstance(ctx, id); err != nil {
			return err
		}
		return ErrIntegrity
	}
	return nil
}

func (r *PostgresRepo) ListInstancesByBook(ctx context.Context, bookID string, p Page) ([]BookInstance, int, error) {
	var total int
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.db.QueryRow(timeoutCtx,
		`SELECT COUNT(*) FROM book_instances WHERE book_id = $1`, bookID).Scan(&total); err != nil {
		return nil, 0, mapPgError(err)
	}

	const sql = `
		SELECT id, book_id, imprint, status, due_back, borrower_id, created_at, updated_at
		FROM book_instances
		WHERE book_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3`
	timeoutCtx2, cancel2 := r.withTimeout(ctx)
	defer cancel2()
	rows, err := r.db.Query(timeoutCtx2, sql, bookID, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, mapPgError(err)
	}
	defer rows.Close()

	var instances []BookInstance
	for rows.Next() {
		var i BookInstance
		if err := rows.Scan(&i.ID, &i.BookID, &i.Imprint, &i.Status, &i.DueBack, &i.BorrowerID, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, 0, err
		}
		instances = append(instances, i)
	}
	return instances, total, rows.Err()
}

package catalog

import (
	"context"
)

// Repository defines the contract for catalog storage.
type Repository interface {
	CreateAuthor(ctx context.Context, a *Author) error
	GetAuthor(ctx context.Context, id string) (Author, error)
	UpdateAuthor(ctx context.Context, a *Author) error
	DeleteAuthor(ctx context.Context, id string) error
	ListAuthors(ctx context.Context, p Page) ([]Author, int, error)

	CreateGenre(ctx context.Context, g *Genre) error
	DeleteGenre(ctx context.Context, id string) error
	ListGenres(ctx context.Context, p Page) ([]Genre, int, error)

	CreateLanguage(ctx context.Context, l *Language) error
	DeleteLanguage(ctx context.Context, id string) error
	ListLanguages(ctx context.Context, p Page) ([]Language, int, error)

	CreateBook(ctx context.Context, b *Book) error
	GetBook(ctx context.Context, id string) (Book, error)
	UpdateBook(ctx context.Context, b *Book) error
	DeleteBook(ctx context.Context, id string) error
	ListBooks(ctx context.Context, p Page) ([]Book, int, error)

	CreateInstance(ctx context.Context, i *BookInstance) error
	GetInstance(ctx context.Context, id string) (BookInstance, error)
	DeleteInstance(ctx context.Context, id string) error
	ListInstancesByBook(ctx context.Context, bookID string, p Page) ([]BookInstance, int, error)

	Stats(ctx context.Context) (Stats, error)
}

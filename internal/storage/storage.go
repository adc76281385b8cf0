// Package storage defines persistence contracts for books.
package storage

import (
	"context"
	"errors"

	"github.com/typenhq/typen/internal/types"
)

var (
	// ErrNotFound indicates a requested book is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a book id collided.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrInvalid wraps validation failures on book writes.
	ErrInvalid = errors.New("invalid book")
)

// BookStore persists books.
type BookStore interface {
	CreateBook(ctx context.Context, nb types.NewBook) (types.Book, error)
	GetBook(ctx context.Context, id string) (types.Book, error)
	// UpdateBook applies the non-nil fields of u and bumps UpdatedAt.
	UpdateBook(ctx context.Context, id string, u types.BookUpdate) (types.Book, error)
	DeleteBook(ctx context.Context, id string) error
	// ListBooks returns a user's books, most recently updated first.
	ListBooks(ctx context.Context, userID string, f types.BookFilter) ([]types.Book, error)
	Ping(ctx context.Context) error
	Close() error
}

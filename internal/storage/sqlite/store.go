// Package sqlite provides a SQLite-backed book store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/typenhq/typen/internal/storage"
	"github.com/typenhq/typen/internal/storage/sqlite/migrations"
	"github.com/typenhq/typen/internal/storage/sqlitemigrate"
	"github.com/typenhq/typen/internal/types"
)

const bookColumns = `id, user_id, title, description, genre, cover_image, content,
       word_count, status, is_favorite, is_archived, created_at, updated_at`

// Store persists books in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite book store and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlitemigrate.Apply(ctx, sqlDB, migrations.FS, "."); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return s.sqlDB.PingContext(ctx)
}

// CreateBook inserts a draft with empty content.
func (s *Store) CreateBook(ctx context.Context, nb types.NewBook) (types.Book, error) {
	if err := ctx.Err(); err != nil {
		return types.Book{}, err
	}
	if s == nil || s.sqlDB == nil {
		return types.Book{}, fmt.Errorf("storage is not configured")
	}
	userID := strings.TrimSpace(nb.UserID)
	title := strings.TrimSpace(nb.Title)
	if userID == "" {
		return types.Book{}, fmt.Errorf("%w: user id is required", storage.ErrInvalid)
	}
	if title == "" {
		return types.Book{}, fmt.Errorf("%w: title is required", storage.ErrInvalid)
	}

	now := s.now().UTC()
	book := types.Book{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(nb.Description),
		Genre:       strings.TrimSpace(nb.Genre),
		CoverImage:  strings.TrimSpace(nb.CoverImage),
		Status:      types.StatusDraft,
		CreatedAt:   fromMillis(toMillis(now)),
		UpdatedAt:   fromMillis(toMillis(now)),
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO books (`+bookColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		book.ID,
		book.UserID,
		book.Title,
		book.Description,
		book.Genre,
		book.CoverImage,
		book.Content,
		book.WordCount,
		string(book.Status),
		book.IsFavorite,
		book.IsArchived,
		toMillis(book.CreatedAt),
		toMillis(book.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.Book{}, storage.ErrAlreadyExists
		}
		return types.Book{}, fmt.Errorf("insert book: %w", err)
	}
	return book, nil
}

// GetBook returns one book by id.
func (s *Store) GetBook(ctx context.Context, id string) (types.Book, error) {
	if err := ctx.Err(); err != nil {
		return types.Book{}, err
	}
	if s == nil || s.sqlDB == nil {
		return types.Book{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return types.Book{}, fmt.Errorf("book id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id)
	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Book{}, storage.ErrNotFound
	}
	if err != nil {
		return types.Book{}, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// UpdateBook applies the set fields of u. UpdatedAt always moves forward,
// even for an empty update.
func (s *Store) UpdateBook(ctx context.Context, id string, u types.BookUpdate) (types.Book, error) {
	if err := ctx.Err(); err != nil {
		return types.Book{}, err
	}
	if s == nil || s.sqlDB == nil {
		return types.Book{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return types.Book{}, fmt.Errorf("book id is required")
	}
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return types.Book{}, fmt.Errorf("%w: title must not be empty", storage.ErrInvalid)
	}
	if u.Status != nil && *u.Status != types.StatusDraft && *u.Status != types.StatusPublished {
		return types.Book{}, fmt.Errorf("%w: unknown status %q", storage.ErrInvalid, *u.Status)
	}
	if u.WordCount != nil && *u.WordCount < 0 {
		return types.Book{}, fmt.Errorf("%w: word count must not be negative", storage.ErrInvalid)
	}

	sets := []string{"updated_at = ?"}
	args := []any{toMillis(s.now())}
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if u.Title != nil {
		add("title", strings.TrimSpace(*u.Title))
	}
	if u.Description != nil {
		add("description", *u.Description)
	}
	if u.Genre != nil {
		add("genre", strings.TrimSpace(*u.Genre))
	}
	if u.CoverImage != nil {
		add("cover_image", *u.CoverImage)
	}
	if u.Content != nil {
		add("content", *u.Content)
	}
	if u.WordCount != nil {
		add("word_count", *u.WordCount)
	}
	if u.Status != nil {
		add("status", string(*u.Status))
	}
	if u.IsFavorite != nil {
		add("is_favorite", *u.IsFavorite)
	}
	if u.IsArchived != nil {
		add("is_archived", *u.IsArchived)
	}
	args = append(args, id)

	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE books SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return types.Book{}, fmt.Errorf("update book: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return types.Book{}, fmt.Errorf("update book: %w", err)
	}
	if n == 0 {
		return types.Book{}, storage.ErrNotFound
	}
	return s.GetBook(ctx, id)
}

// DeleteBook removes a book.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("book id is required")
	}

	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListBooks returns a user's books, most recently updated first.
func (s *Store) ListBooks(ctx context.Context, userID string, f types.BookFilter) ([]types.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	where := []string{"user_id = ?"}
	args := []any{userID}
	if f.Archived != nil {
		where = append(where, "is_archived = ?")
		args = append(args, *f.Archived)
	}
	if f.Favorite != nil {
		where = append(where, "is_favorite = ?")
		args = append(args, *f.Favorite)
	}
	if f.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*f.Status))
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY updated_at DESC, id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := make([]types.Book, 0)
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBook(row scanner) (types.Book, error) {
	var (
		book      types.Book
		status    string
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(
		&book.ID,
		&book.UserID,
		&book.Title,
		&book.Description,
		&book.Genre,
		&book.CoverImage,
		&book.Content,
		&book.WordCount,
		&status,
		&book.IsFavorite,
		&book.IsArchived,
		&createdAt,
		&updatedAt,
	); err != nil {
		return types.Book{}, err
	}
	book.Status = types.BookStatus(status)
	book.CreatedAt = fromMillis(createdAt)
	book.UpdatedAt = fromMillis(updatedAt)
	return book, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ storage.BookStore = (*Store)(nil)

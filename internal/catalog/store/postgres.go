package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"libris/internal/catalog"
	id "libris/pkg/domain"
	"libris/pkg/platform/sentinel"
	txcontext "libris/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists the inventory in the books table. Mutations
// join a transaction carried in the context so the lending engine can
// commit a status flip and a ledger write atomically.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) runner(ctx context.Context) dbRunner {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const bookColumns = `id, title, author, isbn, description, status, published_date, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, book *catalog.Book) error {
	_, err := s.runner(ctx).ExecContext(ctx, `
		INSERT INTO books (`+bookColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		book.ID, book.Title, book.Author, book.ISBN, book.Description,
		book.Status, book.PublishedDate, book.CreatedAt, book.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("inserting book: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, bookID id.BookID) (*catalog.Book, error) {
	row := s.runner(ctx).QueryRowContext(ctx, `
		SELECT `+bookColumns+` FROM books WHERE id = $1`, bookID)
	return scanBook(row)
}

func (s *PostgresStore) List(ctx context.Context) ([]*catalog.Book, error) {
	rows, err := s.runner(ctx).QueryContext(ctx, `
		SELECT `+bookColumns+` FROM books ORDER BY title, author`)
	if err != nil {
		return nil, fmt.Errorf("querying books: %w", err)
	}
	defer rows.Close()

	var books []*catalog.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, book *catalog.Book) error {
	res, err := s.runner(ctx).ExecContext(ctx, `
		UPDATE books
		SET title = $2, author = $3, isbn = $4, description = $5,
		    status = $6, published_date = $7, updated_at = $8
		WHERE id = $1`,
		book.ID, book.Title, book.Author, book.ISBN, book.Description,
		book.Status, book.PublishedDate, book.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("updating book: %w", err)
	}
	return requireOneRow(res, sentinel.ErrNotFound)
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, bookID id.BookID, from, to catalog.BookStatus, at time.Time) error {
	res, err := s.runner(ctx).ExecContext(ctx, `
		UPDATE books SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2`,
		bookID, from, to, at,
	)
	if err != nil {
		return fmt.Errorf("updating book status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if affected == 1 {
		return nil
	}

	// Zero rows means either the book is gone or its status moved under
	// us; distinguish so the engine can report the right error.
	var exists bool
	if err := s.runner(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM books WHERE id = $1)`, bookID).Scan(&exists); err != nil {
		return fmt.Errorf("checking book existence: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

func (s *PostgresStore) Delete(ctx context.Context, bookID id.BookID) error {
	res, err := s.runner(ctx).ExecContext(ctx, `DELETE FROM books WHERE id = $1`, bookID)
	if err != nil {
		return fmt.Errorf("deleting book: %w", err)
	}
	return requireOneRow(res, sentinel.ErrNotFound)
}

func requireOneRow(res sql.Result, missing error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if affected == 0 {
		return missing
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*catalog.Book, error) {
	var book catalog.Book
	var published sql.NullTime
	err := row.Scan(&book.ID, &book.Title, &book.Author, &book.ISBN, &book.Description,
		&book.Status, &published, &book.CreatedAt, &book.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scanning book: %w", err)
	}
	if published.Valid {
		book.PublishedDate = &published.Time
	}
	return &book, nil
}

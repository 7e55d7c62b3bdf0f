package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"libris/internal/lending"
	id "libris/pkg/domain"
	"libris/pkg/platform/sentinel"
	txcontext "libris/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists the ledger in the loans table. The partial
// unique index on open loans backs the one-active-loan-per-book
// invariant at the storage layer.
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

const loanColumns = `id, book_id, borrower_id, borrowed_at, due_at, returned, returned_at`

func (s *PostgresStore) Create(ctx context.Context, loan *lending.LoanRecord) error {
	_, err := s.runner(ctx).ExecContext(ctx, `
		INSERT INTO loans (`+loanColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		loan.ID, loan.BookID, loan.BorrowerID, loan.BorrowedAt, loan.DueAt,
		loan.Returned, loan.ReturnedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("inserting loan: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close(ctx context.Context, loanID id.LoanID, at time.Time) (*lending.LoanRecord, error) {
	row := s.runner(ctx).QueryRowContext(ctx, `
		UPDATE loans SET returned = TRUE, returned_at = $2
		WHERE id = $1 AND NOT returned
		RETURNING `+loanColumns,
		loanID, at,
	)
	loan, err := scanLoan(row)
	if err == nil {
		return loan, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}

	// No open row matched: tell a missing loan apart from one that was
	// already closed.
	var exists bool
	if err := s.runner(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM loans WHERE id = $1)`, loanID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking loan existence: %w", err)
	}
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return nil, sentinel.ErrInvalidState
}

func (s *PostgresStore) ActiveByBook(ctx context.Context, bookID id.BookID) (*lending.LoanRecord, error) {
	row := s.runner(ctx).QueryRowContext(ctx, `
		SELECT `+loanColumns+` FROM loans
		WHERE book_id = $1 AND NOT returned`,
		bookID,
	)
	loan, err := scanLoan(row)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	return loan, err
}

func (s *PostgresStore) ActiveCountByBorrower(ctx context.Context, borrowerID id.UserID) (int, error) {
	var count int
	err := s.runner(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM loans
		WHERE borrower_id = $1 AND NOT returned`,
		borrowerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting active loans: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ListActiveByBorrower(ctx context.Context, borrowerID id.UserID) ([]*lending.LoanRecord, error) {
	return s.list(ctx, `
		SELECT `+loanColumns+` FROM loans
		WHERE borrower_id = $1 AND NOT returned
		ORDER BY borrowed_at DESC`,
		borrowerID,
	)
}

func (s *PostgresStore) ListByBook(ctx context.Context, bookID id.BookID) ([]*lending.LoanRecord, error) {
	return s.list(ctx, `
		SELECT `+loanColumns+` FROM loans
		WHERE book_id = $1
		ORDER BY borrowed_at DESC`,
		bookID,
	)
}

func (s *PostgresStore) DeleteByBook(ctx context.Context, bookID id.BookID) error {
	if _, err := s.runner(ctx).ExecContext(ctx, `
		DELETE FROM loans WHERE book_id = $1`, bookID); err != nil {
		return fmt.Errorf("deleting loans: %w", err)
	}
	return nil
}

func (s *PostgresStore) list(ctx context.Context, query string, arg any) ([]*lending.LoanRecord, error) {
	rows, err := s.runner(ctx).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("querying loans: %w", err)
	}
	defer rows.Close()

	var loans []*lending.LoanRecord
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner) (*lending.LoanRecord, error) {
	var loan lending.LoanRecord
	var returnedAt sql.NullTime
	err := row.Scan(&loan.ID, &loan.BookID, &loan.BorrowerID, &loan.BorrowedAt,
		&loan.DueAt, &loan.Returned, &returnedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scanning loan: %w", err)
	}
	if returnedAt.Valid {
		loan.ReturnedAt = &returnedAt.Time
	}
	return &loan, nil
}

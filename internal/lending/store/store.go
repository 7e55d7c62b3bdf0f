// Package store provides the loan ledger persistence contract and its
// in-memory and Postgres implementations.
package store

import (
	"context"
	"time"

	"libris/internal/lending"
	id "libris/pkg/domain"
)

// LoanStore is the ledger's persistence surface. Implementations must
// honor a transaction carried in the context so the lending engine can
// commit a status flip and a ledger write together.
type LoanStore interface {
	Create(ctx context.Context, loan *lending.LoanRecord) error

	// Close marks a loan returned at the given instant and returns the
	// closed record. Closing an already-closed loan reports
	// sentinel.ErrInvalidState.
	Close(ctx context.Context, loanID id.LoanID, at time.Time) (*lending.LoanRecord, error)

	// ActiveByBook returns the open loan on a book, or (nil, nil) when
	// the book is not out.
	ActiveByBook(ctx context.Context, bookID id.BookID) (*lending.LoanRecord, error)

	// ActiveCountByBorrower counts a borrower's open loans.
	ActiveCountByBorrower(ctx context.Context, borrowerID id.UserID) (int, error)

	// ListActiveByBorrower returns a borrower's open loans, most recent
	// first.
	ListActiveByBorrower(ctx context.Context, borrowerID id.UserID) ([]*lending.LoanRecord, error)

	// ListByBook returns the full lending history of a book, most
	// recent first, open and closed alike.
	ListByBook(ctx context.Context, bookID id.BookID) ([]*lending.LoanRecord, error)

	// DeleteByBook purges a book's loan history when the book itself is
	// removed from the catalog.
	DeleteByBook(ctx context.Context, bookID id.BookID) error
}

package lending

import (
	"time"

	id "libris/pkg/domain"
)

const (
	// DefaultLoanPeriod is how long a borrower may keep a book before it
	// becomes overdue.
	DefaultLoanPeriod = 14 * 24 * time.Hour

	// DefaultLoanQuota is the maximum number of active loans a single
	// borrower may hold.
	DefaultLoanQuota = 3
)

// LoanRecord is one row in the lending ledger. A loan is active until it
// is closed by a return; closed records are kept as history.
type LoanRecord struct {
	ID         id.LoanID  `json:"id"`
	BookID     id.BookID  `json:"book_id"`
	BorrowerID id.UserID  `json:"borrower_id"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	DueAt      time.Time  `json:"due_at"`
	Returned   bool       `json:"returned"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
}

// Active reports whether the loan is still open.
func (l *LoanRecord) Active() bool {
	return !l.Returned
}

// Overdue reports whether an active loan is past its due date at the
// given instant. Closed loans are never overdue.
func (l *LoanRecord) Overdue(now time.Time) bool {
	return l.Active() && now.After(l.DueAt)
}

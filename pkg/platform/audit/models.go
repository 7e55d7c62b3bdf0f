// Package audit captures the trail of lending decisions. Domain services
// emit events; stores and sinks fan them out.
package audit

import (
	"context"
	"time"

	id "libris/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose. This
// enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCirculation covers the lending ledger's own transitions.
	// These mirror durable state and are kept as long as the ledger.
	CategoryCirculation EventCategory = "circulation"

	// CategorySecurity covers events relevant to security monitoring:
	// denied actions, failed authentication, permission misuse.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and
	// operational visibility. These can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// UserID is the acting principal: the borrower for borrows, the
	// librarian or admin for returns and catalog changes.
	UserID id.UserID
	BookID id.BookID
	LoanID id.LoanID
	Action string
	// Decision is "allowed" or "denied"; Reason explains denials.
	Decision string
	Reason   string
	// Correlation and client metadata from the HTTP layer.
	RequestID string
	ClientIP  string
	UserAgent string
}

// AuditEvent enumerates the actions the system records.
type AuditEvent string

const (
	EventBookBorrowed  AuditEvent = "book_borrowed"
	EventBookReturned  AuditEvent = "book_returned"
	EventBorrowDenied  AuditEvent = "borrow_denied"
	EventReturnDenied  AuditEvent = "return_denied"
	EventBookAdded     AuditEvent = "book_added"
	EventBookUpdated   AuditEvent = "book_updated"
	EventBookDeleted   AuditEvent = "book_deleted"
	EventHistoryViewed AuditEvent = "history_viewed"
	EventActionDenied  AuditEvent = "action_denied"
)

// eventCategories maps each audit event to its category and is the single
// source of truth for routing.
var eventCategories = map[AuditEvent]EventCategory{
	EventBookBorrowed: CategoryCirculation,
	EventBookReturned: CategoryCirculation,
	EventBookAdded:    CategoryCirculation,
	EventBookDeleted:  CategoryCirculation,

	EventBorrowDenied: CategorySecurity,
	EventReturnDenied: CategorySecurity,
	EventActionDenied: CategorySecurity,

	EventBookUpdated:   CategoryOperations,
	EventHistoryViewed: CategoryOperations,
}

// Category returns the routing category for the event, defaulting to
// operations for unknown actions so nothing is dropped.
func (e AuditEvent) Category() EventCategory {
	if c, ok := eventCategories[e]; ok {
		return c
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
}

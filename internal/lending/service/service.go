// Package service implements the lending engine: the check-then-act
// core that moves books between available and borrowed and keeps the
// loan ledger consistent under concurrent requests.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks RoleResolver,AuditPublisher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"libris/internal/catalog"
	"libris/internal/lending"
	"libris/internal/lending/metrics"
	"libris/internal/lending/store"
	"libris/internal/policy"
	id "libris/pkg/domain"
	dErrors "libris/pkg/domain-errors"
	"libris/pkg/platform/audit"
	"libris/pkg/platform/sentinel"
	"libris/pkg/requestcontext"
)

// RoleResolver maps an authenticated user to the roles the policy table
// is evaluated against.
type RoleResolver interface {
	Resolve(ctx context.Context, userID id.UserID) (id.RoleSet, error)
}

// AuditPublisher records lending decisions. Inside a transaction the
// outbox store joins it, so the audit write commits with the ledger
// mutation it describes.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the lending engine.
type Service struct {
	books      catalog.BookStore
	loans      store.LoanStore
	roles      RoleResolver
	tx         LendingTx
	audit      AuditPublisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
	loanPeriod time.Duration
	loanQuota  int
}

// Option configures optional service behavior.
type Option func(*Service)

// WithLoanPeriod overrides how long a loan runs before it is due.
func WithLoanPeriod(d time.Duration) Option {
	return func(s *Service) { s.loanPeriod = d }
}

// WithLoanQuota overrides how many active loans a borrower may hold.
func WithLoanQuota(n int) Option {
	return func(s *Service) { s.loanQuota = n }
}

// WithMetrics attaches lending metrics. A nil Metrics is safe; every
// recording method no-ops.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(
	books catalog.BookStore,
	loans store.LoanStore,
	roles RoleResolver,
	tx LendingTx,
	auditor AuditPublisher,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		books:      books,
		loans:      loans,
		roles:      roles,
		tx:         tx,
		audit:      auditor,
		logger:     logger,
		tracer:     otel.Tracer("libris/lending"),
		loanPeriod: lending.DefaultLoanPeriod,
		loanQuota:  lending.DefaultLoanQuota,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// authorize resolves the caller's roles and evaluates the policy table
// before anything touches storage, so a denied caller cannot probe
// which books exist.
func (s *Service) authorize(ctx context.Context, action policy.Action, denied audit.AuditEvent, bookID id.BookID) (id.UserID, error) {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return id.UserID{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	roles, err := s.roles.Resolve(ctx, userID)
	if err != nil {
		return id.UserID{}, err
	}
	if err := policy.Require(action, roles); err != nil {
		_ = s.audit.Emit(ctx, audit.Event{
			UserID:    userID,
			BookID:    bookID,
			Action:    string(denied),
			Decision:  "denied",
			Reason:    string(action),
			RequestID: requestcontext.RequestID(ctx),
			ClientIP:  requestcontext.ClientIP(ctx),
			UserAgent: requestcontext.UserAgent(ctx),
			Timestamp: requestcontext.Now(ctx),
		})
		s.logger.WarnContext(ctx, "lending action denied",
			"action", action,
			"user_id", userID,
			"request_id", requestcontext.RequestID(ctx),
		)
		return id.UserID{}, err
	}
	return userID, nil
}

// Borrow lends a book to the caller. The availability check, the quota
// check, the status flip, and the ledger write all commit or fail as
// one unit.
func (s *Service) Borrow(ctx context.Context, bookID id.BookID) (*lending.LoanRecord, error) {
	ctx, span := s.tracer.Start(ctx, "lending.Borrow")
	defer span.End()
	started := time.Now()

	borrowerID, err := s.authorize(ctx, policy.ActionBorrowBook, audit.EventBorrowDenied, bookID)
	if err != nil {
		s.metrics.IncrementOutcome("borrow", outcome(err))
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var loan *lending.LoanRecord

	err = s.tx.RunInTx(ctx, bookID, borrowerID, func(ctx context.Context) error {
		book, err := s.books.GetByID(ctx, bookID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "book not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "loading book")
		}
		if book.Status != catalog.StatusAvailable {
			return dErrors.New(dErrors.CodeConflict, "book is not available")
		}

		active, err := s.loans.ActiveCountByBorrower(ctx, borrowerID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "counting active loans")
		}
		if active >= s.loanQuota {
			return dErrors.New(dErrors.CodeConflict, "loan limit exceeded")
		}

		if err := s.books.UpdateStatus(ctx, bookID, catalog.StatusAvailable, catalog.StatusBorrowed, now); err != nil {
			switch {
			case errors.Is(err, sentinel.ErrInvalidState):
				return dErrors.New(dErrors.CodeConflict, "book is not available")
			case errors.Is(err, sentinel.ErrNotFound):
				return dErrors.New(dErrors.CodeNotFound, "book not found")
			default:
				return dErrors.Wrap(err, dErrors.CodeInternal, "marking book borrowed")
			}
		}

		loan = &lending.LoanRecord{
			ID:         id.NewLoanID(),
			BookID:     bookID,
			BorrowerID: borrowerID,
			BorrowedAt: now,
			DueAt:      now.Add(s.loanPeriod),
		}
		if err := s.loans.Create(ctx, loan); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "book is not available")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "recording loan")
		}

		return s.audit.Emit(ctx, audit.Event{
			UserID:    borrowerID,
			BookID:    bookID,
			LoanID:    loan.ID,
			Action:    string(audit.EventBookBorrowed),
			Decision:  "allowed",
			RequestID: requestcontext.RequestID(ctx),
			ClientIP:  requestcontext.ClientIP(ctx),
			UserAgent: requestcontext.UserAgent(ctx),
			Timestamp: now,
		})
	})
	if err != nil {
		s.metrics.IncrementOutcome("borrow", outcome(err))
		return nil, err
	}

	s.metrics.IncrementOutcome("borrow", "success")
	s.metrics.LoanOpened()
	s.metrics.ObserveOperationLatency("borrow", time.Since(started))
	s.logger.InfoContext(ctx, "book borrowed",
		"book_id", bookID,
		"borrower_id", borrowerID,
		"loan_id", loan.ID,
		"due_at", loan.DueAt,
	)
	return loan, nil
}

// Return closes the active loan on a book. Only librarians and admins
// accept returns; the borrower on the closed record may be anyone.
func (s *Service) Return(ctx context.Context, bookID id.BookID) (*lending.LoanRecord, error) {
	ctx, span := s.tracer.Start(ctx, "lending.Return")
	defer span.End()
	started := time.Now()

	actorID, err := s.authorize(ctx, policy.ActionReturnBook, audit.EventReturnDenied, bookID)
	if err != nil {
		s.metrics.IncrementOutcome("return", outcome(err))
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var closed *lending.LoanRecord

	err = s.tx.RunInTx(ctx, bookID, actorID, func(ctx context.Context) error {
		if _, err := s.books.GetByID(ctx, bookID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "book not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "loading book")
		}

		active, err := s.loans.ActiveByBook(ctx, bookID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "loading active loan")
		}
		if active == nil {
			return dErrors.New(dErrors.CodeNotFound, "no active loan for book")
		}

		closed, err = s.loans.Close(ctx, active.ID, now)
		if err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.New(dErrors.CodeNotFound, "no active loan for book")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "closing loan")
		}

		if err := s.books.UpdateStatus(ctx, bookID, catalog.StatusBorrowed, catalog.StatusAvailable, now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "marking book available")
		}

		return s.audit.Emit(ctx, audit.Event{
			UserID:    actorID,
			BookID:    bookID,
			LoanID:    closed.ID,
			Action:    string(audit.EventBookReturned),
			Decision:  "allowed",
			RequestID: requestcontext.RequestID(ctx),
			ClientIP:  requestcontext.ClientIP(ctx),
			UserAgent: requestcontext.UserAgent(ctx),
			Timestamp: now,
		})
	})
	if err != nil {
		s.metrics.IncrementOutcome("return", outcome(err))
		return nil, err
	}

	s.metrics.IncrementOutcome("return", "success")
	s.metrics.LoanClosed()
	s.metrics.ObserveOperationLatency("return", time.Since(started))
	s.logger.InfoContext(ctx, "book returned",
		"book_id", bookID,
		"loan_id", closed.ID,
		"accepted_by", actorID,
	)
	return closed, nil
}

// CurrentLoans lists the caller's own open loans. Any authenticated
// user may see what they have out.
func (s *Service) CurrentLoans(ctx context.Context) ([]*lending.LoanRecord, error) {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	loans, err := s.loans.ListActiveByBorrower(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "listing loans")
	}
	return loans, nil
}

// History returns the full lending history of a book.
func (s *Service) History(ctx context.Context, bookID id.BookID) ([]*lending.LoanRecord, error) {
	ctx, span := s.tracer.Start(ctx, "lending.History")
	defer span.End()

	userID, err := s.authorize(ctx, policy.ActionViewBorrowHistory, audit.EventActionDenied, bookID)
	if err != nil {
		return nil, err
	}

	if _, err := s.books.GetByID(ctx, bookID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "book not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "loading book")
	}

	history, err := s.loans.ListByBook(ctx, bookID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "listing history")
	}

	_ = s.audit.Emit(ctx, audit.Event{
		UserID:    userID,
		BookID:    bookID,
		Action:    string(audit.EventHistoryViewed),
		Decision:  "allowed",
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
		Timestamp: requestcontext.Now(ctx),
	})
	return history, nil
}

// outcome maps an error to the metrics result label.
func outcome(err error) string {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeUnauthorized:
		return "unauthorized"
	case dErrors.CodeForbidden:
		return "forbidden"
	case dErrors.CodeNotFound:
		return "not_found"
	case dErrors.CodeConflict:
		return "conflict"
	default:
		return "error"
	}
}

// Package service implements the inventory management operations. Write
// operations are admin-only; reads require only an authenticated caller.
package service

import (
	"context"
	"errors"
	"log/slog"

	"libris/internal/catalog"
	"libris/internal/lending"
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

// LoanLedger is the slice of the lending ledger the catalog needs:
// blocking deletion of a book that is out, and purging history when a
// book is removed.
type LoanLedger interface {
	ActiveByBook(ctx context.Context, bookID id.BookID) (*lending.LoanRecord, error)
	DeleteByBook(ctx context.Context, bookID id.BookID) error
}

// AuditPublisher records catalog mutations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	books  catalog.BookStore
	loans  LoanLedger
	roles  RoleResolver
	audit  AuditPublisher
	logger *slog.Logger
}

func New(books catalog.BookStore, loans LoanLedger, roles RoleResolver, auditor AuditPublisher, logger *slog.Logger) *Service {
	return &Service{books: books, loans: loans, roles: roles, audit: auditor, logger: logger}
}

// authorize resolves the caller's roles and evaluates the policy table.
// It runs before any lookup so a denied caller learns nothing about
// what exists.
func (s *Service) authorize(ctx context.Context, action policy.Action) (id.UserID, error) {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return id.UserID{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	roles, err := s.roles.Resolve(ctx, userID)
	if err != nil {
		return id.UserID{}, err
	}
	if err := policy.Require(action, roles); err != nil {
		s.emitDenied(ctx, userID, action, err)
		return id.UserID{}, err
	}
	return userID, nil
}

func (s *Service) emitDenied(ctx context.Context, userID id.UserID, action policy.Action, cause error) {
	_ = s.audit.Emit(ctx, audit.Event{
		UserID:    userID,
		Action:    string(audit.EventActionDenied),
		Decision:  "denied",
		Reason:    string(action),
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
		Timestamp: requestcontext.Now(ctx),
	})
	s.logger.WarnContext(ctx, "catalog action denied",
		"action", action,
		"user_id", userID,
		"error", cause,
	)
}

func (s *Service) emit(ctx context.Context, userID id.UserID, bookID id.BookID, action audit.AuditEvent) {
	_ = s.audit.Emit(ctx, audit.Event{
		UserID:    userID,
		BookID:    bookID,
		Action:    string(action),
		Decision:  "allowed",
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
		Timestamp: requestcontext.Now(ctx),
	})
}

// Add creates a new catalog entry. A new book may enter as available or
// maintenance; borrowed is reachable only through the lending engine.
func (s *Service) Add(ctx context.Context, book *catalog.Book) (*catalog.Book, error) {
	userID, err := s.authorize(ctx, policy.ActionAddBook)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	book.ID = id.NewBookID()
	book.CreatedAt = now
	book.UpdatedAt = now
	if book.Status == "" {
		book.Status = catalog.StatusAvailable
	}
	if book.Status == catalog.StatusBorrowed {
		return nil, dErrors.New(dErrors.CodeValidation, "a new book cannot be created as borrowed")
	}
	if err := book.Validate(); err != nil {
		return nil, err
	}

	if err := s.books.Create(ctx, book); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "a book with this isbn already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "adding book")
	}

	s.emit(ctx, userID, book.ID, audit.EventBookAdded)
	return book, nil
}

// Update rewrites a book's client-controlled fields. The borrowed
// status belongs to the lending engine: an update can neither set it
// nor clear it.
func (s *Service) Update(ctx context.Context, book *catalog.Book) (*catalog.Book, error) {
	userID, err := s.authorize(ctx, policy.ActionUpdateBook)
	if err != nil {
		return nil, err
	}

	current, err := s.books.GetByID(ctx, book.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "book not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "loading book")
	}

	if book.Status == "" {
		book.Status = current.Status
	}
	if book.Status != current.Status {
		if book.Status == catalog.StatusBorrowed {
			return nil, dErrors.New(dErrors.CodeValidation, "borrowed status is set by lending, not by update")
		}
		if current.Status == catalog.StatusBorrowed {
			return nil, dErrors.New(dErrors.CodeConflict, "book is out on loan")
		}
	}
	if err := book.Validate(); err != nil {
		return nil, err
	}

	book.CreatedAt = current.CreatedAt
	book.UpdatedAt = requestcontext.Now(ctx)

	if err := s.books.Update(ctx, book); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "book not found")
		case errors.Is(err, sentinel.ErrConflict):
			return nil, dErrors.New(dErrors.CodeConflict, "a book with this isbn already exists")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "updating book")
		}
	}

	s.emit(ctx, userID, book.ID, audit.EventBookUpdated)
	return book, nil
}

// Delete removes a book and its closed loan history. A book with an
// active loan cannot be deleted; the loan has to be returned first.
func (s *Service) Delete(ctx context.Context, bookID id.BookID) error {
	userID, err := s.authorize(ctx, policy.ActionDeleteBook)
	if err != nil {
		return err
	}

	active, err := s.loans.ActiveByBook(ctx, bookID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "checking active loans")
	}
	if active != nil {
		return dErrors.New(dErrors.CodeConflict, "book is out on loan")
	}

	if err := s.books.Delete(ctx, bookID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "book not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "deleting book")
	}
	if err := s.loans.DeleteByBook(ctx, bookID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "purging loan history")
	}

	s.emit(ctx, userID, bookID, audit.EventBookDeleted)
	return nil
}

// Get returns a single book. Any authenticated caller may read the
// catalog.
func (s *Service) Get(ctx context.Context, bookID id.BookID) (*catalog.Book, error) {
	if requestcontext.UserID(ctx).IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	book, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "book not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "loading book")
	}
	return book, nil
}

// List returns the whole catalog.
func (s *Service) List(ctx context.Context) ([]*catalog.Book, error) {
	if requestcontext.UserID(ctx).IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	books, err := s.books.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "listing books")
	}
	return books, nil
}

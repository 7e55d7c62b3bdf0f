// Package catalog defines the book inventory model and the store
// contract the lending engine and the catalog service share.
package catalog

import (
	"context"
	"strings"
	"time"

	id "libris/pkg/domain"
	dErrors "libris/pkg/domain-errors"
)

// BookStatus is the lifecycle state of a catalog entry.
type BookStatus string

const (
	// StatusAvailable means the book may be borrowed.
	StatusAvailable BookStatus = "available"
	// StatusBorrowed means the book is out on an active loan.
	StatusBorrowed BookStatus = "borrowed"
	// StatusMaintenance takes the book out of circulation without
	// removing it from the catalog.
	StatusMaintenance BookStatus = "maintenance"
)

func (s BookStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusBorrowed, StatusMaintenance:
		return true
	}
	return false
}

// Book is one physical copy in the inventory.
type Book struct {
	ID            id.BookID  `json:"id"`
	Title         string     `json:"title"`
	Author        string     `json:"author"`
	ISBN          string     `json:"isbn"`
	Description   string     `json:"description,omitempty"`
	Status        BookStatus `json:"status"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

const maxISBNLength = 13

// Validate checks the fields a client controls. Status transitions are
// validated separately, by the services that perform them.
func (b *Book) Validate() error {
	if strings.TrimSpace(b.Title) == "" {
		return dErrors.New(dErrors.CodeValidation, "title must not be empty")
	}
	if strings.TrimSpace(b.Author) == "" {
		return dErrors.New(dErrors.CodeValidation, "author must not be empty")
	}
	isbn := strings.TrimSpace(b.ISBN)
	if isbn == "" {
		return dErrors.New(dErrors.CodeValidation, "isbn must not be empty")
	}
	if len(isbn) > maxISBNLength {
		return dErrors.New(dErrors.CodeValidation, "isbn must be at most 13 characters")
	}
	if !b.Status.Valid() {
		return dErrors.New(dErrors.CodeValidation, "unknown book status")
	}
	return nil
}

// BookStore is the persistence contract for the inventory. Both the
// catalog service and the lending engine depend on it; implementations
// must honor a transaction carried in the context.
type BookStore interface {
	Create(ctx context.Context, book *Book) error
	GetByID(ctx context.Context, bookID id.BookID) (*Book, error)
	List(ctx context.Context) ([]*Book, error)
	Update(ctx context.Context, book *Book) error
	// UpdateStatus transitions the book from one status to another and
	// reports sentinel.ErrInvalidState when the current status is not
	// the expected one. This is the compare-and-swap the lending engine
	// builds its atomicity on.
	UpdateStatus(ctx context.Context, bookID id.BookID, from, to BookStatus, at time.Time) error
	Delete(ctx context.Context, bookID id.BookID) error
}

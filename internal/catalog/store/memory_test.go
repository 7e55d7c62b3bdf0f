package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libris/internal/catalog"
	id "libris/pkg/domain"
	"libris/pkg/platform/sentinel"
)

func newBook(title, isbn string) *catalog.Book {
	now := time.Now().UTC()
	return &catalog.Book{
		ID:        id.NewBookID(),
		Title:     title,
		Author:    "Author",
		ISBN:      isbn,
		Status:    catalog.StatusAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestInMemoryStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	book := newBook("The Go Programming Language", "9780134190440")
	require.NoError(t, s.Create(ctx, book))

	got, err := s.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, book.Title, got.Title)
	assert.Equal(t, catalog.StatusAvailable, got.Status)
}

func TestInMemoryStore_DuplicateISBNConflicts(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	require.NoError(t, s.Create(ctx, newBook("First", "9780134190440")))
	err := s.Create(ctx, newBook("Second", "9780134190440"))
	assert.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestInMemoryStore_UpdateStatusCAS(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	book := newBook("CAS", "9780000000001")
	require.NoError(t, s.Create(ctx, book))

	now := time.Now().UTC()
	require.NoError(t, s.UpdateStatus(ctx, book.ID, catalog.StatusAvailable, catalog.StatusBorrowed, now))

	// Second flip from available must fail: the status already moved.
	err := s.UpdateStatus(ctx, book.ID, catalog.StatusAvailable, catalog.StatusBorrowed, now)
	assert.ErrorIs(t, err, sentinel.ErrInvalidState)

	got, err := s.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusBorrowed, got.Status)
}

func TestInMemoryStore_UpdateStatusUnknownBook(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	err := s.UpdateStatus(ctx, id.NewBookID(), catalog.StatusAvailable, catalog.StatusBorrowed, time.Now().UTC())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryStore_UpdateReassignsISBN(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	a := newBook("A", "9780000000001")
	b := newBook("B", "9780000000002")
	require.NoError(t, s.Create(ctx, a))
	require.NoError(t, s.Create(ctx, b))

	// Taking B's ISBN conflicts.
	changed := *a
	changed.ISBN = b.ISBN
	assert.ErrorIs(t, s.Update(ctx, &changed), sentinel.ErrConflict)

	// Moving to a free ISBN releases the old one.
	changed.ISBN = "9780000000003"
	require.NoError(t, s.Update(ctx, &changed))
	require.NoError(t, s.Create(ctx, newBook("C", "9780000000001")))
}

func TestInMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	book := newBook("Doomed", "9780000000009")
	require.NoError(t, s.Create(ctx, book))
	require.NoError(t, s.Delete(ctx, book.ID))

	_, err := s.GetByID(ctx, book.ID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, book.ID), sentinel.ErrNotFound)
}

// Package store provides the catalog.BookStore implementations.
package store

import (
	"context"
	"sync"
	"time"

	"libris/internal/catalog"
	id "libris/pkg/domain"
	"libris/pkg/platform/sentinel"
)

// InMemoryStore keeps the inventory in a map guarded by a mutex. It
// backs tests and local runs without Postgres.
type InMemoryStore struct {
	mu     sync.RWMutex
	books  map[id.BookID]*catalog.Book
	byISBN map[string]id.BookID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		books:  make(map[id.BookID]*catalog.Book),
		byISBN: make(map[string]id.BookID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, book *catalog.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.books[book.ID]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byISBN[book.ISBN]; exists {
		return sentinel.ErrConflict
	}

	cp := *book
	s.books[book.ID] = &cp
	s.byISBN[book.ISBN] = book.ID
	return nil
}

func (s *InMemoryStore) GetByID(_ context.Context, bookID id.BookID) (*catalog.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	book, ok := s.books[bookID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *book
	return &cp, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*catalog.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	books := make([]*catalog.Book, 0, len(s.books))
	for _, book := range s.books {
		cp := *book
		books = append(books, &cp)
	}
	return books, nil
}

func (s *InMemoryStore) Update(_ context.Context, book *catalog.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.books[book.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if book.ISBN != current.ISBN {
		if _, taken := s.byISBN[book.ISBN]; taken {
			return sentinel.ErrConflict
		}
		delete(s.byISBN, current.ISBN)
		s.byISBN[book.ISBN] = book.ID
	}

	cp := *book
	s.books[book.ID] = &cp
	return nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, bookID id.BookID, from, to catalog.BookStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[bookID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if book.Status != from {
		return sentinel.ErrInvalidState
	}
	book.Status = to
	book.UpdatedAt = at
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, bookID id.BookID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[bookID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byISBN, book.ISBN)
	delete(s.books, bookID)
	return nil
}

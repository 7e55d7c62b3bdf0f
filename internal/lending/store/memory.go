package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"libris/internal/lending"
	id "libris/pkg/domain"
	"libris/pkg/platform/sentinel"
)

// InMemoryStore keeps the ledger in a map guarded by a mutex.
type InMemoryStore struct {
	mu    sync.RWMutex
	loans map[id.LoanID]*lending.LoanRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{loans: make(map[id.LoanID]*lending.LoanRecord)}
}

func (s *InMemoryStore) Create(_ context.Context, loan *lending.LoanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.loans[loan.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, existing := range s.loans {
		if existing.BookID == loan.BookID && existing.Active() {
			return sentinel.ErrConflict
		}
	}

	cp := *loan
	s.loans[loan.ID] = &cp
	return nil
}

func (s *InMemoryStore) Close(_ context.Context, loanID id.LoanID, at time.Time) (*lending.LoanRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loan, ok := s.loans[loanID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if loan.Returned {
		return nil, sentinel.ErrInvalidState
	}

	loan.Returned = true
	returnedAt := at
	loan.ReturnedAt = &returnedAt

	cp := *loan
	return &cp, nil
}

func (s *InMemoryStore) ActiveByBook(_ context.Context, bookID id.BookID) (*lending.LoanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, loan := range s.loans {
		if loan.BookID == bookID && loan.Active() {
			cp := *loan
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) ActiveCountByBorrower(_ context.Context, borrowerID id.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, loan := range s.loans {
		if loan.BorrowerID == borrowerID && loan.Active() {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) ListActiveByBorrower(_ context.Context, borrowerID id.UserID) ([]*lending.LoanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var loans []*lending.LoanRecord
	for _, loan := range s.loans {
		if loan.BorrowerID == borrowerID && loan.Active() {
			cp := *loan
			loans = append(loans, &cp)
		}
	}
	sortNewestFirst(loans)
	return loans, nil
}

func (s *InMemoryStore) ListByBook(_ context.Context, bookID id.BookID) ([]*lending.LoanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var loans []*lending.LoanRecord
	for _, loan := range s.loans {
		if loan.BookID == bookID {
			cp := *loan
			loans = append(loans, &cp)
		}
	}
	sortNewestFirst(loans)
	return loans, nil
}

func (s *InMemoryStore) DeleteByBook(_ context.Context, bookID id.BookID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for loanID, loan := range s.loans {
		if loan.BookID == bookID {
			delete(s.loans, loanID)
		}
	}
	return nil
}

func sortNewestFirst(loans []*lending.LoanRecord) {
	sort.Slice(loans, func(i, j int) bool {
		return loans[i].BorrowedAt.After(loans[j].BorrowedAt)
	})
}

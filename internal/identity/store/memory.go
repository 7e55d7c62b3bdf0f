// Package store provides the persistence implementations behind
// identity.UserStore: an in-memory map for tests and local runs, and a
// Postgres store for everything else.
package store

import (
	"context"
	"sync"

	"libris/internal/identity"
	id "libris/pkg/domain"
	"libris/pkg/platform/sentinel"
)

// InMemoryStore keeps principals in a map guarded by a mutex.
type InMemoryStore struct {
	mu         sync.RWMutex
	byID       map[id.UserID]*identity.Principal
	byUsername map[string]id.UserID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:       make(map[id.UserID]*identity.Principal),
		byUsername: make(map[string]id.UserID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, p *identity.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[p.ID]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byUsername[p.Username]; exists {
		return sentinel.ErrConflict
	}

	cp := *p
	cp.Roles = id.NewRoleSet(p.Roles.Roles()...)
	s.byID[p.ID] = &cp
	s.byUsername[p.Username] = p.ID
	return nil
}

func (s *InMemoryStore) GetByID(_ context.Context, userID id.UserID) (*identity.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	cp.Roles = id.NewRoleSet(p.Roles.Roles()...)
	return &cp, nil
}

func (s *InMemoryStore) GetByUsername(_ context.Context, username string) (*identity.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.byUsername[username]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.byID[userID]
	cp.Roles = id.NewRoleSet(s.byID[userID].Roles.Roles()...)
	return &cp, nil
}

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libris/internal/identity"
	id "libris/pkg/domain"
	"libris/pkg/platform/sentinel"
)

func newPrincipal(username string, roles ...id.Role) *identity.Principal {
	return &identity.Principal{
		ID:        id.NewUserID(),
		Username:  username,
		Email:     username + "@example.com",
		Roles:     id.NewRoleSet(roles...),
		CreatedAt: time.Now().UTC(),
	}
}

func TestInMemoryStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	p := newPrincipal("ada", id.RoleMember)
	require.NoError(t, s.Create(ctx, p))

	byID, err := s.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Username, byID.Username)
	assert.True(t, byID.Roles.Has(id.RoleMember))

	byName, err := s.GetByUsername(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byName.ID)
}

func TestInMemoryStore_DuplicateUsernameConflicts(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	require.NoError(t, s.Create(ctx, newPrincipal("ada", id.RoleMember)))
	err := s.Create(ctx, newPrincipal("ada", id.RoleAdmin))
	assert.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestInMemoryStore_UnknownUserNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	_, err := s.GetByID(ctx, id.NewUserID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	_, err = s.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryStore_ReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	p := newPrincipal("ada", id.RoleMember)
	require.NoError(t, s.Create(ctx, p))

	got, err := s.GetByID(ctx, p.ID)
	require.NoError(t, err)
	got.Roles.Add(id.RoleAdmin)

	again, err := s.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, again.Roles.Has(id.RoleAdmin))
}

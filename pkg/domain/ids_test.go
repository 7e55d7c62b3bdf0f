package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "libris/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// IDs must be valid, non-empty, non-nil UUIDs.
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseBookID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseBookID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseUserID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseLoanID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, LoanID(valid), id)
	})
}

func TestIDTextRoundTrip(t *testing.T) {
	bookID := NewBookID()

	text, err := bookID.MarshalText()
	require.NoError(t, err)

	var decoded BookID
	require.NoError(t, decoded.UnmarshalText(text))
	assert.Equal(t, bookID, decoded)
}

func TestRoleSet(t *testing.T) {
	t.Run("intersection", func(t *testing.T) {
		caller := NewRoleSet(RoleMember)
		assert.True(t, caller.Intersects(NewRoleSet(RoleMember, RoleLibrarian, RoleAdmin)))
		assert.False(t, caller.Intersects(NewRoleSet(RoleLibrarian, RoleAdmin)))
		assert.False(t, caller.Intersects(NewRoleSet()))
		assert.False(t, NewRoleSet().Intersects(NewRoleSet(RoleAdmin)))
	})

	t.Run("stable ordering", func(t *testing.T) {
		s := NewRoleSet(RoleMember, RoleAdmin, RoleLibrarian)
		assert.Equal(t, []Role{RoleAdmin, RoleLibrarian, RoleMember}, s.Roles())
	})

	t.Run("parse rejects unknown role", func(t *testing.T) {
		_, err := ParseRole("superhero")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

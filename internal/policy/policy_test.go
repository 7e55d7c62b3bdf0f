package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "libris/pkg/domain"
	dErrors "libris/pkg/domain-errors"
)

func TestAllows(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		roles  id.RoleSet
		want   bool
	}{
		{"member may borrow", ActionBorrowBook, id.NewRoleSet(id.RoleMember), true},
		{"librarian may borrow", ActionBorrowBook, id.NewRoleSet(id.RoleLibrarian), true},
		{"admin may borrow", ActionBorrowBook, id.NewRoleSet(id.RoleAdmin), true},
		{"member may not return", ActionReturnBook, id.NewRoleSet(id.RoleMember), false},
		{"librarian may return", ActionReturnBook, id.NewRoleSet(id.RoleLibrarian), true},
		{"admin may return", ActionReturnBook, id.NewRoleSet(id.RoleAdmin), true},
		{"member may not add", ActionAddBook, id.NewRoleSet(id.RoleMember), false},
		{"librarian may not add", ActionAddBook, id.NewRoleSet(id.RoleLibrarian), false},
		{"admin may add", ActionAddBook, id.NewRoleSet(id.RoleAdmin), true},
		{"librarian may not update", ActionUpdateBook, id.NewRoleSet(id.RoleLibrarian), false},
		{"admin may update", ActionUpdateBook, id.NewRoleSet(id.RoleAdmin), true},
		{"librarian may not delete", ActionDeleteBook, id.NewRoleSet(id.RoleLibrarian), false},
		{"admin may delete", ActionDeleteBook, id.NewRoleSet(id.RoleAdmin), true},
		{"member may not view history", ActionViewBorrowHistory, id.NewRoleSet(id.RoleMember), false},
		{"librarian may view history", ActionViewBorrowHistory, id.NewRoleSet(id.RoleLibrarian), true},
		{"admin may view history", ActionViewBorrowHistory, id.NewRoleSet(id.RoleAdmin), true},
		{"no roles, no access", ActionBorrowBook, id.NewRoleSet(), false},
		{"unknown action always denied", Action("shred_book"), id.NewRoleSet(id.RoleAdmin), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Allows(tt.action, tt.roles))
		})
	}
}

func TestAllows_AnyPermittedRoleSuffices(t *testing.T) {
	roles := id.NewRoleSet(id.RoleMember, id.RoleLibrarian)
	assert.True(t, Allows(ActionReturnBook, roles))
	assert.False(t, Allows(ActionAddBook, roles))
}

func TestRequire(t *testing.T) {
	require.NoError(t, Require(ActionBorrowBook, id.NewRoleSet(id.RoleMember)))

	err := Require(ActionDeleteBook, id.NewRoleSet(id.RoleLibrarian))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	assert.Equal(t, "not permitted to delete_book", dErrors.MessageOf(err))
}

func TestAllowedRoles(t *testing.T) {
	assert.Equal(t, []id.Role{id.RoleAdmin}, AllowedRoles(ActionAddBook).Roles())
	assert.Equal(t, []id.Role{id.RoleAdmin, id.RoleLibrarian}, AllowedRoles(ActionReturnBook).Roles())
	assert.Empty(t, AllowedRoles(Action("unknown")).Roles())
}

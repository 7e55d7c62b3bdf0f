// Package policy holds the static action-to-role authorization table and
// the helpers that enforce it. The table is the single source of truth:
// handlers and services never hard-code role checks.
package policy

import (
	"fmt"

	id "libris/pkg/domain"
	dErrors "libris/pkg/domain-errors"
)

// Action names a protected operation.
type Action string

const (
	ActionBorrowBook        Action = "borrow_book"
	ActionReturnBook        Action = "return_book"
	ActionAddBook           Action = "add_book"
	ActionUpdateBook        Action = "update_book"
	ActionDeleteBook        Action = "delete_book"
	ActionViewBorrowHistory Action = "view_borrow_history"
)

var table = map[Action]id.RoleSet{
	ActionBorrowBook:        id.NewRoleSet(id.RoleMember, id.RoleLibrarian, id.RoleAdmin),
	ActionReturnBook:        id.NewRoleSet(id.RoleLibrarian, id.RoleAdmin),
	ActionAddBook:           id.NewRoleSet(id.RoleAdmin),
	ActionUpdateBook:        id.NewRoleSet(id.RoleAdmin),
	ActionDeleteBook:        id.NewRoleSet(id.RoleAdmin),
	ActionViewBorrowHistory: id.NewRoleSet(id.RoleLibrarian, id.RoleAdmin),
}

// Allows reports whether any of the caller's roles is permitted to
// perform the action. Unknown actions are never allowed.
func Allows(action Action, roles id.RoleSet) bool {
	allowed, ok := table[action]
	if !ok {
		return false
	}
	return allowed.Intersects(roles)
}

// Require returns a forbidden error when the caller's roles do not
// permit the action. It carries no detail about the target resource so
// that a denial reveals nothing about what exists.
func Require(action Action, roles id.RoleSet) error {
	if Allows(action, roles) {
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, fmt.Sprintf("not permitted to %s", action))
}

// AllowedRoles returns the roles permitted to perform the action.
// It exists for introspection endpoints and tests.
func AllowedRoles(action Action) id.RoleSet {
	allowed := id.NewRoleSet()
	for role := range table[action] {
		allowed.Add(role)
	}
	return allowed
}

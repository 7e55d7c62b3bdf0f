package domain

import (
	"sort"

	dErrors "libris/pkg/domain-errors"
)

// Role is one of the three authorization levels a principal may hold.
// Roles are assigned by identity management; the lending engine only
// reads them.
type Role string

const (
	RoleMember    Role = "member"
	RoleLibrarian Role = "librarian"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleLibrarian, RoleAdmin:
		return true
	}
	return false
}

// ParseRole validates a role string at trust boundaries (config, seeds,
// storage rows).
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown role: "+s)
	}
	return r, nil
}

// RoleSet is the set of roles held by a principal. Authorization is a
// set-intersection test against a per-action allowed set, never a chain
// of role conditionals.
type RoleSet map[Role]struct{}

func NewRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

func (s RoleSet) Add(r Role) {
	s[r] = struct{}{}
}

// Intersects reports whether the two sets share at least one role.
func (s RoleSet) Intersects(other RoleSet) bool {
	if len(other) < len(s) {
		s, other = other, s
	}
	for r := range s {
		if _, ok := other[r]; ok {
			return true
		}
	}
	return false
}

// Roles returns the set's members in stable order for logs and payloads.
func (s RoleSet) Roles() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Package identity resolves authenticated users to their roles and
// issues the access tokens the HTTP layer validates. It deliberately
// knows nothing about books or loans.
package identity

import (
	"time"

	id "libris/pkg/domain"
)

// Principal is a known user of the system together with everything the
// authorization layer needs to make a decision about them.
type Principal struct {
	ID           id.UserID  `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Superuser    bool       `json:"superuser"`
	Roles        id.RoleSet `json:"roles"`
	CreatedAt    time.Time  `json:"created_at"`
}

// EffectiveRoles folds platform-level superuser status into the role
// model: a superuser acts with admin authority regardless of the roles
// explicitly assigned to them.
func (p *Principal) EffectiveRoles() id.RoleSet {
	roles := id.NewRoleSet(p.Roles.Roles()...)
	if p.Superuser {
		roles.Add(id.RoleAdmin)
	}
	return roles
}

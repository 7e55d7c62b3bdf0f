package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	id "libris/pkg/domain"
	dErrors "libris/pkg/domain-errors"
	"libris/pkg/platform/sentinel"
)

// UserStore is the persistence surface the resolver needs.
type UserStore interface {
	GetByID(ctx context.Context, userID id.UserID) (*Principal, error)
	GetByUsername(ctx context.Context, username string) (*Principal, error)
	Create(ctx context.Context, p *Principal) error
}

// RoleCache is a read-through cache for resolved role sets. A miss is
// reported as sentinel.ErrNotFound.
type RoleCache interface {
	Get(ctx context.Context, userID id.UserID) (id.RoleSet, error)
	Set(ctx context.Context, userID id.UserID, roles id.RoleSet, ttl time.Duration) error
	Invalidate(ctx context.Context, userID id.UserID) error
}

// Resolver maps an authenticated user ID to the role set the policy
// table is evaluated against.
type Resolver struct {
	store  UserStore
	cache  RoleCache
	ttl    time.Duration
	logger *slog.Logger
}

// NewResolver builds a Resolver. cache may be nil, in which case every
// resolution hits the store.
func NewResolver(store UserStore, cache RoleCache, ttl time.Duration, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, cache: cache, ttl: ttl, logger: logger}
}

// Resolve returns the effective role set for the user. An unknown user
// resolves to an unauthorized error rather than not-found: the caller
// presented a token for a principal we no longer recognize.
func (r *Resolver) Resolve(ctx context.Context, userID id.UserID) (id.RoleSet, error) {
	if r.cache != nil {
		roles, err := r.cache.Get(ctx, userID)
		if err == nil {
			return roles, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			// Cache trouble degrades to a store read, never to a denial.
			r.logger.Warn("role cache read failed", "error", err, "user_id", userID)
		}
	}

	principal, err := r.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "unknown user")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "resolving user roles")
	}

	roles := principal.EffectiveRoles()
	if r.cache != nil {
		if err := r.cache.Set(ctx, userID, roles, r.ttl); err != nil {
			r.logger.Warn("role cache write failed", "error", err, "user_id", userID)
		}
	}
	return roles, nil
}

// Invalidate drops a user's cached roles, for use after role changes.
func (r *Resolver) Invalidate(ctx context.Context, userID id.UserID) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx, userID); err != nil {
		r.logger.Warn("role cache invalidation failed", "error", err, "user_id", userID)
	}
}

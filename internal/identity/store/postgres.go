package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"libris/internal/identity"
	id "libris/pkg/domain"
	"libris/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists principals in the users and user_roles tables.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, p *identity.Principal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning user insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, superuser, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Username, p.Email, p.PasswordHash, p.Superuser, p.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	for _, role := range p.Roles.Roles() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_roles (user_id, role) VALUES ($1, $2)`,
			p.ID, role,
		); err != nil {
			return fmt.Errorf("inserting user role: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing user insert: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, userID id.UserID) (*identity.Principal, error) {
	return s.get(ctx, `WHERE u.id = $1`, userID)
}

func (s *PostgresStore) GetByUsername(ctx context.Context, username string) (*identity.Principal, error) {
	return s.get(ctx, `WHERE u.username = $1`, username)
}

func (s *PostgresStore) get(ctx context.Context, where string, arg any) (*identity.Principal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.username, u.email, u.password_hash, u.superuser, u.created_at,
		       COALESCE(array_agg(r.role) FILTER (WHERE r.role IS NOT NULL), '{}')
		FROM users u
		LEFT JOIN user_roles r ON r.user_id = u.id
		`+where+`
		GROUP BY u.id`,
		arg,
	)

	var p identity.Principal
	var roleNames []string
	err := row.Scan(&p.ID, &p.Username, &p.Email, &p.PasswordHash, &p.Superuser, &p.CreatedAt,
		pq.Array(&roleNames))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}

	p.Roles = id.NewRoleSet()
	for _, name := range roleNames {
		role, err := id.ParseRole(name)
		if err != nil {
			return nil, fmt.Errorf("stored role %q: %w", name, err)
		}
		p.Roles.Add(role)
	}
	return &p, nil
}

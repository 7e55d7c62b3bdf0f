// Command seed provisions a development database: schema, one user per
// role, a few books, and a printed access token for each user so the API
// can be exercised immediately.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"libris/internal/catalog"
	catalogstore "libris/internal/catalog/store"
	"libris/internal/identity"
	identitystore "libris/internal/identity/store"
	"libris/internal/platform/config"
	"libris/internal/platform/db"
	"libris/internal/platform/db/migrate"
	"libris/internal/platform/logger"
	id "libris/pkg/domain"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		log.Error("LIBRIS_DATABASE_URL must be set to seed")
		os.Exit(1)
	}

	if err := migrate.Run(cfg.DatabaseURL, "up"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	users := identitystore.NewPostgresStore(pool)
	books := catalogstore.NewPostgresStore(pool)
	tokens := identity.NewTokenService([]byte(cfg.JWTSigningKey), cfg.JWTIssuer, cfg.AccessTokenTTL)
	now := time.Now().UTC()

	seedUsers := []struct {
		username string
		password string
		role     id.Role
	}{
		{"admin", "admin-dev-password", id.RoleAdmin},
		{"librarian", "librarian-dev-password", id.RoleLibrarian},
		{"member", "member-dev-password", id.RoleMember},
	}

	for _, u := range seedUsers {
		hash, err := identity.HashPassword(u.password)
		if err != nil {
			log.Error("password hash failed", "error", err)
			os.Exit(1)
		}
		principal := &identity.Principal{
			ID:           id.NewUserID(),
			Username:     u.username,
			Email:        u.username + "@libris.local",
			PasswordHash: hash,
			Roles:        id.NewRoleSet(u.role),
			CreatedAt:    now,
		}
		if err := users.Create(ctx, principal); err != nil {
			// Re-running the seeder against a seeded database is fine.
			log.Warn("user not created, may already exist", "username", u.username, "error", err)
			continue
		}

		token, err := tokens.GenerateAccessToken(principal, now)
		if err != nil {
			log.Error("token generation failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("%s token: %s\n", u.username, token)
	}

	published := time.Date(1969, 3, 1, 0, 0, 0, 0, time.UTC)
	seedBooks := []*catalog.Book{
		{Title: "The Left Hand of Darkness", Author: "Ursula K. Le Guin", ISBN: "9780441478125", PublishedDate: &published},
		{Title: "A Wizard of Earthsea", Author: "Ursula K. Le Guin", ISBN: "9780547773742"},
		{Title: "Piranesi", Author: "Susanna Clarke", ISBN: "9781635575637"},
	}
	for _, book := range seedBooks {
		book.ID = id.NewBookID()
		book.Status = catalog.StatusAvailable
		book.CreatedAt = now
		book.UpdatedAt = now
		if err := books.Create(ctx, book); err != nil {
			log.Warn("book not created, may already exist", "isbn", book.ISBN, "error", err)
			continue
		}
		log.Info("book seeded", "title", book.Title, "id", book.ID)
	}

	log.Info("seed complete")
}

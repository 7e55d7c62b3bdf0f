package identity

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	dErrors "libris/pkg/domain-errors"
)

// HashPassword derives a bcrypt hash suitable for storage.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword checks a plaintext password against a stored hash.
func VerifyPassword(hash, plaintext string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)); err != nil {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	return nil
}

package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "libris/pkg/domain-errors"
	"libris/pkg/platform/middleware/auth"
)

// TokenService issues and validates the HS256 access tokens used by the
// HTTP layer. The subject claim carries the user ID.
type TokenService struct {
	secret   []byte
	issuer   string
	lifetime time.Duration
}

type tokenClaims struct {
	jwt.RegisteredClaims
}

func NewTokenService(secret []byte, issuer string, lifetime time.Duration) *TokenService {
	return &TokenService{secret: secret, issuer: issuer, lifetime: lifetime}
}

// GenerateAccessToken mints a signed token for the principal.
func (s *TokenService) GenerateAccessToken(p *Principal, now time.Time) (string, error) {
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
			ID:        fmt.Sprintf("%s-%d", p.ID, now.UnixNano()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// ValidateToken checks signature, expiry and issuer, and returns the
// claims the auth middleware consumes.
func (s *TokenService) ValidateToken(tokenString string) (*auth.Claims, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", token.Method.Alg())
			}
			return s.secret, nil
		},
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	}
	if claims.Subject == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token missing subject")
	}
	return &auth.Claims{UserID: claims.Subject}, nil
}

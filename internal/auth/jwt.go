// Package auth provides token generation and validation for the API.
//
// Two credential types are supported:
//
//   - JWT bearer tokens, issued out of band and presented in the
//     Authorization header: Authorization: Bearer <token>
//   - API keys, presented in the X-API-Key header and checked against a
//     bcrypt hash (see apikey.go)
//
// JWTs are stateless: the subject and expiry live inside the signed token,
// so validation needs no database lookup, only the shared secret.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "runbox"

// TokenService handles JWT creation and validation. It holds the HMAC
// secret used for both signing and verifying.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims embeds jwt.RegisteredClaims; the "sub" claim carries the caller
// identity (a client or service name).
type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs a JWT for the given subject, valid for 24
// hours. Signing is HS256: symmetric, fast, fine for a single-server
// deployment sharing one secret.
func (s *TokenService) Generate(subject string) (string, error) {
	return s.GenerateWithDuration(subject, 24*time.Hour)
}

// GenerateWithDuration creates a token with a custom expiry. Used in tests
// and by the token-minting CLI path.
func (s *TokenService) GenerateWithDuration(subject string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string and returns its subject.
//
// The jwt library checks the signature, the expiry, and the issuer.
// Pinning the algorithm with jwt.WithValidMethods prevents algorithm
// confusion attacks, where an attacker submits a token claiming a
// different (or no) signing method.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}

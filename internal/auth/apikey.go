// Package auth — API key hashing.
//
// API keys are long-lived shared secrets, so they are never stored or
// configured in plain text on the server side. The server holds only a
// bcrypt hash (API_KEY_HASH env var); incoming keys are compared against
// it. bcrypt is deliberately slow, which also rate-limits brute forcing,
// and it embeds its own random salt in the hash output.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor. Cost 12 takes roughly 250ms on
// current server hardware, which is acceptable for key verification and
// expensive for attackers.
const defaultCost = 12

// KeyService provides bcrypt hashing and verification for API keys.
//
// It's a struct rather than free functions so the cost can be lowered in
// tests (bcrypt cost 4 runs orders of magnitude faster than cost 12).
type KeyService struct {
	cost int
}

// NewKeyService creates a KeyService with the default cost.
func NewKeyService() *KeyService {
	return &KeyService{cost: defaultCost}
}

// NewKeyServiceForTest creates a KeyService with a custom (usually
// minimal) cost. Do not use in production.
func NewKeyServiceForTest(cost int) *KeyService {
	return &KeyService{cost: cost}
}

// Hash hashes an API key with bcrypt. The output is a self-contained
// string including salt and cost; store it directly.
//
// bcrypt silently truncates inputs over 72 bytes, so longer keys are
// rejected outright instead of being weakened.
func (k *KeyService) Hash(key string) (string, error) {
	if len(key) > 72 {
		return "", fmt.Errorf("auth: API key must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(key), k.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing API key: %w", err)
	}

	return string(hashed), nil
}

// Verify checks a presented key against a stored bcrypt hash. Returns nil
// on match. The comparison is constant-time inside bcrypt.
func (k *KeyService) Verify(hash, key string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("auth: invalid API key")
		}
		return fmt.Errorf("auth: comparing API key hash: %w", err)
	}
	return nil
}

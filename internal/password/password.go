// Package password hashes secrets with bcrypt. It is used for account
// passwords and for one-time passcodes at rest.
package password

import (
	"errors"
	"fmt"

	"github.com/ErlanBelekov/medico-billing/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const DefaultCost = 12

// MaxSecretBytes is bcrypt's input limit. It counts bytes, not characters.
const MaxSecretBytes = 72

type Hasher struct {
	cost int
}

// NewHasher clamps cost into bcrypt's accepted range.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

// Hash rejects secrets longer than MaxSecretBytes with domain.ErrValidation.
func (h *Hasher) Hash(secret string) (string, error) {
	if len(secret) > MaxSecretBytes {
		return "", fmt.Errorf("%w: password exceeds %d bytes", domain.ErrValidation, MaxSecretBytes)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(hash), nil
}

// Compare reports whether secret matches hash. A malformed hash is an error,
// a plain mismatch is not.
func (h *Hasher) Compare(hash, secret string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("bcrypt compare: %w", err)
	}
}

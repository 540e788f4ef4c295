package slimexpress

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost is the bcrypt work factor used when none is configured
const DefaultHashCost = 12

// BcryptHasher implements PasswordHasher with a fixed cost chosen at startup
type BcryptHasher struct {
	cost int

	decoyOnce sync.Once
	decoy     string
}

// NewBcryptHasher returns a hasher. A cost of zero picks the build default,
// out of range values are clamped to what bcrypt accepts.
func NewBcryptHasher(cost int) *BcryptHasher {
	switch {
	case cost == 0:
		cost = passwordHashCost()
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &BcryptHasher{cost: cost}
}

// Cost returns the configured work factor
func (h *BcryptHasher) Cost() int {
	return h.cost
}

// Hash will generate a password hash
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", NewValidationError("password cannot be empty", nil)
	}

	out, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", internalError(err, "failed to hash password")
	}
	return string(out), nil
}

// Verify compares plaintext against hash. A mismatch is (false, nil),
// anything else bcrypt complains about is an internal error.
func (h *BcryptHasher) Verify(plaintext, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, internalError(err, "failed to verify password")
}

// burn runs a comparison against a throwaway hash so unknown emails cost
// about as much as a wrong password.
func (h *BcryptHasher) burn(plaintext string) {
	h.decoyOnce.Do(func() {
		out, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), h.cost)
		if err == nil {
			h.decoy = string(out)
		}
	})
	if h.decoy == "" {
		return
	}
	_ = bcrypt.CompareHashAndPassword([]byte(h.decoy), []byte(plaintext))
}

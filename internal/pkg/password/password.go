// Package password provides one-way credential hashing.
package password

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used for stored credentials.
const DefaultCost = bcrypt.DefaultCost

// MaxLength is the longest password bcrypt accepts, in bytes.
const MaxLength = 72

var (
	// ErrEmptyPassword is returned when hashing an empty string.
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrPasswordTooLong is returned for passwords over MaxLength bytes.
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")
)

// Hasher hashes and verifies passwords with bcrypt.
type Hasher struct {
	cost int

	dummyOnce sync.Once
	dummy     []byte
}

// NewHasher creates a hasher with DefaultCost.
func NewHasher() *Hasher {
	return &Hasher{cost: DefaultCost}
}

// NewHasherWithCost creates a hasher with a custom cost.
// Tests use bcrypt.MinCost to stay fast.
func NewHasherWithCost(cost int) *Hasher {
	return &Hasher{cost: cost}
}

// Hash returns a salted bcrypt hash of plaintext.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	if len(plaintext) > MaxLength {
		return "", ErrPasswordTooLong
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches hashed.
// Malformed hashes are treated as a mismatch. An empty hash never matches
// but still costs a full comparison, so callers can hide whether an account exists.
func (h *Hasher) Verify(plaintext, hashed string) bool {
	if hashed == "" {
		_ = bcrypt.CompareHashAndPassword(h.dummyHash(), []byte(plaintext))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plaintext)) == nil
}

func (h *Hasher) dummyHash() []byte {
	h.dummyOnce.Do(func() {
		// Generation only fails for costs bcrypt rejects; Compare then fails fast.
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("accountd-dummy-password"), h.cost)
	})
	return h.dummy
}

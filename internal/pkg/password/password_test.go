package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndVerify(t *testing.T) {
	h := NewHasherWithCost(bcrypt.MinCost)

	hashed, err := h.Hash("abcdef")
	require.NoError(t, err)

	assert.NotEqual(t, "abcdef", hashed)
	assert.True(t, h.Verify("abcdef", hashed))
	assert.False(t, h.Verify("abcdeg", hashed))
}

func TestHasher_SaltsEachHash(t *testing.T) {
	h := NewHasherWithCost(bcrypt.MinCost)

	first, err := h.Hash("secret")
	require.NoError(t, err)
	second, err := h.Hash("secret")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestHasher_DefaultCost(t *testing.T) {
	h := NewHasher()

	hashed, err := h.Hash("secret")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hashed))
	require.NoError(t, err)
	assert.Equal(t, 10, cost)
}

func TestHasher_EmptyPassword(t *testing.T) {
	_, err := NewHasher().Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestHasher_VerifyMalformedHash(t *testing.T) {
	h := NewHasher()
	assert.False(t, h.Verify("secret", "not-a-bcrypt-hash"))
}

func TestHasher_RejectsPasswordsOverMaxLength(t *testing.T) {
	h := NewHasherWithCost(bcrypt.MinCost)

	_, err := h.Hash(strings.Repeat("a", MaxLength+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	// Byte length counts, not runes.
	_, err = h.Hash(strings.Repeat("é", 40))
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	hashed, err := h.Hash(strings.Repeat("a", MaxLength))
	require.NoError(t, err)
	assert.True(t, h.Verify(strings.Repeat("a", MaxLength), hashed))
}

func TestHasher_VerifyEmptyHashRunsFullComparison(t *testing.T) {
	h := NewHasherWithCost(bcrypt.MinCost + 1)

	assert.False(t, h.Verify("secret", ""))

	cost, err := bcrypt.Cost(h.dummyHash())
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)
}

package credentials

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyRoundTrip(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	digest, err := h.Hash("secret123")
	require.NoError(t, err)
	require.NotEmpty(t, digest)
	require.NotContains(t, digest, "secret123")

	require.True(t, h.Verify("secret123", digest))
	require.False(t, h.Verify("secret124", digest))
}

func TestHashesOfSamePasswordDiffer(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	first, err := h.Hash("secret123")
	require.NoError(t, err)
	second, err := h.Hash("secret123")
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.True(t, h.Verify("secret123", first))
	require.True(t, h.Verify("secret123", second))
}

func TestVerifyMalformedDigest(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	require.False(t, h.Verify("secret123", ""))
	require.False(t, h.Verify("secret123", "not-a-bcrypt-digest"))
	require.False(t, h.Verify("secret123", "$2a$garbage"))
}

func TestNewHasherClampsInvalidCost(t *testing.T) {
	h := NewHasher(99)

	digest, err := h.Hash("secret123")
	require.NoError(t, err)
	require.True(t, h.Verify("secret123", digest))
}

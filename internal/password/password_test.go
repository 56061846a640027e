package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndVerify(t *testing.T) {
	hasher := NewHasher(bcrypt.MinCost)

	digest, err := hasher.Hash("pw12345678")
	require.NoError(t, err)
	require.NotEqual(t, "pw12345678", digest)

	assert.True(t, hasher.Verify("pw12345678", digest))
	assert.False(t, hasher.Verify("wrong-password", digest))
}

func TestHasher_FreshSaltPerCall(t *testing.T) {
	hasher := NewHasher(bcrypt.MinCost)

	first, err := hasher.Hash("pw12345678")
	require.NoError(t, err)
	second, err := hasher.Hash("pw12345678")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, hasher.Verify("pw12345678", first))
	assert.True(t, hasher.Verify("pw12345678", second))
}

func TestHasher_MalformedDigest(t *testing.T) {
	hasher := NewHasher(bcrypt.MinCost)

	assert.False(t, hasher.Verify("pw12345678", ""))
	assert.False(t, hasher.Verify("pw12345678", "not-a-bcrypt-digest"))
}

func TestNewHasher_ClampsInvalidCost(t *testing.T) {
	hasher := NewHasher(99)

	digest, err := hasher.Hash("pw12345678")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(digest))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}

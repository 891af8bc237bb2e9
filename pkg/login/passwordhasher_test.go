package login

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashers(t *testing.T) {
	hashers := map[string]PasswordHasher{
		"bcrypt":   NewBcryptHasherWithCost(bcrypt.MinCost),
		"argon2id": NewArgon2Hasher(),
	}

	for name, h := range hashers {
		t.Run(name, func(t *testing.T) {
			hash, err := h.Hash("s3cret-Password")
			require.NoError(t, err)
			assert.NotEqual(t, "s3cret-Password", hash)

			ok, err := h.Verify("s3cret-Password", hash)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = h.Verify("wrong-password", hash)
			require.NoError(t, err)
			assert.False(t, ok)

			_, err = h.Hash("")
			assert.Error(t, err)
		})
	}
}

func TestArgon2RejectsMalformedHash(t *testing.T) {
	h := NewArgon2Hasher()
	_, err := h.Verify("password", "$argon2i$v=19$m=1,t=1,p=1$aaaa$bbbb")
	assert.Error(t, err)

	_, err = h.Verify("password", "not-a-hash")
	assert.Error(t, err)
}

func TestNewPasswordHasher(t *testing.T) {
	h, err := NewPasswordHasher("")
	require.NoError(t, err)
	assert.IsType(t, &BcryptHasher{}, h)

	h, err = NewPasswordHasher(AlgorithmArgon2id)
	require.NoError(t, err)
	assert.IsType(t, &Argon2Hasher{}, h)

	_, err = NewPasswordHasher("md5")
	assert.Error(t, err)
}

func TestPasswordsMatch(t *testing.T) {
	assert.True(t, PasswordsMatch("abc123", "abc123"))
	assert.False(t, PasswordsMatch("abc123", "abc124"))
	assert.False(t, PasswordsMatch("abc123", ""))
	assert.True(t, PasswordsMatch("", ""))
}

package flow

import (
	"strings"
	"testing"

	"github.com/getkayan/warden/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashers(t *testing.T) {
	hashers := map[string]domain.Hasher{
		"bcrypt":   NewBcryptHasher(bcrypt.MinCost),
		"argon2id": NewArgon2idHasher(),
	}

	for name, h := range hashers {
		t.Run(name, func(t *testing.T) {
			hash, err := h.Hash("correct horse")
			require.NoError(t, err)
			assert.NotEqual(t, "correct horse", hash)

			assert.True(t, h.Compare("correct horse", hash))
			assert.False(t, h.Compare("battery staple", hash))
			assert.False(t, h.Compare("correct horse", "not-a-hash"))
			assert.False(t, h.Compare("correct horse", ""))

			again, err := h.Hash("correct horse")
			require.NoError(t, err)
			assert.NotEqual(t, hash, again, "hashes must be salted")
		})
	}
}

func TestArgon2idHasher_Format(t *testing.T) {
	hash, err := NewArgon2idHasher().Hash("secret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$"), hash)

	// Truncated and foreign encodings are rejected rather than panicking.
	h := NewArgon2idHasher()
	assert.False(t, h.Compare("secret", hash[:len(hash)-10]+"!!"))
	assert.False(t, h.Compare("secret", "$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA"))
	assert.False(t, h.Compare("secret", "$argon2id$v=19$m=0,t=1,p=4$c2FsdA$aGFzaA"))
}

func TestBcryptHasher_Cross(t *testing.T) {
	hash, err := NewBcryptHasher(bcrypt.MinCost).Hash("secret")
	require.NoError(t, err)
	assert.False(t, NewArgon2idHasher().Compare("secret", hash))
}

func TestHashPassword_TooLong(t *testing.T) {
	_, err := HashPassword(NewBcryptHasher(bcrypt.MinCost), strings.Repeat("a", 73))
	require.Error(t, err)
	assert.Equal(t, domain.CodeBadRequest, domain.Code(err))

	_, err = HashPassword(NewBcryptHasher(bcrypt.MinCost), strings.Repeat("a", 72))
	assert.NoError(t, err)
}

func TestNewHasher(t *testing.T) {
	h, err := NewHasher("", 0)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, h.(*BcryptHasher).Cost)

	h, err = NewHasher("Argon2id", 0)
	require.NoError(t, err)
	assert.IsType(t, &Argon2idHasher{}, h)

	_, err = NewHasher("md5", 0)
	assert.Error(t, err)
}

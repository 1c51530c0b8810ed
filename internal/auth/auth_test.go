package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classbook/internal/models"
)

var alice = models.Identity{ID: "u1", Name: "Alice", Email: "alice@example.com", Role: models.RoleAdmin}

func TestIssuer_RoundTrip(t *testing.T) {
	iss := NewIssuer("secret", "classbook", time.Hour)

	token, err := iss.NewToken(alice)
	require.NoError(t, err)

	claims, err := iss.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, claims.UserID)
	assert.Equal(t, alice.Email, claims.Email)
	assert.Equal(t, alice.Role, claims.Role)
	assert.Equal(t, "u1", claims.Subject)
}

func TestIssuer_Rejects(t *testing.T) {
	iss := NewIssuer("secret", "classbook", time.Hour)
	token, err := iss.NewToken(alice)
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewIssuer("other", "classbook", time.Hour).ParseToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		_, err := NewIssuer("secret", "someone-else", time.Hour).ParseToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewIssuer("secret", "classbook", time.Hour)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.ParseToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := iss.ParseToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestPassword(t *testing.T) {
	_, err := HashPassword("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "wrong horse"))
}

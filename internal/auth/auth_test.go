package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuerRoundTrip(t *testing.T) {
	issuer := NewIssuer("test-secret")

	token, err := issuer.Generate("user-1")
	require.NoError(t, err)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewIssuer("secret-a").Generate("user-1")
	require.NoError(t, err)

	_, err = NewIssuer("secret-b").Validate(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestValidateRejectsExpired(t *testing.T) {
	issuer := NewIssuer("test-secret").WithTTL(time.Hour)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := issuer.Generate("user-1")
	require.NoError(t, err)

	_, err = NewIssuer("test-secret").Validate(token)
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	_, err := NewIssuer("test-secret").Validate("not-a-token")
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("maize-harvest")
	require.NoError(t, err)
	assert.NotEqual(t, "maize-harvest", hash)

	assert.True(t, CheckPassword(hash, "maize-harvest"))
	assert.False(t, CheckPassword(hash, "cassava"))
}

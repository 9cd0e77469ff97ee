package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("s3cret")
	tok, err := GenerateToken("user-1", secret, time.Hour)
	require.NoError(t, err)

	id, err := GetUserIDFromToken(tok, secret)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)
}

func TestTokenRejected(t *testing.T) {
	secret := []byte("s3cret")

	expired, err := GenerateToken("user-1", secret, -time.Minute)
	require.NoError(t, err)
	_, err = GetUserIDFromToken(expired, secret)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	other, err := GenerateToken("user-1", []byte("other"), time.Hour)
	require.NoError(t, err)
	_, err = GetUserIDFromToken(other, secret)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	noUser, err := GenerateToken("", secret, time.Hour)
	require.NoError(t, err)
	_, err = GetUserIDFromToken(noUser, secret)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = GetUserIDFromToken("garbage", secret)
	assert.Error(t, err)
}

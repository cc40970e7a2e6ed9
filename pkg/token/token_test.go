package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseJWT(t *testing.T) {
	tok, err := GenerateJWT("alice", string(RoleUser), "chat_service")
	require.NoError(t, err)

	claims, err := ParseJWT(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, "chat_service", claims.Issuer)
}

func TestParseJWT_Expired(t *testing.T) {
	claims := Claims{
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(JWTSecret)
	require.NoError(t, err)

	_, err = ParseJWT(tok)
	assert.Error(t, err)
}

func TestParseJWT_WrongSecret(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Username: "alice"}).SignedString([]byte("other"))
	require.NoError(t, err)

	_, err = ParseJWT(tok)
	assert.Error(t, err)
}

func TestParseJWT_MissingUsername(t *testing.T) {
	tok, err := GenerateJWT("", string(RoleUser), "chat_service")
	require.NoError(t, err)

	_, err = ParseJWT(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

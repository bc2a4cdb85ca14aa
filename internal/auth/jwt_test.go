package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devotion-go/internal/config"
)

func TestGenerateAndValidateToken(t *testing.T) {
	cfg := config.AuthConfig{JWTSecretKey: "test-secret", JWTExpiry: time.Hour}

	token, err := GenerateToken("user-1", "a@example.com", cfg)
	require.NoError(t, err)

	claims, err := ValidateToken(token, cfg.JWTSecretKey)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.NotEmpty(t, claims.ID)
}

func TestValidateTokenRejects(t *testing.T) {
	cfg := config.AuthConfig{JWTSecretKey: "test-secret", JWTExpiry: time.Hour}
	token, err := GenerateToken("user-1", "", cfg)
	require.NoError(t, err)

	_, err = ValidateToken(token, "other-secret")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := GenerateToken("user-1", "", config.AuthConfig{JWTSecretKey: "test-secret", JWTExpiry: -time.Minute})
	require.NoError(t, err)
	_, err = ValidateToken(expired, cfg.JWTSecretKey)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ValidateToken("garbage", cfg.JWTSecretKey)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenFallsBackToSubject(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Subject:   "user-from-sub",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)

	got, err := ValidateToken(signed, "k")
	require.NoError(t, err)
	assert.Equal(t, "user-from-sub", got.UserID)
}

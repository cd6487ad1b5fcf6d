package authutils_test

import (
	"context"
	"testing"
	"time"

	"story-engine/internal/authutils"
	"story-engine/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims models.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims(userID string, ttl time.Duration) models.Claims {
	return models.Claims{
		UserID: userID,
		Roles:  []string{"user"},
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestJWTVerifier(t *testing.T) {
	v, err := authutils.NewJWTVerifier(secret, nil)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("valid token", func(t *testing.T) {
		token := sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims("player-1", time.Hour))
		claims, err := v.VerifyToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "player-1", claims.UserID)
		assert.Equal(t, []string{"user"}, claims.Roles)
	})

	t.Run("expired token", func(t *testing.T) {
		token := sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims("player-1", -time.Hour))
		_, err := v.VerifyToken(ctx, token)
		assert.ErrorIs(t, err, models.ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := sign(t, jwt.SigningMethodHS256, []byte("other"), validClaims("player-1", time.Hour))
		_, err := v.VerifyToken(ctx, token)
		assert.ErrorIs(t, err, models.ErrTokenInvalid)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.VerifyToken(ctx, "not-a-token")
		assert.ErrorIs(t, err, models.ErrTokenMalformed)
	})

	t.Run("missing user id", func(t *testing.T) {
		token := sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims("", time.Hour))
		_, err := v.VerifyToken(ctx, token)
		assert.ErrorIs(t, err, models.ErrTokenInvalid)
	})

	t.Run("empty secret is rejected", func(t *testing.T) {
		_, err := authutils.NewJWTVerifier("", nil)
		assert.Error(t, err)
	})
}

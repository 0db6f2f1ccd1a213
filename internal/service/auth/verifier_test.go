package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/statuspulse/pulse-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "thisisasecretkeythatis32charslong!!"

// signToken mints a token the way the upstream issuer would.
func signToken(t *testing.T, secret string, userID uuid.UUID, expiresAt time.Time) string {
	t.Helper()
	claims := jwtCustomClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestNewTokenVerifier(t *testing.T) {
	t.Run("rejects short secrets", func(t *testing.T) {
		_, err := NewTokenVerifier(config.AuthConfig{JWTSecret: "tooshort"})
		assert.Error(t, err)
	})

	t.Run("accepts a sufficiently long secret", func(t *testing.T) {
		v, err := NewTokenVerifier(config.AuthConfig{JWTSecret: testSecret})
		require.NoError(t, err)
		assert.NotNil(t, v)
	})
}

func TestVerifyToken(t *testing.T) {
	verifier, err := NewTokenVerifier(config.AuthConfig{JWTSecret: testSecret})
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("valid token yields claims", func(t *testing.T) {
		userID := uuid.New()
		tokenString := signToken(t, testSecret, userID, time.Now().Add(time.Hour))

		claims, err := verifier.VerifyToken(ctx, tokenString)
		require.NoError(t, err)
		assert.Equal(t, userID, claims.UserID)
		assert.Equal(t, userID.String(), claims.Subject)
		assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
	})

	t.Run("expired token", func(t *testing.T) {
		tokenString := signToken(t, testSecret, uuid.New(), time.Now().Add(-time.Hour))

		claims, err := verifier.VerifyToken(ctx, tokenString)
		assert.ErrorIs(t, err, ErrExpiredToken)
		assert.Nil(t, claims)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		tokenString := signToken(t, "adifferentsecretthatisalso32chars!!", uuid.New(), time.Now().Add(time.Hour))

		claims, err := verifier.VerifyToken(ctx, tokenString)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.Nil(t, claims)
	})

	t.Run("malformed token", func(t *testing.T) {
		claims, err := verifier.VerifyToken(ctx, "not.a.jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.Nil(t, claims)
	})

	t.Run("token signed with an unexpected method", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Subject:   "someone",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		claims, err := verifier.VerifyToken(ctx, signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.Nil(t, claims)
	})
}

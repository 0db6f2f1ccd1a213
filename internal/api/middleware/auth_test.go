package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/statuspulse/pulse-api/internal/api/shared"
	"github.com/statuspulse/pulse-api/internal/config"
	"github.com/statuspulse/pulse-api/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "thisisasecretkeythatis32charslong!!"

func signTestToken(t *testing.T, userID uuid.UUID, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"uid": userID.String(),
		"sub": userID.String(),
		"exp": jwt.NewNumericDate(expiresAt),
		"iat": jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func newAuthenticatedHandler(t *testing.T) (http.Handler, *string) {
	t.Helper()
	verifier, err := auth.NewTokenVerifier(config.AuthConfig{JWTSecret: testSecret})
	require.NoError(t, err)
	authMiddleware := NewAuthMiddleware(verifier)

	var seenUserID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := shared.UserIDFromContext(r.Context()); ok {
			seenUserID = id
		}
		w.WriteHeader(http.StatusOK)
	})
	return authMiddleware.Authenticate(inner), &seenUserID
}

func TestAuthenticate(t *testing.T) {
	t.Run("valid token passes and exposes the user id", func(t *testing.T) {
		handler, seenUserID := newAuthenticatedHandler(t)
		userID := uuid.New()

		req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
		req.Header.Set("Authorization", "Bearer "+signTestToken(t, userID, time.Now().Add(time.Hour)))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, userID.String(), *seenUserID)
	})

	testCases := []struct {
		name   string
		header func(t *testing.T) string
	}{
		{
			name:   "missing header",
			header: func(t *testing.T) string { return "" },
		},
		{
			name:   "wrong scheme",
			header: func(t *testing.T) string { return "Basic dXNlcjpwYXNz" },
		},
		{
			name:   "garbage token",
			header: func(t *testing.T) string { return "Bearer not.a.jwt" },
		},
		{
			name: "expired token",
			header: func(t *testing.T) string {
				return "Bearer " + signTestToken(t, uuid.New(), time.Now().Add(-time.Hour))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name+" is rejected", func(t *testing.T) {
			handler, _ := newAuthenticatedHandler(t)

			req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
			if header := tc.header(t); header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestUserIDContext(t *testing.T) {
	ctx := shared.WithUserID(context.Background(), "user-123")
	id, ok := shared.UserIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "user-123", id)

	_, ok = shared.UserIDFromContext(context.Background())
	assert.False(t, ok)
}

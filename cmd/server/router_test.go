package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/statuspulse/pulse-api/internal/api"
	"github.com/statuspulse/pulse-api/internal/config"
	"github.com/statuspulse/pulse-api/internal/service/auth"
	"github.com/statuspulse/pulse-api/internal/stream"
	"github.com/statuspulse/pulse-api/internal/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "thisisasecretkeythatis32charslong!!"

type allowGate struct{}

func (allowGate) CheckSession(ctx context.Context) (bool, error) { return true, nil }

type staticSource struct {
	records []watch.JobRecord
}

func (s *staticSource) LoadSnapshot(ctx context.Context) ([]watch.JobRecord, error) {
	return s.records, nil
}

func newTestRouter(t *testing.T, records []watch.JobRecord) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	bus := stream.NewInMemoryBus(logger)
	engine := watch.NewEngine(allowGate{}, &staticSource{records: records}, bus,
		watch.NotifierConfig{SuccessTTL: time.Minute, InfoTTL: time.Minute}, logger)
	engine.Activate(context.Background())
	t.Cleanup(engine.Stop)

	verifier, err := auth.NewTokenVerifier(config.AuthConfig{JWTSecret: testSecret})
	require.NoError(t, err)

	return setupRouter(engine, verifier, logger)
}

func bearerToken(t *testing.T) string {
	t.Helper()
	userID := uuid.New()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uid": userID.String(),
		"sub": userID.String(),
		"iat": jwt.NewNumericDate(time.Now()),
		"exp": jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func TestRouterHealthCheck(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestRouterJobsRequiresAuth(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterJobsWithToken(t *testing.T) {
	router := newTestRouter(t, []watch.JobRecord{
		{EntityID: "A", EntityLabel: "Acme", TaskID: "t1", Phase: watch.PhaseRunning, ObservedAt: time.Now()},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.Header.Set("Authorization", bearerToken(t))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body api.JobListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, "A", body.Jobs[0].CustomerID)
	assert.Equal(t, "Acme", body.Jobs[0].CompanyName)
}

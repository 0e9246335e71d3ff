package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transfa/portfolio-service/internal/domain"
)

const (
	testJWTSecret   = "test-secret"
	testInternalKey = "internal-key"
)

type portfolioReaderStub struct {
	portfolio    *domain.PortfolioView
	portfolioErr error
	detail       *domain.AccountDetailView
	detailErr    error
	cursor       string

	lastUserID     string
	lastAccountRef string
}

func (s *portfolioReaderStub) GetPortfolio(ctx context.Context, userID string) (*domain.PortfolioView, error) {
	s.lastUserID = userID
	return s.portfolio, s.portfolioErr
}

func (s *portfolioReaderStub) GetAccountDetail(ctx context.Context, userID, accountRef string) (*domain.AccountDetailView, error) {
	s.lastUserID = userID
	s.lastAccountRef = accountRef
	return s.detail, s.detailErr
}

func (s *portfolioReaderStub) SyncCheckpoint(ctx context.Context, userID, linkedAccountID string) (string, error) {
	s.lastUserID = userID
	s.lastAccountRef = linkedAccountID
	return s.cursor, s.detailErr
}

type limiterStub struct {
	count      int
	retryAfter int
	err        error
}

func (l *limiterStub) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	return l.count, l.retryAfter, l.err
}

func newTestRouter(reader PortfolioReader, limiter RateLimiter) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handlers := NewPortfolioHandlers(reader, limiter, 5, logger)
	return NewRouter(handlers, RouterConfig{JWTSecret: testJWTSecret, InternalAPIKey: testInternalKey})
}

func signedToken(t *testing.T, subject string, expiresIn time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(expiresIn).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func doRequest(h http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGetPortfolio_ReturnsView(t *testing.T) {
	reader := &portfolioReaderStub{portfolio: &domain.PortfolioView{
		Accounts:            []domain.AccountSummary{},
		TotalBanks:          2,
		TotalCurrentBalance: decimal.RequireFromString("150.25"),
		Warnings:            []domain.AccountWarning{},
	}}
	router := newTestRouter(reader, nil)

	rec := doRequest(router, "/portfolio", map[string]string{"Authorization": "Bearer " + signedToken(t, "user-1", time.Hour)})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "user-1", reader.lastUserID)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 2, body["total_banks"])
	assert.EqualValues(t, 150.25, body["total_current_balance"])
}

func TestAuthentication(t *testing.T) {
	router := newTestRouter(&portfolioReaderStub{portfolio: &domain.PortfolioView{}}, nil)
	otherKey := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u", "exp": time.Now().Add(time.Hour).Unix()})
	forged, err := otherKey.SignedString([]byte("another-secret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "expired", header: "Bearer " + signedToken(t, "user-1", -time.Minute)},
		{name: "wrong key", header: "Bearer " + forged},
		{name: "no subject", header: "Bearer " + signedToken(t, "", time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			rec := doRequest(router, "/portfolio", headers)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAccountRoutes(t *testing.T) {
	reader := &portfolioReaderStub{detail: &domain.AccountDetailView{Transactions: []domain.ReconciledTransaction{}}}
	router := newTestRouter(reader, nil)
	auth := map[string]string{"Authorization": "Bearer " + signedToken(t, "user-1", time.Hour)}

	rec := doRequest(router, "/accounts/default", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", reader.lastAccountRef)

	rec = doRequest(router, "/accounts/la-42", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "la-42", reader.lastAccountRef)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "not found", err: domain.ErrLinkedAccountNotFound, wantStatus: http.StatusNotFound},
		{name: "credential missing", err: fmt.Errorf("%w: la-1", domain.ErrAccessCredentialMissing), wantStatus: http.StatusConflict},
		{name: "account unavailable", err: fmt.Errorf("%w: boom", domain.ErrAccountUnavailable), wantStatus: http.StatusServiceUnavailable},
		{name: "store unavailable", err: domain.ErrLinkedAccountsUnavailable, wantStatus: http.StatusServiceUnavailable},
		{name: "invalid credential", err: fmt.Errorf("%w: %w", domain.ErrAccountUnavailable, domain.ErrInvalidCredential), wantStatus: http.StatusBadGateway},
		{name: "unexpected", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&portfolioReaderStub{detailErr: tt.err}, nil)
			rec := doRequest(router, "/accounts/la-1", map[string]string{"Authorization": "Bearer " + signedToken(t, "user-1", time.Hour)})

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRateLimit(t *testing.T) {
	auth := map[string]string{"Authorization": "Bearer " + signedToken(t, "user-1", time.Hour)}
	reader := &portfolioReaderStub{portfolio: &domain.PortfolioView{}}

	t.Run("over limit", func(t *testing.T) {
		rec := doRequest(newTestRouter(reader, &limiterStub{count: 6, retryAfter: 17}), "/portfolio", auth)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "17", rec.Header().Get("Retry-After"))
	})

	t.Run("limiter failure allows request", func(t *testing.T) {
		rec := doRequest(newTestRouter(reader, &limiterStub{err: errors.New("redis down")}), "/portfolio", auth)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("within limit", func(t *testing.T) {
		rec := doRequest(newTestRouter(reader, &limiterStub{count: 5, retryAfter: 30}), "/portfolio", auth)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestInternalRoutes(t *testing.T) {
	reader := &portfolioReaderStub{portfolio: &domain.PortfolioView{}, cursor: "cursor-9"}
	router := newTestRouter(reader, nil)

	rec := doRequest(router, "/internal/users/user-7/portfolio", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(router, "/internal/users/user-7/portfolio", map[string]string{"X-Internal-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(router, "/internal/users/user-7/portfolio", map[string]string{"X-Internal-API-Key": testInternalKey})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-7", reader.lastUserID)

	rec = doRequest(router, "/internal/users/user-7/accounts/la-3/sync-checkpoint", map[string]string{"X-Internal-API-Key": testInternalKey})
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "cursor-9", body["cursor"])
	assert.Equal(t, "la-3", reader.lastAccountRef)
}

func TestHealth(t *testing.T) {
	rec := doRequest(newTestRouter(&portfolioReaderStub{}, nil), "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

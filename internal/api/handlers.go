/**
 * @description
 * HTTP handlers for the portfolio-service. They translate requests into calls to
 * the portfolio service and map domain errors onto HTTP status codes.
 */
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/transfa/portfolio-service/internal/domain"
)

const (
	portfolioRateLimitScope = "portfolio_read"
	rateLimitWindow         = time.Minute
)

// PortfolioReader is the application surface used by the handlers.
type PortfolioReader interface {
	GetPortfolio(ctx context.Context, userID string) (*domain.PortfolioView, error)
	GetAccountDetail(ctx context.Context, userID, accountRef string) (*domain.AccountDetailView, error)
	SyncCheckpoint(ctx context.Context, userID, linkedAccountID string) (string, error)
}

// RateLimiter counts requests per scope and subject.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// PortfolioHandlers serves the portfolio endpoints.
type PortfolioHandlers struct {
	service            PortfolioReader
	limiter            RateLimiter
	rateLimitPerMinute int
	logger             *slog.Logger
}

func NewPortfolioHandlers(service PortfolioReader, limiter RateLimiter, rateLimitPerMinute int, logger *slog.Logger) *PortfolioHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &PortfolioHandlers{
		service:            service,
		limiter:            limiter,
		rateLimitPerMinute: rateLimitPerMinute,
		logger:             logger,
	}
}

// GetPortfolioHandler returns the authenticated user's portfolio.
func (h *PortfolioHandlers) GetPortfolioHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if !h.allow(w, r, userID) {
		return
	}

	view, err := h.service.GetPortfolio(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err, "user_id", userID)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetDefaultAccountHandler returns the user's first linked account.
func (h *PortfolioHandlers) GetDefaultAccountHandler(w http.ResponseWriter, r *http.Request) {
	h.accountDetail(w, r, "")
}

// GetAccountHandler returns the linked account named in the path.
func (h *PortfolioHandlers) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	h.accountDetail(w, r, chi.URLParam(r, "id"))
}

func (h *PortfolioHandlers) accountDetail(w http.ResponseWriter, r *http.Request, accountRef string) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if !h.allow(w, r, userID) {
		return
	}

	view, err := h.service.GetAccountDetail(r.Context(), userID, accountRef)
	if err != nil {
		h.respondWithError(w, err, "user_id", userID, "account_ref", accountRef)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// InternalGetPortfolioHandler returns any user's portfolio to trusted services.
func (h *PortfolioHandlers) InternalGetPortfolioHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user id is required")
		return
	}

	view, err := h.service.GetPortfolio(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err, "user_id", userID)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// InternalSyncCheckpointHandler returns the last sync cursor recorded for an account.
func (h *PortfolioHandlers) InternalSyncCheckpointHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	accountID := chi.URLParam(r, "accountID")

	cursor, err := h.service.SyncCheckpoint(r.Context(), userID, accountID)
	if err != nil {
		h.respondWithError(w, err, "user_id", userID, "linked_account_id", accountID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"linked_account_id": accountID,
		"cursor":            cursor,
	})
}

// allow applies the per-user read limit. Limiter failures let the request through.
func (h *PortfolioHandlers) allow(w http.ResponseWriter, r *http.Request, userID string) bool {
	if h.limiter == nil || h.rateLimitPerMinute <= 0 {
		return true
	}
	count, retryAfter, err := h.limiter.ConsumeRateLimit(r.Context(), portfolioRateLimitScope, userID, h.rateLimitPerMinute, rateLimitWindow)
	if err != nil {
		h.logger.Warn("rate limiter unavailable; allowing request", "user_id", userID, "error", err)
		return true
	}
	if count > h.rateLimitPerMinute {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeError(w, http.StatusTooManyRequests, domain.ErrRateLimited.Error())
		return false
	}
	return true
}

func (h *PortfolioHandlers) respondWithError(w http.ResponseWriter, err error, attrs ...any) {
	status := mapError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", append(attrs, "status", status, "error", err)...)
	} else {
		h.logger.Info("request rejected", append(attrs, "status", status, "error", err)...)
	}
	writeError(w, status, errorMessage(status, err))
}

func mapError(err error) int {
	switch {
	case errors.Is(err, domain.ErrLinkedAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAccessCredentialMissing):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrInvalidCredential):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrLinkedAccountsUnavailable),
		errors.Is(err, domain.ErrProviderUnavailable),
		errors.Is(err, domain.ErrAccountUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(status int, err error) string {
	switch status {
	case http.StatusNotFound:
		return domain.ErrLinkedAccountNotFound.Error()
	case http.StatusConflict:
		return domain.ErrAccessCredentialMissing.Error()
	case http.StatusInternalServerError:
		return "internal server error"
	default:
		return err.Error()
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		http.Error(w, `{"error":"Failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

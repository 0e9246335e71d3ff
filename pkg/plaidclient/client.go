/**
 * @description
 * This package provides a client for the ledger provider's API (Plaid-compatible).
 * It encapsulates authenticated JSON requests to the three endpoints the
 * portfolio-service needs: account balances, institution lookup and the
 * cursor-paginated transaction sync feed.
 *
 * Key features:
 * - Selects the base URL from the configured environment (sandbox, development, production).
 * - Sends the client id and secret headers on every request.
 * - Maps provider error bodies onto the service's error taxonomy (domain.Err*).
 *
 * @notes
 * - The client holds no per-call state; the access credential is passed to every
 *   method, so one instance is shared by all concurrent account loads.
 */
package plaidclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/transfa/portfolio-service/internal/domain"
)

const (
	SandboxBaseURL     = "https://sandbox.plaid.com"
	DevelopmentBaseURL = "https://development.plaid.com"
	ProductionBaseURL  = "https://production.plaid.com"
)

// BaseURLForEnv resolves the provider base URL for an environment name.
// Unknown or empty names fall back to the sandbox.
func BaseURLForEnv(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production":
		return ProductionBaseURL
	case "development":
		return DevelopmentBaseURL
	default:
		return SandboxBaseURL
	}
}

// APIError is returned for non-success provider responses.
type APIError struct {
	StatusCode int
	Body       domain.PlaidError
	kind       error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("plaid API error: status %d, type %s, code %s: %s", e.StatusCode, e.Body.ErrorType, e.Body.ErrorCode, e.Body.ErrorMessage)
}

// Unwrap exposes the taxonomy sentinel so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	return e.kind
}

// Client is a client for the ledger provider API.
type Client struct {
	baseURL    string
	clientID   string
	secret     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new provider client.
func NewClient(baseURL, clientID, secret string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		clientID: clientID,
		secret:   secret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With("component", "plaid_client"),
	}
}

// GetAccounts fetches the accounts and balances reachable with an access token.
func (c *Client) GetAccounts(ctx context.Context, accessToken string) (*domain.PlaidAccountsGetResponse, error) {
	var resp domain.PlaidAccountsGetResponse
	req := domain.PlaidAccountsGetRequest{AccessToken: accessToken}
	if err := c.do(ctx, "/accounts/get", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetInstitution fetches display metadata for an institution.
func (c *Client) GetInstitution(ctx context.Context, institutionID string, countryCodes []string) (*domain.PlaidInstitutionGetResponse, error) {
	var resp domain.PlaidInstitutionGetResponse
	req := domain.PlaidInstitutionGetRequest{
		InstitutionID: institutionID,
		CountryCodes:  countryCodes,
		Options:       domain.PlaidInstitutionOptions{IncludeOptionalMetadata: true},
	}
	if err := c.do(ctx, "/institutions/get_by_id", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SyncTransactions fetches one page of the transaction-delta feed starting at cursor.
// An empty cursor starts from the beginning of the item's history.
func (c *Client) SyncTransactions(ctx context.Context, accessToken, cursor string, count int) (*domain.PlaidTransactionsSyncResponse, error) {
	var resp domain.PlaidTransactionsSyncResponse
	req := domain.PlaidTransactionsSyncRequest{
		AccessToken: accessToken,
		Cursor:      cursor,
		Count:       count,
	}
	if err := c.do(ctx, "/transactions/sync", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do is a helper function to make POST requests to the provider API.
func (c *Client) do(ctx context.Context, path string, body, target interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("PLAID-CLIENT-ID", c.clientID)
	req.Header.Set("PLAID-SECRET", c.secret)

	c.logger.DebugContext(ctx, "provider request", "path", path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, ctxErr)
		}
		return fmt.Errorf("%w: http request failed: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %v", domain.ErrProviderUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newAPIError(resp.StatusCode, respBody)
		c.logger.WarnContext(ctx, "provider returned non-success status",
			"path", path,
			"status", resp.StatusCode,
			"error_type", apiErr.Body.ErrorType,
			"error_code", apiErr.Body.ErrorCode,
			"request_id", apiErr.Body.RequestID,
		)
		return apiErr
	}

	if target != nil {
		if err := json.Unmarshal(respBody, target); err != nil {
			return fmt.Errorf("failed to unmarshal response body: %w", err)
		}
	}

	return nil
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(body, &apiErr.Body); err != nil {
		apiErr.Body.ErrorMessage = strings.TrimSpace(string(body))
	}
	apiErr.kind = classify(status, apiErr.Body.ErrorCode)
	return apiErr
}

// classify maps a provider status and error code onto the error taxonomy.
func classify(status int, code string) error {
	switch strings.ToUpper(code) {
	case "INVALID_ACCESS_TOKEN", "ITEM_LOGIN_REQUIRED", "INVALID_CREDENTIALS", "ITEM_NOT_FOUND":
		return domain.ErrInvalidCredential
	case "TRANSACTIONS_SYNC_MUTATION_DURING_PAGINATION", "INVALID_CURSOR":
		return domain.ErrCursorInvalid
	case "INSTITUTION_NOT_FOUND", "INVALID_INSTITUTION":
		return domain.ErrInstitutionNotFound
	}

	if status == http.StatusTooManyRequests || status >= 500 {
		return domain.ErrProviderUnavailable
	}
	if status == http.StatusUnauthorized {
		return domain.ErrInvalidCredential
	}
	return errors.New("provider rejected request")
}

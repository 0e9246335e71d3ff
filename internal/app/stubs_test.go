package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/transfa/portfolio-service/internal/domain"
	"github.com/transfa/portfolio-service/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }

type pagerFunc func(ctx context.Context, accessToken, cursor string, count int) (*domain.PlaidTransactionsSyncResponse, error)

func (f pagerFunc) SyncTransactions(ctx context.Context, accessToken, cursor string, count int) (*domain.PlaidTransactionsSyncResponse, error) {
	return f(ctx, accessToken, cursor, count)
}

// makeTransactions returns n well-formed feed entries with ids prefix-0..prefix-(n-1).
func makeTransactions(prefix string, n int) []domain.PlaidTransaction {
	out := make([]domain.PlaidTransaction, n)
	for i := range out {
		out[i] = domain.PlaidTransaction{
			TransactionID:  fmt.Sprintf("%s-%d", prefix, i),
			AccountID:      "acc",
			Name:           "Coffee",
			Amount:         decimal.RequireFromString("4.50"),
			PaymentChannel: strPtr("in store"),
			Category:       []string{"Food and Drink", "Coffee"},
			Date:           strPtr("2024-03-01"),
		}
	}
	return out
}

type snapshotProviderStub struct {
	mu        sync.Mutex
	responses map[string]*domain.PlaidAccountsGetResponse
	errs      map[string]error
	calls     int
}

func (s *snapshotProviderStub) GetAccounts(ctx context.Context, accessToken string) (*domain.PlaidAccountsGetResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := s.errs[accessToken]; err != nil {
		return nil, err
	}
	if resp, ok := s.responses[accessToken]; ok {
		return resp, nil
	}
	return nil, fmt.Errorf("no accounts stubbed for %s", accessToken)
}

func accountsResponse(accountID, institutionID string, current string) *domain.PlaidAccountsGetResponse {
	resp := &domain.PlaidAccountsGetResponse{
		Accounts: []domain.PlaidAccount{{
			AccountID: accountID,
			Name:      "Checking",
			Mask:      strPtr("0000"),
			Type:      "depository",
			Subtype:   strPtr("checking"),
		}},
		Item: domain.PlaidItem{InstitutionID: strPtr(institutionID)},
	}
	if current != "" {
		resp.Accounts[0].Balances.Current = decimal.NewNullDecimal(decimal.RequireFromString(current))
		resp.Accounts[0].Balances.Available = decimal.NewNullDecimal(decimal.RequireFromString(current))
	}
	return resp
}

type institutionLookupStub struct {
	meta map[string]domain.InstitutionMetadata
	err  error
}

func (s *institutionLookupStub) Resolve(ctx context.Context, institutionID string) (domain.InstitutionMetadata, error) {
	if s.err != nil {
		return domain.InstitutionMetadata{}, s.err
	}
	if meta, ok := s.meta[institutionID]; ok {
		return meta, nil
	}
	return domain.InstitutionMetadata{ID: institutionID, Name: "Bank " + institutionID}, nil
}

type transferRepoStub struct {
	records map[string][]domain.TransferRecord
	err     error
}

func (s *transferRepoStub) ListTransferRecordsByAccountID(ctx context.Context, linkedAccountID string) ([]domain.TransferRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records[linkedAccountID], nil
}

type syncerStub struct {
	results map[string]SyncResult
	errs    map[string]error
}

func (s *syncerStub) Sync(ctx context.Context, accessToken string) (SyncResult, error) {
	return s.results[accessToken], s.errs[accessToken]
}

type cursorStoreStub struct {
	mu      sync.Mutex
	cursors map[string]string
}

func newCursorStoreStub() *cursorStoreStub {
	return &cursorStoreStub{cursors: map[string]string{}}
}

func (s *cursorStoreStub) SaveCursor(ctx context.Context, linkedAccountID, cursor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[linkedAccountID] = cursor
	return nil
}

func (s *cursorStoreStub) GetCursor(ctx context.Context, linkedAccountID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursors[linkedAccountID], nil
}

type linkedAccountRepoStub struct {
	accounts []domain.LinkedAccount
	listErr  error
}

func (s *linkedAccountRepoStub) ListLinkedAccountsByUserID(ctx context.Context, userID string) ([]domain.LinkedAccount, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.LinkedAccount
	for _, a := range s.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *linkedAccountRepoStub) FindLinkedAccountByID(ctx context.Context, linkedAccountID string) (*domain.LinkedAccount, error) {
	for _, a := range s.accounts {
		if a.ID == linkedAccountID {
			account := a
			return &account, nil
		}
	}
	return nil, domain.ErrLinkedAccountNotFound
}

type institutionCacheStub struct {
	mu       sync.Mutex
	entries  map[string]domain.InstitutionMetadata
	readErr  error
	writes   int
	lastTTL  time.Duration
	cleared  int64
	clearErr error
}

func (s *institutionCacheStub) GetCachedInstitution(ctx context.Context, institutionID string) (*domain.InstitutionMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	if meta, ok := s.entries[institutionID]; ok {
		return &meta, nil
	}
	return nil, store.ErrInstitutionCacheMiss
}

func (s *institutionCacheStub) CacheInstitution(ctx context.Context, institution domain.InstitutionMetadata, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries == nil {
		s.entries = map[string]domain.InstitutionMetadata{}
	}
	s.entries[institution.ID] = institution
	s.writes++
	s.lastTTL = ttl
	return nil
}

func (s *institutionCacheStub) ClearExpiredInstitutions(ctx context.Context) (int64, error) {
	return s.cleared, s.clearErr
}

type publishedEvent struct {
	exchange   string
	routingKey string
	body       interface{}
}

type publisherStub struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *publisherStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{exchange: exchange, routingKey: routingKey, body: body})
	return p.err
}

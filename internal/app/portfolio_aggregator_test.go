package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transfa/portfolio-service/internal/domain"
)

type loaderFunc func(ctx context.Context, linked domain.LinkedAccount) (*domain.AccountDetailView, error)

func (f loaderFunc) LoadAccount(ctx context.Context, linked domain.LinkedAccount) (*domain.AccountDetailView, error) {
	return f(ctx, linked)
}

func viewWithBalance(linkedID, balance string) *domain.AccountDetailView {
	snapshot := domain.AccountSnapshot{ID: "acc-" + linkedID, LinkedAccountID: linkedID}
	if balance != "" {
		snapshot.CurrentBalance = decimal.NewNullDecimal(decimal.RequireFromString(balance))
	}
	return &domain.AccountDetailView{Account: snapshot, Transactions: []domain.ReconciledTransaction{}}
}

func TestLoadPortfolio_OneAccountFailsOthersSurvive(t *testing.T) {
	repo := &linkedAccountRepoStub{accounts: []domain.LinkedAccount{
		{ID: "A", UserID: "u1", AccessToken: "tok-a"},
		{ID: "B", UserID: "u1", AccessToken: "tok-b"},
	}}
	loader := loaderFunc(func(ctx context.Context, linked domain.LinkedAccount) (*domain.AccountDetailView, error) {
		if linked.ID == "B" {
			return nil, fmt.Errorf("%w: status 503", domain.ErrAccountUnavailable)
		}
		return viewWithBalance(linked.ID, "100"), nil
	})

	view, err := NewMultiAccountAggregator(repo, loader, 4, discardLogger()).LoadPortfolio(context.Background(), "u1")

	require.NoError(t, err)
	assert.Equal(t, 1, view.TotalBanks)
	require.Len(t, view.Accounts, 1)
	assert.Equal(t, "A", view.Accounts[0].LinkedAccountID)
	assert.True(t, view.TotalCurrentBalance.Equal(decimal.NewFromInt(100)))
	require.Len(t, view.Warnings, 1)
	assert.Equal(t, "B", view.Warnings[0].LinkedAccountID)
	assert.Equal(t, domain.WarningAccountUnavailable, view.Warnings[0].Kind)
}

func TestLoadPortfolio_NoLinkedAccounts(t *testing.T) {
	loader := loaderFunc(func(ctx context.Context, linked domain.LinkedAccount) (*domain.AccountDetailView, error) {
		t.Fatal("loader must not be called")
		return nil, nil
	})

	view, err := NewMultiAccountAggregator(&linkedAccountRepoStub{}, loader, 0, discardLogger()).LoadPortfolio(context.Background(), "u1")

	require.NoError(t, err)
	assert.Zero(t, view.TotalBanks)
	assert.True(t, view.TotalCurrentBalance.IsZero())
	assert.Empty(t, view.Accounts)
	assert.NotNil(t, view.Accounts)
	assert.Empty(t, view.Warnings)
}

func TestLoadPortfolio_ListFailure(t *testing.T) {
	repo := &linkedAccountRepoStub{listErr: errors.New("connection refused")}

	_, err := NewMultiAccountAggregator(repo, nil, 0, discardLogger()).LoadPortfolio(context.Background(), "u1")

	require.ErrorIs(t, err, domain.ErrLinkedAccountsUnavailable)
}

func TestLoadPortfolio_TotalsTreatMissingBalanceAsZero(t *testing.T) {
	repo := &linkedAccountRepoStub{accounts: []domain.LinkedAccount{
		{ID: "A", UserID: "u1", AccessToken: "a"},
		{ID: "B", UserID: "u1", AccessToken: "b"},
		{ID: "C", UserID: "u1", AccessToken: "c"},
	}}
	balances := map[string]string{"A": "10.10", "B": "", "C": "0.20"}
	loader := loaderFunc(func(ctx context.Context, linked domain.LinkedAccount) (*domain.AccountDetailView, error) {
		return viewWithBalance(linked.ID, balances[linked.ID]), nil
	})

	view, err := NewMultiAccountAggregator(repo, loader, 2, discardLogger()).LoadPortfolio(context.Background(), "u1")

	require.NoError(t, err)
	assert.Equal(t, 3, view.TotalBanks)
	assert.Equal(t, "10.3", view.TotalCurrentBalance.String())
}

func TestLoadPortfolio_PreservesOrderAndBoundsConcurrency(t *testing.T) {
	var accounts []domain.LinkedAccount
	for i := 0; i < 12; i++ {
		accounts = append(accounts, domain.LinkedAccount{ID: fmt.Sprintf("la-%02d", i), UserID: "u1", AccessToken: "tok"})
	}
	var inFlight, peak int32
	var mu sync.Mutex
	loader := loaderFunc(func(ctx context.Context, linked domain.LinkedAccount) (*domain.AccountDetailView, error) {
		n := atomic.AddInt32(&inFlight, 1)
		mu.Lock()
		if n > peak {
			peak = n
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return viewWithBalance(linked.ID, "1"), nil
	})

	view, err := NewMultiAccountAggregator(&linkedAccountRepoStub{accounts: accounts}, loader, 3, discardLogger()).LoadPortfolio(context.Background(), "u1")

	require.NoError(t, err)
	require.Len(t, view.Accounts, 12)
	for i, summary := range view.Accounts {
		assert.Equal(t, accounts[i].ID, summary.LinkedAccountID)
	}
	assert.LessOrEqual(t, peak, int32(3))
}

func TestLoadPortfolio_RecoversFromPanickingLoader(t *testing.T) {
	repo := &linkedAccountRepoStub{accounts: []domain.LinkedAccount{
		{ID: "A", UserID: "u1", AccessToken: "a"},
		{ID: "B", UserID: "u1"},
	}}
	loader := loaderFunc(func(ctx context.Context, linked domain.LinkedAccount) (*domain.AccountDetailView, error) {
		if linked.ID == "A" {
			panic("boom")
		}
		return nil, fmt.Errorf("%w: linked account B", domain.ErrAccessCredentialMissing)
	})

	view, err := NewMultiAccountAggregator(repo, loader, 2, discardLogger()).LoadPortfolio(context.Background(), "u1")

	require.NoError(t, err)
	assert.Zero(t, view.TotalBanks)
	require.Len(t, view.Warnings, 2)
	assert.Equal(t, domain.WarningAccountUnavailable, view.Warnings[0].Kind)
	assert.Equal(t, domain.WarningCredentialMissing, view.Warnings[1].Kind)
}

func TestLoadPortfolio_CarriesAccountWarnings(t *testing.T) {
	repo := &linkedAccountRepoStub{accounts: []domain.LinkedAccount{{ID: "A", UserID: "u1", AccessToken: "a"}}}
	loader := loaderFunc(func(ctx context.Context, linked domain.LinkedAccount) (*domain.AccountDetailView, error) {
		view := viewWithBalance(linked.ID, "5")
		view.Warnings = []domain.AccountWarning{{LinkedAccountID: "A", Kind: domain.WarningInstitutionUnknown}}
		return view, nil
	})

	view, err := NewMultiAccountAggregator(repo, loader, 1, discardLogger()).LoadPortfolio(context.Background(), "u1")

	require.NoError(t, err)
	assert.Equal(t, 1, view.TotalBanks)
	require.Len(t, view.Warnings, 1)
	assert.Equal(t, domain.WarningInstitutionUnknown, view.Warnings[0].Kind)
}

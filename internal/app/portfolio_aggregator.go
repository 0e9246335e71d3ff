package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/transfa/portfolio-service/internal/domain"
	"github.com/transfa/portfolio-service/internal/store"
)

const DefaultMaxConcurrentAccounts = 8

// MultiAccountAggregator loads every linked account of a user concurrently.
// One account failing never fails the portfolio.
type MultiAccountAggregator struct {
	accounts      store.LinkedAccountRepository
	loader        AccountLoader
	maxConcurrent int
	logger        *slog.Logger
}

func NewMultiAccountAggregator(accounts store.LinkedAccountRepository, loader AccountLoader, maxConcurrent int, logger *slog.Logger) *MultiAccountAggregator {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentAccounts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiAccountAggregator{
		accounts:      accounts,
		loader:        loader,
		maxConcurrent: maxConcurrent,
		logger:        logger,
	}
}

type accountOutcome struct {
	view *domain.AccountDetailView
	err  error
}

// LoadPortfolio returns the portfolio of userID. It fails only when the user's
// linked accounts cannot be listed.
func (m *MultiAccountAggregator) LoadPortfolio(ctx context.Context, userID string) (*domain.PortfolioView, error) {
	linked, err := m.accounts.ListLinkedAccountsByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrLinkedAccountsUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrLinkedAccountsUnavailable, err)
		}
		return nil, err
	}

	view := &domain.PortfolioView{
		Accounts:            []domain.AccountSummary{},
		TotalCurrentBalance: decimal.Zero,
		Warnings:            []domain.AccountWarning{},
	}
	if len(linked) == 0 {
		return view, nil
	}

	outcomes := make([]accountOutcome, len(linked))
	var g errgroup.Group
	g.SetLimit(m.maxConcurrent)
	for i, account := range linked {
		g.Go(func() error {
			outcomes[i] = m.loadOne(ctx, account)
			return nil
		})
	}
	_ = g.Wait()

	for i, outcome := range outcomes {
		account := linked[i]
		if outcome.err != nil {
			kind := domain.WarningAccountUnavailable
			if errors.Is(outcome.err, domain.ErrAccessCredentialMissing) {
				kind = domain.WarningCredentialMissing
			}
			m.logger.Warn("skipping linked account", "user_id", userID, "linked_account_id", account.ID, "kind", kind, "error", outcome.err)
			view.Warnings = append(view.Warnings, domain.AccountWarning{
				LinkedAccountID: account.ID,
				Kind:            kind,
				Message:         outcome.err.Error(),
			})
			continue
		}
		view.Accounts = append(view.Accounts, summarize(outcome.view))
		view.TotalCurrentBalance = view.TotalCurrentBalance.Add(outcome.view.Account.CurrentBalanceOrZero())
		view.Warnings = append(view.Warnings, outcome.view.Warnings...)
	}
	view.TotalBanks = len(view.Accounts)

	m.logger.Info("portfolio loaded",
		"user_id", userID,
		"linked", len(linked),
		"loaded", view.TotalBanks,
		"warnings", len(view.Warnings),
	)
	return view, nil
}

func (m *MultiAccountAggregator) loadOne(ctx context.Context, account domain.LinkedAccount) (outcome accountOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = accountOutcome{err: fmt.Errorf("%w: panic while loading account: %v", domain.ErrAccountUnavailable, r)}
		}
	}()
	view, err := m.loader.LoadAccount(ctx, account)
	if err == nil && view == nil {
		err = fmt.Errorf("%w: empty account view", domain.ErrAccountUnavailable)
	}
	return accountOutcome{view: view, err: err}
}

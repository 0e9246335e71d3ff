package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/transfa/portfolio-service/internal/domain"
	"github.com/transfa/portfolio-service/internal/store"
)

// AccountDegradedRoutingKey is the routing key of AccountDegradedEvent messages.
const AccountDegradedRoutingKey = "portfolio.account.degraded"

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// PortfolioService is the entry point used by the HTTP layer.
type PortfolioService struct {
	accounts   store.LinkedAccountRepository
	aggregator *MultiAccountAggregator
	loader     AccountLoader
	cursors    store.CursorCheckpointStore
	publisher  EventPublisher
	exchange   string
	logger     *slog.Logger
}

func NewPortfolioService(
	accounts store.LinkedAccountRepository,
	aggregator *MultiAccountAggregator,
	loader AccountLoader,
	cursors store.CursorCheckpointStore,
	publisher EventPublisher,
	exchange string,
	logger *slog.Logger,
) *PortfolioService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PortfolioService{
		accounts:   accounts,
		aggregator: aggregator,
		loader:     loader,
		cursors:    cursors,
		publisher:  publisher,
		exchange:   exchange,
		logger:     logger,
	}
}

// GetPortfolio returns every linked account of userID with totals and warnings.
func (s *PortfolioService) GetPortfolio(ctx context.Context, userID string) (*domain.PortfolioView, error) {
	view, err := s.aggregator.LoadPortfolio(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.publishWarnings(ctx, userID, view.Warnings)
	return view, nil
}

// GetAccountDetail returns one linked account of userID. An empty accountRef
// selects the user's first linked account.
func (s *PortfolioService) GetAccountDetail(ctx context.Context, userID, accountRef string) (*domain.AccountDetailView, error) {
	linked, err := s.resolveLinkedAccount(ctx, userID, accountRef)
	if err != nil {
		return nil, err
	}

	view, err := s.loader.LoadAccount(ctx, *linked)
	if err != nil {
		kind := domain.WarningAccountUnavailable
		if errors.Is(err, domain.ErrAccessCredentialMissing) {
			kind = domain.WarningCredentialMissing
		}
		s.publishWarnings(ctx, userID, []domain.AccountWarning{{
			LinkedAccountID: linked.ID,
			Kind:            kind,
			Message:         err.Error(),
		}})
		return nil, err
	}
	s.publishWarnings(ctx, userID, view.Warnings)
	return view, nil
}

// SyncCheckpoint returns the last cursor recorded for one of userID's linked accounts.
func (s *PortfolioService) SyncCheckpoint(ctx context.Context, userID, linkedAccountID string) (string, error) {
	linked, err := s.resolveLinkedAccount(ctx, userID, linkedAccountID)
	if err != nil {
		return "", err
	}
	if s.cursors == nil {
		return "", nil
	}
	return s.cursors.GetCursor(ctx, linked.ID)
}

func (s *PortfolioService) resolveLinkedAccount(ctx context.Context, userID, accountRef string) (*domain.LinkedAccount, error) {
	accountRef = strings.TrimSpace(accountRef)
	if accountRef == "" {
		accounts, err := s.accounts.ListLinkedAccountsByUserID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(accounts) == 0 {
			return nil, fmt.Errorf("%w: user %s has no linked accounts", domain.ErrLinkedAccountNotFound, userID)
		}
		return &accounts[0], nil
	}

	linked, err := s.accounts.FindLinkedAccountByID(ctx, accountRef)
	if err != nil {
		return nil, err
	}
	if linked.UserID != userID {
		return nil, domain.ErrLinkedAccountNotFound
	}
	return linked, nil
}

func (s *PortfolioService) publishWarnings(ctx context.Context, userID string, warnings []domain.AccountWarning) {
	if s.publisher == nil {
		return
	}
	for _, w := range warnings {
		event := domain.AccountDegradedEvent{
			EventID:         uuid.NewString(),
			UserID:          userID,
			LinkedAccountID: w.LinkedAccountID,
			Kind:            w.Kind,
			Message:         w.Message,
			OccurredAt:      time.Now().UTC(),
		}
		if err := s.publisher.Publish(ctx, s.exchange, AccountDegradedRoutingKey, event); err != nil {
			s.logger.Warn("failed to publish account degraded event", "user_id", userID, "linked_account_id", w.LinkedAccountID, "error", err)
		}
	}
}

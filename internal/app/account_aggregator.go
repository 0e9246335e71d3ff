package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/transfa/portfolio-service/internal/domain"
	"github.com/transfa/portfolio-service/internal/store"
)

const (
	DefaultLookupTimeout  = 10 * time.Second
	DefaultAccountTimeout = 60 * time.Second
)

// SnapshotProvider reads the balances of the accounts behind an access credential.
type SnapshotProvider interface {
	GetAccounts(ctx context.Context, accessToken string) (*domain.PlaidAccountsGetResponse, error)
}

// InstitutionLookup resolves institution metadata.
type InstitutionLookup interface {
	Resolve(ctx context.Context, institutionID string) (domain.InstitutionMetadata, error)
}

// TransactionSyncer pulls the external transaction history of one credential.
type TransactionSyncer interface {
	Sync(ctx context.Context, accessToken string) (SyncResult, error)
}

// AccountLoader builds the detail view of one linked account.
type AccountLoader interface {
	LoadAccount(ctx context.Context, linked domain.LinkedAccount) (*domain.AccountDetailView, error)
}

// AccountAggregator assembles one linked account's snapshot, institution and
// reconciled transaction history.
type AccountAggregator struct {
	snapshots      SnapshotProvider
	institutions   InstitutionLookup
	transfers      store.TransferRepository
	ledger         TransactionSyncer
	cursors        store.CursorCheckpointStore
	lookupTimeout  time.Duration
	accountTimeout time.Duration
	logger         *slog.Logger
}

type AccountAggregatorConfig struct {
	LookupTimeout  time.Duration
	AccountTimeout time.Duration
}

func NewAccountAggregator(
	snapshots SnapshotProvider,
	institutions InstitutionLookup,
	transfers store.TransferRepository,
	ledger TransactionSyncer,
	cursors store.CursorCheckpointStore,
	cfg AccountAggregatorConfig,
	logger *slog.Logger,
) *AccountAggregator {
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = DefaultLookupTimeout
	}
	if cfg.AccountTimeout <= 0 {
		cfg.AccountTimeout = DefaultAccountTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountAggregator{
		snapshots:      snapshots,
		institutions:   institutions,
		transfers:      transfers,
		ledger:         ledger,
		cursors:        cursors,
		lookupTimeout:  cfg.LookupTimeout,
		accountTimeout: cfg.AccountTimeout,
		logger:         logger,
	}
}

// LoadAccount returns the detail view of linked. Only a missing credential or a
// failed snapshot fail the call; institution, transfer and sync failures degrade
// the view and are reported as warnings.
func (a *AccountAggregator) LoadAccount(ctx context.Context, linked domain.LinkedAccount) (*domain.AccountDetailView, error) {
	if !linked.HasCredential() {
		return nil, fmt.Errorf("%w: linked account %s", domain.ErrAccessCredentialMissing, linked.ID)
	}
	log := a.logger.With("linked_account_id", linked.ID)

	accountCtx, cancel := context.WithTimeout(ctx, a.accountTimeout)
	defer cancel()

	snapshot, err := a.loadSnapshot(accountCtx, linked)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAccountUnavailable, err)
	}

	var (
		institution    domain.InstitutionMetadata
		institutionErr error
		transfers      []domain.TransferRecord
		transfersErr   error
		synced         SyncResult
		syncErr        error
	)

	var g errgroup.Group
	g.Go(func() error {
		lookupCtx, cancel := context.WithTimeout(accountCtx, a.lookupTimeout)
		defer cancel()
		institution, institutionErr = a.institutions.Resolve(lookupCtx, snapshot.InstitutionID)
		return nil
	})
	g.Go(func() error {
		lookupCtx, cancel := context.WithTimeout(accountCtx, a.lookupTimeout)
		defer cancel()
		transfers, transfersErr = a.transfers.ListTransferRecordsByAccountID(lookupCtx, linked.ID)
		return nil
	})
	g.Go(func() error {
		synced, syncErr = a.ledger.Sync(accountCtx, linked.AccessToken)
		return nil
	})
	_ = g.Wait()

	if err := accountCtx.Err(); err != nil {
		return nil, fmt.Errorf("%w: linked account %s: %w", domain.ErrAccountUnavailable, linked.ID, err)
	}

	view := &domain.AccountDetailView{SyncCapReached: synced.CapReached}

	if institutionErr != nil {
		log.Warn("institution lookup failed, using unknown institution", "institution_id", snapshot.InstitutionID, "error", institutionErr)
		institution = domain.UnknownInstitution()
		view.Warnings = append(view.Warnings, domain.AccountWarning{
			LinkedAccountID: linked.ID,
			Kind:            domain.WarningInstitutionUnknown,
			Message:         institutionErr.Error(),
		})
	}
	snapshot.Institution = institution
	snapshot.InstitutionID = institution.ID

	if transfersErr != nil {
		log.Warn("transfer records unavailable", "error", transfersErr)
		transfers = nil
		view.Warnings = append(view.Warnings, domain.AccountWarning{
			LinkedAccountID: linked.ID,
			Kind:            domain.WarningTransfersUnavailable,
			Message:         transfersErr.Error(),
		})
	}

	if syncErr != nil {
		log.Warn("transaction sync incomplete", "pages", synced.Pages, "kept", len(synced.Transactions), "error", syncErr)
		view.Warnings = append(view.Warnings, domain.AccountWarning{
			LinkedAccountID: linked.ID,
			Kind:            domain.WarningSyncIncomplete,
			Message:         syncErr.Error(),
		})
	}

	if a.cursors != nil && synced.Cursor != "" {
		if err := a.cursors.SaveCursor(accountCtx, linked.ID, synced.Cursor); err != nil {
			log.Warn("failed to checkpoint sync cursor", "error", err)
		}
	}

	view.Account = snapshot
	view.Transactions = reconcileTransactions(linked.ID, synced.Transactions, transfers)

	log.Debug("account loaded",
		"transactions", len(view.Transactions),
		"pages", synced.Pages,
		"cap_reached", synced.CapReached,
		"warnings", len(view.Warnings),
	)
	return view, nil
}

func (a *AccountAggregator) loadSnapshot(ctx context.Context, linked domain.LinkedAccount) (domain.AccountSnapshot, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, a.lookupTimeout)
	defer cancel()

	resp, err := a.snapshots.GetAccounts(lookupCtx, linked.AccessToken)
	if err != nil {
		return domain.AccountSnapshot{}, fmt.Errorf("get accounts for %s: %w", linked.ID, err)
	}
	return buildSnapshot(linked, resp)
}

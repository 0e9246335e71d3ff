package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/transfa/portfolio-service/internal/domain"
)

const (
	DefaultSyncMaxTransactions = 5000
	DefaultSyncPageSize        = 500
	DefaultSyncPageTimeout     = 15 * time.Second
)

// TransactionPager fetches one page of the provider's transaction delta feed.
type TransactionPager interface {
	SyncTransactions(ctx context.Context, accessToken, cursor string, count int) (*domain.PlaidTransactionsSyncResponse, error)
}

// SyncOptions bounds a single Sync call.
type SyncOptions struct {
	MaxTransactions int
	PageSize        int
	PageTimeout     time.Duration
}

// SyncResult is everything accumulated by one Sync call. On error it holds the
// pages fetched before the failure.
type SyncResult struct {
	Transactions []domain.ExternalTransaction
	Cursor       string
	Pages        int
	Dropped      int
	CapReached   bool
	Restarted    bool
}

type syncState int

const (
	syncStateInit syncState = iota
	syncStateFetching
	syncStateHasMore
	syncStateDone
	syncStateError
)

// LedgerSyncClient walks the provider's cursor-paginated feed until it is
// exhausted or the transaction cap is reached.
type LedgerSyncClient struct {
	pager  TransactionPager
	opts   SyncOptions
	logger *slog.Logger
}

func NewLedgerSyncClient(pager TransactionPager, opts SyncOptions, logger *slog.Logger) *LedgerSyncClient {
	if opts.MaxTransactions <= 0 {
		opts.MaxTransactions = DefaultSyncMaxTransactions
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultSyncPageSize
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = DefaultSyncPageTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerSyncClient{pager: pager, opts: opts, logger: logger}
}

// Sync pulls the full transaction history behind accessToken, starting from an
// empty cursor. An invalidated cursor restarts the walk once from scratch.
func (c *LedgerSyncClient) Sync(ctx context.Context, accessToken string) (SyncResult, error) {
	var (
		result    SyncResult
		seen      map[string]struct{}
		syncErr   error
		walkPages int
		state     = syncStateInit
		maxPages  = c.maxPages()
	)

	for {
		switch state {
		case syncStateInit:
			result.Transactions = result.Transactions[:0]
			result.Cursor = ""
			result.Dropped = 0
			walkPages = 0
			seen = make(map[string]struct{})
			state = syncStateFetching

		case syncStateFetching:
			page, err := c.fetchPage(ctx, accessToken, result.Cursor)
			if err != nil {
				if errors.Is(err, domain.ErrCursorInvalid) && !result.Restarted {
					c.logger.Warn("transaction cursor invalidated, restarting sync", "pages", result.Pages, "error", err)
					result.Restarted = true
					state = syncStateInit
					continue
				}
				syncErr = err
				state = syncStateError
				continue
			}
			result.Pages++
			walkPages++
			for _, raw := range page.Added {
				tx, err := normalizeExternalTransaction(raw)
				if err != nil {
					result.Dropped++
					c.logger.Warn("dropping malformed transaction", "error", err)
					continue
				}
				if _, dup := seen[tx.ID]; dup {
					continue
				}
				seen[tx.ID] = struct{}{}
				result.Transactions = append(result.Transactions, tx)
			}
			prevCursor := result.Cursor
			result.Cursor = page.NextCursor
			switch {
			case !page.HasMore:
				state = syncStateDone
			case page.NextCursor == prevCursor:
				c.logger.Warn("provider cursor did not advance, stopping sync", "cursor", prevCursor, "pages", result.Pages)
				result.CapReached = true
				state = syncStateDone
			case walkPages >= maxPages:
				c.logger.Info("sync page limit reached, stopping sync", "max_pages", maxPages, "transactions", len(result.Transactions))
				result.CapReached = true
				state = syncStateDone
			default:
				state = syncStateHasMore
			}

		case syncStateHasMore:
			if len(result.Transactions) >= c.opts.MaxTransactions {
				result.CapReached = true
				c.logger.Info("transaction cap reached, stopping sync", "cap", c.opts.MaxTransactions, "pages", result.Pages)
				state = syncStateDone
				continue
			}
			if err := ctx.Err(); err != nil {
				syncErr = fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
				state = syncStateError
				continue
			}
			state = syncStateFetching

		case syncStateDone:
			c.truncate(&result)
			return result, nil

		case syncStateError:
			c.truncate(&result)
			return result, syncErr
		}
	}
}

func (c *LedgerSyncClient) fetchPage(ctx context.Context, accessToken, cursor string) (*domain.PlaidTransactionsSyncResponse, error) {
	pageCtx, cancel := context.WithTimeout(ctx, c.opts.PageTimeout)
	defer cancel()

	page, err := c.pager.SyncTransactions(pageCtx, accessToken, cursor, c.opts.PageSize)
	if err != nil {
		if pageCtx.Err() != nil && !errors.Is(err, domain.ErrProviderUnavailable) {
			return nil, fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
		}
		return nil, err
	}
	if page == nil {
		return nil, fmt.Errorf("%w: empty sync response", domain.ErrProviderUnavailable)
	}
	return page, nil
}

// maxPages bounds one walk of the feed. A well-behaved provider needs
// ceil(cap/pageSize) pages; the slack covers pages thinned by duplicates.
func (c *LedgerSyncClient) maxPages() int {
	full := (c.opts.MaxTransactions + c.opts.PageSize - 1) / c.opts.PageSize
	return 2*full + 8
}

func (c *LedgerSyncClient) truncate(result *SyncResult) {
	if len(result.Transactions) > c.opts.MaxTransactions {
		c.logger.Info("transaction cap reached, truncating", "cap", c.opts.MaxTransactions, "fetched", len(result.Transactions))
		result.Transactions = result.Transactions[:c.opts.MaxTransactions]
		result.CapReached = true
	}
}

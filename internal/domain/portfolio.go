package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Amounts leave the service as JSON numbers.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// WarningKind classifies a degraded-but-usable outcome for one account.
type WarningKind string

const (
	WarningCredentialMissing    WarningKind = "access_credential_missing"
	WarningAccountUnavailable   WarningKind = "account_unavailable"
	WarningInstitutionUnknown   WarningKind = "institution_not_found"
	WarningTransfersUnavailable WarningKind = "transfer_store_unavailable"
	WarningSyncIncomplete       WarningKind = "transaction_sync_incomplete"
)

// AccountWarning is a per-account degradation surfaced to the caller.
type AccountWarning struct {
	LinkedAccountID string      `json:"linked_account_id"`
	Kind            WarningKind `json:"kind"`
	Message         string      `json:"message"`
}

// AccountDetailView is the full view of one linked account.
type AccountDetailView struct {
	Account        AccountSnapshot         `json:"account"`
	Transactions   []ReconciledTransaction `json:"transactions"`
	Warnings       []AccountWarning        `json:"warnings"`
	SyncCapReached bool                    `json:"sync_cap_reached"`
}

// AccountSummary is a snapshot plus a digest of the account's transactions.
type AccountSummary struct {
	AccountSnapshot
	TransactionCount    int        `json:"transaction_count"`
	PendingCount        int        `json:"pending_count"`
	LatestTransactionAt *time.Time `json:"latest_transaction_at,omitempty"`
}

// PortfolioView aggregates every linked account of a user.
type PortfolioView struct {
	Accounts            []AccountSummary `json:"accounts"`
	TotalBanks          int              `json:"total_banks"`
	TotalCurrentBalance decimal.Decimal  `json:"total_current_balance"`
	Warnings            []AccountWarning `json:"warnings"`
}

// AccountDegradedEvent is published for every warning produced during aggregation.
type AccountDegradedEvent struct {
	EventID         string      `json:"event_id"`
	UserID          string      `json:"user_id"`
	LinkedAccountID string      `json:"linked_account_id"`
	Kind            WarningKind `json:"kind"`
	Message         string      `json:"message"`
	OccurredAt      time.Time   `json:"occurred_at"`
}

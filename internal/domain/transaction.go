/**
 * @description
 * Transaction models for the portfolio-service. Two sources feed an account's
 * history: external transactions pulled from the ledger provider's sync feed and
 * transfer records persisted locally by the transfer flow. Both are normalized
 * into ReconciledTransaction before they leave the service.
 */
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fallbacks applied when the provider omits optional transaction fields.
const (
	CategoryUncategorized = "uncategorized"
	ChannelOther          = "other"
)

// TransactionType values for transfer-derived entries.
const (
	TransactionTypeDebit  = "debit"
	TransactionTypeCredit = "credit"
)

// TransactionSource identifies where a reconciled entry came from.
type TransactionSource string

const (
	SourceExternal TransactionSource = "external"
	SourceTransfer TransactionSource = "transfer"
)

// ExternalTransaction is a normalized entry from the ledger-sync feed.
type ExternalTransaction struct {
	ID             string          `json:"id"`
	AccountID      string          `json:"account_id"`
	Name           string          `json:"name"`
	Amount         decimal.Decimal `json:"amount"`
	CurrencyCode   string          `json:"currency_code,omitempty"`
	PaymentChannel string          `json:"payment_channel"`
	Category       string          `json:"category"`
	Pending        bool            `json:"pending"`
	Date           time.Time       `json:"date"`
	Image          string          `json:"image,omitempty"`
}

// TransferRecord is a locally persisted movement between two linked accounts.
type TransferRecord struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	SenderAccountID   string          `json:"sender_account_id"`
	ReceiverAccountID string          `json:"receiver_account_id"`
	Amount            decimal.Decimal `json:"amount"`
	Category          string          `json:"category"`
	Channel           string          `json:"channel"`
	CreatedAt         time.Time       `json:"created_at"`
}

// ReconciledTransaction is the unified projection handed to the presentation layer.
//
// Type is "debit" or "credit" for transfer-derived entries and the provider's
// payment channel for external ones.
type ReconciledTransaction struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Amount         decimal.Decimal   `json:"amount"`
	Date           time.Time         `json:"date"`
	PaymentChannel string            `json:"payment_channel"`
	Category       string            `json:"category"`
	Type           string            `json:"type"`
	Pending        bool              `json:"pending"`
	Image          string            `json:"image,omitempty"`
	Source         TransactionSource `json:"source"`
}

package app

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/transfa/portfolio-service/internal/domain"
)

const (
	providerDateLayout = "2006-01-02"

	transferChannelFallback  = "online"
	transferCategoryFallback = "Transfer"
)

var errMalformedTransaction = errors.New("malformed transaction")

// normalizeExternalTransaction converts a raw feed entry into an ExternalTransaction.
// Entries without an id or a parseable date are malformed and must be dropped.
func normalizeExternalTransaction(raw domain.PlaidTransaction) (domain.ExternalTransaction, error) {
	if strings.TrimSpace(raw.TransactionID) == "" {
		return domain.ExternalTransaction{}, fmt.Errorf("%w: missing transaction_id", errMalformedTransaction)
	}
	if raw.Date == nil || strings.TrimSpace(*raw.Date) == "" {
		return domain.ExternalTransaction{}, fmt.Errorf("%w: transaction %s has no date", errMalformedTransaction, raw.TransactionID)
	}
	date, err := time.Parse(providerDateLayout, strings.TrimSpace(*raw.Date))
	if err != nil {
		return domain.ExternalTransaction{}, fmt.Errorf("%w: transaction %s has invalid date %q", errMalformedTransaction, raw.TransactionID, *raw.Date)
	}

	name := raw.Name
	if name == "" {
		name = valueOr(raw.MerchantName, "")
	}

	return domain.ExternalTransaction{
		ID:             raw.TransactionID,
		AccountID:      raw.AccountID,
		Name:           name,
		Amount:         raw.Amount,
		CurrencyCode:   valueOr(raw.ISOCurrencyCode, ""),
		PaymentChannel: valueOr(raw.PaymentChannel, domain.ChannelOther),
		Category:       firstCategory(raw.Category),
		Pending:        raw.Pending,
		Date:           date,
		Image:          valueOr(raw.LogoURL, ""),
	}, nil
}

func firstCategory(categories []string) string {
	if len(categories) > 0 {
		if c := strings.TrimSpace(categories[0]); c != "" {
			return c
		}
	}
	return domain.CategoryUncategorized
}

func valueOr(value *string, fallback string) string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return fallback
	}
	return *value
}

// buildSnapshot maps the provider's account listing onto an AccountSnapshot.
// The first account reported under the credential is the one shown.
func buildSnapshot(linked domain.LinkedAccount, resp *domain.PlaidAccountsGetResponse) (domain.AccountSnapshot, error) {
	if resp == nil || len(resp.Accounts) == 0 {
		return domain.AccountSnapshot{}, fmt.Errorf("provider returned no accounts for linked account %s", linked.ID)
	}
	account := resp.Accounts[0]

	institutionID := valueOr(resp.Item.InstitutionID, linked.InstitutionID)

	return domain.AccountSnapshot{
		ID:               account.AccountID,
		LinkedAccountID:  linked.ID,
		ShareableID:      linked.ShareableID,
		AvailableBalance: account.Balances.Available,
		CurrentBalance:   account.Balances.Current,
		CurrencyCode:     valueOr(account.Balances.ISOCurrencyCode, ""),
		InstitutionID:    institutionID,
		Name:             account.Name,
		OfficialName:     valueOr(account.OfficialName, ""),
		Mask:             valueOr(account.Mask, domain.MaskFallback),
		Type:             account.Type,
		Subtype:          valueOr(account.Subtype, ""),
	}, nil
}

func fromExternal(tx domain.ExternalTransaction) domain.ReconciledTransaction {
	return domain.ReconciledTransaction{
		ID:             tx.ID,
		Name:           tx.Name,
		Amount:         tx.Amount,
		Date:           tx.Date,
		PaymentChannel: tx.PaymentChannel,
		Category:       tx.Category,
		Type:           tx.PaymentChannel,
		Pending:        tx.Pending,
		Image:          tx.Image,
		Source:         domain.SourceExternal,
	}
}

// fromTransfer projects a transfer record as seen from linkedAccountID.
func fromTransfer(record domain.TransferRecord, linkedAccountID string) domain.ReconciledTransaction {
	txType := domain.TransactionTypeCredit
	if record.SenderAccountID == linkedAccountID {
		txType = domain.TransactionTypeDebit
	}
	channel := record.Channel
	if channel == "" {
		channel = transferChannelFallback
	}
	category := record.Category
	if category == "" {
		category = transferCategoryFallback
	}
	return domain.ReconciledTransaction{
		ID:             record.ID,
		Name:           record.Name,
		Amount:         record.Amount,
		Date:           record.CreatedAt,
		PaymentChannel: channel,
		Category:       category,
		Type:           txType,
		Source:         domain.SourceTransfer,
	}
}

// reconcileTransactions merges both sources into one list: external entries first,
// then transfers, duplicates by id dropped, then stably sorted most recent first.
func reconcileTransactions(linkedAccountID string, external []domain.ExternalTransaction, transfers []domain.TransferRecord) []domain.ReconciledTransaction {
	merged := make([]domain.ReconciledTransaction, 0, len(external)+len(transfers))
	seen := make(map[string]struct{}, len(external)+len(transfers))

	add := func(tx domain.ReconciledTransaction) {
		if _, dup := seen[tx.ID]; dup {
			return
		}
		seen[tx.ID] = struct{}{}
		merged = append(merged, tx)
	}
	for _, tx := range external {
		add(fromExternal(tx))
	}
	for _, record := range transfers {
		add(fromTransfer(record, linkedAccountID))
	}

	slices.SortStableFunc(merged, func(a, b domain.ReconciledTransaction) int {
		return cmp.Compare(b.Date.UnixNano(), a.Date.UnixNano())
	})
	return merged
}

func summarize(view *domain.AccountDetailView) domain.AccountSummary {
	summary := domain.AccountSummary{
		AccountSnapshot:  view.Account,
		TransactionCount: len(view.Transactions),
	}
	for _, tx := range view.Transactions {
		if tx.Pending {
			summary.PendingCount++
		}
	}
	if len(view.Transactions) > 0 {
		latest := view.Transactions[0].Date
		summary.LatestTransactionAt = &latest
	}
	return summary
}

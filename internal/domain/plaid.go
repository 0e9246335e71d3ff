/**
 * @description
 * Go structs mapping the JSON payloads of the ledger provider (Plaid-compatible
 * API) used by the portfolio-service. Nullable upstream fields are pointers so the
 * normalization step can tell "missing" apart from "empty".
 */
package domain

import "github.com/shopspring/decimal"

// --- /accounts/get ---

// PlaidAccountsGetRequest is the request body for /accounts/get.
type PlaidAccountsGetRequest struct {
	AccessToken string `json:"access_token"`
}

// PlaidBalances holds the balances of one provider account.
type PlaidBalances struct {
	Available       decimal.NullDecimal `json:"available"`
	Current         decimal.NullDecimal `json:"current"`
	ISOCurrencyCode *string             `json:"iso_currency_code"`
}

// PlaidAccount is one account under an item.
type PlaidAccount struct {
	AccountID    string        `json:"account_id"`
	Balances     PlaidBalances `json:"balances"`
	Mask         *string       `json:"mask"`
	Name         string        `json:"name"`
	OfficialName *string       `json:"official_name"`
	Type         string        `json:"type"`
	Subtype      *string       `json:"subtype"`
}

// PlaidItem describes the link between a credential and an institution.
type PlaidItem struct {
	ItemID        string  `json:"item_id"`
	InstitutionID *string `json:"institution_id"`
}

// PlaidAccountsGetResponse is the response body of /accounts/get.
type PlaidAccountsGetResponse struct {
	Accounts  []PlaidAccount `json:"accounts"`
	Item      PlaidItem      `json:"item"`
	RequestID string         `json:"request_id"`
}

// --- /institutions/get_by_id ---

// PlaidInstitutionOptions toggles optional institution fields.
type PlaidInstitutionOptions struct {
	IncludeOptionalMetadata bool `json:"include_optional_metadata"`
}

// PlaidInstitutionGetRequest is the request body for /institutions/get_by_id.
type PlaidInstitutionGetRequest struct {
	InstitutionID string                  `json:"institution_id"`
	CountryCodes  []string                `json:"country_codes"`
	Options       PlaidInstitutionOptions `json:"options"`
}

// PlaidInstitution is the provider's institution resource.
type PlaidInstitution struct {
	InstitutionID string  `json:"institution_id"`
	Name          string  `json:"name"`
	Logo          *string `json:"logo"`
	URL           *string `json:"url"`
	PrimaryColor  *string `json:"primary_color"`
}

// PlaidInstitutionGetResponse is the response body of /institutions/get_by_id.
type PlaidInstitutionGetResponse struct {
	Institution PlaidInstitution `json:"institution"`
	RequestID   string           `json:"request_id"`
}

// --- /transactions/sync ---

// PlaidTransactionsSyncRequest is the request body for /transactions/sync.
type PlaidTransactionsSyncRequest struct {
	AccessToken string `json:"access_token"`
	Cursor      string `json:"cursor,omitempty"`
	Count       int    `json:"count,omitempty"`
}

// PlaidTransaction is one raw entry of the sync feed.
type PlaidTransaction struct {
	TransactionID   string          `json:"transaction_id"`
	AccountID       string          `json:"account_id"`
	Amount          decimal.Decimal `json:"amount"`
	ISOCurrencyCode *string         `json:"iso_currency_code"`
	Name            string          `json:"name"`
	MerchantName    *string         `json:"merchant_name"`
	PaymentChannel  *string         `json:"payment_channel"`
	Category        []string        `json:"category"`
	Pending         bool            `json:"pending"`
	Date            *string         `json:"date"`
	LogoURL         *string         `json:"logo_url"`
}

// PlaidTransactionsSyncResponse is the response body of /transactions/sync.
type PlaidTransactionsSyncResponse struct {
	Added      []PlaidTransaction `json:"added"`
	NextCursor string             `json:"next_cursor"`
	HasMore    bool               `json:"has_more"`
	RequestID  string             `json:"request_id"`
}

// --- errors ---

// PlaidError is the error body returned with non-2xx responses.
type PlaidError struct {
	ErrorType    string `json:"error_type"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	RequestID    string `json:"request_id"`
}

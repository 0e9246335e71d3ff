/**
 * @description
 * This file defines the account-side models of the portfolio-service: the linked
 * account record we persist, the point-in-time snapshot we build from the ledger
 * provider on every request, and the institution metadata shown next to it.
 *
 * @notes
 * - Snapshots are never persisted. They are rebuilt on every aggregation call.
 * - Balances are nullable upstream, so they are carried as decimal.NullDecimal and
 *   only collapsed to zero when totals are computed.
 */
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// UnknownInstitutionID is the sentinel used when institution metadata cannot be resolved.
	UnknownInstitutionID = "unknown"
	// UnknownInstitutionName is the display name paired with UnknownInstitutionID.
	UnknownInstitutionName = "Unknown Institution"
	// MaskFallback is used when the provider does not report an account mask.
	MaskFallback = "****"
)

// LinkedAccount is a user's connection to one external financial institution.
type LinkedAccount struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	AccessToken   string    `json:"-"`
	InstitutionID string    `json:"institution_id"`
	ShareableID   string    `json:"shareable_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasCredential reports whether the account carries a usable access credential.
func (a LinkedAccount) HasCredential() bool {
	return a.AccessToken != ""
}

// InstitutionMetadata is the display metadata of a financial institution.
type InstitutionMetadata struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Logo         string `json:"logo,omitempty"`
	URL          string `json:"url,omitempty"`
	PrimaryColor string `json:"primary_color,omitempty"`
}

// UnknownInstitution returns the sentinel metadata used when resolution fails.
func UnknownInstitution() InstitutionMetadata {
	return InstitutionMetadata{ID: UnknownInstitutionID, Name: UnknownInstitutionName}
}

// IsUnknown reports whether the metadata is the unknown sentinel.
func (m InstitutionMetadata) IsUnknown() bool {
	return m.ID == UnknownInstitutionID
}

// AccountSnapshot is a point-in-time balance view of one linked account.
type AccountSnapshot struct {
	ID               string              `json:"id"`
	LinkedAccountID  string              `json:"linked_account_id"`
	ShareableID      string              `json:"shareable_id"`
	AvailableBalance decimal.NullDecimal `json:"available_balance"`
	CurrentBalance   decimal.NullDecimal `json:"current_balance"`
	CurrencyCode     string              `json:"currency_code,omitempty"`
	InstitutionID    string              `json:"institution_id"`
	Institution      InstitutionMetadata `json:"institution"`
	Name             string              `json:"name"`
	OfficialName     string              `json:"official_name,omitempty"`
	Mask             string              `json:"mask"`
	Type             string              `json:"type"`
	Subtype          string              `json:"subtype,omitempty"`
}

// CurrentBalanceOrZero returns the current balance, treating a missing value as zero.
func (s AccountSnapshot) CurrentBalanceOrZero() decimal.Decimal {
	if !s.CurrentBalance.Valid {
		return decimal.Zero
	}
	return s.CurrentBalance.Decimal
}

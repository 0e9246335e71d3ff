package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortfolioView_AmountsMarshalAsNumbers(t *testing.T) {
	view := PortfolioView{TotalBanks: 1, TotalCurrentBalance: decimal.RequireFromString("150.25")}

	data, err := json.Marshal(view)

	require.NoError(t, err)
	assert.Contains(t, string(data), `"total_current_balance":150.25`)
}

func TestAccountSnapshot_BalancesMarshalAsNumbersOrNull(t *testing.T) {
	snapshot := AccountSnapshot{
		ID:             "acc-1",
		CurrentBalance: decimal.NewNullDecimal(decimal.RequireFromString("-12.5")),
	}

	data, err := json.Marshal(snapshot)

	require.NoError(t, err)
	assert.Contains(t, string(data), `"current_balance":-12.5`)
	assert.Contains(t, string(data), `"available_balance":null`)
}

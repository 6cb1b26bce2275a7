package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sftbazaar.io/pkg/money"
)

func TestAmountStringRoundTrip(t *testing.T) {
	a := money.New(123456789)
	s := amountToString(a)
	assert.Equal(t, "123456789", s)

	back, err := amountFromString(s)
	require.NoError(t, err)
	assert.Equal(t, 0, a.Cmp(back))
}

func TestAmountFromStringEmptyIsZero(t *testing.T) {
	a, err := amountFromString("")
	require.NoError(t, err)
	assert.True(t, a.IsZero())
}

func TestAmountFromStringRejectsGarbage(t *testing.T) {
	_, err := amountFromString("not-a-number")
	require.Error(t, err)
}

func TestTableNamesAreExplicit(t *testing.T) {
	assert.Equal(t, "market_items", ItemRecord{}.TableName())
	assert.Equal(t, "market_item_sales", SaleRecord{}.TableName())
	assert.Equal(t, "market_positions", PositionRecord{}.TableName())
	assert.Equal(t, "market_auction_data", AuctionDataRecord{}.TableName())
	assert.Equal(t, "market_raffle_data", RaffleDataRecord{}.TableName())
	assert.Equal(t, "market_loan_data", LoanDataRecord{}.TableName())
	assert.Equal(t, "market_claim_balances", ClaimBalanceRecord{}.TableName())
}

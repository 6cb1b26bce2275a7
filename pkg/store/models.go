package store

import (
	"fmt"
	"math/big"

	"sftbazaar.io/pkg/money"
)

// ItemRecord is the GORM row for registry.Item. Sales live in their own
// table (SaleRecord) rather than a JSON blob column since the teacher's
// repos never denormalize an append-only list into a single row.
type ItemRecord struct {
	ItemID        int64  `gorm:"primaryKey;column:item_id"`
	NFTContract   string `gorm:"column:nft_contract;uniqueIndex:idx_token,priority:1"`
	TokenID       string `gorm:"column:token_id;uniqueIndex:idx_token,priority:2"`
	Creator       string `gorm:"column:creator;index"`
	PositionCount int64  `gorm:"column:position_count"`
}

func (ItemRecord) TableName() string { return "market_items" }

// SaleRecord is one append-only row of an item's sale history.
type SaleRecord struct {
	ID     int64  `gorm:"primaryKey;autoIncrement;column:id"`
	ItemID int64  `gorm:"column:item_id;index"`
	Seller string `gorm:"column:seller"`
	Buyer  string `gorm:"column:buyer"`
	Price  string `gorm:"column:price"` // decimal string, see amountToString/amountFromString
	Amount int64  `gorm:"column:amount"`
}

func (SaleRecord) TableName() string { return "market_item_sales" }

// PositionRecord is the GORM row for position.Position.
type PositionRecord struct {
	PositionID        int64  `gorm:"primaryKey;column:position_id"`
	ItemID            int64  `gorm:"column:item_id;index"`
	Owner             string `gorm:"column:owner;index"`
	Amount            int64  `gorm:"column:amount"`
	Price             string `gorm:"column:price"`
	MarketFeeSnapshot int64  `gorm:"column:market_fee_snapshot"`
	State             int8   `gorm:"column:state;index"`
}

func (PositionRecord) TableName() string { return "market_positions" }

// AuctionDataRecord is the GORM row for position.AuctionData.
type AuctionDataRecord struct {
	PositionID    int64  `gorm:"primaryKey;column:position_id"`
	Deadline      int64  `gorm:"column:deadline"`
	MinBid        string `gorm:"column:min_bid"`
	HighestBidder string `gorm:"column:highest_bidder"`
	HighestBid    string `gorm:"column:highest_bid"`
}

func (AuctionDataRecord) TableName() string { return "market_auction_data" }

// RaffleDataRecord is the GORM row for position.RaffleData. Entries are
// stored as a JSON-encoded text column: unlike sales, a raffle's entry
// list is rewritten wholesale on every EnterRaffle rather than appended
// to across independent transactions, so one column round-trips cheaper
// than a child table here.
type RaffleDataRecord struct {
	PositionID int64  `gorm:"primaryKey;column:position_id"`
	Deadline   int64  `gorm:"column:deadline"`
	TotalValue int64  `gorm:"column:total_value"`
	Entries    string `gorm:"column:entries;type:text"` // JSON []position.RaffleEntry
}

func (RaffleDataRecord) TableName() string { return "market_raffle_data" }

// LoanDataRecord is the GORM row for position.LoanData.
type LoanDataRecord struct {
	PositionID      int64  `gorm:"primaryKey;column:position_id"`
	LoanAmount      string `gorm:"column:loan_amount"`
	FeeAmount       string `gorm:"column:fee_amount"`
	DurationMinutes int64  `gorm:"column:duration_minutes"`
	Lender          string `gorm:"column:lender"`
	Deadline        int64  `gorm:"column:deadline"`
}

func (LoanDataRecord) TableName() string { return "market_loan_data" }

// ClaimBalanceRecord is the GORM row for one recipient's claimable
// balance.
type ClaimBalanceRecord struct {
	Recipient string `gorm:"primaryKey;column:recipient"`
	Amount    string `gorm:"column:amount"`
}

func (ClaimBalanceRecord) TableName() string { return "market_claim_balances" }

// amountToString/amountFromString convert money.Amount to and from the
// decimal-string columns above. money.Amount wraps an unexported
// big.Int, so records always carry the base-10 rendering rather than a
// GORM-visible numeric type — the same choice the teacher makes for
// values that must never silently lose precision through a DB driver's
// int64/float64 conversion.
func amountToString(a money.Amount) string { return a.String() }

func amountFromString(s string) (money.Amount, error) {
	if s == "" {
		return money.Zero(), nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return money.Amount{}, fmt.Errorf("store: invalid decimal amount %q", s)
	}
	return money.FromBigInt(n), nil
}

// Package position implements the Position Store (component C): the
// mapping from positionId to Position plus its per-state sidecar data,
// per-item position counts, and the per-position locking that lets Mode
// Engines satisfy the reentrancy-guard discipline in §5 of the spec.
package position

import "sftbazaar.io/pkg/money"

// State is the trade mode a Position currently sits in.
type State int8

const (
	Available State = iota
	RegularSale
	Auction
	Raffle
	Loan
)

func (s State) String() string {
	switch s {
	case Available:
		return "AVAILABLE"
	case RegularSale:
		return "REGULAR_SALE"
	case Auction:
		return "AUCTION"
	case Raffle:
		return "RAFFLE"
	case Loan:
		return "LOAN"
	default:
		return "UNKNOWN"
	}
}

// Position is a bucket of Amount units of Item held by Owner in one State.
type Position struct {
	PositionID        int64
	ItemID            int64
	Owner             string
	Amount            int64
	Price             money.Amount
	MarketFeeSnapshot int64 // basis points of 10000, captured at creation
	State             State
}

// AuctionData is the English-auction sidecar for one Position.
type AuctionData struct {
	Deadline      int64 // unix seconds
	MinBid        money.Amount
	HighestBidder string
	HighestBid    money.Amount
}

// RaffleEntry is one participant's ticket record, in first-contribution
// insertion order.
type RaffleEntry struct {
	Address                string
	CumulativeContribution int64 // whole-unit tickets
}

// RaffleData is the raffle sidecar for one Position.
type RaffleData struct {
	Deadline   int64
	TotalValue int64 // whole-unit tickets, sum of entry contributions
	Entries    []RaffleEntry
}

// LoanData is the collateralized-loan sidecar for one Position.
type LoanData struct {
	LoanAmount      money.Amount
	FeeAmount       money.Amount
	DurationMinutes int64
	Lender          string
	Deadline        int64 // 0 until funded
}

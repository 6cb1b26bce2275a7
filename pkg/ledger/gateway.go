// Package ledger defines the capability surface the marketplace engine
// consumes from the external SFT ledger. The ledger itself — balance
// accounting, transfer authorization, URI storage, royalty-info storage —
// is an external collaborator; this package only declares the thin
// interface the engine calls through, plus a fake used by engine tests
// (mirroring the teacher's repository-interface-plus-fake split, e.g.
// order.OrderRepository / futures.PositionRepository).
package ledger

import (
	"context"

	"sftbazaar.io/pkg/money"
)

// TokenID identifies one (nftContract, tokenId) pair on the external
// ledger.
type TokenID struct {
	NFTContract string
	TokenID     string
}

// Gateway is the capability surface required of the external SFT ledger.
type Gateway interface {
	// BalanceOf returns the units of tok that owner holds on the ledger.
	BalanceOf(ctx context.Context, owner string, tok TokenID) (int64, error)

	// ApproveOperator grants the engine operator rights over owner's
	// balance of tok, if not already granted. Idempotent.
	ApproveOperator(ctx context.Context, owner string, tok TokenID) error

	// TransferFrom moves units units of tok from from to to. Fails if from
	// lacks balance or has not granted operator rights to the engine.
	TransferFrom(ctx context.Context, from, to string, tok TokenID, units int64) error

	// SupportsRoyalty reports whether tok's contract implements royalty
	// lookup (EIP-2981 semantics).
	SupportsRoyalty(ctx context.Context, tok TokenID) (bool, error)

	// RoyaltyInfo returns the royalty receiver and amount owed on a sale of
	// gross value for tok. amount <= gross always.
	RoyaltyInfo(ctx context.Context, tok TokenID, gross money.Amount) (receiver string, amount money.Amount, err error)

	// PayNative attempts to pay amount of the native settlement currency to
	// recipient. A non-nil error means the payout did not happen; callers
	// must treat this as non-fatal per the settlement pipeline's
	// failure-tolerant payout policy and credit the claimable-balance
	// store instead of retrying inline.
	PayNative(ctx context.Context, recipient string, amount money.Amount) error
}

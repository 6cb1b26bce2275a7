// Package market implements the Mode Engines (component E) — one state
// machine per trade mode (Sale, Auction, Raffle, Loan) — composing the
// Ledger Gateway, Item Registry, Position Store, Settlement Pipeline, and
// claimable-balance store into trade operations, plus the admin fee
// surface. Grounded on the teacher's spot.SpotProcessor: a coordinating
// processor built from a Config struct, wired to its collaborator engines
// by reference rather than owning their storage itself.
package market

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"sftbazaar.io/pkg/claim"
	"sftbazaar.io/pkg/events"
	"sftbazaar.io/pkg/ledger"
	"sftbazaar.io/pkg/marketerr"
	"sftbazaar.io/pkg/position"
	"sftbazaar.io/pkg/registry"
	"sftbazaar.io/pkg/rngsrc"
	"sftbazaar.io/pkg/settlement"
)

// defaultMarketFeeBP is the platform fee rate new deployments start at,
// expressed in basis points of 10000 (250bp == 2.5%).
const defaultMarketFeeBP = 250

// Soft-close and duration bounds (§4.E.2/E.3/E.4).
const (
	minAuctionMinutes = 60
	maxAuctionMinutes = 44640
	softCloseWindow   = 600 // seconds
	raffleTicketUnit  = 1_000_000_000_000_000_000 // 1e18
	minLoanMinutes    = 1
	maxLoanMinutes    = 2_628_000
)

// Clock returns the current unix time in seconds. Exists so tests can
// supply a deterministic clock instead of time.Now.
type Clock func() int64

func systemClock() int64 { return time.Now().Unix() }

// Config wires an Engine to its collaborators. Mirrors the teacher's
// spot.ProcessorConfig: every collaborator engine is constructed
// independently and handed in by reference.
type Config struct {
	Ledger    ledger.Gateway
	Items     *registry.Registry
	Positions *position.Store
	Claims    *claim.Store
	Settler   *settlement.Pipeline
	Publisher events.Publisher
	RNG       rngsrc.Source
	Now       Clock // optional; defaults to time.Now

	PlatformOwner  string
	InitialFeeBP   int64 // optional; defaults to defaultMarketFeeBP
}

// Engine is the marketplace engine: the single coordinating handle an
// application builds once and drives every operation in §4.E/§6 through.
type Engine struct {
	ledger    ledger.Gateway
	items     *registry.Registry
	positions *position.Store
	claims    *claim.Store
	settler   *settlement.Pipeline
	publisher events.Publisher
	rng       rngsrc.Source
	now       Clock

	platformOwner string
	marketFeeBP   atomic.Int64
}

// New constructs an Engine from cfg. Panics on an incomplete Config — this
// mirrors a programming error, not a runtime condition.
func New(cfg Config) *Engine {
	if cfg.Ledger == nil || cfg.Items == nil || cfg.Positions == nil || cfg.Claims == nil || cfg.Settler == nil {
		panic("market: incomplete engine config")
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.Noop{}
	}
	if cfg.RNG == nil {
		cfg.RNG = rngsrc.CryptoRand{}
	}
	if cfg.Now == nil {
		cfg.Now = systemClock
	}
	feeBP := cfg.InitialFeeBP
	if feeBP == 0 {
		feeBP = defaultMarketFeeBP
	}

	e := &Engine{
		ledger:        cfg.Ledger,
		items:         cfg.Items,
		positions:     cfg.Positions,
		claims:        cfg.Claims,
		settler:       cfg.Settler,
		publisher:     cfg.Publisher,
		rng:           cfg.RNG,
		now:           cfg.Now,
		platformOwner: cfg.PlatformOwner,
	}
	e.marketFeeBP.Store(feeBP)
	return e
}

// --- Admin surface (§6) ---

// GetMarketFee returns the platform fee rate currently applied to newly
// created positions, in basis points of 10000.
func (e *Engine) GetMarketFee() int64 {
	return e.marketFeeBP.Load()
}

// SetMarketFee updates the platform fee rate applied to positions created
// from now on (existing positions keep their MarketFeeSnapshot). caller
// must be the platform owner; bp must not exceed 1000 (10%).
func (e *Engine) SetMarketFee(ctx context.Context, caller string, bp int64) error {
	if caller != e.platformOwner {
		return fmt.Errorf("market: set fee: %w", marketerr.ErrUnauthorized)
	}
	if bp < 0 || bp > 1000 {
		return fmt.Errorf("market: fee %d out of range: %w", bp, marketerr.ErrBadParameter)
	}
	prev := e.marketFeeBP.Swap(bp)
	e.publish(ctx, events.MarketFeeChanged{Prev: prev, New: bp})
	return nil
}

// Withdraw lets recipient claim their accrued claimable balance, returning
// the amount that was debited. The caller is responsible for actually
// handing the funds to recipient through whatever payment rail they use
// out of band — this only debits the internal ledger.
func (e *Engine) Withdraw(ctx context.Context, recipient string) (int64, error) {
	amt, err := e.claims.Withdraw(ctx, recipient)
	if err != nil {
		return 0, err
	}
	return amt.Int64(), nil
}

// --- shared helpers used by every mode file in this package ---

func (e *Engine) publish(ctx context.Context, msg events.Message) {
	_ = e.publisher.Publish(ctx, msg)
}

// publishRoyalties emits RoyaltiesPaid for a completed settlement's royalty
// leg, if any royalty was actually due. Called after every Settle that
// reaches a buyer/winner, per §6's "RoyaltiesPaid" produced event.
func (e *Engine) publishRoyalties(ctx context.Context, tok ledger.TokenID, res settlement.Result) {
	if res.RoyaltyPaid.IsZero() {
		return
	}
	e.publish(ctx, events.RoyaltiesPaid{
		TokenID: tok.TokenID,
		Value:   res.RoyaltyPaid.String(),
	})
}

// ingestCustody pulls units of tok from owner into engine custody, failing
// the whole operation (not failure-tolerant — §7's one exception) if the
// transfer does not succeed.
func (e *Engine) ingestCustody(ctx context.Context, owner string, tok ledger.TokenID, units int64) error {
	if err := e.ledger.ApproveOperator(ctx, owner, tok); err != nil {
		return fmt.Errorf("market: approve operator: %w", err)
	}
	if err := e.ledger.TransferFrom(ctx, owner, settlement.EngineCustody, tok, units); err != nil {
		return fmt.Errorf("market: ingest custody: %w", err)
	}
	// The engine is both holder and spender of its own custody address, so it
	// must be its own approved operator before it can ever pay back out of
	// custody (releaseCustody, settlement.Pipeline.Settle). Idempotent, so
	// it's cheapest to just re-assert it on every ingest.
	if err := e.ledger.ApproveOperator(ctx, settlement.EngineCustody, tok); err != nil {
		return fmt.Errorf("market: approve custody operator: %w", err)
	}
	return nil
}

// releaseCustody returns units of tok from engine custody back to owner,
// re-syncing owner's Available position for itemID to the ledger's new
// view of their balance.
func (e *Engine) releaseCustody(ctx context.Context, itemID int64, owner string, tok ledger.TokenID, units int64) error {
	if err := e.ledger.TransferFrom(ctx, settlement.EngineCustody, owner, tok, units); err != nil {
		return fmt.Errorf("market: release custody: %w", err)
	}
	return e.resyncAvailable(ctx, itemID, owner, tok)
}

// resyncAvailable re-reads owner's ledger balance for tok and merges it
// into their Available Position, per §4.C's mergeOrCreateAvailable.
func (e *Engine) resyncAvailable(ctx context.Context, itemID int64, owner string, tok ledger.TokenID) error {
	bal, err := e.ledger.BalanceOf(ctx, owner, tok)
	if err != nil {
		return fmt.Errorf("market: resync balance: %w", err)
	}
	if _, err := e.positions.MergeOrCreateAvailable(ctx, itemID, owner, bal, e.GetMarketFee()); err != nil {
		return fmt.Errorf("market: merge available: %w", err)
	}
	return nil
}

func (e *Engine) tokenOf(ctx context.Context, itemID int64) (ledger.TokenID, *registry.Item, error) {
	it, err := e.items.FetchItem(ctx, itemID)
	if err != nil {
		return ledger.TokenID{}, nil, err
	}
	return it.Key(), it, nil
}

package sweep

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sftbazaar.io/pkg/claim"
	"sftbazaar.io/pkg/events"
	"sftbazaar.io/pkg/ledger"
	"sftbazaar.io/pkg/ledger/ledgertest"
	"sftbazaar.io/pkg/market"
	"sftbazaar.io/pkg/money"
	"sftbazaar.io/pkg/position"
	"sftbazaar.io/pkg/registry"
	"sftbazaar.io/pkg/rngsrc"
	"sftbazaar.io/pkg/settlement"
)

const testPlatformOwner = "platform.owner"

func newTestEngine(t *testing.T, clockNow *int64) (*market.Engine, *position.Store, *ledgertest.Fake) {
	t.Helper()
	gw := ledgertest.New()
	nextID := int64(0)
	mint := func() int64 {
		nextID++
		return nextID
	}
	items := registry.New(registry.NewMemRepository(), gw, mint)
	positions := position.New(position.NewMemRepository(), items, mint)
	claims := claim.New(claim.NewMemRepository())
	settler := settlement.New(gw, positions, claims)

	engine := market.New(market.Config{
		Ledger:        gw,
		Items:         items,
		Positions:     positions,
		Claims:        claims,
		Settler:       settler,
		Publisher:     events.Noop{},
		RNG:           rngsrc.NewMathRand(1),
		Now:           func() int64 { return *clockNow },
		PlatformOwner: testPlatformOwner,
	})
	return engine, positions, gw
}

func TestSweepEndsExpiredAuction(t *testing.T) {
	now := int64(1_700_000_000)
	engine, positions, gw := newTestEngine(t, &now)
	ctx := context.Background()
	tok := ledger.TokenID{NFTContract: "0xColl", TokenID: "1"}
	gw.SetBalance("seller", tok, 1)

	itemID, err := engine.CreateItem(ctx, "seller", tok)
	require.NoError(t, err)
	posID, err := engine.CreateAuction(ctx, "seller", itemID, 1, 60, money.New(10))
	require.NoError(t, err)

	d, err := positions.GetAuctionData(ctx, posID)
	require.NoError(t, err)
	now = d.Deadline + 1

	s := New(engine, positions, 0)
	s.Scan(ctx)

	_, err = positions.Get(ctx, posID)
	require.Error(t, err, "the expired auction must have been ended by the sweep")
}

func TestSweepLeavesUnexpiredAuctionAlone(t *testing.T) {
	now := int64(1_700_000_000)
	engine, positions, gw := newTestEngine(t, &now)
	ctx := context.Background()
	tok := ledger.TokenID{NFTContract: "0xColl", TokenID: "1"}
	gw.SetBalance("seller", tok, 1)

	itemID, err := engine.CreateItem(ctx, "seller", tok)
	require.NoError(t, err)
	posID, err := engine.CreateAuction(ctx, "seller", itemID, 1, 60, money.New(10))
	require.NoError(t, err)

	s := New(engine, positions, 0)
	s.Scan(ctx)

	p, err := positions.Get(ctx, posID)
	require.NoError(t, err)
	assert.Equal(t, position.Auction, p.State)
}

func TestSweepLiquidatesExpiredLoan(t *testing.T) {
	now := int64(1_700_000_000)
	engine, positions, gw := newTestEngine(t, &now)
	ctx := context.Background()
	tok := ledger.TokenID{NFTContract: "0xColl", TokenID: "1"}
	gw.SetBalance("borrower", tok, 1)

	itemID, err := engine.CreateItem(ctx, "borrower", tok)
	require.NoError(t, err)
	posID, err := engine.CreateLoan(ctx, "borrower", itemID, 1, money.New(1000), money.New(50), 60)
	require.NoError(t, err)
	require.NoError(t, engine.FundLoan(ctx, "lender", posID, money.New(1000)))

	d, err := positions.GetLoanData(ctx, posID)
	require.NoError(t, err)
	now = d.Deadline + 1

	s := New(engine, positions, 0)
	s.Scan(ctx)

	bal, err := gw.BalanceOf(ctx, "lender", tok)
	require.NoError(t, err)
	assert.Equal(t, int64(1), bal, "sweep must have liquidated the collateral to the lender")
}

func TestSweepStartStopIsIdempotent(t *testing.T) {
	now := int64(1_700_000_000)
	engine, positions, _ := newTestEngine(t, &now)
	s := New(engine, positions, DefaultInterval)
	s.Start()
	s.Start() // second Start before Stop must be a no-op, not a second goroutine
	s.Stop()
	s.Stop() // second Stop must also be a no-op
}

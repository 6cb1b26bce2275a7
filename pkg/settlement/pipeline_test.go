package settlement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sftbazaar.io/pkg/claim"
	"sftbazaar.io/pkg/ledger"
	"sftbazaar.io/pkg/ledger/ledgertest"
	"sftbazaar.io/pkg/money"
	"sftbazaar.io/pkg/position"
)

const platformOwner = "platform.owner"

func newTestPipeline() (*Pipeline, *ledgertest.Fake, *claim.Store, *position.Store) {
	gw := ledgertest.New()
	claims := claim.New(claim.NewMemRepository())
	nextID := int64(0)
	positions := position.New(position.NewMemRepository(), noopCounter{}, func() int64 {
		nextID++
		return nextID
	})
	return New(gw, positions, claims), gw, claims, positions
}

type noopCounter struct{}

func (noopCounter) IncrementPositionCount(context.Context, int64, int64) error { return nil }

func TestSettleSplitsRoyaltyFeeAndSellerInOrder(t *testing.T) {
	p, gw, _, positions := newTestPipeline()
	ctx := context.Background()
	tok := ledger.TokenID{NFTContract: "0xColl", TokenID: "1"}
	gw.SetRoyalty(tok, ledgertest.Royalty{Receiver: "creator", BPOfGross: 500}) // 5%
	gw.SetBalance(EngineCustody, tok, 10)
	require.NoError(t, gw.ApproveOperator(ctx, EngineCustody, tok))

	id, err := positions.Create(ctx, 1, "seller", 10, money.New(1000), 250, position.RegularSale) // 2.5% fee
	require.NoError(t, err)
	pos, err := positions.Get(ctx, id)
	require.NoError(t, err)

	res, err := p.Settle(ctx, tok, pos, "buyer", money.New(10_000), 10, platformOwner)
	require.NoError(t, err)

	// royalty: 10000*5% = 500
	assert.Equal(t, "500", res.RoyaltyPaid.String())
	assert.True(t, res.RoyaltyDirect)
	// fee computed on post-royalty base: 9500*2.5% = 237 (floor)
	assert.Equal(t, "237", res.Fee.String())
	assert.True(t, res.FeeDirect)
	// seller net: 9500-237 = 9263
	assert.Equal(t, "9263", res.Net.String())
	assert.True(t, res.NetDirect)
	assert.Equal(t, int64(10), res.UnitsTransferred)

	assert.Equal(t, "500", gw.PaidTo("creator").String())
	assert.Equal(t, "237", gw.PaidTo(platformOwner).String())
	assert.Equal(t, "9263", gw.PaidTo("seller").String())
}

func TestSettleSkipsRoyaltyWhenReceiverIsSeller(t *testing.T) {
	p, gw, _, positions := newTestPipeline()
	ctx := context.Background()
	tok := ledger.TokenID{NFTContract: "0xColl", TokenID: "1"}
	gw.SetRoyalty(tok, ledgertest.Royalty{Receiver: "seller", BPOfGross: 500})
	gw.SetBalance(EngineCustody, tok, 1)
	require.NoError(t, gw.ApproveOperator(ctx, EngineCustody, tok))

	id, err := positions.Create(ctx, 1, "seller", 1, money.New(1000), 0, position.RegularSale)
	require.NoError(t, err)
	pos, err := positions.Get(ctx, id)
	require.NoError(t, err)

	res, err := p.Settle(ctx, tok, pos, "buyer", money.New(1000), 1, platformOwner)
	require.NoError(t, err)

	assert.True(t, res.RoyaltyPaid.IsZero(), "royalty receiver is the seller, so no separate royalty payout")
	assert.Equal(t, "1000", res.Net.String())
}

func TestSettleCreditsClaimOnFailedPayout(t *testing.T) {
	p, gw, claims, positions := newTestPipeline()
	ctx := context.Background()
	tok := ledger.TokenID{NFTContract: "0xColl", TokenID: "1"}
	gw.FailPaymentsTo("seller", true)
	gw.SetBalance(EngineCustody, tok, 1)
	require.NoError(t, gw.ApproveOperator(ctx, EngineCustody, tok))

	id, err := positions.Create(ctx, 1, "seller", 1, money.New(1000), 0, position.RegularSale)
	require.NoError(t, err)
	pos, err := positions.Get(ctx, id)
	require.NoError(t, err)

	res, err := p.Settle(ctx, tok, pos, "buyer", money.New(1000), 1, platformOwner)
	require.NoError(t, err, "a failed native payout must not abort settlement")
	assert.False(t, res.NetDirect)

	bal, err := claims.Balance(ctx, "seller")
	require.NoError(t, err)
	assert.Equal(t, "1000", bal.String())
	assert.True(t, gw.PaidTo("seller").IsZero())
}

func TestSettleFailsHardOnUnitTransferError(t *testing.T) {
	gw := ledgertest.New()
	claims := claim.New(claim.NewMemRepository())
	nextID := int64(0)
	positions := position.New(position.NewMemRepository(), noopCounter{}, func() int64 {
		nextID++
		return nextID
	})
	p := New(gw, positions, claims)
	ctx := context.Background()
	tok := ledger.TokenID{NFTContract: "0xColl", TokenID: "1"}

	id, err := positions.Create(ctx, 1, "seller", 1, money.New(1000), 0, position.RegularSale)
	require.NoError(t, err)
	pos, err := positions.Get(ctx, id)
	require.NoError(t, err)

	// Engine custody never actually holds the units in this fake (no
	// ingestCustody step ran), so the unit-transfer leg fails for real —
	// unlike the native-currency legs, that failure must propagate.
	_, err = p.Settle(ctx, tok, pos, "buyer", money.New(1000), 1, platformOwner)
	require.Error(t, err)
}

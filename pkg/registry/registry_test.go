package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sftbazaar.io/pkg/ledger"
	"sftbazaar.io/pkg/ledger/ledgertest"
	"sftbazaar.io/pkg/marketerr"
)

func newTestRegistry() (*Registry, *ledgertest.Fake) {
	gw := ledgertest.New()
	nextID := int64(0)
	r := New(NewMemRepository(), gw, func() int64 {
		nextID++
		return nextID
	})
	return r, gw
}

func TestCreateItemRequiresBalance(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()
	tok := ledger.TokenID{NFTContract: "0xColl", TokenID: "1"}

	_, err := r.CreateItem(ctx, "alice", tok)
	require.Error(t, err)
	assert.ErrorIs(t, err, marketerr.ErrNoBalance)
}

func TestCreateItemSucceedsWithBalance(t *testing.T) {
	r, gw := newTestRegistry()
	ctx := context.Background()
	tok := ledger.TokenID{NFTContract: "0xColl", TokenID: "1"}
	gw.SetBalance("alice", tok, 10)

	itemID, err := r.CreateItem(ctx, "alice", tok)
	require.NoError(t, err)
	assert.Equal(t, int64(1), itemID)

	it, err := r.FetchItem(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, "alice", it.Creator)
	assert.Equal(t, tok, it.Key())
}

func TestCreateItemRejectsDuplicate(t *testing.T) {
	r, gw := newTestRegistry()
	ctx := context.Background()
	tok := ledger.TokenID{NFTContract: "0xColl", TokenID: "1"}
	gw.SetBalance("alice", tok, 10)

	_, err := r.CreateItem(ctx, "alice", tok)
	require.NoError(t, err)

	_, err = r.CreateItem(ctx, "bob", tok)
	require.Error(t, err)
	assert.ErrorIs(t, err, marketerr.ErrAlreadyExists)
}

func TestFetchItemNotFound(t *testing.T) {
	r, _ := newTestRegistry()
	_, err := r.FetchItem(context.Background(), 999)
	require.Error(t, err)
	assert.ErrorIs(t, err, marketerr.ErrNotFound)
}

func TestAppendSaleAndIncrementPositionCount(t *testing.T) {
	r, gw := newTestRegistry()
	ctx := context.Background()
	tok := ledger.TokenID{NFTContract: "0xColl", TokenID: "1"}
	gw.SetBalance("alice", tok, 10)

	itemID, err := r.CreateItem(ctx, "alice", tok)
	require.NoError(t, err)

	require.NoError(t, r.IncrementPositionCount(ctx, itemID, 1))
	require.NoError(t, r.AppendSale(ctx, itemID, Sale{Seller: "alice", Buyer: "bob", Amount: 3}))

	it, err := r.FetchItem(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), it.PositionCount)
	require.Len(t, it.Sales, 1)
	assert.Equal(t, "bob", it.Sales[0].Buyer)
}

func TestIncrementPositionCountNeverGoesNegative(t *testing.T) {
	r, gw := newTestRegistry()
	ctx := context.Background()
	tok := ledger.TokenID{NFTContract: "0xColl", TokenID: "1"}
	gw.SetBalance("alice", tok, 10)

	itemID, err := r.CreateItem(ctx, "alice", tok)
	require.NoError(t, err)

	require.NoError(t, r.IncrementPositionCount(ctx, itemID, -5))
	it, err := r.FetchItem(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), it.PositionCount)
}

func TestListByCreatorOrdersByID(t *testing.T) {
	r, gw := newTestRegistry()
	ctx := context.Background()
	tokA := ledger.TokenID{NFTContract: "0xColl", TokenID: "1"}
	tokB := ledger.TokenID{NFTContract: "0xColl", TokenID: "2"}
	gw.SetBalance("alice", tokA, 1)
	gw.SetBalance("alice", tokB, 1)

	id1, err := r.CreateItem(ctx, "alice", tokA)
	require.NoError(t, err)
	id2, err := r.CreateItem(ctx, "alice", tokB)
	require.NoError(t, err)

	items, err := r.ListByCreator(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, id1, items[0].ItemID)
	assert.Equal(t, id2, items[1].ItemID)
}

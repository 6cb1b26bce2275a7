package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sftbazaar.io/pkg/ledger"
	"sftbazaar.io/pkg/ledger/ledgertest"
	"sftbazaar.io/pkg/money"
	"sftbazaar.io/pkg/position"
	"sftbazaar.io/pkg/registry"
)

// newTestService wires a Service against in-memory registry/position stores
// with no cache — the Query Surface's behavior must not depend on Redis
// being present, only benefit from it when configured.
func newTestService(t *testing.T) (*Service, *registry.Registry, *position.Store, *ledgertest.Fake) {
	t.Helper()
	gw := ledgertest.New()
	nextID := int64(0)
	mint := func() int64 {
		nextID++
		return nextID
	}
	items := registry.New(registry.NewMemRepository(), gw, mint)
	positions := position.New(position.NewMemRepository(), items, mint)
	return New(items, positions, nil), items, positions, gw
}

func TestFetchItemAndPosition(t *testing.T) {
	s, items, positions, gw := newTestService(t)
	ctx := context.Background()
	tok := ledger.TokenID{NFTContract: "0xColl", TokenID: "1"}
	gw.SetBalance("alice", tok, 5)

	itemID, err := items.CreateItem(ctx, "alice", tok)
	require.NoError(t, err)
	posID, err := positions.Create(ctx, itemID, "alice", 5, money.New(10), 0, position.Available)
	require.NoError(t, err)

	it, err := s.FetchItem(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, "alice", it.Creator)

	p, err := s.FetchPosition(ctx, posID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.Amount)
}

func TestFetchByStateAndByOwner(t *testing.T) {
	s, items, positions, gw := newTestService(t)
	ctx := context.Background()
	tok := ledger.TokenID{NFTContract: "0xColl", TokenID: "1"}
	gw.SetBalance("alice", tok, 5)
	itemID, err := items.CreateItem(ctx, "alice", tok)
	require.NoError(t, err)
	_, err = positions.Create(ctx, itemID, "alice", 5, money.New(10), 0, position.RegularSale)
	require.NoError(t, err)

	byState, err := s.FetchByState(ctx, position.RegularSale)
	require.NoError(t, err)
	require.Len(t, byState, 1)

	byOwner, err := s.FetchByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, byOwner, 1)
}

func TestFetchByStatesMergesAndSorts(t *testing.T) {
	s, items, positions, gw := newTestService(t)
	ctx := context.Background()
	tok := ledger.TokenID{NFTContract: "0xColl", TokenID: "1"}
	gw.SetBalance("alice", tok, 5)
	itemID, err := items.CreateItem(ctx, "alice", tok)
	require.NoError(t, err)

	id1, err := positions.Create(ctx, itemID, "alice", 1, money.New(10), 0, position.RegularSale)
	require.NoError(t, err)
	id2, err := positions.Create(ctx, itemID, "alice", 1, money.New(10), 0, position.Auction)
	require.NoError(t, err)

	out, err := s.FetchByStates(ctx, []position.State{position.Auction, position.RegularSale})
	require.NoError(t, err)
	require.Len(t, out, 2)
	// merged output must be sorted by position id regardless of input order
	assert.True(t, out[0].PositionID < out[1].PositionID)
	ids := map[int64]bool{out[0].PositionID: true, out[1].PositionID: true}
	assert.True(t, ids[id1] && ids[id2])
}

func TestFetchItemsByCreator(t *testing.T) {
	s, items, _, gw := newTestService(t)
	ctx := context.Background()
	tok := ledger.TokenID{NFTContract: "0xColl", TokenID: "1"}
	gw.SetBalance("alice", tok, 1)
	_, err := items.CreateItem(ctx, "alice", tok)
	require.NoError(t, err)

	out, err := s.FetchItemsByCreator(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestInvalidateWithNilCacheIsNoOp(t *testing.T) {
	s, _, _, _ := newTestService(t)
	// Must not panic when no cache is configured.
	s.InvalidatePosition(context.Background(), 1, "alice", position.Available)
	s.InvalidateItem(context.Background(), 1)
}

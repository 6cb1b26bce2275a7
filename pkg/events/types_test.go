package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sftbazaar.io/pkg/money"
	"sftbazaar.io/pkg/position"
)

func TestFromPositionMapsEveryField(t *testing.T) {
	p := &position.Position{
		PositionID:        7,
		ItemID:            3,
		Owner:             "alice",
		Amount:            10,
		Price:             money.New(500),
		MarketFeeSnapshot: 250,
		State:             position.Auction,
	}
	ev := FromPosition(p)

	assert.Equal(t, int64(7), ev.PositionID)
	assert.Equal(t, "500", ev.Price)
	assert.Equal(t, "AUCTION", ev.State)
	assert.Equal(t, "market.position_update", ev.Topic())
	assert.Equal(t, "7", ev.Key())
}

func TestEventValueMarshalsToJSON(t *testing.T) {
	ev := MarketItemSold{ItemID: 1, Seller: "a", Buyer: "b", Price: "100", Amount: 2}
	raw, err := ev.Value()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "a", decoded["seller"])
	assert.Equal(t, "100", decoded["price"])
}

func TestNoopPublisherDiscardsSilently(t *testing.T) {
	var p Publisher = Noop{}
	require.NoError(t, p.Publish(context.Background(), MarketFeeChanged{Prev: 0, New: 100}))
	require.NoError(t, p.Close())
}

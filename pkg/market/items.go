package market

import (
	"context"
	"fmt"

	"sftbazaar.io/pkg/events"
	"sftbazaar.io/pkg/ledger"
	"sftbazaar.io/pkg/registry"
)

// CreateItem registers tok as a new Item under caller, the first holder of
// its units, and emits ItemCreated.
func (e *Engine) CreateItem(ctx context.Context, caller string, tok ledger.TokenID) (int64, error) {
	itemID, err := e.items.CreateItem(ctx, caller, tok)
	if err != nil {
		return 0, fmt.Errorf("market: create item: %w", err)
	}
	e.publish(ctx, events.ItemCreated{
		ItemID:      itemID,
		NFTContract: tok.NFTContract,
		TokenID:     tok.TokenID,
		Creator:     caller,
	})
	return itemID, nil
}

// FetchItem returns the item by id.
func (e *Engine) FetchItem(ctx context.Context, itemID int64) (*registry.Item, error) {
	return e.items.FetchItem(ctx, itemID)
}

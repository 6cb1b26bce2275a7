// Regular-sale mode engine, §4.E.1.
package market

import (
	"context"
	"fmt"

	"sftbazaar.io/pkg/events"
	"sftbazaar.io/pkg/marketerr"
	"sftbazaar.io/pkg/money"
	"sftbazaar.io/pkg/position"
	"sftbazaar.io/pkg/registry"
)

// PutOnSale lists units of itemID at pricePerUnit, ingesting them into
// engine custody. caller must hold at least units on the ledger.
func (e *Engine) PutOnSale(ctx context.Context, caller string, itemID int64, units int64, pricePerUnit money.Amount) (int64, error) {
	if units <= 0 || pricePerUnit.Sign() <= 0 {
		return 0, fmt.Errorf("market: put on sale: %w", marketerr.ErrBadParameter)
	}

	tok, _, err := e.tokenOf(ctx, itemID)
	if err != nil {
		return 0, err
	}
	bal, err := e.ledger.BalanceOf(ctx, caller, tok)
	if err != nil {
		return 0, fmt.Errorf("market: put on sale: balance: %w", err)
	}
	if bal < units {
		return 0, fmt.Errorf("market: put on sale: %w", marketerr.ErrInsufficientBalance)
	}

	if err := e.ingestCustody(ctx, caller, tok, units); err != nil {
		return 0, err
	}

	positionID, err := e.positions.Create(ctx, itemID, caller, units, pricePerUnit, e.GetMarketFee(), position.RegularSale)
	if err != nil {
		return 0, err
	}
	e.publish(ctx, events.FromPosition(mustPosition(ctx, e.positions, positionID)))
	return positionID, nil
}

// CreateSale buys units of positionID for value, which must equal
// pricePerUnit * units exactly.
func (e *Engine) CreateSale(ctx context.Context, buyer string, positionID int64, units int64, value money.Amount) error {
	return e.positions.WithLock(positionID, func() error {
		pos, err := e.positions.RequireState(ctx, positionID, position.RegularSale)
		if err != nil {
			return err
		}
		if units <= 0 || units > pos.Amount {
			return fmt.Errorf("market: create sale: %w", marketerr.ErrInsufficientBalance)
		}
		expected := money.MulInt64(pos.Price, units)
		if value.Cmp(expected) != 0 {
			return fmt.Errorf("market: create sale: %w", marketerr.ErrBadValue)
		}

		it, err := e.items.FetchItem(ctx, pos.ItemID)
		if err != nil {
			return err
		}
		tok := it.Key()

		// State mutation (remove units from inventory) before any outbound
		// transfer, per §5.
		if _, err := e.positions.Decrease(ctx, positionID, units); err != nil {
			return err
		}

		res, err := e.settler.Settle(ctx, tok, pos, buyer, value, units, e.platformOwner)
		if err != nil {
			return err
		}
		e.publishRoyalties(ctx, tok, res)

		if err := e.items.AppendSale(ctx, pos.ItemID, registry.Sale{
			Seller: pos.Owner,
			Buyer:  buyer,
			Price:  value,
			Amount: units,
		}); err != nil {
			return err
		}
		e.publish(ctx, events.MarketItemSold{
			ItemID:      pos.ItemID,
			NFTContract: tok.NFTContract,
			TokenID:     tok.TokenID,
			Seller:      pos.Owner,
			Buyer:       buyer,
			Price:       value.String(),
			Amount:      units,
		})
		if remaining, err := e.positions.Get(ctx, positionID); err == nil {
			e.publish(ctx, events.FromPosition(remaining))
		} else {
			e.publish(ctx, events.PositionDelete{PositionID: positionID})
		}
		return e.resyncAvailable(ctx, pos.ItemID, buyer, tok)
	})
}

// Unlist returns every unit of positionID to its owner and removes the
// Position. caller must equal the position's owner.
func (e *Engine) Unlist(ctx context.Context, caller string, positionID int64) error {
	return e.positions.WithLock(positionID, func() error {
		pos, err := e.positions.RequireState(ctx, positionID, position.RegularSale)
		if err != nil {
			return err
		}
		if caller != pos.Owner {
			return fmt.Errorf("market: unlist: %w", marketerr.ErrUnauthorized)
		}
		tok, _, err := e.tokenOf(ctx, pos.ItemID)
		if err != nil {
			return err
		}

		if err := e.positions.Delete(ctx, positionID); err != nil {
			return err
		}
		e.publish(ctx, events.PositionDelete{PositionID: positionID})

		return e.releaseCustody(ctx, pos.ItemID, pos.Owner, tok, pos.Amount)
	})
}

// mustPosition fetches p for publishing an event right after creation; the
// Store's in-memory view is guaranteed populated at this call site since
// Create just wrote it, so an error here indicates a programming bug.
func mustPosition(ctx context.Context, store *position.Store, positionID int64) *position.Position {
	p, err := store.Get(ctx, positionID)
	if err != nil {
		panic(fmt.Sprintf("market: position %d missing immediately after creation: %v", positionID, err))
	}
	return p
}

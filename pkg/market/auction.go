// English-auction mode engine, §4.E.2.
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

// CreateAuction lists units of itemID for auction, lasting durationMinutes
// (bounded [60, 44640], i.e. 1 hour to 31 days) with a floor of minBid.
func (e *Engine) CreateAuction(ctx context.Context, caller string, itemID int64, units int64, durationMinutes int64, minBid money.Amount) (int64, error) {
	if units <= 0 || durationMinutes < minAuctionMinutes || durationMinutes > maxAuctionMinutes {
		return 0, fmt.Errorf("market: create auction: %w", marketerr.ErrBadParameter)
	}

	tok, _, err := e.tokenOf(ctx, itemID)
	if err != nil {
		return 0, err
	}
	bal, err := e.ledger.BalanceOf(ctx, caller, tok)
	if err != nil {
		return 0, fmt.Errorf("market: create auction: balance: %w", err)
	}
	if bal < units {
		return 0, fmt.Errorf("market: create auction: %w", marketerr.ErrInsufficientBalance)
	}

	if err := e.ingestCustody(ctx, caller, tok, units); err != nil {
		return 0, err
	}

	positionID, err := e.positions.Create(ctx, itemID, caller, units, money.Zero(), e.GetMarketFee(), position.Auction)
	if err != nil {
		return 0, err
	}
	deadline := e.now() + durationMinutes*60
	if err := e.positions.PutAuction(ctx, positionID, &position.AuctionData{
		Deadline: deadline,
		MinBid:   minBid,
	}); err != nil {
		return 0, err
	}
	e.publish(ctx, events.FromPosition(mustPosition(ctx, e.positions, positionID)))
	return positionID, nil
}

// CreateBid places a bid of value against positionID's auction.
func (e *Engine) CreateBid(ctx context.Context, bidder string, positionID int64, value money.Amount) error {
	return e.positions.WithLock(positionID, func() error {
		pos, err := e.positions.RequireState(ctx, positionID, position.Auction)
		if err != nil {
			return err
		}
		d, err := e.positions.GetAuctionData(ctx, positionID)
		if err != nil {
			return err
		}
		now := e.now()
		if now > d.Deadline {
			return fmt.Errorf("market: create bid: %w", marketerr.ErrDeadlineExceeded)
		}

		var refundRecipient string
		var refundAmount money.Amount

		if bidder == d.HighestBidder {
			d.HighestBid = money.Add(d.HighestBid, value)
		} else {
			threshold := d.MinBid
			bump := money.Add(d.HighestBid, money.New(1))
			if bump.Cmp(threshold) > 0 {
				threshold = bump
			}
			if value.Cmp(threshold) < 0 {
				return fmt.Errorf("market: create bid: %w", marketerr.ErrBadValue)
			}
			if d.HighestBidder != "" {
				refundRecipient = d.HighestBidder
				refundAmount = d.HighestBid
			}
			d.HighestBidder = bidder
			d.HighestBid = value
		}

		if remaining := d.Deadline - now; remaining < softCloseWindow {
			d.Deadline += softCloseWindow - remaining
		}

		// State mutation (sidecar write) before any outbound transfer (the
		// refund), per §5.
		if err := e.positions.PutAuction(ctx, positionID, d); err != nil {
			return err
		}

		if refundRecipient != "" && !refundAmount.IsZero() {
			if err := e.ledger.PayNative(ctx, refundRecipient, refundAmount); err != nil {
				if cerr := e.claims.Credit(ctx, refundRecipient, refundAmount); cerr != nil {
					return fmt.Errorf("market: credit outbid refund: %w", cerr)
				}
			}
		}
		return nil
	})
}

// EndAuction closes positionID's auction once its deadline has passed,
// settling to the highest bidder or returning units to the seller if there
// were no bids.
func (e *Engine) EndAuction(ctx context.Context, positionID int64) error {
	return e.positions.WithLock(positionID, func() error {
		pos, err := e.positions.RequireState(ctx, positionID, position.Auction)
		if err != nil {
			return err
		}
		d, err := e.positions.GetAuctionData(ctx, positionID)
		if err != nil {
			return err
		}
		if e.now() <= d.Deadline {
			return fmt.Errorf("market: end auction: %w", marketerr.ErrDeadlineNotReached)
		}

		tok, it, err := e.tokenOf(ctx, pos.ItemID)
		if err != nil {
			return err
		}

		if d.HighestBid.Sign() <= 0 {
			if err := e.positions.Delete(ctx, positionID); err != nil {
				return err
			}
			e.publish(ctx, events.PositionDelete{PositionID: positionID})
			return e.releaseCustody(ctx, pos.ItemID, pos.Owner, tok, pos.Amount)
		}

		winner := d.HighestBidder
		gross := d.HighestBid
		units := pos.Amount

		if err := e.positions.Delete(ctx, positionID); err != nil {
			return err
		}
		e.publish(ctx, events.PositionDelete{PositionID: positionID})

		res, err := e.settler.Settle(ctx, tok, pos, winner, gross, units, e.platformOwner)
		if err != nil {
			return err
		}
		e.publishRoyalties(ctx, tok, res)
		_ = it
		if err := e.items.AppendSale(ctx, pos.ItemID, registry.Sale{
			Seller: pos.Owner,
			Buyer:  winner,
			Price:  gross,
			Amount: units,
		}); err != nil {
			return err
		}
		e.publish(ctx, events.MarketItemSold{
			ItemID:      pos.ItemID,
			NFTContract: tok.NFTContract,
			TokenID:     tok.TokenID,
			Seller:      pos.Owner,
			Buyer:       winner,
			Price:       gross.String(),
			Amount:      units,
		})
		return e.resyncAvailable(ctx, pos.ItemID, winner, tok)
	})
}

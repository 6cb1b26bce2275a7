// Lottery-style raffle mode engine, §4.E.3.
package market

import (
	"context"
	"fmt"
	"math/big"

	"sftbazaar.io/pkg/events"
	"sftbazaar.io/pkg/marketerr"
	"sftbazaar.io/pkg/money"
	"sftbazaar.io/pkg/position"
	"sftbazaar.io/pkg/registry"
)

// CreateRaffle lists units of itemID for a raffle lasting durationMinutes,
// bounded the same as an auction.
func (e *Engine) CreateRaffle(ctx context.Context, caller string, itemID int64, units int64, durationMinutes int64) (int64, error) {
	if units <= 0 || durationMinutes < minAuctionMinutes || durationMinutes > maxAuctionMinutes {
		return 0, fmt.Errorf("market: create raffle: %w", marketerr.ErrBadParameter)
	}

	tok, _, err := e.tokenOf(ctx, itemID)
	if err != nil {
		return 0, err
	}
	bal, err := e.ledger.BalanceOf(ctx, caller, tok)
	if err != nil {
		return 0, fmt.Errorf("market: create raffle: balance: %w", err)
	}
	if bal < units {
		return 0, fmt.Errorf("market: create raffle: %w", marketerr.ErrInsufficientBalance)
	}

	if err := e.ingestCustody(ctx, caller, tok, units); err != nil {
		return 0, err
	}

	positionID, err := e.positions.Create(ctx, itemID, caller, units, money.Zero(), e.GetMarketFee(), position.Raffle)
	if err != nil {
		return 0, err
	}
	deadline := e.now() + durationMinutes*60
	if err := e.positions.PutRaffle(ctx, positionID, &position.RaffleData{Deadline: deadline}); err != nil {
		return 0, err
	}
	e.publish(ctx, events.FromPosition(mustPosition(ctx, e.positions, positionID)))
	return positionID, nil
}

// EnterRaffle buys tickets in positionID's raffle with value, bucketized
// into whole-unit tickets (floor(value / 1e18)); value must be at least
// one whole unit.
func (e *Engine) EnterRaffle(ctx context.Context, caller string, positionID int64, value money.Amount) error {
	return e.positions.WithLock(positionID, func() error {
		_, err := e.positions.RequireState(ctx, positionID, position.Raffle)
		if err != nil {
			return err
		}
		d, err := e.positions.GetRaffleData(ctx, positionID)
		if err != nil {
			return err
		}
		if e.now() > d.Deadline {
			return fmt.Errorf("market: enter raffle: %w", marketerr.ErrDeadlineExceeded)
		}
		if value.Cmp(money.New(raffleTicketUnit)) < 0 {
			return fmt.Errorf("market: enter raffle: %w", marketerr.ErrBadValue)
		}

		tickets := money.DivInt64Floor(value, raffleTicketUnit).Int64()

		found := false
		for i := range d.Entries {
			if d.Entries[i].Address == caller {
				d.Entries[i].CumulativeContribution += tickets
				found = true
				break
			}
		}
		if !found {
			d.Entries = append(d.Entries, position.RaffleEntry{Address: caller, CumulativeContribution: tickets})
		}
		d.TotalValue += tickets

		return e.positions.PutRaffle(ctx, positionID, d)
	})
}

// EndRaffle closes positionID's raffle once its deadline has passed,
// drawing a winner weighted by ticket count, or returning units to the
// seller if nobody entered.
func (e *Engine) EndRaffle(ctx context.Context, positionID int64) error {
	return e.positions.WithLock(positionID, func() error {
		pos, err := e.positions.RequireState(ctx, positionID, position.Raffle)
		if err != nil {
			return err
		}
		d, err := e.positions.GetRaffleData(ctx, positionID)
		if err != nil {
			return err
		}
		if e.now() <= d.Deadline {
			return fmt.Errorf("market: end raffle: %w", marketerr.ErrDeadlineNotReached)
		}

		tok, _, err := e.tokenOf(ctx, pos.ItemID)
		if err != nil {
			return err
		}

		if d.TotalValue == 0 {
			if err := e.positions.Delete(ctx, positionID); err != nil {
				return err
			}
			e.publish(ctx, events.PositionDelete{PositionID: positionID})
			return e.releaseCustody(ctx, pos.ItemID, pos.Owner, tok, pos.Amount)
		}

		r, err := e.rng.Draw(ctx, big.NewInt(d.TotalValue))
		if err != nil {
			return fmt.Errorf("market: end raffle: draw: %w", err)
		}
		threshold := r.Int64()

		winner := ""
		var running int64
		for _, ent := range d.Entries {
			running += ent.CumulativeContribution
			if running > threshold {
				winner = ent.Address
				break
			}
		}
		if winner == "" {
			// Defensive: TotalValue and entries are kept in lockstep by
			// EnterRaffle, so running must reach TotalValue > threshold.
			winner = d.Entries[len(d.Entries)-1].Address
		}

		gross := money.MulInt64(money.New(raffleTicketUnit), d.TotalValue)
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

// Collateralized-loan mode engine, §4.E.4.
package market

import (
	"context"
	"fmt"

	"sftbazaar.io/pkg/events"
	"sftbazaar.io/pkg/marketerr"
	"sftbazaar.io/pkg/money"
	"sftbazaar.io/pkg/position"
)

// CreateLoan pledges tokenUnits of itemID as collateral for a loan of
// loanAmount plus feeAmount, repayable within durationMinutes of funding
// (bounded [1, 2628000], roughly five years).
func (e *Engine) CreateLoan(ctx context.Context, caller string, itemID int64, tokenUnits int64, loanAmount, feeAmount money.Amount, durationMinutes int64) (int64, error) {
	if tokenUnits <= 0 || loanAmount.Sign() <= 0 || feeAmount.Sign() < 0 {
		return 0, fmt.Errorf("market: create loan: %w", marketerr.ErrBadParameter)
	}
	if durationMinutes < minLoanMinutes || durationMinutes > maxLoanMinutes {
		return 0, fmt.Errorf("market: create loan: %w", marketerr.ErrBadParameter)
	}

	tok, _, err := e.tokenOf(ctx, itemID)
	if err != nil {
		return 0, err
	}
	bal, err := e.ledger.BalanceOf(ctx, caller, tok)
	if err != nil {
		return 0, fmt.Errorf("market: create loan: balance: %w", err)
	}
	if bal < tokenUnits {
		return 0, fmt.Errorf("market: create loan: %w", marketerr.ErrInsufficientBalance)
	}

	if err := e.ingestCustody(ctx, caller, tok, tokenUnits); err != nil {
		return 0, err
	}

	positionID, err := e.positions.Create(ctx, itemID, caller, tokenUnits, money.Zero(), e.GetMarketFee(), position.Loan)
	if err != nil {
		return 0, err
	}
	if err := e.positions.PutLoan(ctx, positionID, &position.LoanData{
		LoanAmount:      loanAmount,
		FeeAmount:       feeAmount,
		DurationMinutes: durationMinutes,
	}); err != nil {
		return 0, err
	}
	e.publish(ctx, events.FromPosition(mustPosition(ctx, e.positions, positionID)))
	return positionID, nil
}

// FundLoan funds positionID's loan with value, which must equal the loan's
// LoanAmount exactly, and starts its repayment deadline.
func (e *Engine) FundLoan(ctx context.Context, lender string, positionID int64, value money.Amount) error {
	return e.positions.WithLock(positionID, func() error {
		pos, err := e.positions.RequireState(ctx, positionID, position.Loan)
		if err != nil {
			return err
		}
		d, err := e.positions.GetLoanData(ctx, positionID)
		if err != nil {
			return err
		}
		if d.Lender != "" {
			return fmt.Errorf("market: fund loan: %w", marketerr.ErrAlreadyFunded)
		}
		if value.Cmp(d.LoanAmount) != 0 {
			return fmt.Errorf("market: fund loan: %w", marketerr.ErrBadValue)
		}

		d.Lender = lender
		d.Deadline = e.now() + d.DurationMinutes*60

		// State mutation before the outbound transfer to the borrower, §5.
		if err := e.positions.PutLoan(ctx, positionID, d); err != nil {
			return err
		}

		if err := e.ledger.PayNative(ctx, pos.Owner, value); err != nil {
			if cerr := e.claims.Credit(ctx, pos.Owner, value); cerr != nil {
				return fmt.Errorf("market: credit loan principal: %w", cerr)
			}
		}
		return nil
	})
}

// RepayLoan repays positionID's loan with value, which must be at least
// LoanAmount+FeeAmount, returning the collateral to the borrower.
func (e *Engine) RepayLoan(ctx context.Context, positionID int64, value money.Amount) error {
	return e.positions.WithLock(positionID, func() error {
		pos, err := e.positions.RequireState(ctx, positionID, position.Loan)
		if err != nil {
			return err
		}
		d, err := e.positions.GetLoanData(ctx, positionID)
		if err != nil {
			return err
		}
		due := money.Add(d.LoanAmount, d.FeeAmount)
		if value.Cmp(due) < 0 {
			return fmt.Errorf("market: repay loan: %w", marketerr.ErrBadValue)
		}

		tok, _, err := e.tokenOf(ctx, pos.ItemID)
		if err != nil {
			return err
		}
		lender := d.Lender
		collateral := pos.Amount

		if err := e.positions.Delete(ctx, positionID); err != nil {
			return err
		}
		e.publish(ctx, events.PositionDelete{PositionID: positionID})

		if err := e.ledger.PayNative(ctx, lender, value); err != nil {
			if cerr := e.claims.Credit(ctx, lender, value); cerr != nil {
				return fmt.Errorf("market: credit loan repayment: %w", cerr)
			}
		}

		return e.releaseCustody(ctx, pos.ItemID, pos.Owner, tok, collateral)
	})
}

// Liquidate seizes positionID's collateral on behalf of the lender once the
// repayment deadline has passed unpaid. Only the funding lender may call
// this.
func (e *Engine) Liquidate(ctx context.Context, caller string, positionID int64) error {
	return e.positions.WithLock(positionID, func() error {
		pos, err := e.positions.RequireState(ctx, positionID, position.Loan)
		if err != nil {
			return err
		}
		d, err := e.positions.GetLoanData(ctx, positionID)
		if err != nil {
			return err
		}
		if caller != d.Lender {
			return fmt.Errorf("market: liquidate: %w", marketerr.ErrUnauthorized)
		}
		if e.now() <= d.Deadline {
			return fmt.Errorf("market: liquidate: %w", marketerr.ErrDeadlineNotReached)
		}

		tok, _, err := e.tokenOf(ctx, pos.ItemID)
		if err != nil {
			return err
		}
		collateral := pos.Amount

		if err := e.positions.Delete(ctx, positionID); err != nil {
			return err
		}
		e.publish(ctx, events.PositionDelete{PositionID: positionID})

		return e.releaseCustody(ctx, pos.ItemID, d.Lender, tok, collateral)
	})
}

// UnlistLoan withdraws positionID's collateral before it is funded. Only
// the borrower may call this, and only while no lender has funded it.
func (e *Engine) UnlistLoan(ctx context.Context, caller string, positionID int64) error {
	return e.positions.WithLock(positionID, func() error {
		pos, err := e.positions.RequireState(ctx, positionID, position.Loan)
		if err != nil {
			return err
		}
		if caller != pos.Owner {
			return fmt.Errorf("market: unlist loan: %w", marketerr.ErrUnauthorized)
		}
		d, err := e.positions.GetLoanData(ctx, positionID)
		if err != nil {
			return err
		}
		if d.Lender != "" {
			return fmt.Errorf("market: unlist loan: %w", marketerr.ErrAlreadyFunded)
		}

		tok, _, err := e.tokenOf(ctx, pos.ItemID)
		if err != nil {
			return err
		}
		collateral := pos.Amount

		if err := e.positions.Delete(ctx, positionID); err != nil {
			return err
		}
		e.publish(ctx, events.PositionDelete{PositionID: positionID})

		return e.releaseCustody(ctx, pos.ItemID, pos.Owner, tok, collateral)
	})
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sftbazaar.io/pkg/position"
)

// PositionRepository is the GORM-backed position.Repository.
type PositionRepository struct {
	db *gorm.DB
}

// NewPositionRepository wraps db as a position.Repository.
func NewPositionRepository(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

func (r *PositionRepository) Save(ctx context.Context, p *position.Position) error {
	rec := &PositionRecord{
		PositionID:        p.PositionID,
		ItemID:            p.ItemID,
		Owner:             p.Owner,
		Amount:            p.Amount,
		Price:             amountToString(p.Price),
		MarketFeeSnapshot: p.MarketFeeSnapshot,
		State:             int8(p.State),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "position_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"item_id", "owner", "amount", "price", "market_fee_snapshot", "state",
		}),
	}).Create(rec).Error
}

func (r *PositionRepository) Delete(ctx context.Context, positionID int64) error {
	return r.db.WithContext(ctx).Where("position_id = ?", positionID).Delete(&PositionRecord{}).Error
}

func (r *PositionRepository) Get(ctx context.Context, positionID int64) (*position.Position, error) {
	var rec PositionRecord
	err := r.db.WithContext(ctx).Where("position_id = ?", positionID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return hydratePosition(&rec)
}

func (r *PositionRepository) ListByState(ctx context.Context, state position.State) ([]*position.Position, error) {
	var recs []PositionRecord
	if err := r.db.WithContext(ctx).Where("state = ?", int8(state)).Find(&recs).Error; err != nil {
		return nil, err
	}
	return hydratePositions(recs)
}

func (r *PositionRepository) ListByOwner(ctx context.Context, owner string) ([]*position.Position, error) {
	var recs []PositionRecord
	if err := r.db.WithContext(ctx).Where("owner = ?", owner).Find(&recs).Error; err != nil {
		return nil, err
	}
	return hydratePositions(recs)
}

func (r *PositionRepository) SaveAuction(ctx context.Context, positionID int64, d *position.AuctionData) error {
	rec := &AuctionDataRecord{
		PositionID:    positionID,
		Deadline:      d.Deadline,
		MinBid:        amountToString(d.MinBid),
		HighestBidder: d.HighestBidder,
		HighestBid:    amountToString(d.HighestBid),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "position_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"deadline", "min_bid", "highest_bidder", "highest_bid",
		}),
	}).Create(rec).Error
}

func (r *PositionRepository) SaveRaffle(ctx context.Context, positionID int64, d *position.RaffleData) error {
	entries, err := json.Marshal(d.Entries)
	if err != nil {
		return fmt.Errorf("store: marshal raffle entries: %w", err)
	}
	rec := &RaffleDataRecord{
		PositionID: positionID,
		Deadline:   d.Deadline,
		TotalValue: d.TotalValue,
		Entries:    string(entries),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "position_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"deadline", "total_value", "entries",
		}),
	}).Create(rec).Error
}

func (r *PositionRepository) SaveLoan(ctx context.Context, positionID int64, d *position.LoanData) error {
	rec := &LoanDataRecord{
		PositionID:      positionID,
		LoanAmount:      amountToString(d.LoanAmount),
		FeeAmount:       amountToString(d.FeeAmount),
		DurationMinutes: d.DurationMinutes,
		Lender:          d.Lender,
		Deadline:        d.Deadline,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "position_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"loan_amount", "fee_amount", "duration_minutes", "lender", "deadline",
		}),
	}).Create(rec).Error
}

func (r *PositionRepository) GetAuction(ctx context.Context, positionID int64) (*position.AuctionData, error) {
	var rec AuctionDataRecord
	err := r.db.WithContext(ctx).Where("position_id = ?", positionID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	minBid, err := amountFromString(rec.MinBid)
	if err != nil {
		return nil, err
	}
	highestBid, err := amountFromString(rec.HighestBid)
	if err != nil {
		return nil, err
	}
	return &position.AuctionData{
		Deadline:      rec.Deadline,
		MinBid:        minBid,
		HighestBidder: rec.HighestBidder,
		HighestBid:    highestBid,
	}, nil
}

func (r *PositionRepository) GetRaffle(ctx context.Context, positionID int64) (*position.RaffleData, error) {
	var rec RaffleDataRecord
	err := r.db.WithContext(ctx).Where("position_id = ?", positionID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []position.RaffleEntry
	if rec.Entries != "" {
		if err := json.Unmarshal([]byte(rec.Entries), &entries); err != nil {
			return nil, fmt.Errorf("store: unmarshal raffle entries: %w", err)
		}
	}
	return &position.RaffleData{
		Deadline:   rec.Deadline,
		TotalValue: rec.TotalValue,
		Entries:    entries,
	}, nil
}

func (r *PositionRepository) GetLoan(ctx context.Context, positionID int64) (*position.LoanData, error) {
	var rec LoanDataRecord
	err := r.db.WithContext(ctx).Where("position_id = ?", positionID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	loanAmount, err := amountFromString(rec.LoanAmount)
	if err != nil {
		return nil, err
	}
	feeAmount, err := amountFromString(rec.FeeAmount)
	if err != nil {
		return nil, err
	}
	return &position.LoanData{
		LoanAmount:      loanAmount,
		FeeAmount:       feeAmount,
		DurationMinutes: rec.DurationMinutes,
		Lender:          rec.Lender,
		Deadline:        rec.Deadline,
	}, nil
}

func (r *PositionRepository) ClearSidecar(ctx context.Context, positionID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("position_id = ?", positionID).Delete(&AuctionDataRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("position_id = ?", positionID).Delete(&RaffleDataRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("position_id = ?", positionID).Delete(&LoanDataRecord{}).Error
	})
}

func hydratePosition(rec *PositionRecord) (*position.Position, error) {
	price, err := amountFromString(rec.Price)
	if err != nil {
		return nil, fmt.Errorf("store: hydrate position %d: %w", rec.PositionID, err)
	}
	return &position.Position{
		PositionID:        rec.PositionID,
		ItemID:            rec.ItemID,
		Owner:             rec.Owner,
		Amount:            rec.Amount,
		Price:             price,
		MarketFeeSnapshot: rec.MarketFeeSnapshot,
		State:             position.State(rec.State),
	}, nil
}

func hydratePositions(recs []PositionRecord) ([]*position.Position, error) {
	out := make([]*position.Position, 0, len(recs))
	for i := range recs {
		p, err := hydratePosition(&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

var _ position.Repository = (*PositionRepository)(nil)

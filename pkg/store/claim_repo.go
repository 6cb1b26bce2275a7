package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sftbazaar.io/pkg/claim"
	"sftbazaar.io/pkg/money"
)

// ClaimRepository is the GORM-backed claim.Repository.
type ClaimRepository struct {
	db *gorm.DB
}

// NewClaimRepository wraps db as a claim.Repository.
func NewClaimRepository(db *gorm.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

func (r *ClaimRepository) Get(ctx context.Context, recipient string) (money.Amount, error) {
	var rec ClaimBalanceRecord
	err := r.db.WithContext(ctx).Where("recipient = ?", recipient).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return money.Zero(), nil
	}
	if err != nil {
		return money.Zero(), err
	}
	return amountFromString(rec.Amount)
}

func (r *ClaimRepository) Set(ctx context.Context, recipient string, amount money.Amount) error {
	rec := &ClaimBalanceRecord{Recipient: recipient, Amount: amountToString(amount)}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "recipient"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount"}),
	}).Create(rec).Error
}

var _ claim.Repository = (*ClaimRepository)(nil)

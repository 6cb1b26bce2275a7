package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"sftbazaar.io/pkg/registry"
)

// ItemRepository is the GORM-backed registry.Repository.
type ItemRepository struct {
	db *gorm.DB
}

// NewItemRepository wraps db as a registry.Repository.
func NewItemRepository(db *gorm.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

func (r *ItemRepository) Insert(ctx context.Context, it *registry.Item) error {
	rec := toItemRecord(it)
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *ItemRepository) Get(ctx context.Context, itemID int64) (*registry.Item, error) {
	var rec ItemRecord
	err := r.db.WithContext(ctx).Where("item_id = ?", itemID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, &rec)
}

func (r *ItemRepository) Find(ctx context.Context, nftContract, tokenID string) (*registry.Item, error) {
	var rec ItemRecord
	err := r.db.WithContext(ctx).
		Where("nft_contract = ? AND token_id = ?", nftContract, tokenID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, &rec)
}

func (r *ItemRepository) Update(ctx context.Context, it *registry.Item) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := toItemRecord(it)
		if err := tx.Model(&ItemRecord{}).Where("item_id = ?", it.ItemID).Updates(map[string]any{
			"creator":        rec.Creator,
			"position_count": rec.PositionCount,
		}).Error; err != nil {
			return err
		}

		// AppendSale only ever grows Sales by one entry per call, but this
		// repo has no way to know which entries are already persisted, so
		// it re-syncs the whole history: delete-then-reinsert under the
		// same transaction that updated the item row.
		if err := tx.Where("item_id = ?", it.ItemID).Delete(&SaleRecord{}).Error; err != nil {
			return err
		}
		for _, s := range it.Sales {
			sr := &SaleRecord{
				ItemID: it.ItemID,
				Seller: s.Seller,
				Buyer:  s.Buyer,
				Price:  amountToString(s.Price),
				Amount: s.Amount,
			}
			if err := tx.Create(sr).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ItemRepository) ListByCreator(ctx context.Context, creator string) ([]*registry.Item, error) {
	var recs []ItemRecord
	if err := r.db.WithContext(ctx).Where("creator = ?", creator).Order("item_id asc").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*registry.Item, 0, len(recs))
	for i := range recs {
		it, err := r.hydrate(ctx, &recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

func (r *ItemRepository) hydrate(ctx context.Context, rec *ItemRecord) (*registry.Item, error) {
	var saleRecs []SaleRecord
	if err := r.db.WithContext(ctx).Where("item_id = ?", rec.ItemID).Order("id asc").Find(&saleRecs).Error; err != nil {
		return nil, err
	}
	sales := make([]registry.Sale, 0, len(saleRecs))
	for _, sr := range saleRecs {
		price, err := amountFromString(sr.Price)
		if err != nil {
			return nil, fmt.Errorf("store: hydrate sale %d: %w", sr.ID, err)
		}
		sales = append(sales, registry.Sale{
			Seller: sr.Seller,
			Buyer:  sr.Buyer,
			Price:  price,
			Amount: sr.Amount,
		})
	}
	return &registry.Item{
		ItemID:        rec.ItemID,
		NFTContract:   rec.NFTContract,
		TokenID:       rec.TokenID,
		Creator:       rec.Creator,
		PositionCount: rec.PositionCount,
		Sales:         sales,
	}, nil
}

func toItemRecord(it *registry.Item) *ItemRecord {
	return &ItemRecord{
		ItemID:        it.ItemID,
		NFTContract:   it.NFTContract,
		TokenID:       it.TokenID,
		Creator:       it.Creator,
		PositionCount: it.PositionCount,
	}
}

var _ registry.Repository = (*ItemRepository)(nil)

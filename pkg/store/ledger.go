package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sftbazaar.io/pkg/ledger"
	"sftbazaar.io/pkg/marketerr"
	"sftbazaar.io/pkg/money"
)

// GormLedger is a thin, GORM-backed stand-in for the external SFT ledger
// the spec assumes the engine talks to (real deployments point
// market.Config.Ledger at that system's own client instead). It exists so
// cmd/marketsim can run end to end without a live ledger, mirroring the
// teacher's habit of shipping both a real repository and an in-memory/
// stubbed one for every external collaborator.
type GormLedger struct {
	db *gorm.DB
}

// NewGormLedger wraps db as a ledger.Gateway.
func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

// LedgerBalanceRecord tracks one owner's unit balance of one token.
type LedgerBalanceRecord struct {
	Owner       string `gorm:"primaryKey;column:owner"`
	NFTContract string `gorm:"primaryKey;column:nft_contract"`
	TokenID     string `gorm:"primaryKey;column:token_id"`
	Units       int64  `gorm:"column:units"`
}

func (LedgerBalanceRecord) TableName() string { return "ledger_balances" }

// LedgerApprovalRecord marks that owner has granted the engine operator
// rights over a token.
type LedgerApprovalRecord struct {
	Owner       string `gorm:"primaryKey;column:owner"`
	NFTContract string `gorm:"primaryKey;column:nft_contract"`
	TokenID     string `gorm:"primaryKey;column:token_id"`
}

func (LedgerApprovalRecord) TableName() string { return "ledger_approvals" }

// LedgerRoyaltyRecord configures an EIP-2981-style royalty policy for one
// token. Absence means the token does not support royalties.
type LedgerRoyaltyRecord struct {
	NFTContract string `gorm:"primaryKey;column:nft_contract"`
	TokenID     string `gorm:"primaryKey;column:token_id"`
	Receiver    string `gorm:"column:receiver"`
	BPOfGross   int64  `gorm:"column:bp_of_gross"`
}

func (LedgerRoyaltyRecord) TableName() string { return "ledger_royalties" }

// LedgerNativeBalanceRecord tracks the native settlement currency this
// stub has paid out to each recipient — since there is no real off-chain
// payment rail here, PayNative always succeeds and simply accrues credit,
// the way a sandboxed/demo ledger would.
type LedgerNativeBalanceRecord struct {
	Recipient string `gorm:"primaryKey;column:recipient"`
	Amount    string `gorm:"column:amount"`
}

func (LedgerNativeBalanceRecord) TableName() string { return "ledger_native_balances" }

// AutoMigrateLedger creates this stub ledger's own tables, separate from
// AutoMigrate's engine tables since a real deployment swaps this whole
// file out for a client against the live external ledger.
func AutoMigrateLedger(db *gorm.DB) error {
	return db.AutoMigrate(
		&LedgerBalanceRecord{},
		&LedgerApprovalRecord{},
		&LedgerRoyaltyRecord{},
		&LedgerNativeBalanceRecord{},
	)
}

// SeedBalance credits owner with units of tok, for demo/test setup.
func (l *GormLedger) SeedBalance(ctx context.Context, owner string, tok ledger.TokenID, units int64) error {
	rec := &LedgerBalanceRecord{Owner: owner, NFTContract: tok.NFTContract, TokenID: tok.TokenID, Units: units}
	return l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner"}, {Name: "nft_contract"}, {Name: "token_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"units"}),
	}).Create(rec).Error
}

// SeedRoyalty configures tok's royalty policy, for demo/test setup.
func (l *GormLedger) SeedRoyalty(ctx context.Context, tok ledger.TokenID, receiver string, bpOfGross int64) error {
	rec := &LedgerRoyaltyRecord{NFTContract: tok.NFTContract, TokenID: tok.TokenID, Receiver: receiver, BPOfGross: bpOfGross}
	return l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "nft_contract"}, {Name: "token_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"receiver", "bp_of_gross"}),
	}).Create(rec).Error
}

func (l *GormLedger) BalanceOf(ctx context.Context, owner string, tok ledger.TokenID) (int64, error) {
	var rec LedgerBalanceRecord
	err := l.db.WithContext(ctx).
		Where("owner = ? AND nft_contract = ? AND token_id = ?", owner, tok.NFTContract, tok.TokenID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rec.Units, nil
}

func (l *GormLedger) ApproveOperator(ctx context.Context, owner string, tok ledger.TokenID) error {
	rec := &LedgerApprovalRecord{Owner: owner, NFTContract: tok.NFTContract, TokenID: tok.TokenID}
	return l.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rec).Error
}

func (l *GormLedger) TransferFrom(ctx context.Context, from, to string, tok ledger.TokenID, units int64) error {
	if units <= 0 {
		return fmt.Errorf("store: ledger: %w: non-positive transfer", marketerr.ErrBadParameter)
	}
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if from != to {
			var appr LedgerApprovalRecord
			err := tx.Where("owner = ? AND nft_contract = ? AND token_id = ?", from, tok.NFTContract, tok.TokenID).First(&appr).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("store: ledger: operator not approved for %s", from)
			}
			if err != nil {
				return err
			}
		}
		var fromRec LedgerBalanceRecord
		err := tx.Where("owner = ? AND nft_contract = ? AND token_id = ?", from, tok.NFTContract, tok.TokenID).First(&fromRec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || fromRec.Units < units {
			return fmt.Errorf("store: ledger: %w", marketerr.ErrInsufficientBalance)
		}
		if err != nil {
			return err
		}
		if err := tx.Model(&LedgerBalanceRecord{}).
			Where("owner = ? AND nft_contract = ? AND token_id = ?", from, tok.NFTContract, tok.TokenID).
			Update("units", fromRec.Units-units).Error; err != nil {
			return err
		}

		toRec := &LedgerBalanceRecord{Owner: to, NFTContract: tok.NFTContract, TokenID: tok.TokenID, Units: units}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner"}, {Name: "nft_contract"}, {Name: "token_id"}},
			DoUpdates: clause.Assignments(map[string]any{"units": gorm.Expr("units + ?", units)}),
		}).Create(toRec).Error
	})
}

func (l *GormLedger) SupportsRoyalty(ctx context.Context, tok ledger.TokenID) (bool, error) {
	var rec LedgerRoyaltyRecord
	err := l.db.WithContext(ctx).
		Where("nft_contract = ? AND token_id = ?", tok.NFTContract, tok.TokenID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.Receiver != "", nil
}

func (l *GormLedger) RoyaltyInfo(ctx context.Context, tok ledger.TokenID, gross money.Amount) (string, money.Amount, error) {
	var rec LedgerRoyaltyRecord
	err := l.db.WithContext(ctx).
		Where("nft_contract = ? AND token_id = ?", tok.NFTContract, tok.TokenID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", money.Zero(), nil
	}
	if err != nil {
		return "", money.Zero(), err
	}
	return rec.Receiver, money.MulDivFloor(gross, rec.BPOfGross, 10000), nil
}

func (l *GormLedger) PayNative(ctx context.Context, recipient string, amount money.Amount) error {
	var rec LedgerNativeBalanceRecord
	err := l.db.WithContext(ctx).Where("recipient = ?", recipient).First(&rec).Error
	cur := money.Zero()
	if err == nil {
		cur, err = amountFromString(rec.Amount)
		if err != nil {
			return err
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	updated := &LedgerNativeBalanceRecord{Recipient: recipient, Amount: amountToString(money.Add(cur, amount))}
	return l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "recipient"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount"}),
	}).Create(updated).Error
}

var _ ledger.Gateway = (*GormLedger)(nil)

// Package store provides the GORM-backed MySQL persistence layer for the
// Item Registry, Position Store, and claimable-balance store, grounded on
// the teacher's pkg/futures MySQL repositories (mysql_repo.go): each
// domain type gets its own record type with a TableName() method, plain
// WithContext-chained GORM calls, and gorm.ErrRecordNotFound translated at
// the repository boundary rather than leaking past it.
package store

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open dials MySQL at dsn and returns a ready *gorm.DB.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	return db, nil
}

// AutoMigrate creates or updates every table this package owns. Intended
// for development and the simulation binary; production deployments
// migrate through versioned SQL instead (the teacher's own convention —
// mysql_repo.go never calls AutoMigrate either, see DESIGN.md).
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&ItemRecord{},
		&SaleRecord{},
		&PositionRecord{},
		&AuctionDataRecord{},
		&RaffleDataRecord{},
		&LoanDataRecord{},
		&ClaimBalanceRecord{},
	)
}

package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"trade-recorder/internal/config"
	"trade-recorder/internal/models"
)

// NewDatabase opens the local sheet database and migrates its schema.
func NewDatabase(cfg *config.Database) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	// SQLite allows a single writer; one connection keeps in-memory databases
	// shared and serialises table replacements.
	sqlDB.SetMaxOpenConns(1)

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates the sheet tables if they do not exist yet.
// Existing data is kept.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.SheetTable{}, &models.SheetRow{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

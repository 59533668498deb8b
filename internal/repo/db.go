// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver), schema migrations, and demo seeding.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/swaadx/go-order-backend/internal/domain"
)

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// AutoMigrate creates or updates the schema for all persisted models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Restaurant{},
		&domain.MenuItem{},
		&domain.Order{},
		&domain.WebhookDelivery{},
	)
}

// SeedDemo inserts a demo restaurant with a two-item menu when the
// restaurants table is empty. It is a no-op on a populated database, so it is
// safe to run on every start when demo seeding is enabled.
func SeedDemo(db *gorm.DB) error {
	var count int64
	if err := db.Model(&domain.Restaurant{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	r := &domain.Restaurant{
		ID:             uuid.NewString(),
		Name:           "SwaadX Demo Kitchen",
		WhatsAppNumber: "whatsapp:+14155238886",
		DashboardToken: uuid.NewString(),
		Plan:           "starter",
		IsCloudKitchen: true,
		CreatedAt:      time.Now().UTC(),
	}
	items := []domain.MenuItem{
		{
			ID:           uuid.NewString(),
			RestaurantID: r.ID,
			ItemNo:       1,
			Name:         "Margherita Pizza",
			Price:        decimal.NewFromInt(200),
			IsActive:     true,
			Position:     1,
		},
		{
			ID:           uuid.NewString(),
			RestaurantID: r.ID,
			ItemNo:       2,
			Name:         "Veg Burger",
			Price:        decimal.NewFromInt(120),
			IsActive:     true,
			Position:     2,
		},
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(r).Error; err != nil {
			return err
		}
		return tx.Create(&items).Error
	})
}

// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the MenuItem
// model.
//
// The menu is always read fresh from storage: once for the greeting render
// and once per item lookup during cart building. There is deliberately no
// cache between requests; the catalog is small and the traffic is webhook
// paced.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/swaadx/go-order-backend/internal/domain"
)

// ListActiveMenu returns the active menu of a restaurant in display order
// (position, then item number as a tiebreaker). Inactive items are excluded.
// An empty menu yields an empty slice, not an error.
func ListActiveMenu(ctx context.Context, db *gorm.DB, restaurantID string) ([]domain.MenuItem, error) {
	var out []domain.MenuItem
	err := db.WithContext(ctx).
		Where("restaurant_id = ? AND is_active = ?", restaurantID, true).
		Order("position asc, item_no asc").
		Find(&out).Error
	return out, err
}

// LookupMenuItem fetches one active menu item by its customer-facing number.
// Returns ErrNotFound when the number does not exist on this restaurant's
// active menu.
func LookupMenuItem(ctx context.Context, db *gorm.DB, restaurantID string, itemNo int) (*domain.MenuItem, error) {
	var item domain.MenuItem
	err := db.WithContext(ctx).
		Where("restaurant_id = ? AND item_no = ? AND is_active = ?", restaurantID, itemNo, true).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Order
// model.
//
// Every read and update is parameterized by restaurant id: the dashboard
// cannot reach another tenant's orders by construction, because no query
// exists that omits the scope.
//
// Functions:
//
//   - InsertOrder(ctx, db, o) -> error
//     Persists a finalized order row. Write-once from the core's perspective.
//
//   - ListOrders(ctx, db, restaurantID, status, offset, limit) -> []domain.Order, error
//     Returns a page of the restaurant's orders, optionally filtered by status,
//     newest first.
//
//   - CountOrders(ctx, db, restaurantID, status) -> (int64, error)
//     Returns the total for pagination metadata.
//
//   - UpdateOrderStatus(ctx, db, orderID, restaurantID, status) -> error
//     Updates one order's status, enforcing restaurant scope. Returns
//     ErrNotFound when the order does not exist under this restaurant.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/swaadx/go-order-backend/internal/domain"
)

// InsertOrder persists a finalized order row. The caller fills every field
// including the UUID primary key and computed totals.
func InsertOrder(ctx context.Context, db *gorm.DB, o *domain.Order) error {
	return db.WithContext(ctx).Create(o).Error
}

// ListOrders returns a page of orders for restaurantID ordered by creation
// time descending. An empty status means no status filter.
func ListOrders(ctx context.Context, db *gorm.DB, restaurantID, status string, offset, limit int) ([]domain.Order, error) {
	q := db.WithContext(ctx).
		Where("restaurant_id = ?", restaurantID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []domain.Order
	err := q.Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountOrders returns the number of orders for restaurantID, optionally
// filtered by status.
func CountOrders(ctx context.Context, db *gorm.DB, restaurantID, status string) (int64, error) {
	q := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("restaurant_id = ?", restaurantID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	err := q.Count(&total).Error
	return total, err
}

// UpdateOrderStatus sets the status of one order, scoped to restaurantID.
// If no rows are affected (order missing or owned by another restaurant),
// it returns ErrNotFound.
func UpdateOrderStatus(ctx context.Context, db *gorm.DB, orderID, restaurantID, status string) error {
	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND restaurant_id = ?", orderID, restaurantID).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

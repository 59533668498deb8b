// Package services – DashboardService
//
// This file implements the DashboardService, which backs the restaurant
// dashboard: listing orders (with pagination and an optional status filter)
// and moving an order through its status lifecycle. Every operation is scoped
// by the authenticated restaurant's id; no query path exists without it.
//
// Service-level errors (ErrInvalidStatus, ErrOrderNotFound) are returned for
// predictable cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/swaadx/go-order-backend/internal/domain"
	"github.com/swaadx/go-order-backend/internal/repo"
)

// DashboardService implements the use-cases behind the dashboard API.
type DashboardService struct {
	// DB is the database handle used for all dashboard operations.
	DB *gorm.DB
}

// ListPage returns a page of the restaurant's orders, newest first. An empty
// status means no filter; a non-empty status must be one of the recognized
// values or ErrInvalidStatus is returned. Defaults are applied for invalid
// page/pageSize.
func (s *DashboardService) ListPage(ctx context.Context, restaurantID, status string, page, pageSize int) ([]domain.Order, int64, error) {
	tr := otel.Tracer("services/DashboardService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("restaurant.id", restaurantID),
			attribute.String("status", status),
			attribute.Int("page", page),
		),
	)
	defer span.End()

	if status != "" && !domain.ValidStatus(status) {
		return nil, 0, ErrInvalidStatus
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountOrders(ctx, s.DB, restaurantID, status)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Order{}, 0, nil
	}

	items, err := repo.ListOrders(ctx, s.DB, restaurantID, status, offset, pageSize)
	return items, total, err
}

// UpdateStatus moves one order to a new status, enforcing restaurant scope.
//
// Semantics:
//   - status must be a recognized value; otherwise ErrInvalidStatus.
//   - the order must exist under restaurantID; otherwise ErrOrderNotFound.
func (s *DashboardService) UpdateStatus(ctx context.Context, restaurantID, orderID, status string) error {
	tr := otel.Tracer("services/DashboardService")
	ctx, span := tr.Start(ctx, "UpdateStatus",
		trace.WithAttributes(
			attribute.String("restaurant.id", restaurantID),
			attribute.String("order.id", orderID),
			attribute.String("status", status),
		),
	)
	defer span.End()

	if !domain.ValidStatus(status) {
		return ErrInvalidStatus
	}
	if err := repo.UpdateOrderStatus(ctx, s.DB, orderID, restaurantID, status); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		return err
	}
	return nil
}

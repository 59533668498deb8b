// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Restaurant
// model: resolving the inbound destination number to a tenant, and
// authenticating dashboard tokens.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a restaurant is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/swaadx/go-order-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ResolveRestaurant maps an inbound destination identity (the WhatsApp number
// the customer wrote to) to the owning restaurant. Returns ErrNotFound when
// no restaurant is linked to the number.
func ResolveRestaurant(ctx context.Context, db *gorm.DB, whatsappNumber string) (*domain.Restaurant, error) {
	var r domain.Restaurant
	err := db.WithContext(ctx).
		Where("whatsapp_number = ?", whatsappNumber).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// AuthenticateDashboardToken loads the restaurant owning the given dashboard
// token. Returns ErrNotFound for an unknown token; the caller decides how to
// map that to an HTTP status.
func AuthenticateDashboardToken(ctx context.Context, db *gorm.DB, token string) (*domain.Restaurant, error) {
	var r domain.Restaurant
	err := db.WithContext(ctx).
		Where("dashboard_token = ?", token).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Package services – OrderService
//
// This file implements OrderService, the component that turns a finalized
// cart into a persisted order row. It computes totals, serializes the cart
// lines to JSON, and inserts the order with status NEW. Storage failures are
// logged with full detail for operators and surfaced to the caller only as
// ErrSubmissionFailed, so the dialogue engine can keep the session intact and
// reply with a generic retry message.
//
// Observability: Submit is OpenTelemetry-instrumented; spans carry the
// restaurant id and the item count.
package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/swaadx/go-order-backend/internal/cart"
	"github.com/swaadx/go-order-backend/internal/domain"
	"github.com/swaadx/go-order-backend/internal/repo"
)

// OrderService persists finalized carts as orders.
type OrderService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// TaxRate is the configured tax fraction applied at submission (e.g. 0.05).
	TaxRate decimal.Decimal
	// StorageTimeout bounds the insert so a slow database cannot hold a
	// customer's session lock indefinitely. Zero disables the bound.
	StorageTimeout time.Duration
}

// Submit computes totals for the cart and persists an order row. It returns
// the created order id on success.
//
// Error semantics:
//   - ErrEmptyCart when the cart has no lines (the dialogue engine checks
//     this first; the guard here keeps the invariant even for other callers).
//   - ErrSubmissionFailed for any persistence failure. The cause is logged;
//     callers must not destroy the session so a retry can submit the same cart.
func (s *OrderService) Submit(ctx context.Context, restaurantID, phone string, c *cart.Cart, deliveryType, address string) (string, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.String("restaurant.id", restaurantID),
			attribute.Int("cart.lines", len(c.Lines)),
		),
	)
	defer span.End()

	if c.Empty() {
		return "", ErrEmptyCart
	}

	if s.StorageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.StorageTimeout)
		defer cancel()
	}

	totals := c.ComputeTotals(s.TaxRate)

	itemsJSON, err := json.Marshal(c.Lines)
	if err != nil {
		log.Error().Err(err).Str("restaurant_id", restaurantID).Msg("serialize cart")
		return "", ErrSubmissionFailed
	}

	o := &domain.Order{
		ID:           uuid.NewString(),
		RestaurantID: restaurantID,
		Phone:        phone,
		ItemsJSON:    string(itemsJSON),
		Status:       domain.StatusNew,
		DeliveryType: deliveryType,
		Address:      address,
		ItemCount:    totals.ItemCount,
		Subtotal:     totals.Subtotal,
		Tax:          totals.Tax,
		Total:        totals.Total,
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.InsertOrder(ctx, s.DB, o); err != nil {
		log.Error().Err(err).
			Str("restaurant_id", restaurantID).
			Int("item_count", totals.ItemCount).
			Msg("insert order")
		return "", ErrSubmissionFailed
	}
	return o.ID, nil
}

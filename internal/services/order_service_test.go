package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/swaadx/go-order-backend/internal/cart"
	"github.com/swaadx/go-order-backend/internal/domain"
	"github.com/swaadx/go-order-backend/internal/repo"
)

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("svc_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestRestaurant(t *testing.T, db *gorm.DB) *domain.Restaurant {
	t.Helper()
	r := &domain.Restaurant{
		ID:             uuid.NewString(),
		Name:           "Test Kitchen",
		WhatsAppNumber: "whatsapp:+14155238886",
		DashboardToken: uuid.NewString(),
	}
	if err := db.Create(r).Error; err != nil {
		t.Fatalf("seed restaurant: %v", err)
	}
	return r
}

func rate(s string) decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return v
}

func TestOrderSubmit_PersistsTotalsAndLines(t *testing.T) {
	db := newServiceDB(t)
	r := newTestRestaurant(t, db)

	var c cart.Cart
	_ = c.Add(1, "Margherita Pizza", rate("200"), 2)
	_ = c.Add(2, "Veg Burger", rate("120"), 1)

	svc := &OrderService{DB: db, TaxRate: rate("0.05"), StorageTimeout: time.Second}
	id, err := svc.Submit(context.Background(), r.ID, "whatsapp:+15550001111", &c,
		domain.DeliveryTypeDelivery, "Flat 4B, 12 MG Road")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	var o domain.Order
	if err := db.First(&o, "id = ?", id).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if o.RestaurantID != r.ID || o.Phone != "whatsapp:+15550001111" {
		t.Fatalf("order scope: %+v", o)
	}
	if o.Status != domain.StatusNew {
		t.Fatalf("status = %q, want NEW", o.Status)
	}
	if o.DeliveryType != domain.DeliveryTypeDelivery || o.Address != "Flat 4B, 12 MG Road" {
		t.Fatalf("fulfilment: %+v", o)
	}
	if !o.Subtotal.Equal(rate("520")) || !o.Tax.Equal(rate("26")) || !o.Total.Equal(rate("546")) {
		t.Fatalf("totals: subtotal=%s tax=%s total=%s", o.Subtotal, o.Tax, o.Total)
	}
	if o.ItemCount != 3 {
		t.Fatalf("item count = %d, want 3", o.ItemCount)
	}

	var lines []cart.Line
	if err := json.Unmarshal([]byte(o.ItemsJSON), &lines); err != nil {
		t.Fatalf("items json: %v (%s)", err, o.ItemsJSON)
	}
	if len(lines) != 2 || lines[0].Name != "Margherita Pizza" || lines[1].Quantity != 1 {
		t.Fatalf("lines round-trip: %+v", lines)
	}
}

func TestOrderSubmit_EmptyCart(t *testing.T) {
	db := newServiceDB(t)
	r := newTestRestaurant(t, db)

	svc := &OrderService{DB: db, TaxRate: rate("0.05")}
	var c cart.Cart
	if _, err := svc.Submit(context.Background(), r.ID, "p", &c, domain.DeliveryTypePickup, ""); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("err = %v, want ErrEmptyCart", err)
	}
}

func TestOrderSubmit_FailureIsSentinel(t *testing.T) {
	db := newServiceDB(t)
	r := newTestRestaurant(t, db)

	// Drop the table so the insert fails; the caller must only ever see the
	// sentinel, never a raw driver error.
	if err := db.Migrator().DropTable(&domain.Order{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	var c cart.Cart
	_ = c.Add(1, "Pizza", rate("200"), 1)
	svc := &OrderService{DB: db, TaxRate: rate("0.05")}
	if _, err := svc.Submit(context.Background(), r.ID, "p", &c, domain.DeliveryTypePickup, ""); !errors.Is(err, ErrSubmissionFailed) {
		t.Fatalf("err = %v, want ErrSubmissionFailed", err)
	}
}

// Package domain defines the persistence models for restaurants, menu items,
// and orders. These types are mapped with GORM and form the core data layer
// of the ordering backend.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order status values persisted on the orders table. Every order starts as
// StatusNew; the dashboard moves it forward (or cancels it).
const (
	StatusNew       = "NEW"
	StatusPreparing = "PREPARING"
	StatusReady     = "READY"
	StatusDelivered = "DELIVERED"
	StatusCancelled = "CANCELLED"
)

// Delivery type values persisted on the orders table.
const (
	DeliveryTypeDelivery = "delivery"
	DeliveryTypePickup   = "pickup"
)

// Restaurant represents one tenant of the ordering platform. Each restaurant
// owns a WhatsApp number that inbound messages are addressed to, and a
// dashboard token that scopes every dashboard query to this restaurant.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Name: display name used in the greeting reply.
//   - WhatsAppNumber: the transport destination identity; unique, because it
//     is how an inbound message resolves to exactly one restaurant.
//   - DashboardToken: opaque bearer token for the dashboard API; unique.
//   - Plan: subscription plan label (free-form, e.g. "starter", "pro").
//   - IsCloudKitchen: whether the restaurant is delivery-only.
type Restaurant struct {
	ID             string         `json:"id"               gorm:"type:char(36);primaryKey"`
	Name           string         `json:"name"             gorm:"type:varchar(255);not null"`
	WhatsAppNumber string         `json:"whatsapp_number"  gorm:"column:whatsapp_number;type:varchar(32);not null;uniqueIndex:ux_restaurant_wa"`
	DashboardToken string         `json:"-"                gorm:"type:varchar(128);not null;uniqueIndex:ux_restaurant_token"`
	Plan           string         `json:"plan"             gorm:"type:varchar(32);not null;default:'starter'"`
	IsCloudKitchen bool           `json:"is_cloud_kitchen" gorm:"not null;default:false"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-"                gorm:"index"`
}

// TableName returns the database table name for Restaurant.
func (Restaurant) TableName() string { return "restaurants" }

// MenuItem is one orderable entry on a restaurant's menu. Customers refer to
// items by ItemNo, the small ordinal printed in the menu reply; it is unique
// per restaurant, not globally.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - RestaurantID: foreign key to the owning restaurant (indexed).
//   - ItemNo: customer-facing item number (>= 1); unique per restaurant.
//   - Name: item name as rendered in the menu and the cart.
//   - Price: unit price; decimal, never float.
//   - IsActive: inactive items are hidden from the menu and cannot be ordered.
//   - Position: display order within the menu listing.
type MenuItem struct {
	ID           string          `json:"id"            gorm:"type:char(36);primaryKey"`
	RestaurantID string          `json:"restaurant_id" gorm:"type:char(36);not null;uniqueIndex:ux_menu_item_no,priority:1"`
	ItemNo       int             `json:"item_no"       gorm:"not null;uniqueIndex:ux_menu_item_no,priority:2;check:item_no >= 1"`
	Name         string          `json:"name"          gorm:"type:varchar(255);not null"`
	Price        decimal.Decimal `json:"price"         gorm:"type:decimal(10,2);not null"`
	IsActive     bool            `json:"is_active"     gorm:"not null;default:true"`
	Position     int             `json:"position"      gorm:"not null;default:0"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	// Restaurant is the owning tenant. Menu items are cascade-deleted if the
	// restaurant is removed.
	Restaurant Restaurant `json:"-" gorm:"foreignKey:RestaurantID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for MenuItem.
func (MenuItem) TableName() string { return "menu_items" }

// Order is a finalized cart persisted at confirmation time. The cart lines
// are serialized to JSON on the row (ItemsJSON); the conversational core
// writes orders and never reads them back, only the dashboard does.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - RestaurantID: owning restaurant; indexed, and every dashboard query is
//     scoped by it.
//   - Phone: the customer identity the order was placed from.
//   - ItemsJSON: the cart lines serialized as a JSON array.
//   - Status: one of the Status* constants; new orders start as StatusNew.
//   - DeliveryType: "delivery" or "pickup".
//   - Address: delivery address text; empty for pickup orders.
//   - ItemCount: total quantity across all lines.
//   - Subtotal / Tax / Total: monetary totals, rounded half-up to 2 decimals.
type Order struct {
	ID           string          `json:"id"            gorm:"type:char(36);primaryKey"`
	RestaurantID string          `json:"restaurant_id" gorm:"type:char(36);not null;index:idx_orders_restaurant"`
	Phone        string          `json:"phone"         gorm:"type:varchar(32);not null"`
	ItemsJSON    string          `json:"items"         gorm:"type:text;not null"`
	Status       string          `json:"status"        gorm:"type:varchar(16);not null;default:'NEW';index"`
	DeliveryType string          `json:"delivery_type" gorm:"type:varchar(16);not null"`
	Address      string          `json:"address"       gorm:"type:text"`
	ItemCount    int             `json:"item_count"    gorm:"not null"`
	Subtotal     decimal.Decimal `json:"subtotal"      gorm:"type:decimal(10,2);not null"`
	Tax          decimal.Decimal `json:"tax"           gorm:"type:decimal(10,2);not null"`
	Total        decimal.Decimal `json:"total"         gorm:"type:decimal(10,2);not null"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	// Restaurant is the owning tenant.
	Restaurant Restaurant `json:"-" gorm:"foreignKey:RestaurantID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Order.
func (Order) TableName() string { return "orders" }

// ValidStatus reports whether s is one of the recognized order statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusNew, StatusPreparing, StatusReady, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

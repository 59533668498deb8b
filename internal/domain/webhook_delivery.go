// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// WebhookDelivery records one processed inbound webhook message, keyed by the
// transport message id (Twilio MessageSid). When the transport retries a
// delivery (timeout, 5xx, network flake), the recorded reply is returned
// without re-running the dialogue turn, so retried messages can never add to
// the cart or submit an order twice.
type WebhookDelivery struct {
	ID           string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	MessageSid   string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_delivery_sid"`
	RestaurantID string    `gorm:"type:TEXT NOT NULL"`
	Phone        string    `gorm:"type:TEXT NOT NULL"`
	Reply        string    `gorm:"type:TEXT NOT NULL"`
	CreatedAt    time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt    time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (WebhookDelivery) TableName() string { return "webhook_deliveries" }

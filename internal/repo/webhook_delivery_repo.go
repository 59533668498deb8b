// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the
// WebhookDelivery model used to deduplicate transport retries: a retried
// MessageSid replays the recorded reply instead of re-running the turn.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/swaadx/go-order-backend/internal/domain"
)

// ErrDuplicate indicates that a delivery record already exists for the
// given message sid.
var ErrDuplicate = errors.New("duplicate")

// GetWebhookDelivery returns a non-expired delivery record or ErrNotFound.
// Message sids are globally unique at the transport, so the sid alone is the
// dedupe key; restaurant and phone are recorded as data.
func GetWebhookDelivery(ctx context.Context, db *gorm.DB, messageSid string, now time.Time) (*domain.WebhookDelivery, error) {
	if strings.TrimSpace(messageSid) == "" {
		return nil, ErrNotFound
	}
	var rec domain.WebhookDelivery
	err := db.WithContext(ctx).
		Where("message_sid = ? AND expires_at > ?", messageSid, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateWebhookDelivery records the reply produced for one inbound message
// and returns ErrDuplicate on unique violation (a concurrent retry won the
// race; its recorded reply stands).
func CreateWebhookDelivery(ctx context.Context, db *gorm.DB, messageSid, restaurantID, phone, reply string, ttl time.Duration) (*domain.WebhookDelivery, error) {
	now := time.Now().UTC()
	rec := &domain.WebhookDelivery{
		ID:           uuid.NewString(),
		MessageSid:   messageSid,
		RestaurantID: restaurantID,
		Phone:        phone,
		Reply:        reply,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// PurgeExpiredDeliveries removes delivery records whose TTL has elapsed.
// Invoked opportunistically from the server's background housekeeping; a
// failed purge is harmless and retried on the next run.
func PurgeExpiredDeliveries(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.WebhookDelivery{})
	return res.RowsAffected, res.Error
}

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tmarchetti/brickfolio-backend/pkg/enums"
)

// Profile carries the per-user projection of billing state. One row per user.
type Profile struct {
	ID                 uuid.UUID                       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID             uuid.UUID                       `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Email              string                          `gorm:"type:text;not null;index"`
	StripeCustomerID   *string                         `gorm:"column:stripe_customer_id;index"`
	SubscriptionStatus enums.ProfileSubscriptionStatus `gorm:"column:subscription_status;not null;default:'inactive'"`
	CreatedAt          time.Time                       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                       `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tmarchetti/brickfolio-backend/pkg/enums"
)

// Subscription persists Stripe subscription state. The unique index on
// stripe_subscription_id is the idempotency key for replayed deliveries.
// UserID stays NULL until the identity is resolved and never reverts.
type Subscription struct {
	ID                   uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	StripeSubscriptionID string                   `gorm:"column:stripe_subscription_id;not null;uniqueIndex"`
	StripeCustomerID     string                   `gorm:"column:stripe_customer_id;not null;index"`
	UserID               *uuid.UUID               `gorm:"column:user_id;type:uuid;index"`
	Status               enums.SubscriptionStatus `gorm:"column:status;not null;default:'incomplete'"`
	CurrentPeriodStart   *time.Time               `gorm:"column:current_period_start"`
	CurrentPeriodEnd     *time.Time               `gorm:"column:current_period_end"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tmarchetti/brickfolio-backend/pkg/db/models"
	"github.com/tmarchetti/brickfolio-backend/pkg/enums"
)

// Repository handles subscription persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// UpsertSubscription inserts or updates the row keyed by the provider's
// subscription id. The unique index is the dedup mechanism for replayed
// deliveries; user_id goes through COALESCE so an established link can never
// be nulled out by a later event that lacks one.
func (r *Repository) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "stripe_subscription_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"stripe_customer_id":   sub.StripeCustomerID,
				"status":               sub.Status,
				"current_period_start": sub.CurrentPeriodStart,
				"current_period_end":   sub.CurrentPeriodEnd,
				"user_id":              gorm.Expr("COALESCE(user_id, excluded.user_id)"),
				"updated_at":           time.Now().UTC(),
			}),
		}).
		Create(sub).Error
}

// FindBySubscriptionID loads the record for the provider subscription id, or nil.
func (r *Repository) FindBySubscriptionID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	if stripeSubscriptionID == "" {
		return nil, nil
	}
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		First(&sub).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// FindByUserID loads the most recent record linked to the user, or nil.
func (r *Repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&sub).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// DeleteByUserID removes all records linked to the user.
func (r *Repository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Subscription{}, "user_id = ?", userID).Error
}

// UpdateProfileStatusByUserID projects the latest provider status onto the
// user's profile.
func (r *Repository) UpdateProfileStatusByUserID(ctx context.Context, userID uuid.UUID, status enums.ProfileSubscriptionStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("user_id = ?", userID).
		UpdateColumn("subscription_status", status).Error
}

// UpdateProfileStatusByCustomerID projects status for lifecycle events that
// carry no user linkage of their own.
func (r *Repository) UpdateProfileStatusByCustomerID(ctx context.Context, customerID string, status enums.ProfileSubscriptionStatus) error {
	if customerID == "" {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("stripe_customer_id = ?", customerID).
		UpdateColumn("subscription_status", status).Error
}

// DeleteProfileByUserID removes the user's profile row.
func (r *Repository) DeleteProfileByUserID(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Profile{}, "user_id = ?", userID).Error
}

package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tmarchetti/brickfolio-backend/pkg/db/models"
	"github.com/tmarchetti/brickfolio-backend/pkg/enums"
	pkgerrors "github.com/tmarchetti/brickfolio-backend/pkg/errors"
)

// Snapshot is the provider's full view of a subscription at event time.
type Snapshot struct {
	SubscriptionID     string
	CustomerID         string
	Status             enums.SubscriptionStatus
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
}

type repository interface {
	UpsertSubscription(ctx context.Context, sub *models.Subscription) error
	UpdateProfileStatusByUserID(ctx context.Context, userID uuid.UUID, status enums.ProfileSubscriptionStatus) error
	UpdateProfileStatusByCustomerID(ctx context.Context, customerID string, status enums.ProfileSubscriptionStatus) error
}

// Service is the idempotent writer for subscription state.
type Service struct {
	repo repository
}

// NewService constructs the ledger service.
func NewService(repo repository) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger repo required")
	}
	return &Service{repo: repo}, nil
}

// Record upserts the subscription snapshot and, when the identity is known,
// projects the status onto the user's profile. Failures here are the one
// case worth a redelivery, so they propagate as retryable.
func (s *Service) Record(ctx context.Context, snap Snapshot, userID *uuid.UUID) error {
	if snap.SubscriptionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription id required")
	}
	if !snap.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown subscription status")
	}

	sub := &models.Subscription{
		StripeSubscriptionID: snap.SubscriptionID,
		StripeCustomerID:     snap.CustomerID,
		UserID:               userID,
		Status:               snap.Status,
		CurrentPeriodStart:   snap.CurrentPeriodStart,
		CurrentPeriodEnd:     snap.CurrentPeriodEnd,
	}
	if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert subscription")
	}

	projected := enums.ProjectSubscriptionStatus(snap.Status)
	if userID != nil {
		if err := s.repo.UpdateProfileStatusByUserID(ctx, *userID, projected); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "project profile status")
		}
		return nil
	}
	// Lifecycle events do not re-derive the owning user; project by the
	// customer linkage instead. A miss is fine, the profile may not exist yet.
	if err := s.repo.UpdateProfileStatusByCustomerID(ctx, snap.CustomerID, projected); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "project profile status by customer")
	}
	return nil
}

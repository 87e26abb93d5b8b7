package account

import (
	"context"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"

	"github.com/tmarchetti/brickfolio-backend/pkg/db/models"
	pkgerrors "github.com/tmarchetti/brickfolio-backend/pkg/errors"
	"github.com/tmarchetti/brickfolio-backend/pkg/logger"
)

type userRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ledgerRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
	DeleteProfileByUserID(ctx context.Context, userID uuid.UUID) error
}

// StripeCancelClient cancels the provider-side subscription.
type StripeCancelClient interface {
	CancelSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
}

// SubscriptionView is the read model served to an authenticated user.
type SubscriptionView struct {
	SubscriptionID string  `json:"subscription_id"`
	Status         string  `json:"status"`
	Active         bool    `json:"active"`
	PeriodEnd      *string `json:"current_period_end,omitempty"`
}

// Service handles account-scoped operations for an authenticated identity.
type Service struct {
	users  userRepository
	ledger ledgerRepository
	stripe StripeCancelClient
	logg   *logger.Logger
}

// ServiceParams bundles the account service dependencies.
type ServiceParams struct {
	UserRepo     userRepository
	LedgerRepo   ledgerRepository
	StripeClient StripeCancelClient
	Logger       *logger.Logger
}

// NewService constructs the account service.
func NewService(params ServiceParams) (*Service, error) {
	if params.UserRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user repo required")
	}
	if params.LedgerRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger repo required")
	}
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	return &Service{
		users:  params.UserRepo,
		ledger: params.LedgerRepo,
		stripe: params.StripeClient,
		logg:   params.Logger,
	}, nil
}

// Subscription returns the caller's current subscription snapshot, or nil
// when none is linked yet.
func (s *Service) Subscription(ctx context.Context, userID uuid.UUID) (*SubscriptionView, error) {
	sub, err := s.ledger.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	if sub == nil {
		return nil, nil
	}

	view := &SubscriptionView{
		SubscriptionID: sub.StripeSubscriptionID,
		Status:         sub.Status.String(),
		Active:         sub.Status.IsActive(),
	}
	if sub.CurrentPeriodEnd != nil {
		formatted := sub.CurrentPeriodEnd.UTC().Format("2006-01-02T15:04:05Z07:00")
		view.PeriodEnd = &formatted
	}
	return view, nil
}

// Delete tears the account down: provider cancellation is best-effort, the
// local rows go subscription → profile → identity, and success is reported
// only after the identity delete since that is the irreversible step.
func (s *Service) Delete(ctx context.Context, userID uuid.UUID) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if user == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}

	var softErrs error

	sub, err := s.ledger.FindByUserID(ctx, userID)
	if err != nil {
		softErrs = multierr.Append(softErrs, err)
	}
	if sub != nil && sub.StripeSubscriptionID != "" {
		if _, err := s.stripe.CancelSubscription(ctx, sub.StripeSubscriptionID); err != nil {
			softErrs = multierr.Append(softErrs, err)
		}
	}
	if softErrs != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithUserID(ctx, userID.String()), "provider cancellation incomplete, continuing with deletion")
	}

	if err := s.ledger.DeleteByUserID(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete subscription records")
	}
	if err := s.ledger.DeleteProfileByUserID(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete profile")
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete identity")
	}
	return nil
}

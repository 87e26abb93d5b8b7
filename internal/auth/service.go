package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	pkgauth "github.com/tmarchetti/brickfolio-backend/pkg/auth"
	"github.com/tmarchetti/brickfolio-backend/pkg/config"
	"github.com/tmarchetti/brickfolio-backend/pkg/db/models"
	pkgerrors "github.com/tmarchetti/brickfolio-backend/pkg/errors"
	"github.com/tmarchetti/brickfolio-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// LoginRequest is the payload for an authentication attempt.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the access token plus the subscription flag the
// post-checkout reconciliation poller keys off.
type LoginResponse struct {
	Token              string `json:"token"`
	SubscriptionActive bool   `json:"subscription_active"`
}

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type subscriptionReader interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
}

// Service defines the behavior needed by the auth controller.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
}

type service struct {
	users         userRepository
	subscriptions subscriptionReader
	jwtCfg        config.JWTConfig
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo         userRepository
	SubscriptionRepo subscriptionReader
	JWTConfig        config.JWTConfig
}

// NewService constructs a login service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user repository is required")
	}
	if params.SubscriptionRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription repository is required")
	}
	return &service{
		users:         params.UserRepo,
		subscriptions: params.SubscriptionRepo,
		jwtCfg:        params.JWTConfig,
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find user")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	ok, err := security.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	now := time.Now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record login")
	}

	token, err := pkgauth.MintAccessToken(s.jwtCfg, now, pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint token")
	}

	active := false
	if sub, err := s.subscriptions.FindByUserID(ctx, user.ID); err == nil && sub != nil {
		active = sub.Status.IsActive()
	}

	return &LoginResponse{
		Token:              token,
		SubscriptionActive: active,
	}, nil
}

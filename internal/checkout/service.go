package checkout

import (
	"context"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/tmarchetti/brickfolio-backend/internal/correlate"
	"github.com/tmarchetti/brickfolio-backend/pkg/config"
	pkgerrors "github.com/tmarchetti/brickfolio-backend/pkg/errors"
)

// StartRequest is the validated payload for initiating a payment flow. The
// hand-off secret is the password the user picked before paying; it rides
// the checkout metadata so the webhook pipeline can establish the credential
// after the account is provisioned.
type StartRequest struct {
	PriceID       string `json:"price_id" validate:"required"`
	UserEmail     string `json:"user_email" validate:"required,email"`
	HandoffSecret string `json:"handoff_secret" validate:"required,min=6"`
	UserID        string `json:"user_id,omitempty" validate:"omitempty,uuid"`
}

// Session is the opaque handle the client redirects to.
type Session struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// StripeCheckoutClient is the single Stripe write this service needs.
type StripeCheckoutClient interface {
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Service starts provider-side checkout intents stamped with the correlation
// keys the webhook pipeline looks for later.
type Service struct {
	stripe     StripeCheckoutClient
	successURL string
	cancelURL  string
}

// ServiceParams bundles the checkout dependencies.
type ServiceParams struct {
	StripeClient StripeCheckoutClient
	StripeConfig config.StripeConfig
}

// NewService constructs the checkout service.
func NewService(params ServiceParams) (*Service, error) {
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	return &Service{
		stripe:     params.StripeClient,
		successURL: params.StripeConfig.CheckoutSuccessURL,
		cancelURL:  params.StripeConfig.CheckoutCancelURL,
	}, nil
}

// Start creates the checkout session. The correlation metadata is stamped on
// both the session and the subscription it will create, so either webhook
// event can resolve the identity on its own.
func (s *Service) Start(ctx context.Context, req StartRequest) (*Session, error) {
	if strings.TrimSpace(req.UserEmail) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user email is required")
	}
	if strings.TrimSpace(req.HandoffSecret) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "handoff secret is required")
	}
	if strings.TrimSpace(req.PriceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price id is required")
	}

	metadata := map[string]string{
		correlate.MetaUserEmail:     req.UserEmail,
		correlate.MetaHandoffSecret: req.HandoffSecret,
	}
	if req.UserID != "" {
		metadata[correlate.MetaUserID] = req.UserID
	}

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		CustomerEmail: stripe.String(req.UserEmail),
		SuccessURL:    stripe.String(s.successURL),
		CancelURL:     stripe.String(s.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: metadata,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}

	sess, err := s.stripe.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	return &Session{
		SessionID: sess.ID,
		URL:       sess.URL,
	}, nil
}

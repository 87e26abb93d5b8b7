package account

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/subscription"

	pkgstripe "github.com/tmarchetti/brickfolio-backend/pkg/stripe"
)

type stripeClientWrapper struct{}

// NewStripeClient wraps the shared Stripe client so the account service can
// be tested.
func NewStripeClient(api *pkgstripe.Client) StripeCancelClient {
	if api == nil {
		return nil
	}
	return &stripeClientWrapper{}
}

func (w *stripeClientWrapper) CancelSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	return subscription.Cancel(id, params)
}

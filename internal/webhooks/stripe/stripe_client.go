package stripewebhook

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/subscription"

	pkgstripe "github.com/tmarchetti/brickfolio-backend/pkg/stripe"
)

type stripeClientWrapper struct{}

// NewStripeClient wraps the shared Stripe client so the webhook service can
// be tested with a stub.
func NewStripeClient(api *pkgstripe.Client) subscriptionFetcher {
	if api == nil {
		return nil
	}
	return &stripeClientWrapper{}
}

func (w *stripeClientWrapper) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	return subscription.Get(id, params)
}

package correlate

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/customer"

	pkgstripe "github.com/tmarchetti/brickfolio-backend/pkg/stripe"
)

type stripeClientWrapper struct{}

// NewStripeClient wraps the shared Stripe client so the correlator can be tested.
func NewStripeClient(api *pkgstripe.Client) StripeLookupClient {
	if api == nil {
		return nil
	}
	return &stripeClientWrapper{}
}

func (w *stripeClientWrapper) GetCustomer(ctx context.Context, id string) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	return customer.Get(id, params)
}

func (w *stripeClientWrapper) ListCheckoutSessions(ctx context.Context, customerID string, createdAfter time.Time) ([]*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionListParams{
		Customer: stripe.String(customerID),
		CreatedRange: &stripe.RangeQueryParams{
			GreaterThanOrEqual: createdAfter.Unix(),
		},
	}
	params.Context = ctx

	var sessions []*stripe.CheckoutSession
	iter := session.List(params)
	for iter.Next() {
		sessions = append(sessions, iter.CheckoutSession())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

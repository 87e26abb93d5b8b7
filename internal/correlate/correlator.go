package correlate

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/tmarchetti/brickfolio-backend/pkg/errors"
	"github.com/tmarchetti/brickfolio-backend/pkg/logger"
)

// Metadata keys stamped onto checkout sessions by the checkout initiator and
// read back here during reconciliation.
const (
	MetaUserEmail     = "user_email"
	MetaHandoffSecret = "handoff_secret"
	MetaUserID        = "user_id"
)

// Resolution is the correlator's answer: who the paying human is, and what
// credential (if any) rode along with the transaction. A zero Email means the
// identity could not be determined, which is a valid terminal outcome.
type Resolution struct {
	Email         string
	HandoffSecret string
	UserID        *uuid.UUID
}

// Resolved reports whether any human identity was determined.
func (r Resolution) Resolved() bool {
	return r.Email != ""
}

// StripeLookupClient is the subset of Stripe reads the correlator needs.
type StripeLookupClient interface {
	GetCustomer(ctx context.Context, id string) (*stripe.Customer, error)
	ListCheckoutSessions(ctx context.Context, customerID string, createdAfter time.Time) ([]*stripe.CheckoutSession, error)
}

// Correlator resolves subscription-bearing events to a human identity.
type Correlator struct {
	stripe StripeLookupClient
	window time.Duration
	logg   *logger.Logger
	now    func() time.Time
}

// Params bundles the correlator dependencies.
type Params struct {
	StripeClient StripeLookupClient
	Window       time.Duration
	Logger       *logger.Logger
}

// New constructs a Correlator. Window bounds how far back checkout
// transactions are considered during fallback correlation.
func New(params Params) (*Correlator, error) {
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe lookup client required")
	}
	window := params.Window
	if window <= 0 {
		window = time.Hour
	}
	return &Correlator{
		stripe: params.StripeClient,
		window: window,
		logg:   params.Logger,
		now:    time.Now,
	}, nil
}

// FromCheckoutSession resolves identity from a completed checkout session.
// Everything needed is on the session itself; no provider lookups happen.
func (c *Correlator) FromCheckoutSession(sess *stripe.CheckoutSession) Resolution {
	if sess == nil {
		return Resolution{}
	}

	res := resolutionFromMetadata(sess.Metadata)
	if res.Email == "" && sess.CustomerDetails != nil {
		res.Email = sess.CustomerDetails.Email
	}
	if res.Email == "" {
		res.Email = sess.CustomerEmail
	}
	return res
}

// FromSubscription resolves identity for a subscription lifecycle event that
// may have raced ahead of its checkout-completed sibling. The event's own
// metadata is inspected first; if that is insufficient the customer record
// and recent checkout transactions are consulted. Lookup failures are logged
// and collapse to a degraded resolution instead of propagating, because a
// webhook redelivery would not fix them.
func (c *Correlator) FromSubscription(ctx context.Context, sub *stripe.Subscription) Resolution {
	if sub == nil {
		return Resolution{}
	}

	res := resolutionFromMetadata(sub.Metadata)
	if res.Resolved() && res.HandoffSecret != "" {
		return res
	}

	if sub.Customer == nil || sub.Customer.ID == "" {
		return res
	}
	customerID := sub.Customer.ID

	if res.Email == "" {
		cust, err := c.stripe.GetCustomer(ctx, customerID)
		if err != nil {
			if c.logg != nil {
				c.logg.Warn(c.logg.WithField(ctx, "customer_id", customerID), "customer lookup failed, identity unresolved")
			}
			return res
		}
		res.Email = cust.Email
	}
	if res.Email == "" {
		// Customer record had no email; keep whatever the metadata gave us
		// (a pre-issued user id is enough on its own).
		return res
	}

	sess := c.findCheckoutSession(ctx, customerID, sub.ID)
	if sess == nil {
		// Degraded outcome: email only, no hand-off secret.
		return res
	}

	fromSession := resolutionFromMetadata(sess.Metadata)
	if res.HandoffSecret == "" {
		res.HandoffSecret = fromSession.HandoffSecret
	}
	if res.UserID == nil {
		res.UserID = fromSession.UserID
	}
	return res
}

// findCheckoutSession prefers an exact subscription-id match and falls back
// to the most recently created session inside the recency window.
func (c *Correlator) findCheckoutSession(ctx context.Context, customerID, subscriptionID string) *stripe.CheckoutSession {
	cutoff := c.now().Add(-c.window)
	sessions, err := c.stripe.ListCheckoutSessions(ctx, customerID, cutoff)
	if err != nil {
		if c.logg != nil {
			c.logg.Warn(c.logg.WithField(ctx, "customer_id", customerID), "checkout session lookup failed")
		}
		return nil
	}

	var newest *stripe.CheckoutSession
	for _, sess := range sessions {
		if sess == nil {
			continue
		}
		if subscriptionID != "" && sess.Subscription != nil && sess.Subscription.ID == subscriptionID {
			return sess
		}
		if time.Unix(sess.Created, 0).Before(cutoff) {
			continue
		}
		if newest == nil || sess.Created > newest.Created {
			newest = sess
		}
	}
	return newest
}

func resolutionFromMetadata(metadata map[string]string) Resolution {
	if metadata == nil {
		return Resolution{}
	}
	res := Resolution{
		Email:         metadata[MetaUserEmail],
		HandoffSecret: metadata[MetaHandoffSecret],
	}
	if raw := metadata[MetaUserID]; raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			res.UserID = &id
		}
	}
	return res
}

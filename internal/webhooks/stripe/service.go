package stripewebhook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/tmarchetti/brickfolio-backend/internal/correlate"
	"github.com/tmarchetti/brickfolio-backend/internal/ledger"
	"github.com/tmarchetti/brickfolio-backend/pkg/enums"
	pkgerrors "github.com/tmarchetti/brickfolio-backend/pkg/errors"
	"github.com/tmarchetti/brickfolio-backend/pkg/logger"
	"github.com/tmarchetti/brickfolio-backend/pkg/metrics"
)

type correlator interface {
	FromCheckoutSession(sess *stripe.CheckoutSession) correlate.Resolution
	FromSubscription(ctx context.Context, sub *stripe.Subscription) correlate.Resolution
}

type provisioner interface {
	Provision(ctx context.Context, res correlate.Resolution, customerID string) (*uuid.UUID, error)
}

type recorder interface {
	Record(ctx context.Context, snap ledger.Snapshot, userID *uuid.UUID) error
}

type subscriptionFetcher interface {
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
}

// ServiceParams bundles the webhook pipeline dependencies.
type ServiceParams struct {
	Correlator  correlator
	Provisioner provisioner
	Ledger      recorder
	Stripe      subscriptionFetcher
	Metrics     *metrics.WebhookMetrics
	Logger      *logger.Logger
}

// Service turns trusted provider events into durable identity and
// subscription state. Handlers are stateless; the unique keys underneath the
// provisioner and ledger carry the concurrency burden.
type Service struct {
	correlator  correlator
	provisioner provisioner
	ledger      recorder
	stripe      subscriptionFetcher
	metrics     *metrics.WebhookMetrics
	logg        *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Correlator == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "correlator required")
	}
	if params.Provisioner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "provisioner required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	return &Service{
		correlator:  params.Correlator,
		provisioner: params.Provisioner,
		ledger:      params.Ledger,
		stripe:      params.Stripe,
		metrics:     params.Metrics,
		logg:        params.Logger,
	}, nil
}

// HandleEvent processes one delivery to completion. Anything a redelivery
// cannot fix returns nil so the provider stops retrying; only retryable
// failures (storage, snapshot fetch) propagate.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event data required")
	}

	start := time.Now()
	eventType := string(event.Type)
	err := s.dispatch(ctx, event)
	s.metrics.ObserveDuration(eventType, time.Since(start))
	if err != nil {
		s.metrics.IncFailed(eventType)
		return err
	}
	s.metrics.IncHandled(eventType)
	return nil
}

func (s *Service) dispatch(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			s.logUndeliverable(ctx, "decode checkout session", err)
			return nil
		}
		return s.handleCheckoutCompleted(ctx, &sess)
	case stripe.EventTypeCustomerSubscriptionCreated:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			s.logUndeliverable(ctx, "decode subscription event", err)
			return nil
		}
		return s.handleSubscriptionCreated(ctx, &sub)
	case stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			s.logUndeliverable(ctx, "decode subscription event", err)
			return nil
		}
		return s.handleSubscriptionLifecycle(ctx, &sub)
	default:
		return nil
	}
}

// handleCheckoutCompleted is the information-rich path: the session metadata
// carries the email, the optional pre-issued user id, and the hand-off secret.
func (s *Service) handleCheckoutCompleted(ctx context.Context, sess *stripe.CheckoutSession) error {
	res := s.correlator.FromCheckoutSession(sess)

	subscriptionID := ""
	if sess.Subscription != nil {
		subscriptionID = sess.Subscription.ID
	}
	customerID := ""
	if sess.Customer != nil {
		customerID = sess.Customer.ID
	}

	userID, err := s.provisioner.Provision(ctx, res, customerID)
	if err != nil {
		return err
	}

	if subscriptionID == "" {
		// Non-subscription checkout; identity work above is all there is.
		if s.logg != nil {
			s.logg.Info(ctx, "checkout completed without subscription, nothing to record")
		}
		return nil
	}

	// The session does not carry the subscription's status or period bounds;
	// fetch the snapshot so the record matches the sibling lifecycle event.
	sub, err := s.stripe.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch subscription snapshot")
	}

	snap := snapshotFromStripe(sub)
	if snap.CustomerID == "" {
		snap.CustomerID = customerID
	}
	if userID == nil {
		s.metrics.IncUnlinked()
	}
	return s.ledger.Record(ctx, snap, userID)
}

// handleSubscriptionCreated may race ahead of checkout completion; the
// correlator falls back to provider lookups, and an unresolved identity still
// produces an unlinked record rather than a dropped event.
func (s *Service) handleSubscriptionCreated(ctx context.Context, sub *stripe.Subscription) error {
	ctx = s.withSubscriptionID(ctx, sub.ID)

	res := s.correlator.FromSubscription(ctx, sub)

	customerID := ""
	if sub.Customer != nil {
		customerID = sub.Customer.ID
	}

	userID, err := s.provisioner.Provision(ctx, res, customerID)
	if err != nil {
		return err
	}
	if userID == nil {
		s.metrics.IncUnlinked()
		if s.logg != nil {
			s.logg.Info(ctx, "identity unresolved, persisting subscription unlinked")
		}
	}
	return s.ledger.Record(ctx, snapshotFromStripe(sub), userID)
}

// handleSubscriptionLifecycle applies updated/deleted events by subscription
// id only; the profile projection runs off the customer linkage since these
// payloads do not re-derive the owning user.
func (s *Service) handleSubscriptionLifecycle(ctx context.Context, sub *stripe.Subscription) error {
	ctx = s.withSubscriptionID(ctx, sub.ID)
	return s.ledger.Record(ctx, snapshotFromStripe(sub), nil)
}

func (s *Service) withSubscriptionID(ctx context.Context, id string) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithSubscriptionID(ctx, id)
}

func (s *Service) logUndeliverable(ctx context.Context, msg string, err error) {
	if s.logg != nil {
		s.logg.Error(ctx, msg+", dropping event", err)
	}
}

func snapshotFromStripe(sub *stripe.Subscription) ledger.Snapshot {
	snap := ledger.Snapshot{
		SubscriptionID: sub.ID,
	}
	if sub.Customer != nil {
		snap.CustomerID = sub.Customer.ID
	}
	if status, err := enums.ParseSubscriptionStatus(string(sub.Status)); err == nil {
		snap.Status = status
	} else {
		snap.Status = enums.SubscriptionStatusIncomplete
	}
	if start, end := periodBounds(sub); start != nil || end != nil {
		snap.CurrentPeriodStart = start
		snap.CurrentPeriodEnd = end
	}
	return snap
}

func periodBounds(sub *stripe.Subscription) (*time.Time, *time.Time) {
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil, nil
	}
	item := sub.Items.Data[0]
	var start, end *time.Time
	if item.CurrentPeriodStart > 0 {
		t := time.Unix(item.CurrentPeriodStart, 0).UTC()
		start = &t
	}
	if item.CurrentPeriodEnd > 0 {
		t := time.Unix(item.CurrentPeriodEnd, 0).UTC()
		end = &t
	}
	return start, end
}

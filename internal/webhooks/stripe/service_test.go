package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/tmarchetti/brickfolio-backend/internal/correlate"
	"github.com/tmarchetti/brickfolio-backend/internal/ledger"
	"github.com/tmarchetti/brickfolio-backend/pkg/enums"
	pkgerrors "github.com/tmarchetti/brickfolio-backend/pkg/errors"
)

type stubCorrelator struct {
	checkoutRes correlate.Resolution
	subRes      correlate.Resolution
}

func (s *stubCorrelator) FromCheckoutSession(sess *stripe.CheckoutSession) correlate.Resolution {
	return s.checkoutRes
}

func (s *stubCorrelator) FromSubscription(ctx context.Context, sub *stripe.Subscription) correlate.Resolution {
	return s.subRes
}

type stubProvisioner struct {
	userID *uuid.UUID
	err    error
	calls  []correlate.Resolution
}

func (s *stubProvisioner) Provision(ctx context.Context, res correlate.Resolution, customerID string) (*uuid.UUID, error) {
	s.calls = append(s.calls, res)
	return s.userID, s.err
}

type recordedCall struct {
	snap   ledger.Snapshot
	userID *uuid.UUID
}

type stubRecorder struct {
	err   error
	calls []recordedCall
}

func (s *stubRecorder) Record(ctx context.Context, snap ledger.Snapshot, userID *uuid.UUID) error {
	s.calls = append(s.calls, recordedCall{snap: snap, userID: userID})
	return s.err
}

type stubFetcher struct {
	sub *stripe.Subscription
	err error
}

func (s *stubFetcher) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	return s.sub, s.err
}

func newTestService(t *testing.T, c *stubCorrelator, p *stubProvisioner, r *stubRecorder, f *stubFetcher) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Correlator:  c,
		Provisioner: p,
		Ledger:      r,
		Stripe:      f,
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return svc
}

func checkoutEvent(t *testing.T, sess *stripe.CheckoutSession) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(sess)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	return &stripe.Event{
		ID:   "evt_checkout",
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: raw},
	}
}

func subscriptionEvent(t *testing.T, eventType stripe.EventType, sub *stripe.Subscription) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(sub)
	if err != nil {
		t.Fatalf("marshal subscription: %v", err)
	}
	return &stripe.Event{
		ID:   "evt_sub",
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestService_CheckoutCompletedProvisionsAndRecords(t *testing.T) {
	userID := uuid.New()
	correlatorStub := &stubCorrelator{
		checkoutRes: correlate.Resolution{Email: "buyer@example.com", HandoffSecret: "secret1"},
	}
	provisionerStub := &stubProvisioner{userID: &userID}
	recorderStub := &stubRecorder{}
	fetcher := &stubFetcher{sub: &stripe.Subscription{
		ID:       "sub_1",
		Status:   stripe.SubscriptionStatusActive,
		Customer: &stripe.Customer{ID: "cus_1"},
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{CurrentPeriodStart: 100, CurrentPeriodEnd: 200}},
		},
	}}
	svc := newTestService(t, correlatorStub, provisionerStub, recorderStub, fetcher)

	event := checkoutEvent(t, &stripe.CheckoutSession{
		ID:           "cs_1",
		Customer:     &stripe.Customer{ID: "cus_1"},
		Subscription: &stripe.Subscription{ID: "sub_1"},
	})

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	if len(provisionerStub.calls) != 1 {
		t.Fatalf("expected one provision call, got %d", len(provisionerStub.calls))
	}
	if len(recorderStub.calls) != 1 {
		t.Fatalf("expected one record call, got %d", len(recorderStub.calls))
	}
	call := recorderStub.calls[0]
	if call.snap.SubscriptionID != "sub_1" || call.snap.CustomerID != "cus_1" {
		t.Fatalf("unexpected snapshot %+v", call.snap)
	}
	if call.snap.Status != enums.SubscriptionStatusActive {
		t.Fatalf("expected active status, got %s", call.snap.Status)
	}
	if call.snap.CurrentPeriodStart == nil || call.snap.CurrentPeriodEnd == nil {
		t.Fatalf("expected period bounds on snapshot")
	}
	if call.userID == nil || *call.userID != userID {
		t.Fatalf("expected linked user id")
	}
}

func TestService_CheckoutCompletedWithoutSubscriptionSkipsLedger(t *testing.T) {
	userID := uuid.New()
	provisionerStub := &stubProvisioner{userID: &userID}
	recorderStub := &stubRecorder{}
	svc := newTestService(t, &stubCorrelator{}, provisionerStub, recorderStub, &stubFetcher{})

	event := checkoutEvent(t, &stripe.CheckoutSession{ID: "cs_one_time"})

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(recorderStub.calls) != 0 {
		t.Fatalf("expected no ledger write for non-subscription checkout")
	}
}

func TestService_CheckoutCompletedSnapshotFetchFailureIsRetryable(t *testing.T) {
	userID := uuid.New()
	svc := newTestService(t,
		&stubCorrelator{},
		&stubProvisioner{userID: &userID},
		&stubRecorder{},
		&stubFetcher{err: errors.New("stripe down")},
	)

	event := checkoutEvent(t, &stripe.CheckoutSession{
		ID:           "cs_1",
		Subscription: &stripe.Subscription{ID: "sub_1"},
	})

	err := svc.HandleEvent(context.Background(), event)
	if err == nil {
		t.Fatalf("expected snapshot fetch failure to propagate")
	}
	if !pkgerrors.Retryable(err) {
		t.Fatalf("expected snapshot fetch failure to be retryable")
	}
}

func TestService_SubscriptionCreatedUnresolvedPersistsUnlinked(t *testing.T) {
	recorderStub := &stubRecorder{}
	svc := newTestService(t, &stubCorrelator{}, &stubProvisioner{}, recorderStub, &stubFetcher{})

	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionCreated, &stripe.Subscription{
		ID:       "sub_orphan",
		Status:   stripe.SubscriptionStatusActive,
		Customer: &stripe.Customer{ID: "cus_orphan"},
	})

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(recorderStub.calls) != 1 {
		t.Fatalf("expected unlinked subscription to be recorded")
	}
	if recorderStub.calls[0].userID != nil {
		t.Fatalf("expected nil user id on unresolved identity")
	}
}

func TestService_SubscriptionLifecycleRecordsWithoutProvisioning(t *testing.T) {
	provisionerStub := &stubProvisioner{}
	recorderStub := &stubRecorder{}
	svc := newTestService(t, &stubCorrelator{}, provisionerStub, recorderStub, &stubFetcher{})

	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionDeleted, &stripe.Subscription{
		ID:       "sub_gone",
		Status:   stripe.SubscriptionStatusCanceled,
		Customer: &stripe.Customer{ID: "cus_1"},
	})

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(provisionerStub.calls) != 0 {
		t.Fatalf("lifecycle events must not provision identities")
	}
	if len(recorderStub.calls) != 1 {
		t.Fatalf("expected lifecycle event recorded")
	}
	if recorderStub.calls[0].snap.Status != enums.SubscriptionStatusCanceled {
		t.Fatalf("expected canceled status, got %s", recorderStub.calls[0].snap.Status)
	}
}

func TestService_MalformedNestedPayloadIsDropped(t *testing.T) {
	recorderStub := &stubRecorder{}
	svc := newTestService(t, &stubCorrelator{}, &stubProvisioner{}, recorderStub, &stubFetcher{})

	event := &stripe.Event{
		ID:   "evt_bad",
		Type: stripe.EventTypeCustomerSubscriptionCreated,
		Data: &stripe.EventData{Raw: []byte(`{"id":`)},
	}

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("expected malformed payload to be acknowledged, got %v", err)
	}
	if len(recorderStub.calls) != 0 {
		t.Fatalf("expected no ledger write for malformed payload")
	}
}

func TestService_UnknownEventTypeIsIgnored(t *testing.T) {
	recorderStub := &stubRecorder{}
	svc := newTestService(t, &stubCorrelator{}, &stubProvisioner{}, recorderStub, &stubFetcher{})

	event := &stripe.Event{
		ID:   "evt_other",
		Type: stripe.EventType("invoice.paid"),
		Data: &stripe.EventData{Raw: []byte(`{}`)},
	}

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unknown event should be acknowledged, got %v", err)
	}
	if len(recorderStub.calls) != 0 {
		t.Fatalf("unknown event should not touch the ledger")
	}
}

func TestService_RecorderFailurePropagatesRetryable(t *testing.T) {
	recorderStub := &stubRecorder{err: pkgerrors.New(pkgerrors.CodeDependency, "db down")}
	svc := newTestService(t, &stubCorrelator{}, &stubProvisioner{}, recorderStub, &stubFetcher{})

	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, &stripe.Subscription{
		ID:     "sub_1",
		Status: stripe.SubscriptionStatusActive,
	})

	err := svc.HandleEvent(context.Background(), event)
	if err == nil {
		t.Fatalf("expected storage failure to propagate")
	}
	if !pkgerrors.Retryable(err) {
		t.Fatalf("expected storage failure to be retryable")
	}
}

package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/tmarchetti/brickfolio-backend/pkg/errors"
	"github.com/tmarchetti/brickfolio-backend/pkg/types"
)

type stubVerifier struct {
	err error
}

func (s *stubVerifier) Verify(payload []byte, header string) error {
	return s.err
}

type stubGuard struct {
	seen    bool
	marks   []string
	deletes []string
}

func (s *stubGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	s.marks = append(s.marks, eventID)
	return s.seen, nil
}

func (s *stubGuard) Delete(ctx context.Context, eventID string) error {
	s.deletes = append(s.deletes, eventID)
	return nil
}

type stubWebhookService struct {
	err    error
	events []*stripe.Event
}

func (s *stubWebhookService) HandleEvent(ctx context.Context, event *stripe.Event) error {
	s.events = append(s.events, event)
	return s.err
}

func postEvent(t *testing.T, handler http.HandlerFunc, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(body))
	req.Header.Set("Stripe-Signature", "t=1,v1=sig")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func eventBody(t *testing.T, id string) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":   id,
		"type": "customer.subscription.updated",
		"data": map[string]any{"object": map[string]any{"id": "sub_1", "status": "active"}},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return raw
}

func TestStripeWebhook_InvalidSignatureIs401(t *testing.T) {
	svc := &stubWebhookService{}
	guard := &stubGuard{}
	handler := StripeWebhook(svc, &stubVerifier{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "signature mismatch")}, guard, nil)

	w := postEvent(t, handler, eventBody(t, "evt_1"))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if len(svc.events) != 0 {
		t.Fatalf("unverified payload must never reach the service")
	}
	if len(guard.marks) != 0 {
		t.Fatalf("unverified payload must never touch the guard")
	}
}

func TestStripeWebhook_ValidEventIsProcessed(t *testing.T) {
	svc := &stubWebhookService{}
	guard := &stubGuard{}
	handler := StripeWebhook(svc, &stubVerifier{}, guard, nil)

	w := postEvent(t, handler, eventBody(t, "evt_1"))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(svc.events) != 1 || svc.events[0].ID != "evt_1" {
		t.Fatalf("expected event delivered to the service")
	}
	if len(guard.marks) != 1 || guard.marks[0] != "evt_1" {
		t.Fatalf("expected event marked in the guard")
	}
}

func TestStripeWebhook_DuplicateEventShortCircuits(t *testing.T) {
	svc := &stubWebhookService{}
	guard := &stubGuard{seen: true}
	handler := StripeWebhook(svc, &stubVerifier{}, guard, nil)

	w := postEvent(t, handler, eventBody(t, "evt_1"))

	if w.Code != http.StatusOK {
		t.Fatalf("duplicate must still be acknowledged, got %d", w.Code)
	}
	if len(svc.events) != 0 {
		t.Fatalf("duplicate must not be reprocessed")
	}
}

func TestStripeWebhook_MalformedAuthenticatedPayloadIsAcknowledged(t *testing.T) {
	svc := &stubWebhookService{}
	guard := &stubGuard{}
	handler := StripeWebhook(svc, &stubVerifier{}, guard, nil)

	w := postEvent(t, handler, []byte(`{"id":`))

	if w.Code != http.StatusOK {
		t.Fatalf("authenticated junk is acknowledged, got %d", w.Code)
	}
	if len(svc.events) != 0 || len(guard.marks) != 0 {
		t.Fatalf("malformed payload must not be processed")
	}
}

func TestStripeWebhook_DependencyFailureReleasesGuardAnd503s(t *testing.T) {
	svc := &stubWebhookService{err: pkgerrors.New(pkgerrors.CodeDependency, "db down")}
	guard := &stubGuard{}
	handler := StripeWebhook(svc, &stubVerifier{}, guard, nil)

	w := postEvent(t, handler, eventBody(t, "evt_1"))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 so the provider redelivers, got %d", w.Code)
	}
	if len(guard.deletes) != 1 || guard.deletes[0] != "evt_1" {
		t.Fatalf("expected guard released for redelivery")
	}

	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeDependency) {
		t.Fatalf("unexpected error code %s", body.Error.Code)
	}
}

package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/tmarchetti/brickfolio-backend/api/responses"
	pkgerrors "github.com/tmarchetti/brickfolio-backend/pkg/errors"
	"github.com/tmarchetti/brickfolio-backend/pkg/logger"
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeSignatureVerifier interface {
	Verify(payload []byte, header string) error
}

type stripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// StripeWebhook receives Stripe subscription lifecycle events. Signature
// verification runs over the raw request bytes before any JSON decoding.
func StripeWebhook(svc StripeWebhookService, verifier stripeSignatureVerifier, guard stripeWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "signature verifier unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if err := verifier.Verify(payload, r.Header.Get("Stripe-Signature")); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var event stripe.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			// Authenticated but unparseable: acknowledge so Stripe does not
			// redeliver a payload that will never decode.
			if logg != nil {
				eventCtx := logg.WithFields(ctx, map[string]any{"error": err.Error()})
				logg.Warn(eventCtx, "stripe.webhook.malformed_payload")
			}
			responses.WriteSuccess(w, nil)
			return
		}

		if logg != nil {
			ctx = logg.WithEventID(ctx, event.ID)
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			responses.WriteSuccess(w, nil)
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			// Release the guard so the redelivered event gets another run.
			_ = guard.Delete(ctx, event.ID)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}

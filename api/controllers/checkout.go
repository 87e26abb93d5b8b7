package controllers

import (
	"context"
	"net/http"

	"github.com/tmarchetti/brickfolio-backend/api/responses"
	"github.com/tmarchetti/brickfolio-backend/api/validators"
	"github.com/tmarchetti/brickfolio-backend/internal/checkout"
	pkgerrors "github.com/tmarchetti/brickfolio-backend/pkg/errors"
	"github.com/tmarchetti/brickfolio-backend/pkg/logger"
)

type checkoutService interface {
	Start(ctx context.Context, req checkout.StartRequest) (*checkout.Session, error)
}

// StartCheckout creates a Stripe Checkout session stamped with the
// correlation metadata the webhook pipeline resolves later.
func StartCheckout(svc checkoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var req checkout.StartRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		session, err := svc.Start(ctx, req)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

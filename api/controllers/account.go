package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/tmarchetti/brickfolio-backend/api/middleware"
	"github.com/tmarchetti/brickfolio-backend/api/responses"
	"github.com/tmarchetti/brickfolio-backend/internal/account"
	pkgerrors "github.com/tmarchetti/brickfolio-backend/pkg/errors"
	"github.com/tmarchetti/brickfolio-backend/pkg/logger"
)

type accountService interface {
	Subscription(ctx context.Context, userID uuid.UUID) (*account.SubscriptionView, error)
	Delete(ctx context.Context, userID uuid.UUID) error
}

// AccountSubscription returns the caller's subscription record, if any.
func AccountSubscription(svc accountService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "account service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(ctx)
		if userID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		view, err := svc.Subscription(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

// AccountDelete tears down the caller's account: subscription record,
// profile, then the identity itself.
func AccountDelete(svc accountService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "account service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(ctx)
		if userID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		if err := svc.Delete(ctx, userID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

package controllers

import (
	"net/http"

	"github.com/tmarchetti/brickfolio-backend/api/responses"
	"github.com/tmarchetti/brickfolio-backend/api/validators"
	"github.com/tmarchetti/brickfolio-backend/internal/auth"
	pkgerrors "github.com/tmarchetti/brickfolio-backend/pkg/errors"
	"github.com/tmarchetti/brickfolio-backend/pkg/logger"
)

// Login authenticates the pre-payment credentials. The post-checkout poller
// hits this endpoint repeatedly, so a not-yet-provisioned identity is an
// ordinary 401, not an anomaly worth an error log.
func Login(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var req auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Login(ctx, req)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

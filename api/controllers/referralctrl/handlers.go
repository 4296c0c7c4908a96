package referralctrl

import (
	"net/http"

	"github.com/sevakart/sevakart-backend/api/middleware"
	"github.com/sevakart/sevakart-backend/api/responses"
	"github.com/sevakart/sevakart-backend/api/validators"
	"github.com/sevakart/sevakart-backend/internal/referral"
	"github.com/sevakart/sevakart-backend/pkg/logger"
)

type applyRequest struct {
	Code string `json:"code" validate:"required,min=4,max=20"`
}

// Apply redeems a referral code for the caller and pays both sides their
// bonus coins.
func Apply(svc referral.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body applyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Apply(r.Context(), middleware.UserIDFromContext(r.Context()), body.Code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, record)
	}
}

// Stats returns how many signups the caller has referred and the coins
// earned from them.
func Stats(svc referral.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.StatsByReferrer(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

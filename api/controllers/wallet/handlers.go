package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sevakart/sevakart-backend/api/middleware"
	"github.com/sevakart/sevakart-backend/api/responses"
	"github.com/sevakart/sevakart-backend/api/validators"
	"github.com/sevakart/sevakart-backend/internal/ledger"
	"github.com/sevakart/sevakart-backend/internal/wallet"
	"github.com/sevakart/sevakart-backend/pkg/db/models"
	"github.com/sevakart/sevakart-backend/pkg/enums"
	pkgerrors "github.com/sevakart/sevakart-backend/pkg/errors"
	"github.com/sevakart/sevakart-backend/pkg/logger"
	"github.com/sevakart/sevakart-backend/pkg/types"
)

// GetBalance returns the caller's wallet balances.
func GetBalance(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		balances, err := svc.GetBalances(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balances)
	}
}

// ListTransactions returns the caller's paged ledger history with optional
// type/currency/source filters.
func ListTransactions(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter, err := parseFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		entries, meta, err := svc.ListTransactions(r.Context(), userID, filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"transactions": entries,
			"meta":         meta,
		})
	}
}

func parseFilter(r *http.Request) (ledger.ListFilter, error) {
	var filter ledger.ListFilter
	if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
		parsed, err := enums.ParseTransactionType(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type filter")
		}
		filter.Type = parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("currency")); raw != "" {
		parsed, err := enums.ParseWalletCurrency(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency filter")
		}
		filter.Currency = parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("source")); raw != "" {
		parsed, err := enums.ParseTransactionSource(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid source filter")
		}
		filter.Source = parsed
	}
	return filter, nil
}

type mutationRequest struct {
	UserID   string        `json:"user_id" validate:"required,uuid"`
	Amount   string        `json:"amount" validate:"required"`
	Currency string        `json:"currency" validate:"required"`
	Source   string        `json:"source" validate:"required"`
	Metadata types.JSONMap `json:"metadata,omitempty"`
}

func (m mutationRequest) toInput() (wallet.MutationInput, error) {
	var input wallet.MutationInput

	userID, err := validators.ParsePathUUID(m.UserID, "user_id")
	if err != nil {
		return input, err
	}
	amount, err := decimal.NewFromString(m.Amount)
	if err != nil {
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount")
	}
	currency, err := enums.ParseWalletCurrency(m.Currency)
	if err != nil {
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency")
	}
	source, err := enums.ParseTransactionSource(m.Source)
	if err != nil {
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid source")
	}

	input.UserID = userID
	input.Amount = amount
	input.Currency = currency
	input.Source = source
	if m.Metadata != nil {
		metadata, err := json.Marshal(m.Metadata)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid metadata")
		}
		input.Metadata = metadata
	}
	return input, nil
}

// Credit applies an operator credit to a wallet.
func Credit(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return mutate(svc.Credit, logg)
}

// Debit applies an operator debit to a wallet.
func Debit(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return mutate(svc.Debit, logg)
}

func mutate(op func(ctx context.Context, input wallet.MutationInput) (*models.WalletTransaction, error), logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body mutationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := op(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

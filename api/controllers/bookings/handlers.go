package bookings

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sevakart/sevakart-backend/api/middleware"
	"github.com/sevakart/sevakart-backend/api/responses"
	"github.com/sevakart/sevakart-backend/api/validators"
	"github.com/sevakart/sevakart-backend/internal/bookings"
	"github.com/sevakart/sevakart-backend/pkg/enums"
	pkgerrors "github.com/sevakart/sevakart-backend/pkg/errors"
	"github.com/sevakart/sevakart-backend/pkg/logger"
)

type createBookingRequest struct {
	PurohitID      *string `json:"purohit_id,omitempty" validate:"omitempty,uuid"`
	EventID        *string `json:"event_id,omitempty" validate:"omitempty,uuid"`
	Date           string  `json:"date" validate:"required"`
	TimeSlot       string  `json:"time_slot" validate:"required,max=50"`
	IsGroupBooking bool    `json:"is_group_booking"`
	GroupSize      *int    `json:"group_size,omitempty"`
	TotalAmount    string  `json:"total_amount" validate:"required"`
	Notes          *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

func (req createBookingRequest) toInput(userID uuid.UUID) (bookings.CreateBookingInput, error) {
	input := bookings.CreateBookingInput{
		UserID:         userID,
		TimeSlot:       req.TimeSlot,
		IsGroupBooking: req.IsGroupBooking,
		GroupSize:      req.GroupSize,
		Notes:          req.Notes,
	}

	date, err := time.Parse(time.RFC3339, req.Date)
	if err != nil {
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid date")
	}
	input.Date = date

	amount, err := decimal.NewFromString(req.TotalAmount)
	if err != nil {
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid total amount")
	}
	input.TotalAmount = amount

	if req.PurohitID != nil {
		id, err := validators.ParsePathUUID(*req.PurohitID, "purohit_id")
		if err != nil {
			return input, err
		}
		input.PurohitID = &id
	}
	if req.EventID != nil {
		id, err := validators.ParsePathUUID(*req.EventID, "event_id")
		if err != nil {
			return input, err
		}
		input.EventID = &id
	}
	return input, nil
}

// Create schedules a booking for the caller.
func Create(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createBookingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := body.toInput(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		booking, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, booking)
	}
}

// Get returns one of the caller's bookings.
func Get(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookingID, err := validators.ParsePathUUID(chi.URLParam(r, "bookingID"), "bookingID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		booking, err := svc.Get(r.Context(), middleware.UserIDFromContext(r.Context()), bookingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, booking)
	}
}

// List returns the caller's paged booking history.
func List(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bookingList, meta, err := svc.ListByUser(r.Context(), middleware.UserIDFromContext(r.Context()), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"bookings": bookingList,
			"meta":     meta,
		})
	}
}

// Cancel cancels one of the caller's bookings, subject to the cutoff window.
func Cancel(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookingID, err := validators.ParsePathUUID(chi.URLParam(r, "bookingID"), "bookingID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		booking, err := svc.Cancel(r.Context(), middleware.UserIDFromContext(r.Context()), bookingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, booking)
	}
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateStatus moves a booking through its lifecycle. Operator only.
func UpdateStatus(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookingID, err := validators.ParsePathUUID(chi.URLParam(r, "bookingID"), "bookingID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body updateStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseBookingStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		booking, err := svc.UpdateStatus(r.Context(), bookingID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, booking)
	}
}

type applyPaymentRequest struct {
	Amount    string  `json:"amount" validate:"required"`
	Reference *string `json:"reference,omitempty" validate:"omitempty,max=120"`
}

// ApplyPayment records a captured payment against a booking. Operator only.
func ApplyPayment(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookingID, err := validators.ParsePathUUID(chi.URLParam(r, "bookingID"), "bookingID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body applyPaymentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := decimal.NewFromString(body.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
			return
		}

		booking, err := svc.ApplyPayment(r.Context(), bookingID, amount, body.Reference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, booking)
	}
}

// RecalculatePayments rebuilds a booking's payment fields from its settled
// payment records.
func RecalculatePayments(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookingID, err := validators.ParsePathUUID(chi.URLParam(r, "bookingID"), "bookingID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		booking, err := svc.RecalculatePaymentStatus(r.Context(), bookingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, booking)
	}
}

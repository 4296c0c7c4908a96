package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sevakart/sevakart-backend/internal/orders"
	dbpkg "github.com/sevakart/sevakart-backend/pkg/db"
	"github.com/sevakart/sevakart-backend/pkg/db/models"
	"github.com/sevakart/sevakart-backend/pkg/enums"
	pkgerrors "github.com/sevakart/sevakart-backend/pkg/errors"
	"github.com/sevakart/sevakart-backend/pkg/logger"
	"github.com/sevakart/sevakart-backend/pkg/pagination"
)

// cancelCutoff is how close to the slot a booking can still be cancelled.
const cancelCutoff = 24 * time.Hour

const maxGroupSize = 500

// Service schedules purohit and event bookings.
type Service interface {
	Create(ctx context.Context, input CreateBookingInput) (*models.Booking, error)
	Get(ctx context.Context, userID, bookingID uuid.UUID) (*models.Booking, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Booking, pagination.Meta, error)
	Cancel(ctx context.Context, userID, bookingID uuid.UUID) (*models.Booking, error)
	UpdateStatus(ctx context.Context, bookingID uuid.UUID, status enums.BookingStatus) (*models.Booking, error)
	ApplyPayment(ctx context.Context, bookingID uuid.UUID, amount decimal.Decimal, reference *string) (*models.Booking, error)
	RecalculatePaymentStatus(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error)
}

// PaymentsReader totals settled payments held by a remote payments service.
// When absent, reconciliation sums the locally stored payment records.
type PaymentsReader interface {
	SumPaidByBooking(ctx context.Context, bookingID uuid.UUID) (decimal.Decimal, error)
}

// CreateBookingInput captures the schedulable request.
type CreateBookingInput struct {
	UserID         uuid.UUID
	PurohitID      *uuid.UUID
	EventID        *uuid.UUID
	Date           time.Time
	TimeSlot       string
	IsGroupBooking bool
	GroupSize      *int
	TotalAmount    decimal.Decimal
	Notes          *string
}

type service struct {
	repo     Repository
	payments PaymentsReader
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires the bookings service. The payments reader is optional.
func NewService(repo Repository, payments PaymentsReader, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("bookings repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, payments: payments, logg: logg, now: time.Now}, nil
}

func (s *service) Create(ctx context.Context, input CreateBookingInput) (*models.Booking, error) {
	if err := s.validateCreate(input); err != nil {
		return nil, err
	}

	if input.PurohitID != nil {
		collisions, err := s.repo.CountSlotCollisions(ctx, *input.PurohitID, input.Date, input.TimeSlot)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking slot availability")
		}
		if collisions > 0 {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "time slot already booked")
		}
	}

	booking := &models.Booking{
		ID:             uuid.New(),
		UserID:         input.UserID,
		PurohitID:      input.PurohitID,
		EventID:        input.EventID,
		Date:           input.Date,
		TimeSlot:       input.TimeSlot,
		IsGroupBooking: input.IsGroupBooking,
		GroupSize:      input.GroupSize,
		Status:         enums.BookingStatusPending,
		PaymentStatus:  orders.CalculatePaymentStatus(input.TotalAmount, decimal.Zero),
		TotalAmount:    input.TotalAmount,
		PaidAmount:     decimal.Zero,
		DueAmount:      input.TotalAmount,
		Notes:          input.Notes,
	}
	if err := s.repo.Create(ctx, booking); err != nil {
		// Race lost to a concurrent booking on the same slot.
		if dbpkg.IsUniqueViolation(err, "ux_bookings_purohit_slot") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "time slot already booked")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting booking")
	}
	return booking, nil
}

func (s *service) validateCreate(input CreateBookingInput) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.PurohitID == nil && input.EventID == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "a purohit or an event is required")
	}
	if input.TimeSlot == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "time slot is required")
	}
	if !input.Date.After(s.now()) {
		return pkgerrors.New(pkgerrors.CodeValidation, "booking date must be in the future")
	}
	if input.TotalAmount.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount cannot be negative")
	}
	if input.IsGroupBooking {
		if input.GroupSize == nil || *input.GroupSize < 2 {
			return pkgerrors.New(pkgerrors.CodeValidation, "group bookings need a group size of at least 2")
		}
		if *input.GroupSize > maxGroupSize {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("group size cannot exceed %d", maxGroupSize))
		}
	} else if input.GroupSize != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "group size is only valid for group bookings")
	}
	return nil
}

func (s *service) Get(ctx context.Context, userID, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := s.fetch(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
	}
	return booking, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Booking, pagination.Meta, error) {
	if userID == uuid.Nil {
		return nil, pagination.Meta{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	bookings, total, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, pagination.Meta{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing bookings")
	}
	return bookings, pagination.BuildMeta(params, total), nil
}

// Cancel rejects cancellations inside the cutoff window before the slot.
func (s *service) Cancel(ctx context.Context, userID, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := s.Get(ctx, userID, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status == enums.BookingStatusCancelled || booking.Status == enums.BookingStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("booking in status %q cannot be cancelled", booking.Status))
	}
	if s.now().Add(cancelCutoff).After(booking.Date) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "bookings can only be cancelled at least 24 hours before the slot")
	}

	now := s.now()
	if err := s.repo.UpdateStatus(ctx, booking.ID, enums.BookingStatusCancelled, &now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marking booking cancelled")
	}
	booking.Status = enums.BookingStatusCancelled
	booking.CancelledAt = &now
	return booking, nil
}

// UpdateStatus is the operator path. Pending bookings confirm or cancel,
// confirmed ones complete or cancel.
func (s *service) UpdateStatus(ctx context.Context, bookingID uuid.UUID, status enums.BookingStatus) (*models.Booking, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid booking status %q", status))
	}
	booking, err := s.fetch(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !canTransition(booking.Status, status) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move booking from %q to %q", booking.Status, status))
	}

	var cancelledAt *time.Time
	if status == enums.BookingStatusCancelled {
		now := s.now()
		cancelledAt = &now
	}
	if err := s.repo.UpdateStatus(ctx, booking.ID, status, cancelledAt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating booking status")
	}
	booking.Status = status
	booking.CancelledAt = cancelledAt
	return booking, nil
}

func canTransition(from, to enums.BookingStatus) bool {
	switch from {
	case enums.BookingStatusPending:
		return to == enums.BookingStatusConfirmed || to == enums.BookingStatusCancelled
	case enums.BookingStatusConfirmed:
		return to == enums.BookingStatusCompleted || to == enums.BookingStatusCancelled
	default:
		return false
	}
}

// ApplyPayment records a captured payment and recomputes the derived fields.
func (s *service) ApplyPayment(ctx context.Context, bookingID uuid.UUID, amount decimal.Decimal, reference *string) (*models.Booking, error) {
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	booking, err := s.fetch(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status == enums.BookingStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cannot pay a cancelled booking")
	}

	newPaid := booking.PaidAmount.Add(amount)
	newDue := booking.TotalAmount.Sub(newPaid)
	if newDue.IsNegative() {
		newDue = decimal.Zero
	}
	status := orders.CalculatePaymentStatus(booking.TotalAmount, newPaid)

	if err := s.repo.CreatePaymentRecord(ctx, &models.PaymentRecord{
		BookingID: &booking.ID,
		Amount:    amount,
		// Each record carries its own settlement status, not the
		// booking-level aggregate, so reconciliation can sum them.
		Status:    enums.OrderPaymentStatusPaid,
		Reference: reference,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording payment")
	}
	if err := s.repo.UpdatePayment(ctx, booking.ID, newPaid.StringFixed(2), newDue.StringFixed(2), status); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating booking payment")
	}

	booking.PaidAmount = newPaid
	booking.DueAmount = newDue
	booking.PaymentStatus = status
	return booking, nil
}

// RecalculatePaymentStatus rebuilds the derived payment fields from the
// settled payment records, overwriting whatever the booking currently carries.
func (s *service) RecalculatePaymentStatus(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := s.fetch(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.PaymentStatus == enums.OrderPaymentStatusRefunded {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "refunded bookings are not recalculated")
	}

	paid, err := s.sumSettled(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	due := booking.TotalAmount.Sub(paid)
	if due.IsNegative() {
		due = decimal.Zero
	}
	status := orders.CalculatePaymentStatus(booking.TotalAmount, paid)

	if err := s.repo.UpdatePayment(ctx, booking.ID, paid.StringFixed(2), due.StringFixed(2), status); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating booking payment")
	}

	booking.PaidAmount = paid
	booking.DueAmount = due
	booking.PaymentStatus = status
	return booking, nil
}

func (s *service) sumSettled(ctx context.Context, bookingID uuid.UUID) (decimal.Decimal, error) {
	if s.payments != nil {
		return s.payments.SumPaidByBooking(ctx, bookingID)
	}
	records, err := s.repo.ListPaidRecords(ctx, bookingID)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing payment records")
	}
	total := decimal.Zero
	for _, record := range records {
		total = total.Add(record.Amount)
	}
	return total, nil
}

func (s *service) fetch(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	if bookingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id is required")
	}
	booking, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fetching booking")
	}
	return booking, nil
}

package bookings

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sevakart/sevakart-backend/pkg/enums"
	pkgerrors "github.com/sevakart/sevakart-backend/pkg/errors"
	"github.com/sevakart/sevakart-backend/pkg/logger"
	"github.com/sevakart/sevakart-backend/pkg/pagination"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:bookings_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	stmts := []string{
		`CREATE TABLE bookings (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			purohit_id TEXT,
			event_id TEXT,
			date DATETIME NOT NULL,
			time_slot TEXT NOT NULL,
			is_group_booking INTEGER NOT NULL DEFAULT 0,
			group_size INTEGER,
			status TEXT NOT NULL DEFAULT 'pending',
			payment_status TEXT NOT NULL DEFAULT 'pending',
			total_amount NUMERIC NOT NULL,
			paid_amount NUMERIC NOT NULL DEFAULT 0,
			due_amount NUMERIC NOT NULL,
			notes TEXT,
			cancelled_at DATETIME,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE payment_records (
			id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
			order_id TEXT,
			booking_id TEXT,
			amount NUMERIC NOT NULL,
			status TEXT NOT NULL,
			reference TEXT,
			created_at DATETIME
		)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB, now time.Time) *service {
	t.Helper()
	svc, err := NewService(NewRepository(db), nil, logger.New(logger.Options{ServiceName: "bookings-test", Output: io.Discard}))
	if err != nil {
		t.Fatalf("bookings service: %v", err)
	}
	impl := svc.(*service)
	impl.now = func() time.Time { return now }
	return impl
}

func validInput(userID uuid.UUID, date time.Time) CreateBookingInput {
	purohitID := uuid.New()
	return CreateBookingInput{
		UserID:      userID,
		PurohitID:   &purohitID,
		Date:        date,
		TimeSlot:    "morning",
		TotalAmount: decimal.RequireFromString("1500.00"),
	}
}

func TestCreateBooking(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	db := newTestDB(t)
	svc := newTestService(t, db, now)
	ctx := context.Background()

	booking, err := svc.Create(ctx, validInput(uuid.New(), now.AddDate(0, 0, 7)))
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	if booking.Status != enums.BookingStatusPending {
		t.Fatalf("status = %q, want pending", booking.Status)
	}
	if booking.PaymentStatus != enums.OrderPaymentStatusPending {
		t.Fatalf("payment status = %q, want pending", booking.PaymentStatus)
	}
	if !booking.DueAmount.Equal(booking.TotalAmount) {
		t.Fatalf("due = %s, want %s", booking.DueAmount, booking.TotalAmount)
	}
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	db := newTestDB(t)
	svc := newTestService(t, db, now)
	ctx := context.Background()
	userID := uuid.New()
	future := now.AddDate(0, 0, 7)

	two := 2
	one := 1
	cases := []struct {
		name  string
		input CreateBookingInput
	}{
		{"past date", validInput(userID, now.AddDate(0, 0, -1))},
		{"missing user", func() CreateBookingInput {
			in := validInput(uuid.Nil, future)
			return in
		}()},
		{"missing slot", func() CreateBookingInput {
			in := validInput(userID, future)
			in.TimeSlot = ""
			return in
		}()},
		{"no purohit or event", func() CreateBookingInput {
			in := validInput(userID, future)
			in.PurohitID = nil
			return in
		}()},
		{"group booking too small", func() CreateBookingInput {
			in := validInput(userID, future)
			in.IsGroupBooking = true
			in.GroupSize = &one
			return in
		}()},
		{"group size without group flag", func() CreateBookingInput {
			in := validInput(userID, future)
			in.GroupSize = &two
			return in
		}()},
	}
	for _, tc := range cases {
		if _, err := svc.Create(ctx, tc.input); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Errorf("%s: err = %v, want validation", tc.name, err)
		}
	}
}

func TestCreateSlotCollision(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	db := newTestDB(t)
	svc := newTestService(t, db, now)
	ctx := context.Background()

	input := validInput(uuid.New(), now.AddDate(0, 0, 7))
	if _, err := svc.Create(ctx, input); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	// Same purohit, date and slot, different user.
	input.UserID = uuid.New()
	if _, err := svc.Create(ctx, input); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}

	// A cancelled booking frees the slot.
	input.TimeSlot = "evening"
	evening, err := svc.Create(ctx, input)
	if err != nil {
		t.Fatalf("evening booking: %v", err)
	}
	if _, err := svc.Cancel(ctx, input.UserID, evening.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := svc.Create(ctx, input); err != nil {
		t.Fatalf("rebooking freed slot: %v", err)
	}
}

func TestCancelCutoff(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	db := newTestDB(t)
	svc := newTestService(t, db, now)
	ctx := context.Background()
	userID := uuid.New()

	// 12 hours out: inside the cutoff, cancellation refused.
	soon, err := svc.Create(ctx, validInput(userID, now.Add(12*time.Hour)))
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	if _, err := svc.Cancel(ctx, userID, soon.ID); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("err = %v, want state conflict", err)
	}

	// 48 hours out: cancellable.
	later, err := svc.Create(ctx, validInput(userID, now.Add(48*time.Hour)))
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	cancelled, err := svc.Cancel(ctx, userID, later.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != enums.BookingStatusCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("cancelled = %q/%v, want cancelled with timestamp", cancelled.Status, cancelled.CancelledAt)
	}

	// Already cancelled.
	if _, err := svc.Cancel(ctx, userID, later.ID); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("double cancel err = %v, want state conflict", err)
	}
}

func TestUpdateStatusTransitions(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	db := newTestDB(t)
	svc := newTestService(t, db, now)
	ctx := context.Background()

	booking, err := svc.Create(ctx, validInput(uuid.New(), now.AddDate(0, 0, 7)))
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}

	if _, err := svc.UpdateStatus(ctx, booking.ID, enums.BookingStatusCompleted); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("pending->completed err = %v, want state conflict", err)
	}

	confirmed, err := svc.UpdateStatus(ctx, booking.ID, enums.BookingStatusConfirmed)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != enums.BookingStatusConfirmed {
		t.Fatalf("status = %q, want confirmed", confirmed.Status)
	}

	completed, err := svc.UpdateStatus(ctx, booking.ID, enums.BookingStatusCompleted)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != enums.BookingStatusCompleted {
		t.Fatalf("status = %q, want completed", completed.Status)
	}

	if _, err := svc.UpdateStatus(ctx, booking.ID, enums.BookingStatusCancelled); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("completed->cancelled err = %v, want state conflict", err)
	}
}

func TestApplyPaymentProgression(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	db := newTestDB(t)
	svc := newTestService(t, db, now)
	ctx := context.Background()

	booking, err := svc.Create(ctx, validInput(uuid.New(), now.AddDate(0, 0, 7)))
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}

	partial, err := svc.ApplyPayment(ctx, booking.ID, decimal.RequireFromString("500.00"), nil)
	if err != nil {
		t.Fatalf("partial payment: %v", err)
	}
	if partial.PaymentStatus != enums.OrderPaymentStatusPartiallyPaid {
		t.Fatalf("payment status = %q, want partially_paid", partial.PaymentStatus)
	}
	if !partial.DueAmount.Equal(decimal.RequireFromString("1000.00")) {
		t.Fatalf("due = %s, want 1000.00", partial.DueAmount)
	}

	full, err := svc.ApplyPayment(ctx, booking.ID, decimal.RequireFromString("1000.00"), nil)
	if err != nil {
		t.Fatalf("final payment: %v", err)
	}
	if full.PaymentStatus != enums.OrderPaymentStatusPaid || !full.DueAmount.IsZero() {
		t.Fatalf("payment = %q due %s, want paid/0", full.PaymentStatus, full.DueAmount)
	}

	var records int64
	if err := db.Raw("SELECT COUNT(*) FROM payment_records WHERE booking_id = ?", booking.ID).Scan(&records).Error; err != nil {
		t.Fatalf("count payment records: %v", err)
	}
	if records != 2 {
		t.Fatalf("payment records = %d, want 2", records)
	}
	var settled int64
	if err := db.Raw("SELECT COUNT(*) FROM payment_records WHERE booking_id = ? AND status = 'paid'", booking.ID).Scan(&settled).Error; err != nil {
		t.Fatalf("count settled records: %v", err)
	}
	if settled != 2 {
		t.Fatalf("settled records = %d, want 2; each record carries its own settlement status", settled)
	}
}

func TestRecalculatePaymentStatusFromRecords(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	db := newTestDB(t)
	svc := newTestService(t, db, now)
	ctx := context.Background()

	booking, err := svc.Create(ctx, validInput(uuid.New(), now.AddDate(0, 0, 7)))
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	if _, err := svc.ApplyPayment(ctx, booking.ID, decimal.RequireFromString("500.00"), nil); err != nil {
		t.Fatalf("apply payment: %v", err)
	}
	// An unsettled record must not count towards the paid total.
	err = db.Exec(
		"INSERT INTO payment_records (booking_id, amount, status) VALUES (?, ?, 'pending')",
		booking.ID, "300.00",
	).Error
	if err != nil {
		t.Fatalf("seed pending record: %v", err)
	}
	// Drift the stored aggregate so recalculation has something to repair.
	err = db.Exec(
		"UPDATE bookings SET paid_amount = 0, due_amount = total_amount, payment_status = 'pending' WHERE id = ?",
		booking.ID,
	).Error
	if err != nil {
		t.Fatalf("drift booking: %v", err)
	}

	recalced, err := svc.RecalculatePaymentStatus(ctx, booking.ID)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if !recalced.PaidAmount.Equal(decimal.RequireFromString("500.00")) {
		t.Fatalf("paid = %s, want 500.00", recalced.PaidAmount)
	}
	if !recalced.DueAmount.Equal(decimal.RequireFromString("1000.00")) {
		t.Fatalf("due = %s, want 1000.00", recalced.DueAmount)
	}
	if recalced.PaymentStatus != enums.OrderPaymentStatusPartiallyPaid {
		t.Fatalf("payment status = %q, want partially_paid", recalced.PaymentStatus)
	}
}

type fixedPaymentsReader struct {
	total decimal.Decimal
}

func (r fixedPaymentsReader) SumPaidByBooking(context.Context, uuid.UUID) (decimal.Decimal, error) {
	return r.total, nil
}

func TestRecalculatePaymentStatusPrefersRemoteReader(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	db := newTestDB(t)
	svc := newTestService(t, db, now)
	svc.payments = fixedPaymentsReader{total: decimal.RequireFromString("1500.00")}
	ctx := context.Background()

	booking, err := svc.Create(ctx, validInput(uuid.New(), now.AddDate(0, 0, 7)))
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}

	// No local records exist; the remote total alone must settle the booking.
	recalced, err := svc.RecalculatePaymentStatus(ctx, booking.ID)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if recalced.PaymentStatus != enums.OrderPaymentStatusPaid {
		t.Fatalf("payment status = %q, want paid", recalced.PaymentStatus)
	}
	if !recalced.DueAmount.IsZero() {
		t.Fatalf("due = %s, want 0", recalced.DueAmount)
	}
}

func TestGetAndListScopedToUser(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	db := newTestDB(t)
	svc := newTestService(t, db, now)
	ctx := context.Background()

	owner := uuid.New()
	booking, err := svc.Create(ctx, validInput(owner, now.AddDate(0, 0, 7)))
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}

	if _, err := svc.Get(ctx, uuid.New(), booking.ID); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("stranger get err = %v, want not found", err)
	}

	bookings, meta, err := svc.ListByUser(ctx, owner, pagination.Params{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(bookings) != 1 || meta.Total != 1 {
		t.Fatalf("list = %d bookings (total %d), want 1", len(bookings), meta.Total)
	}
}

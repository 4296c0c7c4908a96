package bookings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sevakart/sevakart-backend/pkg/db/models"
	"github.com/sevakart/sevakart-backend/pkg/enums"
	"github.com/sevakart/sevakart-backend/pkg/pagination"
)

// Repository manages persistence for bookings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, booking *models.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Booking, int64, error)
	CountSlotCollisions(ctx context.Context, purohitID uuid.UUID, date time.Time, timeSlot string) (int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.BookingStatus, cancelledAt *time.Time) error
	UpdatePayment(ctx context.Context, id uuid.UUID, paid, due string, status enums.OrderPaymentStatus) error
	CreatePaymentRecord(ctx context.Context, record *models.PaymentRecord) error
	ListPaidRecords(ctx context.Context, bookingID uuid.UUID) ([]models.PaymentRecord, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a bookings repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).First(&booking, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Booking, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	normalized := params.Normalize()
	var bookings []models.Booking
	err := query.
		Order("date DESC").
		Limit(normalized.Limit).
		Offset(params.Offset()).
		Find(&bookings).Error
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// CountSlotCollisions counts live bookings holding the same purohit, date and
// time slot. The unique partial index backs this up under races.
func (r *repository) CountSlotCollisions(ctx context.Context, purohitID uuid.UUID, date time.Time, timeSlot string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("purohit_id = ? AND date = ? AND time_slot = ? AND status IN ?",
			purohitID, date, timeSlot,
			[]enums.BookingStatus{enums.BookingStatusPending, enums.BookingStatusConfirmed}).
		Count(&n).Error
	return n, err
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.BookingStatus, cancelledAt *time.Time) error {
	updates := map[string]any{"status": status}
	if cancelledAt != nil {
		updates["cancelled_at"] = *cancelledAt
	}
	return r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) UpdatePayment(ctx context.Context, id uuid.UUID, paid, due string, status enums.OrderPaymentStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"paid_amount":    paid,
			"due_amount":     due,
			"payment_status": status,
		}).Error
}

func (r *repository) CreatePaymentRecord(ctx context.Context, record *models.PaymentRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) ListPaidRecords(ctx context.Context, bookingID uuid.UUID) ([]models.PaymentRecord, error) {
	var records []models.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("booking_id = ? AND status = ?", bookingID, enums.OrderPaymentStatusPaid).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

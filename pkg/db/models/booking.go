package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sevakart/sevakart-backend/pkg/enums"
)

// Booking reserves a purohit or event time slot. Payment fields mirror Order.
type Booking struct {
	ID             uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	PurohitID      *uuid.UUID               `gorm:"column:purohit_id;type:uuid;index"`
	EventID        *uuid.UUID               `gorm:"column:event_id;type:uuid"`
	Date           time.Time                `gorm:"column:date;not null"`
	TimeSlot       string                   `gorm:"column:time_slot;type:text;not null"`
	IsGroupBooking bool                     `gorm:"column:is_group_booking;not null;default:false"`
	GroupSize      *int                     `gorm:"column:group_size"`
	Status         enums.BookingStatus      `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus  enums.OrderPaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	TotalAmount    decimal.Decimal          `gorm:"column:total_amount;type:numeric(14,2);not null"`
	PaidAmount     decimal.Decimal          `gorm:"column:paid_amount;type:numeric(14,2);not null;default:0"`
	DueAmount      decimal.Decimal          `gorm:"column:due_amount;type:numeric(14,2);not null"`
	Notes          *string                  `gorm:"column:notes"`
	CancelledAt    *time.Time               `gorm:"column:cancelled_at"`
	CreatedAt      time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

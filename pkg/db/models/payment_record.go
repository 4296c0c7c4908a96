package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sevakart/sevakart-backend/pkg/enums"
)

// PaymentRecord is one captured payment against an order or booking. Status
// is the per-record settlement state; the settled rows are summed when
// reconciling order/booking payment status.
type PaymentRecord struct {
	ID        uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   *uuid.UUID               `gorm:"column:order_id;type:uuid;index"`
	BookingID *uuid.UUID               `gorm:"column:booking_id;type:uuid;index"`
	Amount    decimal.Decimal          `gorm:"column:amount;type:numeric(14,2);not null"`
	Status    enums.OrderPaymentStatus `gorm:"column:status;type:text;not null"`
	Reference *string                  `gorm:"column:reference"`
	CreatedAt time.Time                `gorm:"column:created_at;autoCreateTime"`
}

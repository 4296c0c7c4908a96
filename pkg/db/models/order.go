package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sevakart/sevakart-backend/pkg/enums"
)

// Order is the persisted result of a successful checkout. The invariant
// due_amount = total_amount - paid_amount is recomputed on every persist.
type Order struct {
	ID              uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	Status          enums.OrderStatus        `gorm:"column:status;type:text;not null;default:'placed'"`
	PaymentStatus   enums.OrderPaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	TotalAmount     decimal.Decimal          `gorm:"column:total_amount;type:numeric(14,2);not null"`
	PaidAmount      decimal.Decimal          `gorm:"column:paid_amount;type:numeric(14,2);not null;default:0"`
	DueAmount       decimal.Decimal          `gorm:"column:due_amount;type:numeric(14,2);not null"`
	ShippingAddress *string                  `gorm:"column:shipping_address"`
	Items           []OrderItem              `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CancelledAt     *time.Time               `gorm:"column:cancelled_at"`
	CreatedAt       time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem snapshots one cart line at the price current when the order was
// placed.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	VariantID uuid.UUID       `gorm:"column:variant_id;type:uuid;not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(14,2);not null"`
	LineTotal decimal.Decimal `gorm:"column:line_total;type:numeric(14,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

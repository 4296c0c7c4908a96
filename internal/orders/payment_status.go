package orders

import (
	"github.com/shopspring/decimal"

	"github.com/sevakart/sevakart-backend/pkg/enums"
)

// CalculatePaymentStatus derives the payment status from the paid amount.
// Overpayment still reads as paid; refunds are handled separately.
func CalculatePaymentStatus(total, paid decimal.Decimal) enums.OrderPaymentStatus {
	switch {
	case paid.LessThanOrEqual(decimal.Zero):
		return enums.OrderPaymentStatusPending
	case paid.GreaterThanOrEqual(total):
		return enums.OrderPaymentStatusPaid
	default:
		return enums.OrderPaymentStatusPartiallyPaid
	}
}

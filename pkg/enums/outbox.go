package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder             OutboxAggregateType = "order"
	AggregateBooking           OutboxAggregateType = "booking"
	AggregateWalletTransaction OutboxAggregateType = "wallet_transaction"
	AggregateReferral          OutboxAggregateType = "referral"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateBooking,
	AggregateWalletTransaction,
	AggregateReferral,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated       OutboxEventType = "order_created"
	EventOrderCancelled     OutboxEventType = "order_cancelled"
	EventOrderStatusChanged OutboxEventType = "order_status_changed"
	EventBookingCreated     OutboxEventType = "booking_created"
	EventBookingCancelled   OutboxEventType = "booking_cancelled"
	EventWalletCredited     OutboxEventType = "wallet_credited"
	EventWalletDebited      OutboxEventType = "wallet_debited"
	EventWalletOrphanRisk   OutboxEventType = "wallet_orphan_risk"
	EventReferralApplied    OutboxEventType = "referral_applied"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderCancelled,
	EventOrderStatusChanged,
	EventBookingCreated,
	EventBookingCancelled,
	EventWalletCredited,
	EventWalletDebited,
	EventWalletOrphanRisk,
	EventReferralApplied,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

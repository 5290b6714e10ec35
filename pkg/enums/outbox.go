package enums

import "fmt"

// OutboxEventType maps to the event_type_enum enum in Postgres.
type OutboxEventType string

const (
	OutboxEventPayoutFailed       OutboxEventType = "payout.failed"
	OutboxEventVendorNotConnected OutboxEventType = "payout.vendor_not_connected"
	OutboxEventConfigurationError OutboxEventType = "config.invalid"
	OutboxEventOrderUnresolved    OutboxEventType = "order.unresolved"
)

var validOutboxEventTypes = []OutboxEventType{
	OutboxEventPayoutFailed,
	OutboxEventVendorNotConnected,
	OutboxEventConfigurationError,
	OutboxEventOrderUnresolved,
}

// IsValid reports whether the value is a known OutboxEventType.
func (t OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into an OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}

// OutboxAggregateType maps to the aggregate_type_enum enum in Postgres.
type OutboxAggregateType string

const (
	OutboxAggregateOrder  OutboxAggregateType = "order"
	OutboxAggregatePayout OutboxAggregateType = "payout"
)

var validOutboxAggregateTypes = []OutboxAggregateType{
	OutboxAggregateOrder,
	OutboxAggregatePayout,
}

// IsValid reports whether the value is a known OutboxAggregateType.
func (t OutboxAggregateType) IsValid() bool {
	for _, candidate := range validOutboxAggregateTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

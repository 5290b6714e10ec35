package enums

import "fmt"

// EventKind is the canonical classification of a provider webhook event.
type EventKind string

const (
	EventKindPaymentCompleted      EventKind = "payment_completed"
	EventKindPaymentFailed         EventKind = "payment_failed"
	EventKindPaymentRefunded       EventKind = "payment_refunded"
	EventKindSubscriptionActivated EventKind = "subscription_activated"
	EventKindSubscriptionCancelled EventKind = "subscription_cancelled"
	EventKindTransferCompleted     EventKind = "transfer_completed"
	EventKindTransferFailed        EventKind = "transfer_failed"
	// EventKindUnhandled marks event types this platform does not act on.
	// Providers add event types over time; unknown is accepted, not an error.
	EventKindUnhandled EventKind = "unhandled"
)

var validEventKinds = []EventKind{
	EventKindPaymentCompleted,
	EventKindPaymentFailed,
	EventKindPaymentRefunded,
	EventKindSubscriptionActivated,
	EventKindSubscriptionCancelled,
	EventKindTransferCompleted,
	EventKindTransferFailed,
	EventKindUnhandled,
}

// String implements fmt.Stringer.
func (k EventKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known EventKind.
func (k EventKind) IsValid() bool {
	for _, candidate := range validEventKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseEventKind converts raw input into an EventKind.
func ParseEventKind(value string) (EventKind, error) {
	for _, candidate := range validEventKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event kind %q", value)
}

package events

import (
	"time"

	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
)

// PaymentEvent is the canonical representation of one provider webhook
// notification. Provider-specific payload shapes never travel past the
// normalizer; everything downstream consumes this type.
type PaymentEvent struct {
	Provider        enums.Provider
	ExternalEventID string
	ExternalOrderID string
	Kind            enums.EventKind
	AmountMinor     int64
	// ProviderFeeMinor is the provider's own transaction charge when the
	// payload reports one (Paystack). Zero for providers that do not.
	ProviderFeeMinor int64
	Currency         enums.Currency
	RawPayload       []byte
	ReceivedAt       time.Time
}

// IsUnhandled reports whether the event carries an unrecognized provider
// event type. Unhandled events are recorded and acknowledged but never drive
// a state transition.
func (e PaymentEvent) IsUnhandled() bool {
	return e.Kind == enums.EventKindUnhandled
}

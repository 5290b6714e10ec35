package normalize

import (
	"encoding/json"
	"strings"

	"github.com/angelmondragon/vendorpay-backend/internal/events"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
)

// Offline confirmations are operator-submitted and already near-canonical.
// Amounts are minor units.
var offlineKinds = map[string]enums.EventKind{
	"payment_completed": enums.EventKindPaymentCompleted,
	"payment_failed":    enums.EventKindPaymentFailed,
	"payment_refunded":  enums.EventKindPaymentRefunded,
}

type offlinePayload struct {
	EventID     string `json:"event_id"`
	OrderID     string `json:"order_id"`
	Kind        string `json:"kind"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
}

func normalizeOffline(raw []byte) (*events.PaymentEvent, error) {
	var payload offlinePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errMalformed("offline", err.Error())
	}
	if strings.TrimSpace(payload.EventID) == "" {
		return nil, errMalformed("offline", "missing event_id")
	}
	if strings.TrimSpace(payload.OrderID) == "" {
		return nil, errMalformed("offline", "missing order_id")
	}

	kind, ok := offlineKinds[payload.Kind]
	if !ok {
		kind = enums.EventKindUnhandled
	}

	event := &events.PaymentEvent{
		ExternalEventID: payload.EventID,
		ExternalOrderID: payload.OrderID,
		Kind:            kind,
	}

	if kind != enums.EventKindUnhandled {
		currency, err := enums.ParseCurrency(payload.Currency)
		if err != nil {
			return nil, errMalformed("offline", err.Error())
		}
		event.Currency = currency
		event.AmountMinor = payload.AmountMinor
	}

	return event, nil
}

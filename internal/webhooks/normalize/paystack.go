package normalize

import (
	"encoding/json"
	"strings"

	"github.com/angelmondragon/vendorpay-backend/internal/events"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
)

// Paystack reports amounts in minor units (kobo/pesewas) already.
var paystackKinds = map[string]enums.EventKind{
	"charge.success":       enums.EventKindPaymentCompleted,
	"charge.failed":        enums.EventKindPaymentFailed,
	"refund.processed":     enums.EventKindPaymentRefunded,
	"subscription.create":  enums.EventKindSubscriptionActivated,
	"subscription.disable": enums.EventKindSubscriptionCancelled,
	"transfer.success":     enums.EventKindTransferCompleted,
	"transfer.failed":      enums.EventKindTransferFailed,
	"transfer.reversed":    enums.EventKindTransferFailed,
}

type paystackPayload struct {
	Event string `json:"event"`
	Data  struct {
		ID        json.Number `json:"id"`
		Reference string      `json:"reference"`
		Amount    int64       `json:"amount"`
		Fees      int64       `json:"fees"`
		Currency  string      `json:"currency"`
	} `json:"data"`
}

func normalizePaystack(raw []byte) (*events.PaymentEvent, error) {
	var payload paystackPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errMalformed("paystack", err.Error())
	}
	if payload.Data.ID.String() == "" {
		return nil, errMalformed("paystack", "missing data.id")
	}

	kind, ok := paystackKinds[payload.Event]
	if !ok {
		kind = enums.EventKindUnhandled
	}

	// Paystack has no global event id; the event name plus the object id is
	// unique per delivery and stable across redeliveries.
	event := &events.PaymentEvent{
		ExternalEventID: payload.Event + ":" + payload.Data.ID.String(),
		ExternalOrderID: payload.Data.Reference,
		Kind:            kind,
	}

	if kind != enums.EventKindUnhandled {
		currency, err := enums.ParseCurrency(payload.Data.Currency)
		if err != nil {
			return nil, errMalformed("paystack", err.Error())
		}
		event.Currency = currency
		event.AmountMinor = payload.Data.Amount
		event.ProviderFeeMinor = payload.Data.Fees
	}

	if strings.TrimSpace(event.ExternalOrderID) == "" && kind != enums.EventKindUnhandled {
		return nil, errMalformed("paystack", "missing reference")
	}

	return event, nil
}

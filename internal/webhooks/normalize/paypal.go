package normalize

import (
	"encoding/json"
	"strings"

	"github.com/angelmondragon/vendorpay-backend/internal/events"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	"github.com/angelmondragon/vendorpay-backend/pkg/money"
)

// PayPal reports amounts as decimal major-unit strings.
var paypalKinds = map[string]enums.EventKind{
	"PAYMENT.CAPTURE.COMPLETED":      enums.EventKindPaymentCompleted,
	"PAYMENT.CAPTURE.DENIED":         enums.EventKindPaymentFailed,
	"PAYMENT.CAPTURE.DECLINED":       enums.EventKindPaymentFailed,
	"PAYMENT.CAPTURE.REFUNDED":       enums.EventKindPaymentRefunded,
	"PAYMENT.CAPTURE.REVERSED":       enums.EventKindPaymentRefunded,
	"BILLING.SUBSCRIPTION.ACTIVATED": enums.EventKindSubscriptionActivated,
	"BILLING.SUBSCRIPTION.CANCELLED": enums.EventKindSubscriptionCancelled,
	"PAYMENT.PAYOUTSBATCH.SUCCESS":   enums.EventKindTransferCompleted,
	"PAYMENT.PAYOUTSBATCH.DENIED":    enums.EventKindTransferFailed,
}

type paypalPayload struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID        string `json:"id"`
		CustomID  string `json:"custom_id"`
		InvoiceID string `json:"invoice_id"`
		Amount    struct {
			Value        string `json:"value"`
			CurrencyCode string `json:"currency_code"`
		} `json:"amount"`
	} `json:"resource"`
}

func normalizePayPal(raw []byte) (*events.PaymentEvent, error) {
	var payload paypalPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errMalformed("paypal", err.Error())
	}
	if strings.TrimSpace(payload.ID) == "" {
		return nil, errMalformed("paypal", "missing event id")
	}

	kind, ok := paypalKinds[payload.EventType]
	if !ok {
		kind = enums.EventKindUnhandled
	}

	event := &events.PaymentEvent{
		ExternalEventID: payload.ID,
		ExternalOrderID: firstNonEmpty(payload.Resource.CustomID, payload.Resource.InvoiceID),
		Kind:            kind,
	}

	if kind != enums.EventKindUnhandled {
		currency, err := enums.ParseCurrency(payload.Resource.Amount.CurrencyCode)
		if err != nil {
			return nil, errMalformed("paypal", err.Error())
		}
		amountMinor, err := money.FromMajorString(payload.Resource.Amount.Value, currency)
		if err != nil {
			return nil, errMalformed("paypal", err.Error())
		}
		event.Currency = currency
		event.AmountMinor = amountMinor
	}

	return event, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

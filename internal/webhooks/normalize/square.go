package normalize

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/angelmondragon/vendorpay-backend/internal/events"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
)

// Square reports amounts in minor units already.
var squareKinds = map[string]enums.EventKind{
	"payment.completed":     enums.EventKindPaymentCompleted,
	"payment.failed":        enums.EventKindPaymentFailed,
	"refund.completed":      enums.EventKindPaymentRefunded,
	"subscription.created":  enums.EventKindSubscriptionActivated,
	"subscription.canceled": enums.EventKindSubscriptionCancelled,
	"payout.paid":           enums.EventKindTransferCompleted,
	"payout.failed":         enums.EventKindTransferFailed,
}

type squarePayload struct {
	EventID string `json:"event_id"`
	ID      string `json:"id"`
	Type    string `json:"type"`
	Data    struct {
		ID     string `json:"id"`
		Object struct {
			Payment struct {
				ID          string `json:"id"`
				OrderID     string `json:"order_id"`
				ReferenceID string `json:"reference_id"`
				AmountMoney struct {
					Amount   int64  `json:"amount"`
					Currency string `json:"currency"`
				} `json:"amount_money"`
			} `json:"payment"`
			Refund struct {
				OrderID     string `json:"order_id"`
				AmountMoney struct {
					Amount   int64  `json:"amount"`
					Currency string `json:"currency"`
				} `json:"amount_money"`
			} `json:"refund"`
		} `json:"object"`
	} `json:"data"`
}

func (n *Normalizer) normalizeSquare(ctx context.Context, raw []byte) (*events.PaymentEvent, error) {
	var payload squarePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errMalformed("square", err.Error())
	}

	eventID := firstNonEmpty(payload.EventID, payload.ID)
	if eventID == "" {
		return nil, errMalformed("square", "missing event id")
	}

	kind, ok := squareKinds[payload.Type]
	if !ok {
		kind = enums.EventKindUnhandled
	}

	event := &events.PaymentEvent{
		ExternalEventID: eventID,
		Kind:            kind,
	}

	switch kind {
	case enums.EventKindUnhandled:
		// no amount needed
	case enums.EventKindPaymentRefunded:
		refund := payload.Data.Object.Refund
		currency, err := enums.ParseCurrency(refund.AmountMoney.Currency)
		if err != nil {
			return nil, errMalformed("square", err.Error())
		}
		event.ExternalOrderID = refund.OrderID
		event.Currency = currency
		event.AmountMinor = refund.AmountMoney.Amount
	default:
		payment := payload.Data.Object.Payment
		event.ExternalOrderID = firstNonEmpty(payment.ReferenceID, payment.OrderID)
		if strings.TrimSpace(payment.AmountMoney.Currency) != "" {
			currency, err := enums.ParseCurrency(payment.AmountMoney.Currency)
			if err != nil {
				return nil, errMalformed("square", err.Error())
			}
			event.Currency = currency
			event.AmountMinor = payment.AmountMoney.Amount
			return event, nil
		}
		// Thin notification without an embedded payment; resolve through the
		// Payments API like the Mercado Pago path does. Payout and
		// subscription events carry no payment object and need no amount.
		if kind == enums.EventKindPaymentCompleted || kind == enums.EventKindPaymentFailed {
			if err := n.resolveSquarePayment(ctx, event, firstNonEmpty(payment.ID, payload.Data.ID)); err != nil {
				return nil, err
			}
		}
	}

	return event, nil
}

func (n *Normalizer) resolveSquarePayment(ctx context.Context, event *events.PaymentEvent, paymentID string) error {
	if strings.TrimSpace(paymentID) == "" {
		return errMalformed("square", "missing payment id")
	}
	if n.square == nil {
		return pkgerrors.New(pkgerrors.CodeConfiguration, "square client not configured")
	}

	payment, err := n.square.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}

	money := payment.GetAmountMoney()
	if money == nil || money.Amount == nil || money.Currency == nil {
		return errMalformed("square", "payment lookup returned no amount")
	}
	currency, err := enums.ParseCurrency(string(*money.Currency))
	if err != nil {
		return errMalformed("square", err.Error())
	}

	event.Currency = currency
	event.AmountMinor = *money.Amount
	if event.ExternalOrderID == "" {
		event.ExternalOrderID = firstNonEmpty(
			derefString(payment.GetReferenceID()),
			derefString(payment.GetOrderID()),
		)
	}
	return nil
}

func derefString(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

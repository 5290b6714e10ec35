package normalize

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/angelmondragon/vendorpay-backend/internal/events"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
)

// Mercado Pago notifications are thin: just an action and a payment id.
// The payment status, amount, and order reference come from a lookup.
var mercadoPagoStatuses = map[string]enums.EventKind{
	"approved":     enums.EventKindPaymentCompleted,
	"rejected":     enums.EventKindPaymentFailed,
	"cancelled":    enums.EventKindPaymentFailed,
	"refunded":     enums.EventKindPaymentRefunded,
	"charged_back": enums.EventKindPaymentRefunded,
}

type mercadoPagoPayload struct {
	ID     json.Number `json:"id"`
	Type   string      `json:"type"`
	Action string      `json:"action"`
	Data   struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

func (n *Normalizer) normalizeMercadoPago(ctx context.Context, raw []byte) (*events.PaymentEvent, error) {
	var payload mercadoPagoPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errMalformed("mercadopago", err.Error())
	}

	paymentID := payload.Data.ID.String()
	if paymentID == "" {
		return nil, errMalformed("mercadopago", "missing data.id")
	}

	eventID := payload.ID.String()
	if eventID == "" {
		eventID = payload.Action + ":" + paymentID
	}

	if payload.Type != "payment" {
		return &events.PaymentEvent{
			ExternalEventID: eventID,
			Kind:            enums.EventKindUnhandled,
		}, nil
	}

	if n.mercadoPago == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "mercadopago client not configured")
	}

	payment, err := n.mercadoPago.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	kind, ok := mercadoPagoStatuses[strings.ToLower(payment.Status)]
	if !ok {
		kind = enums.EventKindUnhandled
	}

	return &events.PaymentEvent{
		ExternalEventID: eventID,
		ExternalOrderID: payment.ExternalReference,
		Kind:            kind,
		AmountMinor:     payment.AmountMinor,
		Currency:        payment.Currency,
	}, nil
}

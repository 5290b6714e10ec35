package normalize

import (
	"context"
	"time"

	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/vendorpay-backend/internal/events"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
	"github.com/angelmondragon/vendorpay-backend/pkg/mercadopago"
	"github.com/angelmondragon/vendorpay-backend/pkg/square"
)

// paymentLookup resolves thin Mercado Pago notifications into full payments.
type paymentLookup interface {
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
}

// squarePaymentLookup resolves Square webhook payloads that arrive without an
// embedded payment object.
type squarePaymentLookup interface {
	GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
}

// Normalizer collapses provider webhook payloads into canonical
// events.PaymentEvent values. Unknown provider event types normalize to
// kind=unhandled rather than erroring; providers add event types over time.
type Normalizer struct {
	mercadoPago paymentLookup
	square      squarePaymentLookup
}

// New builds a Normalizer. Either client may be nil when its provider is not
// configured; payloads needing a lookup then fail with a configuration error.
// Nil checks happen here so a disabled provider never hides behind a typed
// nil interface.
func New(mercadoPago *mercadopago.Client, squareClient *square.Client) *Normalizer {
	n := &Normalizer{}
	if mercadoPago != nil {
		n.mercadoPago = mercadoPago
	}
	if squareClient != nil {
		n.square = squareClient
	}
	return n
}

// Normalize parses the verified raw body for the provider and produces the
// canonical event. Malformed payloads return VALIDATION_ERROR; the boundary
// acknowledges those to stop provider retries.
func (n *Normalizer) Normalize(ctx context.Context, provider enums.Provider, raw []byte, receivedAt time.Time) (*events.PaymentEvent, error) {
	var (
		event *events.PaymentEvent
		err   error
	)

	switch provider {
	case enums.ProviderPayPal:
		event, err = normalizePayPal(raw)
	case enums.ProviderSquare:
		event, err = n.normalizeSquare(ctx, raw)
	case enums.ProviderMercadoPago:
		event, err = n.normalizeMercadoPago(ctx, raw)
	case enums.ProviderPaystack:
		event, err = normalizePaystack(raw)
	case enums.ProviderOffline:
		event, err = normalizeOffline(raw)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown provider")
	}
	if err != nil {
		return nil, err
	}

	event.Provider = provider
	event.RawPayload = raw
	event.ReceivedAt = receivedAt
	return event, nil
}

func errMalformed(provider, reason string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, provider+" payload malformed: "+reason)
}

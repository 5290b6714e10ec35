package normalize

import (
	"context"
	"testing"
	"time"

	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
	"github.com/angelmondragon/vendorpay-backend/pkg/mercadopago"
)

type stubPaymentLookup struct {
	payment *mercadopago.Payment
	err     error
	lastID  string
}

func (s *stubPaymentLookup) GetPayment(_ context.Context, paymentID string) (*mercadopago.Payment, error) {
	s.lastID = paymentID
	return s.payment, s.err
}

type stubSquareLookup struct {
	payment *sq.Payment
	err     error
	lastID  string
}

func (s *stubSquareLookup) GetPayment(_ context.Context, paymentID string) (*sq.Payment, error) {
	s.lastID = paymentID
	return s.payment, s.err
}

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }

func currencyPtr(code string) *sq.Currency {
	c := sq.Currency(code)
	return &c
}

func TestNormalizePayPalConvertsMajorUnits(t *testing.T) {
	raw := []byte(`{
		"id": "WH-1",
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"resource": {
			"id": "cap-1",
			"custom_id": "order-42",
			"amount": {"value": "10.50", "currency_code": "USD"}
		}
	}`)

	n := New(nil, nil)
	event, err := n.Normalize(context.Background(), enums.ProviderPayPal, raw, time.Now())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if event.Kind != enums.EventKindPaymentCompleted {
		t.Fatalf("expected payment_completed, got %s", event.Kind)
	}
	if event.AmountMinor != 1050 {
		t.Fatalf("expected 1050 minor units, got %d", event.AmountMinor)
	}
	if event.ExternalOrderID != "order-42" {
		t.Fatalf("expected order-42, got %s", event.ExternalOrderID)
	}
	if event.ExternalEventID != "WH-1" {
		t.Fatalf("expected WH-1, got %s", event.ExternalEventID)
	}
}

func TestNormalizePayPalUnknownTypeIsUnhandled(t *testing.T) {
	raw := []byte(`{"id":"WH-2","event_type":"CUSTOMER.DISPUTE.CREATED","resource":{}}`)

	n := New(nil, nil)
	event, err := n.Normalize(context.Background(), enums.ProviderPayPal, raw, time.Now())
	if err != nil {
		t.Fatalf("unknown types must not error: %v", err)
	}
	if !event.IsUnhandled() {
		t.Fatalf("expected unhandled kind, got %s", event.Kind)
	}
}

func TestNormalizeSquareKeepsMinorUnits(t *testing.T) {
	raw := []byte(`{
		"event_id": "evt-1",
		"type": "payment.completed",
		"data": {"id": "pay-1", "object": {"payment": {
			"id": "pay-1",
			"order_id": "sq-order-1",
			"reference_id": "order-42",
			"amount_money": {"amount": 1050, "currency": "USD"}
		}}}
	}`)

	n := New(nil, nil)
	event, err := n.Normalize(context.Background(), enums.ProviderSquare, raw, time.Now())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if event.AmountMinor != 1050 {
		t.Fatalf("expected 1050 minor units, got %d", event.AmountMinor)
	}
	if event.ExternalOrderID != "order-42" {
		t.Fatalf("reference_id should win, got %s", event.ExternalOrderID)
	}
}

func TestNormalizeSquareRefundReadsRefundObject(t *testing.T) {
	raw := []byte(`{
		"event_id": "evt-2",
		"type": "refund.completed",
		"data": {"object": {"refund": {
			"order_id": "sq-order-1",
			"amount_money": {"amount": 500, "currency": "USD"}
		}}}
	}`)

	n := New(nil, nil)
	event, err := n.Normalize(context.Background(), enums.ProviderSquare, raw, time.Now())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if event.Kind != enums.EventKindPaymentRefunded {
		t.Fatalf("expected payment_refunded, got %s", event.Kind)
	}
	if event.AmountMinor != 500 {
		t.Fatalf("expected 500, got %d", event.AmountMinor)
	}
}

func TestNormalizeSquareResolvesThinPayloadThroughLookup(t *testing.T) {
	lookup := &stubSquareLookup{payment: &sq.Payment{
		ID:          strPtr("pay-9"),
		ReferenceID: strPtr("order-42"),
		AmountMoney: &sq.Money{Amount: int64Ptr(1050), Currency: currencyPtr("USD")},
	}}
	raw := []byte(`{
		"event_id": "evt-3",
		"type": "payment.completed",
		"data": {"id": "pay-9", "object": {}}
	}`)

	n := &Normalizer{square: lookup}
	event, err := n.Normalize(context.Background(), enums.ProviderSquare, raw, time.Now())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if lookup.lastID != "pay-9" {
		t.Fatalf("expected lookup for pay-9, got %s", lookup.lastID)
	}
	if event.AmountMinor != 1050 {
		t.Fatalf("expected 1050, got %d", event.AmountMinor)
	}
	if event.ExternalOrderID != "order-42" {
		t.Fatalf("expected order-42, got %s", event.ExternalOrderID)
	}
}

func TestNormalizeSquareThinPayloadWithoutClientIsConfigError(t *testing.T) {
	raw := []byte(`{
		"event_id": "evt-4",
		"type": "payment.completed",
		"data": {"id": "pay-9", "object": {}}
	}`)

	n := New(nil, nil)
	_, err := n.Normalize(context.Background(), enums.ProviderSquare, raw, time.Now())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNormalizeMercadoPagoResolvesThroughLookup(t *testing.T) {
	lookup := &stubPaymentLookup{payment: &mercadopago.Payment{
		ID:                "12345",
		Status:            "approved",
		ExternalReference: "order-42",
		AmountMinor:       150075,
		Currency:          "ARS",
	}}
	raw := []byte(`{"id":55,"type":"payment","action":"payment.updated","data":{"id":"12345"}}`)

	n := &Normalizer{mercadoPago: lookup}
	event, err := n.Normalize(context.Background(), enums.ProviderMercadoPago, raw, time.Now())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if lookup.lastID != "12345" {
		t.Fatalf("expected lookup for 12345, got %s", lookup.lastID)
	}
	if event.Kind != enums.EventKindPaymentCompleted {
		t.Fatalf("expected payment_completed, got %s", event.Kind)
	}
	if event.AmountMinor != 150075 {
		t.Fatalf("expected 150075, got %d", event.AmountMinor)
	}
	if event.ExternalOrderID != "order-42" {
		t.Fatalf("expected order-42, got %s", event.ExternalOrderID)
	}
}

func TestNormalizeMercadoPagoNonPaymentIsUnhandled(t *testing.T) {
	lookup := &stubPaymentLookup{}
	raw := []byte(`{"id":56,"type":"plan","action":"plan.updated","data":{"id":"9"}}`)

	n := &Normalizer{mercadoPago: lookup}
	event, err := n.Normalize(context.Background(), enums.ProviderMercadoPago, raw, time.Now())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !event.IsUnhandled() {
		t.Fatalf("expected unhandled, got %s", event.Kind)
	}
	if lookup.lastID != "" {
		t.Fatalf("non-payment notifications must not trigger lookups")
	}
}

func TestNormalizeMercadoPagoWithoutClientIsConfigError(t *testing.T) {
	raw := []byte(`{"id":57,"type":"payment","action":"payment.updated","data":{"id":"1"}}`)

	n := New(nil, nil)
	_, err := n.Normalize(context.Background(), enums.ProviderMercadoPago, raw, time.Now())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNormalizePaystackBuildsCompositeEventID(t *testing.T) {
	raw := []byte(`{
		"event": "charge.success",
		"data": {"id": 302961, "reference": "order-42", "amount": 50000, "fees": 750, "currency": "NGN"}
	}`)

	n := New(nil, nil)
	event, err := n.Normalize(context.Background(), enums.ProviderPaystack, raw, time.Now())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if event.ExternalEventID != "charge.success:302961" {
		t.Fatalf("unexpected event id %s", event.ExternalEventID)
	}
	if event.AmountMinor != 50000 {
		t.Fatalf("paystack amounts are minor units, got %d", event.AmountMinor)
	}
	if event.ProviderFeeMinor != 750 {
		t.Fatalf("paystack charge not extracted, got %d", event.ProviderFeeMinor)
	}
}

func TestNormalizeOffline(t *testing.T) {
	raw := []byte(`{
		"event_id": "off-1",
		"order_id": "order-42",
		"kind": "payment_completed",
		"amount_minor": 10000,
		"currency": "USD"
	}`)

	n := New(nil, nil)
	event, err := n.Normalize(context.Background(), enums.ProviderOffline, raw, time.Now())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if event.Kind != enums.EventKindPaymentCompleted {
		t.Fatalf("expected payment_completed, got %s", event.Kind)
	}
	if event.AmountMinor != 10000 {
		t.Fatalf("expected 10000, got %d", event.AmountMinor)
	}
}

func TestNormalizeMalformedPayloadsError(t *testing.T) {
	n := &Normalizer{mercadoPago: &stubPaymentLookup{}}
	providers := []enums.Provider{
		enums.ProviderPayPal,
		enums.ProviderSquare,
		enums.ProviderMercadoPago,
		enums.ProviderPaystack,
		enums.ProviderOffline,
	}
	for _, provider := range providers {
		if _, err := n.Normalize(context.Background(), provider, []byte("not-json"), time.Now()); err == nil {
			t.Fatalf("%s: expected malformed payload error", provider)
		}
	}
}

func TestNormalizeStampsEnvelopeFields(t *testing.T) {
	raw := []byte(`{"event":"charge.success","data":{"id":1,"reference":"r","amount":10,"currency":"NGN"}}`)
	receivedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	n := New(nil, nil)
	event, err := n.Normalize(context.Background(), enums.ProviderPaystack, raw, receivedAt)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if event.Provider != enums.ProviderPaystack {
		t.Fatalf("provider not stamped")
	}
	if !event.ReceivedAt.Equal(receivedAt) {
		t.Fatalf("received_at not stamped")
	}
	if string(event.RawPayload) != string(raw) {
		t.Fatalf("raw payload not retained")
	}
}

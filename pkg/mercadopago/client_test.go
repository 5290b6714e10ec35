package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/angelmondragon/vendorpay-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
	"github.com/angelmondragon/vendorpay-backend/pkg/logger"
	"github.com/rs/zerolog"
)

type stubDoer struct {
	responses []*http.Response
	requests  []*http.Request
}

func (s *stubDoer) Do(req *http.Request) (*http.Response, error) {
	s.requests = append(s.requests, req)
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})
}

func newTestClient(t *testing.T, doer *stubDoer) *Client {
	t.Helper()
	client, err := NewClient(context.Background(), config.MercadoPagoConfig{AccessToken: "APP_USR-token"}, testLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.httpClient = doer
	return client
}

func TestNewClientRequiresAccessToken(t *testing.T) {
	if _, err := NewClient(context.Background(), config.MercadoPagoConfig{}, testLogger()); err == nil {
		t.Fatalf("expected missing access token error")
	}
}

func TestTransferConvertsToMajorUnits(t *testing.T) {
	doer := &stubDoer{responses: []*http.Response{
		jsonResponse(http.StatusCreated, `{"id":987654}`),
	}}
	client := newTestClient(t, doer)

	result, err := client.Transfer(context.Background(), TransferParams{
		ReceiverID:  "123456",
		AmountMinor: 150075,
		Currency:    "ARS",
		Reference:   "order-1-attempt-1",
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if result.TransferID != "987654" {
		t.Fatalf("expected transfer id 987654, got %s", result.TransferID)
	}

	req := doer.requests[0]
	if got := req.Header.Get("X-Idempotency-Key"); got != "order-1-attempt-1" {
		t.Fatalf("expected idempotency header, got %q", got)
	}
	raw, _ := io.ReadAll(req.Body)
	var sent map[string]json.RawMessage
	if err := json.Unmarshal(raw, &sent); err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	if string(sent["amount"]) != "1500.75" {
		t.Fatalf("expected major-unit amount 1500.75, got %s", sent["amount"])
	}
}

func TestGetPaymentConvertsAmount(t *testing.T) {
	doer := &stubDoer{responses: []*http.Response{
		jsonResponse(http.StatusOK, `{"id":123,"status":"approved","external_reference":"order-9","transaction_amount":10.5,"currency_id":"BRL"}`),
	}}
	client := newTestClient(t, doer)

	payment, err := client.GetPayment(context.Background(), "123")
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if payment.AmountMinor != 1050 {
		t.Fatalf("expected 1050 minor units, got %d", payment.AmountMinor)
	}
	if payment.Currency != "BRL" {
		t.Fatalf("expected BRL, got %s", payment.Currency)
	}
	if payment.ExternalReference != "order-9" {
		t.Fatalf("expected external reference order-9, got %s", payment.ExternalReference)
	}
}

func TestGetPaymentRejectsNonNumericID(t *testing.T) {
	client := newTestClient(t, &stubDoer{})
	if _, err := client.GetPayment(context.Background(), "abc"); err == nil {
		t.Fatalf("expected non-numeric id rejection")
	}
}

func TestTransferMapsHTTPErrors(t *testing.T) {
	doer := &stubDoer{responses: []*http.Response{
		jsonResponse(http.StatusForbidden, `{"message":"forbidden","error":"forbidden"}`),
	}}
	client := newTestClient(t, doer)

	_, err := client.Transfer(context.Background(), TransferParams{
		ReceiverID: "123", AmountMinor: 100, Currency: "ARS", Reference: "r1",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden code, got %v", err)
	}
}

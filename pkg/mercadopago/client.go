package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/vendorpay-backend/pkg/config"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
	"github.com/angelmondragon/vendorpay-backend/pkg/logger"
	"github.com/angelmondragon/vendorpay-backend/pkg/money"
)

const (
	baseURL       = "https://api.mercadopago.com"
	transfersPath = "/v1/money_transfers"
	paymentsPath  = "/v1/payments/"
)

var (
	errAccessTokenRequired = errors.New("mercadopago access token is required")
	errLoggerRequired      = errors.New("mercadopago logger is required")
)

// Doer abstracts the HTTP transport so tests can stub Mercado Pago responses.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client wraps Mercado Pago's REST API. Mercado Pago reports amounts in
// decimal major units; conversion happens at this boundary.
type Client struct {
	httpClient    Doer
	baseURL       string
	accessToken   string
	webhookSecret string
	logger        *logger.Logger
}

// NewClient validates the access token and initializes the wrapper.
func NewClient(ctx context.Context, cfg config.MercadoPagoConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errAccessTokenRequired
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		baseURL:       baseURL,
		accessToken:   accessToken,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		logger:        logg,
	}

	logg.Info(ctx, "mercadopago client initialized")
	return c, nil
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// TransferParams describes a money transfer to another Mercado Pago user.
type TransferParams struct {
	ReceiverID  string
	AmountMinor int64
	Currency    enums.Currency
	Reference   string
}

// TransferResult carries the transfer id for a sent transfer.
type TransferResult struct {
	TransferID string
}

type transferRequest struct {
	Amount            json.Number `json:"amount"`
	CurrencyID        string      `json:"currency_id"`
	ReceiverID        string      `json:"receiver_id"`
	ExternalReference string      `json:"external_reference,omitempty"`
}

type transferResponse struct {
	ID json.Number `json:"id"`
}

// Transfer sends vendor earnings to the receiver's Mercado Pago account.
// The X-Idempotency-Key header makes retries with the same reference safe.
func (c *Client) Transfer(ctx context.Context, params TransferParams) (*TransferResult, error) {
	if strings.TrimSpace(params.ReceiverID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mercadopago transfer receiver is required")
	}
	if params.AmountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mercadopago transfer amount must be positive")
	}

	body := transferRequest{
		Amount:            json.Number(money.ToMajorString(params.AmountMinor, params.Currency)),
		CurrencyID:        params.Currency.String(),
		ReceiverID:        params.ReceiverID,
		ExternalReference: params.Reference,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshaling mercadopago request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+transfersPath, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building mercadopago request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if params.Reference != "" {
		req.Header.Set("X-Idempotency-Key", params.Reference)
	}

	var resp transferResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	if resp.ID.String() == "" {
		return nil, pkgerrors.New(pkgerrors.CodePayout, "mercadopago transfer response missing id")
	}
	return &TransferResult{TransferID: resp.ID.String()}, nil
}

// Payment is the subset of a Mercado Pago payment the normalizer needs when a
// webhook carries only the payment id.
type Payment struct {
	ID                string
	Status            string
	ExternalReference string
	AmountMinor       int64
	Currency          enums.Currency
}

type paymentResponse struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	ExternalReference string      `json:"external_reference"`
	TransactionAmount float64     `json:"transaction_amount"`
	CurrencyID        string      `json:"currency_id"`
}

// GetPayment fetches a payment by id. Mercado Pago webhooks are thin (just a
// data.id); the pipeline resolves the rest through this lookup.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	id := strings.TrimSpace(paymentID)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mercadopago payment id is required")
	}
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mercadopago payment id must be numeric")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+paymentsPath+id, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building mercadopago request")
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	var resp paymentResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}

	currency, err := enums.ParseCurrency(resp.CurrencyID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mercadopago payment currency")
	}
	amountMinor, err := money.FromMajorFloat(resp.TransactionAmount, currency)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mercadopago payment amount")
	}

	return &Payment{
		ID:                resp.ID.String(),
		Status:            resp.Status,
		ExternalReference: resp.ExternalReference,
		AmountMinor:       amountMinor,
		Currency:          currency,
	}, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calling mercadopago")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading mercadopago response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.mapAPIError(resp.StatusCode, raw)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding mercadopago response")
		}
	}
	return nil
}

type apiErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) mapAPIError(status int, raw []byte) error {
	var body apiErrorBody
	_ = json.Unmarshal(raw, &body)

	message := body.Message
	if message == "" {
		message = fmt.Sprintf("mercadopago returned status %d", status)
	}

	return pkgerrors.New(domainCodeForStatus(status), message).
		WithDetails(map[string]any{"error": body.Error, "status": status})
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/vendorpay-backend/pkg/config"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
	"github.com/angelmondragon/vendorpay-backend/pkg/logger"
)

const (
	baseURL      = "https://api.paystack.co"
	transferPath = "/transfer"
)

var (
	errSecretKeyRequired = errors.New("paystack secret key is required")
	errLoggerRequired    = errors.New("paystack logger is required")
)

// Doer abstracts the HTTP transport so tests can stub Paystack responses.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client wraps Paystack's transfer API. Paystack amounts are already minor
// units (kobo/pesewas), so no major-unit conversion happens here.
type Client struct {
	httpClient Doer
	baseURL    string
	secretKey  string
	logger     *logger.Logger
}

// NewClient validates the secret key and initializes the Paystack wrapper.
func NewClient(ctx context.Context, cfg config.PaystackConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if secretKey == "" {
		return nil, errSecretKeyRequired
	}

	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		secretKey:  secretKey,
		logger:     logg,
	}

	logg.Info(ctx, "paystack client initialized")
	return c, nil
}

// SigningSecret returns the key used to verify webhook signatures. Paystack
// signs webhooks with the account secret key itself.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.secretKey
}

// TransferParams describes a balance transfer to a saved recipient.
type TransferParams struct {
	RecipientCode string
	AmountMinor   int64
	Currency      enums.Currency
	Reference     string
	Reason        string
}

// TransferResult carries the Paystack transfer code for a sent transfer.
type TransferResult struct {
	TransferCode string
}

type transferRequest struct {
	Source    string `json:"source"`
	Amount    int64  `json:"amount"`
	Recipient string `json:"recipient"`
	Currency  string `json:"currency,omitempty"`
	Reference string `json:"reference,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type transferResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		TransferCode string `json:"transfer_code"`
		Reference    string `json:"reference"`
		Status       string `json:"status"`
	} `json:"data"`
}

// Transfer sends vendor earnings from the platform balance to a recipient.
// The reference is Paystack's dedup key, so retries reuse it safely.
func (c *Client) Transfer(ctx context.Context, params TransferParams) (*TransferResult, error) {
	if strings.TrimSpace(params.RecipientCode) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paystack transfer recipient is required")
	}
	if params.AmountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paystack transfer amount must be positive")
	}

	body := transferRequest{
		Source:    "balance",
		Amount:    params.AmountMinor,
		Recipient: params.RecipientCode,
		Currency:  params.Currency.String(),
		Reference: params.Reference,
		Reason:    params.Reason,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshaling paystack request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+transferPath, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building paystack request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calling paystack")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading paystack response")
	}

	var parsed transferResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &parsed); err != nil && resp.StatusCode < 300 {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding paystack response")
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || !parsed.Status {
		message := parsed.Message
		if message == "" {
			message = fmt.Sprintf("paystack returned status %d", resp.StatusCode)
		}
		return nil, pkgerrors.New(domainCodeForStatus(resp.StatusCode), message).
			WithDetails(map[string]any{"status": resp.StatusCode})
	}

	if parsed.Data.TransferCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodePayout, "paystack transfer response missing transfer code")
	}
	return &TransferResult{TransferCode: parsed.Data.TransferCode}, nil
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

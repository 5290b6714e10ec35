package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/angelmondragon/vendorpay-backend/api/responses"
	"github.com/angelmondragon/vendorpay-backend/api/validators"
	"github.com/angelmondragon/vendorpay-backend/internal/webhooks/signature"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
	"github.com/angelmondragon/vendorpay-backend/pkg/logger"
	"github.com/angelmondragon/vendorpay-backend/pkg/metrics"
)

// maxWebhookBody bounds provider payloads. The largest real payloads are
// PayPal resources under 64KiB; 1MiB leaves generous headroom.
const maxWebhookBody = 1 << 20

type webhookPipeline interface {
	Handle(ctx context.Context, provider enums.Provider, raw []byte, receivedAt time.Time) (string, error)
}

type WebhooksParams struct {
	Pipeline  webhookPipeline
	Verifiers map[enums.Provider]signature.Verifier
	Metrics   *metrics.WebhookMetrics
	Logger    *logger.Logger
}

// Webhooks terminates provider deliveries: authenticate the raw bytes, run
// the pipeline, and translate the outcome into the provider-facing status.
type Webhooks struct {
	pipeline  webhookPipeline
	verifiers map[enums.Provider]signature.Verifier
	metrics   *metrics.WebhookMetrics
	logg      *logger.Logger
}

func NewWebhooks(params WebhooksParams) (*Webhooks, error) {
	if params.Pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Webhooks{
		pipeline:  params.Pipeline,
		verifiers: params.Verifiers,
		metrics:   params.Metrics,
		logg:      params.Logger,
	}, nil
}

// Provider returns the handler for one provider's webhook endpoint.
func (c *Webhooks) Provider(provider enums.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := c.logg.WithProvider(r.Context(), provider.String())
		start := time.Now()
		receivedAt := start.UTC()

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, c.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		verifier, ok := c.verifiers[provider]
		if !ok {
			responses.WriteError(ctx, c.logg, w, pkgerrors.New(pkgerrors.CodeConfiguration, provider.String()+" webhooks not configured"))
			return
		}
		if err := verifier.Verify(r, body); err != nil {
			c.observe(provider, metrics.OutcomeRejected, start)
			responses.WriteError(ctx, c.logg, w, err)
			return
		}

		c.finish(ctx, w, provider, body, receivedAt, start)
	}
}

// Offline handles operator-submitted confirmations for payments settled
// outside any provider. Authentication is the operator JWT, not a signature.
func (c *Webhooks) Offline(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := c.logg.WithProvider(r.Context(), enums.ProviderOffline.String())
		start := time.Now()
		receivedAt := start.UTC()

		if !enabled {
			responses.WriteError(ctx, c.logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "offline confirmations disabled"))
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, c.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		var req offlineConfirmationRequest
		if err := json.Unmarshal(body, &req); err != nil {
			responses.WriteError(ctx, c.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body"))
			return
		}
		if err := validators.ValidateStruct(&req); err != nil {
			responses.WriteError(ctx, c.logg, w, err)
			return
		}

		c.finish(ctx, w, enums.ProviderOffline, body, receivedAt, start)
	}
}

type offlineConfirmationRequest struct {
	EventID     string `json:"event_id" validate:"required"`
	OrderID     string `json:"order_id" validate:"required"`
	Kind        string `json:"kind" validate:"required,oneof=payment_completed payment_failed payment_refunded"`
	AmountMinor int64  `json:"amount_minor" validate:"gte=0"`
	Currency    string `json:"currency" validate:"required,len=3"`
}

func (c *Webhooks) finish(ctx context.Context, w http.ResponseWriter, provider enums.Provider, body []byte, receivedAt time.Time, start time.Time) {
	outcome, err := c.pipeline.Handle(ctx, provider, body, receivedAt)
	c.observe(provider, outcome, start)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}
	responses.WriteSuccess(w, map[string]string{"status": outcome})
}

func (c *Webhooks) observe(provider enums.Provider, outcome string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.IncReceived(provider.String(), outcome)
	c.metrics.ObserveDuration(provider.String(), time.Since(start))
}

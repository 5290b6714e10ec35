// Package webhooks drives a verified webhook delivery through normalization,
// the idempotency ledger, and the order state machine, and classifies the
// result for the HTTP boundary.
package webhooks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorpay-backend/internal/events"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
	"github.com/angelmondragon/vendorpay-backend/pkg/logger"
	"github.com/angelmondragon/vendorpay-backend/pkg/metrics"
	"github.com/angelmondragon/vendorpay-backend/pkg/outbox"
)

type normalizer interface {
	Normalize(ctx context.Context, provider enums.Provider, raw []byte, receivedAt time.Time) (*events.PaymentEvent, error)
}

type eventLedger interface {
	RecordIfNew(ctx context.Context, event *events.PaymentEvent) (bool, error)
	Forget(ctx context.Context, provider enums.Provider, externalEventID string) error
}

type orderApplier interface {
	ApplyEvent(ctx context.Context, event *events.PaymentEvent) error
}

type PipelineParams struct {
	DB         *gorm.DB
	Normalizer normalizer
	Ledger     eventLedger
	Orders     orderApplier
	Outbox     *outbox.Service
	Logger     *logger.Logger
}

// Pipeline processes one delivery end to end. Outcomes carry the HTTP
// contract: a non-nil error means the provider should retry (5xx); a nil
// error acknowledges the delivery regardless of outcome.
type Pipeline struct {
	db         *gorm.DB
	normalizer normalizer
	ledger     eventLedger
	orders     orderApplier
	outbox     *outbox.Service
	logg       *logger.Logger
}

func NewPipeline(params PipelineParams) (*Pipeline, error) {
	if params.DB == nil {
		return nil, errors.New("db is required")
	}
	if params.Normalizer == nil {
		return nil, errors.New("normalizer is required")
	}
	if params.Ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if params.Orders == nil {
		return nil, errors.New("orders applier is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Pipeline{
		db:         params.DB,
		normalizer: params.Normalizer,
		ledger:     params.Ledger,
		orders:     params.Orders,
		outbox:     params.Outbox,
		logg:       params.Logger,
	}, nil
}

// Handle runs one verified delivery. The returned outcome labels the webhook
// metric; the error, when non-nil, is what the HTTP layer reports so the
// provider retries.
func (p *Pipeline) Handle(ctx context.Context, provider enums.Provider, raw []byte, receivedAt time.Time) (string, error) {
	ctx = p.logg.WithProvider(ctx, provider.String())

	event, err := p.normalizer.Normalize(ctx, provider, raw, receivedAt)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeValidation {
			// Malformed payloads never improve on retry; acknowledge and drop.
			p.logg.Warn(p.logg.WithField(ctx, "reason", typed.Message()), "webhook payload rejected")
			return metrics.OutcomeRejected, nil
		}
		return metrics.OutcomeFailed, err
	}

	ctx = p.logg.WithEventID(ctx, event.ExternalEventID)

	fresh, err := p.ledger.RecordIfNew(ctx, event)
	if err != nil {
		return metrics.OutcomeFailed, err
	}
	if !fresh {
		p.logg.Info(ctx, "webhook event already recorded")
		return metrics.OutcomeDuplicate, nil
	}

	if event.IsUnhandled() {
		p.logg.Info(ctx, "webhook event type unhandled")
		return metrics.OutcomeUnhandled, nil
	}

	if err := p.orders.ApplyEvent(ctx, event); err != nil {
		return p.classifyApplyFailure(ctx, event, err)
	}

	p.logg.Info(ctx, "webhook event processed")
	return metrics.OutcomeProcessed, nil
}

// classifyApplyFailure decides between acknowledging a delivery we can never
// process and surfacing a retryable failure. Retryable failures release the
// ledger entry first so the redelivery is not swallowed as a duplicate.
func (p *Pipeline) classifyApplyFailure(ctx context.Context, event *events.PaymentEvent, applyErr error) (string, error) {
	typed := pkgerrors.As(applyErr)
	if typed != nil {
		switch typed.Code() {
		case pkgerrors.CodeNotFound:
			p.logg.Warn(p.logg.WithField(ctx, "external_order_id", event.ExternalOrderID), "webhook event references unknown order")
			p.emitAlert(ctx, enums.OutboxEventOrderUnresolved, event, typed.Message())
			return metrics.OutcomeUnhandled, nil
		case pkgerrors.CodeConfiguration:
			p.logg.Error(ctx, "webhook event hit configuration error", applyErr)
			p.emitAlert(ctx, enums.OutboxEventConfigurationError, event, typed.Message())
			return metrics.OutcomeFailed, nil
		}
	}

	if err := p.ledger.Forget(ctx, event.Provider, event.ExternalEventID); err != nil {
		p.logg.Error(ctx, "failed to release ledger entry", err)
	}
	return metrics.OutcomeFailed, applyErr
}

func (p *Pipeline) emitAlert(ctx context.Context, eventType enums.OutboxEventType, event *events.PaymentEvent, message string) {
	if p.outbox == nil {
		return
	}
	alert := outbox.Alert{
		EventType:     eventType,
		AggregateType: enums.OutboxAggregateOrder,
		AggregateID:   uuid.New(),
		Data: map[string]any{
			"provider":          event.Provider.String(),
			"external_event_id": event.ExternalEventID,
			"external_order_id": event.ExternalOrderID,
			"kind":              event.Kind,
			"message":           message,
		},
		OccurredAt: time.Now(),
	}
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return p.outbox.Emit(ctx, tx, alert)
	})
	if err != nil {
		p.logg.Error(ctx, "failed to queue operator alert", err)
	}
}

// Package ledger is the idempotency gate for inbound webhook events. Every
// verified, normalized event is recorded exactly once per (provider, external
// event id); redeliveries are detected here and acknowledged without side
// effects downstream.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorpay-backend/internal/events"
	"github.com/angelmondragon/vendorpay-backend/pkg/db"
	"github.com/angelmondragon/vendorpay-backend/pkg/db/models"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	"github.com/angelmondragon/vendorpay-backend/pkg/logger"
	redisclient "github.com/angelmondragon/vendorpay-backend/pkg/redis"
)

const uniqueConstraint = "uniq_webhook_events_provider_event"

// guardTTL bounds the Redis fast path. Providers redeliver for days, not
// months; the database row remains the durable gate after expiry.
const guardTTL = 30 * 24 * time.Hour

type ServiceParams struct {
	DB          *gorm.DB
	Idempotency redisclient.IdempotencyStore
	Logger      *logger.Logger
}

// Service records events and answers "have we seen this before". The Redis
// guard is an optimization only; the unique index on webhook_events is the
// source of truth, so a Redis outage degrades to database-only dedupe.
type Service struct {
	db          *gorm.DB
	idempotency redisclient.IdempotencyStore
	logg        *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, errors.New("db is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		db:          params.DB,
		idempotency: params.Idempotency,
		logg:        params.Logger,
	}, nil
}

// RecordIfNew persists the event and reports whether it is the first
// delivery. Duplicates return (false, nil); callers acknowledge those with a
// success status so the provider stops retrying.
func (s *Service) RecordIfNew(ctx context.Context, event *events.PaymentEvent) (bool, error) {
	if event == nil {
		return false, errors.New("event is required")
	}
	if event.ExternalEventID == "" {
		return false, errors.New("external event id is required")
	}

	guardKey, guardSet := s.acquireGuard(ctx, event)
	if guardKey != "" && !guardSet {
		return false, nil
	}

	row := models.WebhookEvent{
		ID:              uuid.New(),
		Provider:        event.Provider,
		ExternalEventID: event.ExternalEventID,
		ExternalOrderID: event.ExternalOrderID,
		Kind:            event.Kind,
		AmountMinor:     event.AmountMinor,
		Currency:        event.Currency,
		RawPayload:      event.RawPayload,
		ReceivedAt:      event.ReceivedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if db.IsUniqueViolation(err, uniqueConstraint) {
			return false, nil
		}
		// Release the guard so the provider's retry is not swallowed by a
		// Redis hit while no database row exists.
		s.releaseGuard(ctx, guardKey)
		return false, err
	}

	return true, nil
}

// FindByEvent returns the stored ledger row for a provider event, if any.
func (s *Service) FindByEvent(ctx context.Context, provider enums.Provider, externalEventID string) (*models.WebhookEvent, error) {
	var row models.WebhookEvent
	err := s.db.WithContext(ctx).
		Where("provider = ? AND external_event_id = ?", provider, externalEventID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Forget removes a recorded event so the provider's retry is treated as a
// first delivery. Used when downstream processing fails after the event was
// recorded; leaving the row would dedupe the retry into a silent ack.
func (s *Service) Forget(ctx context.Context, provider enums.Provider, externalEventID string) error {
	err := s.db.WithContext(ctx).
		Where("provider = ? AND external_event_id = ?", provider, externalEventID).
		Delete(&models.WebhookEvent{}).Error
	if err != nil {
		return err
	}
	if s.idempotency != nil {
		key := s.idempotency.IdempotencyKey("webhooks:"+provider.String(), externalEventID)
		s.releaseGuard(ctx, key)
	}
	return nil
}

func (s *Service) acquireGuard(ctx context.Context, event *events.PaymentEvent) (string, bool) {
	if s.idempotency == nil {
		return "", false
	}
	key := s.idempotency.IdempotencyKey("webhooks:"+event.Provider.String(), event.ExternalEventID)
	ok, err := s.idempotency.SetNX(ctx, key, "1", guardTTL)
	if err != nil {
		// Fall through to the database gate.
		s.logg.Warn(s.logg.WithEventID(ctx, event.ExternalEventID), "idempotency guard unavailable")
		return "", false
	}
	return key, ok
}

func (s *Service) releaseGuard(ctx context.Context, key string) {
	if s.idempotency == nil || key == "" {
		return
	}
	if err := s.idempotency.Del(ctx, key); err != nil {
		s.logg.Warn(ctx, "failed to release idempotency guard")
	}
}

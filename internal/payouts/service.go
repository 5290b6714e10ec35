// Package payouts dispatches vendor earnings after order completion. The
// dispatcher is invoked from the webhook pipeline (zero-delay payouts), the
// worker (scheduled payouts), and the operator retry endpoint; all three may
// fire for the same order, so the claim step is the serialization point.
package payouts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorpay-backend/internal/orders"
	"github.com/angelmondragon/vendorpay-backend/internal/vendors"
	"github.com/angelmondragon/vendorpay-backend/pkg/db/models"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
	"github.com/angelmondragon/vendorpay-backend/pkg/logger"
	"github.com/angelmondragon/vendorpay-backend/pkg/metrics"
	"github.com/angelmondragon/vendorpay-backend/pkg/outbox"
)

type ServiceParams struct {
	DB       *gorm.DB
	Logger   *logger.Logger
	Registry Registry
	Vendors  *vendors.Repository
	Outbox   *outbox.Service
	Metrics  *metrics.PayoutMetrics
	Timeout  time.Duration
}

type Service struct {
	db       *gorm.DB
	logg     *logger.Logger
	registry Registry
	vendors  *vendors.Repository
	orders   *orders.Repository
	outbox   *outbox.Service
	metrics  *metrics.PayoutMetrics
	timeout  time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, errors.New("db is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Vendors == nil {
		return nil, errors.New("vendor repository is required")
	}
	if params.Timeout <= 0 {
		params.Timeout = 30 * time.Second
	}
	return &Service{
		db:       params.DB,
		logg:     params.Logger,
		registry: params.Registry,
		vendors:  params.Vendors,
		orders:   orders.NewRepository(params.DB),
		outbox:   params.Outbox,
		metrics:  params.Metrics,
		timeout:  params.Timeout,
	}, nil
}

// Dispatch sends the vendor's earnings for one completed order. Exactly one
// of any set of concurrent calls proceeds: the claim flips payout_status
// none -> pending under the order's optimistic version, and losers see
// either the version conflict or the already-claimed status. Orders that are
// not dispatchable (not marketplace, not completed, already paid or in
// flight) are a silent no-op so duplicate cron firings stay harmless.
func (s *Service) Dispatch(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	ctx = s.logg.WithOrderID(s.logg.WithVendorID(ctx, order.VendorID.String()), order.ID.String())

	if !s.dispatchable(ctx, order) {
		return nil
	}

	claimed, err := s.claim(ctx, order)
	if err != nil {
		return err
	}
	if !claimed {
		s.logg.Info(ctx, "payout already claimed by concurrent dispatch")
		return nil
	}

	attempt, err := s.appendAttempt(ctx, order)
	if err != nil {
		return err
	}

	result, sendErr := s.send(ctx, order)
	if sendErr != nil {
		s.recordFailure(ctx, order, attempt, sendErr)
		return sendErr
	}

	return s.recordSuccess(ctx, order, attempt, result)
}

// Retry re-arms a failed payout and dispatches again. The only path that
// retries after failure; automatic retries are deliberately absent.
func (s *Service) Retry(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.PayoutStatus != enums.PayoutStatusFailed {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payout is not in a failed state")
	}

	order.PayoutStatus = enums.PayoutStatusNone
	order.PayoutError = nil
	if err := s.orders.SaveCAS(ctx, order); err != nil {
		return err
	}
	return s.Dispatch(ctx, orderID)
}

func (s *Service) dispatchable(ctx context.Context, order *models.Order) bool {
	if !order.Marketplace {
		return false
	}
	if order.Status != enums.OrderStatusCompleted {
		s.logg.Info(ctx, "payout skipped, order not completed")
		return false
	}
	switch order.PayoutStatus {
	case enums.PayoutStatusPaid, enums.PayoutStatusPending:
		return false
	case enums.PayoutStatusFailed:
		s.logg.Info(ctx, "payout skipped, previous attempt failed, awaiting operator retry")
		return false
	}
	if order.VendorEarnings == nil || *order.VendorEarnings <= 0 {
		s.logg.Info(ctx, "payout skipped, no vendor earnings to transfer")
		return false
	}
	return true
}

func (s *Service) claim(ctx context.Context, order *models.Order) (bool, error) {
	order.PayoutStatus = enums.PayoutStatusPending
	err := s.orders.SaveCAS(ctx, order)
	if err == nil {
		return true, nil
	}
	typed := pkgerrors.As(err)
	if typed != nil && typed.Code() == pkgerrors.CodeConflict {
		return false, nil
	}
	return false, err
}

func (s *Service) appendAttempt(ctx context.Context, order *models.Order) (*models.PayoutAttempt, error) {
	var previous int64
	err := s.db.WithContext(ctx).
		Model(&models.PayoutAttempt{}).
		Where("order_id = ?", order.ID).
		Count(&previous).Error
	if err != nil {
		return nil, err
	}

	attempt := &models.PayoutAttempt{
		ID:            uuid.New(),
		OrderID:       order.ID,
		VendorID:      order.VendorID,
		Provider:      order.PaymentProvider,
		AttemptNumber: int(previous) + 1,
		Status:        enums.PayoutAttemptStatusPending,
		AmountMinor:   *order.VendorEarnings,
		Currency:      order.Currency,
	}
	if err := s.db.WithContext(ctx).Create(attempt).Error; err != nil {
		return nil, err
	}
	return attempt, nil
}

func (s *Service) send(ctx context.Context, order *models.Order) (*TransferResult, error) {
	client, ok := s.registry[order.PaymentProvider]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration,
			fmt.Sprintf("no transfer client for %s", order.PaymentProvider))
	}

	account, err := s.vendors.Find(ctx, order.VendorID, order.PaymentProvider)
	if err != nil {
		return nil, err
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return client.SendTransfer(sendCtx, TransferRequest{
		Destination: account.Destination,
		AmountMinor: *order.VendorEarnings,
		Currency:    order.Currency,
		Reference:   order.ID.String(),
	})
}

func (s *Service) recordSuccess(ctx context.Context, order *models.Order, attempt *models.PayoutAttempt, result *TransferResult) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PayoutAttempt{}).
			Where("id = ?", attempt.ID).
			Updates(map[string]any{
				"status":   enums.PayoutAttemptStatusSent,
				"batch_id": result.BatchID,
			}).Error; err != nil {
			return err
		}
		order.PayoutStatus = enums.PayoutStatusPaid
		order.PayoutError = nil
		return orders.NewRepository(tx).SaveCAS(ctx, order)
	})
	if err != nil {
		return err
	}

	s.metrics.IncDispatched(order.PaymentProvider.String(), "sent")
	s.metrics.AddAmount(order.PaymentProvider.String(), order.Currency.String(), attempt.AmountMinor)
	s.logg.Info(ctx, "payout sent, batch "+result.BatchID)
	return nil
}

func (s *Service) recordFailure(ctx context.Context, order *models.Order, attempt *models.PayoutAttempt, sendErr error) {
	message := sendErr.Error()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PayoutAttempt{}).
			Where("id = ?", attempt.ID).
			Updates(map[string]any{
				"status": enums.PayoutAttemptStatusFailed,
				"error":  message,
			}).Error; err != nil {
			return err
		}
		order.PayoutStatus = enums.PayoutStatusFailed
		order.PayoutError = &message
		if err := orders.NewRepository(tx).SaveCAS(ctx, order); err != nil {
			return err
		}
		return s.emitAlert(ctx, tx, order, attempt, message)
	})
	if err != nil {
		s.logg.Error(ctx, "failed to record payout failure", err)
	}

	s.metrics.IncDispatched(order.PaymentProvider.String(), "failed")
	s.logg.Error(ctx, "payout dispatch failed", sendErr)
}

func (s *Service) emitAlert(ctx context.Context, tx *gorm.DB, order *models.Order, attempt *models.PayoutAttempt, message string) error {
	if s.outbox == nil {
		return nil
	}
	return s.outbox.Emit(ctx, tx, outbox.Alert{
		EventType:     enums.OutboxEventPayoutFailed,
		AggregateType: enums.OutboxAggregateOrder,
		AggregateID:   order.ID,
		Data: map[string]any{
			"order_id":       order.ID.String(),
			"vendor_id":      order.VendorID.String(),
			"provider":       order.PaymentProvider.String(),
			"attempt_number": attempt.AttemptNumber,
			"amount_minor":   attempt.AmountMinor,
			"currency":       order.Currency.String(),
			"error":          message,
		},
	})
}

// Package orders applies canonical payment events to the order state
// machine. Transitions serialize per order through an optimistic version
// check; a lost race is retried once against a fresh read and then treated
// as a redelivery.
package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorpay-backend/internal/events"
	"github.com/angelmondragon/vendorpay-backend/internal/fees"
	"github.com/angelmondragon/vendorpay-backend/pkg/config"
	"github.com/angelmondragon/vendorpay-backend/pkg/db/models"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
	"github.com/angelmondragon/vendorpay-backend/pkg/logger"
)

// Dispatcher triggers a payout for a completed order. Wired to the payouts
// service; nil disables immediate dispatch.
type Dispatcher interface {
	Dispatch(ctx context.Context, orderID uuid.UUID) error
}

type ServiceParams struct {
	DB         *gorm.DB
	Logger     *logger.Logger
	FeePolicy  fees.Policy
	Orders     config.OrdersConfig
	Payouts    config.PayoutsConfig
	Dispatcher Dispatcher
	// PaystackBearer selects who absorbs Paystack's own transaction charge.
	// Empty defaults to the platform side.
	PaystackBearer enums.FeeBearer
}

type Service struct {
	repo           *Repository
	logg           *logger.Logger
	feePolicy      fees.Policy
	orders         config.OrdersConfig
	payouts        config.PayoutsConfig
	dispatcher     Dispatcher
	paystackBearer enums.FeeBearer
	now            func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, errors.New("db is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	bearer := params.PaystackBearer
	if bearer == "" {
		bearer = enums.FeeBearerAccount
	}
	return &Service{
		repo:           NewRepository(params.DB),
		logg:           params.Logger,
		feePolicy:      params.FeePolicy,
		orders:         params.Orders,
		payouts:        params.Payouts,
		dispatcher:     params.Dispatcher,
		paystackBearer: bearer,
		now:            time.Now,
	}, nil
}

// Repo exposes the order repository for read paths (operator surface, worker).
func (s *Service) Repo() *Repository {
	return s.repo
}

// ApplyEvent runs one normalized event through the state machine. Unhandled
// kinds, duplicates, late events on terminal orders, and disallowed
// transitions all return nil; the webhook boundary acknowledges them so the
// provider stops retrying. A nil return with no state change is by far the
// common path under redelivery.
func (s *Service) ApplyEvent(ctx context.Context, event *events.PaymentEvent) error {
	if event == nil {
		return errors.New("event is required")
	}
	if event.IsUnhandled() {
		return nil
	}

	ctx = s.logg.WithEventID(ctx, event.ExternalEventID)

	order, err := s.findOrder(ctx, event)
	if err != nil {
		return err
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	if TouchesPayoutOnly(event.Kind) {
		return s.applyTransferOutcome(ctx, order, event)
	}

	// One retry after a lost optimistic race; the second loss means a
	// concurrent delivery already applied this event.
	for attempt := 0; attempt < 2; attempt++ {
		next, ok := NextStatus(order.Status, event.Kind)
		if !ok {
			if order.Status.IsTerminal() {
				s.logg.Info(ctx, "event dropped, order in terminal state")
			} else {
				s.logg.Warn(ctx, "transition disallowed for current order status")
			}
			return nil
		}

		completed, err := s.mutateForTransition(order, next, event)
		if err != nil {
			return err
		}

		saveErr := s.repo.SaveCAS(ctx, order)
		if saveErr == nil {
			s.logg.Info(ctx, "order transitioned to "+order.Status.String())
			if completed {
				s.triggerDispatch(ctx, order)
			}
			return nil
		}
		typed := pkgerrors.As(saveErr)
		if typed == nil || typed.Code() != pkgerrors.CodeConflict {
			return saveErr
		}
		order, err = s.repo.FindByID(ctx, order.ID)
		if err != nil {
			return err
		}
	}

	s.logg.Info(ctx, "transition lost optimistic race twice, treating as redelivery")
	return nil
}

// mutateForTransition applies the status change and its side effects to the
// in-memory order. Reports whether the order reached completed.
func (s *Service) mutateForTransition(order *models.Order, next enums.OrderStatus, event *events.PaymentEvent) (bool, error) {
	now := s.now()
	order.Status = next

	switch next {
	case enums.OrderStatusPaid:
		order.PaidAt = &now
		if order.Marketplace && !order.HasSplit() {
			split, err := fees.Compute(order.TotalMinor, s.feePolicy)
			if err != nil {
				return false, err
			}
			if order.PaymentProvider == enums.ProviderPaystack && event.ProviderFeeMinor > 0 {
				split, err = fees.ApplyBearer(split, event.ProviderFeeMinor, s.paystackBearer)
				if err != nil {
					return false, err
				}
			}
			order.PlatformFeeMinor = &split.PlatformFeeMinor
			order.VendorEarnings = &split.VendorEarningsMinor
		}
		if s.orders.ManualApproval() {
			order.Status = enums.OrderStatusPendingApproval
			return false, nil
		}
		s.complete(order, now)
		return true, nil
	case enums.OrderStatusCompleted:
		s.complete(order, now)
		return true, nil
	case enums.OrderStatusRefunded, enums.OrderStatusFailed, enums.OrderStatusCancelled:
		order.ArchivedAt = &now
	}
	return false, nil
}

func (s *Service) complete(order *models.Order, now time.Time) {
	order.Status = enums.OrderStatusCompleted
	order.CompletedAt = &now
	order.ArchivedAt = &now

	if !order.Marketplace || !s.payouts.AutoPayout {
		return
	}
	if order.PayoutStatus != enums.PayoutStatusNone {
		return
	}
	// Stamped once; redeliveries and approval retries must not move an
	// already-scheduled payout. payout_status stays none until the
	// dispatcher claims the order.
	if order.PayoutDueAt == nil {
		due := now.AddDate(0, 0, s.payouts.DelayDays)
		order.PayoutDueAt = &due
	}
}

// Approve releases a pending_approval order to completed. Operator-driven.
func (s *Service) Approve(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPendingApproval {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting approval")
	}

	s.complete(order, s.now())
	if err := s.repo.SaveCAS(ctx, order); err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "order approved")
	s.triggerDispatch(ctx, order)
	return order, nil
}

func (s *Service) triggerDispatch(ctx context.Context, order *models.Order) {
	if s.dispatcher == nil {
		return
	}
	if order.PayoutStatus != enums.PayoutStatusNone || order.PayoutDueAt == nil {
		return
	}
	if order.PayoutDueAt.After(s.now()) {
		return
	}
	// Dispatch outcomes land on the order row and the attempt log; a
	// failure here must not fail the webhook acknowledgement.
	if err := s.dispatcher.Dispatch(ctx, order.ID); err != nil {
		s.logg.Error(ctx, "immediate payout dispatch failed", err)
	}
}

func (s *Service) applyTransferOutcome(ctx context.Context, order *models.Order, event *events.PaymentEvent) error {
	for attempt := 0; attempt < 2; attempt++ {
		switch event.Kind {
		case enums.EventKindTransferCompleted:
			if order.PayoutStatus == enums.PayoutStatusPaid {
				return nil
			}
			order.PayoutStatus = enums.PayoutStatusPaid
			order.PayoutError = nil
		case enums.EventKindTransferFailed:
			if order.PayoutStatus == enums.PayoutStatusFailed {
				return nil
			}
			msg := "provider reported transfer failure"
			order.PayoutStatus = enums.PayoutStatusFailed
			order.PayoutError = &msg
		}

		saveErr := s.repo.SaveCAS(ctx, order)
		if saveErr == nil {
			s.logg.Info(ctx, "payout status updated from transfer event")
			return nil
		}
		typed := pkgerrors.As(saveErr)
		if typed == nil || typed.Code() != pkgerrors.CodeConflict {
			return saveErr
		}
		var err error
		order, err = s.repo.FindByID(ctx, order.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

// findOrder resolves the event's order reference. Transfer events carry the
// dispatch reference, which is the order id, so a UUID-shaped reference is
// tried as a direct lookup when the external-order index misses.
func (s *Service) findOrder(ctx context.Context, event *events.PaymentEvent) (*models.Order, error) {
	order, err := s.repo.FindByProviderOrder(ctx, event.Provider, event.ExternalOrderID)
	if err == nil {
		return order, nil
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		return nil, err
	}
	if id, parseErr := uuid.Parse(event.ExternalOrderID); parseErr == nil {
		if byID, idErr := s.repo.FindByID(ctx, id); idErr == nil {
			return byID, nil
		}
	}
	return nil, err
}

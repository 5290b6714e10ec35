package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/vendorpay-backend/api/responses"
	"github.com/angelmondragon/vendorpay-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
	"github.com/angelmondragon/vendorpay-backend/pkg/logger"
)

type orderApprover interface {
	Approve(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type payoutRetrier interface {
	Retry(ctx context.Context, orderID uuid.UUID) error
}

type OperatorParams struct {
	Orders  orderApprover
	Payouts payoutRetrier
	Logger  *logger.Logger
}

// Operator exposes the manual controls: releasing held orders and re-arming
// failed payouts.
type Operator struct {
	orders  orderApprover
	payouts payoutRetrier
	logg    *logger.Logger
}

func NewOperator(params OperatorParams) (*Operator, error) {
	if params.Orders == nil {
		return nil, errors.New("orders service is required")
	}
	if params.Payouts == nil {
		return nil, errors.New("payouts service is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Operator{
		orders:  params.Orders,
		payouts: params.Payouts,
		logg:    params.Logger,
	}, nil
}

// ApproveOrder releases a pending_approval order into completion.
func (c *Operator) ApproveOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), c.logg, w, err)
			return
		}

		ctx := c.logg.WithOrderID(r.Context(), orderID.String())
		order, err := c.orders.Approve(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, c.logg, w, err)
			return
		}

		c.logg.Info(ctx, "order approved")
		responses.WriteSuccess(w, orderSummary(order))
	}
}

// RetryPayout re-arms a failed payout and attempts dispatch immediately.
func (c *Operator) RetryPayout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), c.logg, w, err)
			return
		}

		ctx := c.logg.WithOrderID(r.Context(), orderID.String())
		if err := c.payouts.Retry(ctx, orderID); err != nil {
			responses.WriteError(ctx, c.logg, w, err)
			return
		}

		c.logg.Info(ctx, "payout retry dispatched")
		responses.WriteSuccess(w, map[string]string{
			"order_id": orderID.String(),
			"status":   "dispatched",
		})
	}
}

func orderIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return orderID, nil
}

func orderSummary(order *models.Order) map[string]any {
	return map[string]any{
		"id":            order.ID.String(),
		"status":        order.Status,
		"payout_status": order.PayoutStatus,
	}
}

package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/vendorpay-backend/pkg/db/models"
	"github.com/angelmondragon/vendorpay-backend/pkg/logger"
)

const defaultPayoutBatchSize = 100

// PayoutJobParams configure the scheduled payout scan.
type PayoutJobParams struct {
	Logger     *logger.Logger
	Orders     dueOrdersReader
	Dispatcher payoutDispatcher
	BatchSize  int
}

type dueOrdersReader interface {
	FindDuePayouts(ctx context.Context, now time.Time, limit int) ([]models.Order, error)
}

type payoutDispatcher interface {
	Dispatch(ctx context.Context, orderID uuid.UUID) error
}

// NewPayoutJob builds the job that dispatches payouts whose delay has
// elapsed. The dispatcher's own claim step makes overlapping scans safe.
func NewPayoutJob(params PayoutJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("due orders reader required")
	}
	if params.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultPayoutBatchSize
	}
	return &payoutJob{
		logg:       params.Logger,
		orders:     params.Orders,
		dispatcher: params.Dispatcher,
		batchSize:  batchSize,
		now:        time.Now,
	}, nil
}

type payoutJob struct {
	logg       *logger.Logger
	orders     dueOrdersReader
	dispatcher payoutDispatcher
	batchSize  int
	now        func() time.Time
}

func (j *payoutJob) Name() string { return "payout-dispatch" }

func (j *payoutJob) Run(ctx context.Context) error {
	due, err := j.orders.FindDuePayouts(ctx, j.now(), j.batchSize)
	if err != nil {
		return fmt.Errorf("scan due payouts: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	var dispatchErrs error
	dispatched := 0
	for _, order := range due {
		if err := j.dispatcher.Dispatch(ctx, order.ID); err != nil {
			// Failures are already recorded on the order; keep going so
			// one bad payout does not starve the rest of the batch.
			dispatchErrs = multierr.Append(dispatchErrs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		dispatched++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"due":        len(due),
		"dispatched": dispatched,
	})
	j.logg.Info(logCtx, "payout scan complete")
	return dispatchErrs
}

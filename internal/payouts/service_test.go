package payouts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorpay-backend/internal/vendors"
	"github.com/angelmondragon/vendorpay-backend/pkg/db/models"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
	"github.com/angelmondragon/vendorpay-backend/pkg/logger"
	"github.com/angelmondragon/vendorpay-backend/pkg/outbox"
)

func setupPayoutsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  vendor_id TEXT NOT NULL,
  payment_provider TEXT NOT NULL,
  external_order_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending_payment',
  total_minor INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  marketplace INTEGER NOT NULL DEFAULT 0,
  platform_fee_minor INTEGER,
  vendor_earnings_minor INTEGER,
  payout_status TEXT NOT NULL DEFAULT 'none',
  payout_error TEXT,
  payout_due_at DATETIME,
  paid_at DATETIME,
  completed_at DATETIME,
  archived_at DATETIME,
  version INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS payout_attempts (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  vendor_id TEXT NOT NULL,
  provider TEXT NOT NULL,
  attempt_number INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  amount_minor INTEGER NOT NULL,
  currency TEXT NOT NULL,
  batch_id TEXT,
  error TEXT,
  created_at DATETIME
);
CREATE TABLE IF NOT EXISTS vendor_accounts (
  id TEXT PRIMARY KEY,
  vendor_id TEXT NOT NULL,
  provider TEXT NOT NULL,
  destination TEXT NOT NULL,
  currencies TEXT,
  connected INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	for _, stmt := range splitStatements(ddl) {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func splitStatements(ddl string) []string {
	var out []string
	start := 0
	for i := 0; i < len(ddl); i++ {
		if ddl[i] == ';' {
			out = append(out, ddl[start:i+1])
			start = i + 1
		}
	}
	return out
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
}

type stubTransfer struct {
	calls  int
	result *TransferResult
	err    error
}

func (s *stubTransfer) SendTransfer(_ context.Context, _ TransferRequest) (*TransferResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func newPayoutService(t *testing.T, db *gorm.DB, registry Registry) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		DB:       db,
		Logger:   testLogger(),
		Registry: registry,
		Vendors:  vendors.NewRepository(db),
		Outbox:   outbox.NewService(outbox.NewRepository(db), testLogger()),
		Timeout:  5 * time.Second,
	})
	require.NoError(t, err)
	return svc
}

func seedPayableOrder(t *testing.T, db *gorm.DB, mutate func(*models.Order)) *models.Order {
	t.Helper()
	earnings := int64(9000)
	fee := int64(1000)
	due := time.Now().Add(-time.Minute)
	order := &models.Order{
		ID:               uuid.New(),
		VendorID:         uuid.New(),
		PaymentProvider:  enums.ProviderPaystack,
		ExternalOrderID:  "order-42",
		Status:           enums.OrderStatusCompleted,
		TotalMinor:       10000,
		Currency:         "NGN",
		Marketplace:      true,
		PlatformFeeMinor: &fee,
		VendorEarnings:   &earnings,
		PayoutStatus:     enums.PayoutStatusNone,
		PayoutDueAt:      &due,
	}
	if mutate != nil {
		mutate(order)
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func connectVendor(t *testing.T, db *gorm.DB, order *models.Order) {
	t.Helper()
	account := &models.VendorAccount{
		ID:          uuid.New(),
		VendorID:    order.VendorID,
		Provider:    order.PaymentProvider,
		Destination: "RCP_1a2b3c",
		Connected:   true,
	}
	require.NoError(t, db.Create(account).Error)
}

func reloadOrder(t *testing.T, db *gorm.DB, id uuid.UUID) *models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, db.Where("id = ?", id).First(&order).Error)
	return &order
}

func loadAttempts(t *testing.T, db *gorm.DB, orderID uuid.UUID) []models.PayoutAttempt {
	t.Helper()
	var rows []models.PayoutAttempt
	require.NoError(t, db.Where("order_id = ?", orderID).Order("attempt_number ASC").Find(&rows).Error)
	return rows
}

func TestDispatchSuccess(t *testing.T) {
	db := setupPayoutsTestDB(t)
	transfer := &stubTransfer{result: &TransferResult{BatchID: "TRF_abc"}}
	svc := newPayoutService(t, db, Registry{enums.ProviderPaystack: transfer})
	order := seedPayableOrder(t, db, nil)
	connectVendor(t, db, order)

	require.NoError(t, svc.Dispatch(context.Background(), order.ID))

	got := reloadOrder(t, db, order.ID)
	require.Equal(t, enums.PayoutStatusPaid, got.PayoutStatus)
	require.Nil(t, got.PayoutError)

	attempts := loadAttempts(t, db, order.ID)
	require.Len(t, attempts, 1)
	require.Equal(t, enums.PayoutAttemptStatusSent, attempts[0].Status)
	require.NotNil(t, attempts[0].BatchID)
	require.Equal(t, "TRF_abc", *attempts[0].BatchID)
	require.Equal(t, int64(9000), attempts[0].AmountMinor)
	require.Equal(t, 1, transfer.calls)
}

func TestDispatchTwiceSendsOnce(t *testing.T) {
	db := setupPayoutsTestDB(t)
	transfer := &stubTransfer{result: &TransferResult{BatchID: "TRF_abc"}}
	svc := newPayoutService(t, db, Registry{enums.ProviderPaystack: transfer})
	order := seedPayableOrder(t, db, nil)
	connectVendor(t, db, order)

	require.NoError(t, svc.Dispatch(context.Background(), order.ID))
	require.NoError(t, svc.Dispatch(context.Background(), order.ID))

	require.Equal(t, 1, transfer.calls)
	require.Len(t, loadAttempts(t, db, order.ID), 1)
}

func TestDispatchVendorNotConnected(t *testing.T) {
	db := setupPayoutsTestDB(t)
	transfer := &stubTransfer{result: &TransferResult{BatchID: "TRF_abc"}}
	svc := newPayoutService(t, db, Registry{enums.ProviderPaystack: transfer})
	order := seedPayableOrder(t, db, nil)

	err := svc.Dispatch(context.Background(), order.ID)
	require.Error(t, err)
	require.Equal(t, 0, transfer.calls)

	got := reloadOrder(t, db, order.ID)
	require.Equal(t, enums.PayoutStatusFailed, got.PayoutStatus)
	require.NotNil(t, got.PayoutError)

	attempts := loadAttempts(t, db, order.ID)
	require.Len(t, attempts, 1)
	require.Equal(t, enums.PayoutAttemptStatusFailed, attempts[0].Status)

	var alerts int64
	require.NoError(t, db.Table("outbox_events").Count(&alerts).Error)
	require.Equal(t, int64(1), alerts)
}

func TestDispatchTransferFailure(t *testing.T) {
	db := setupPayoutsTestDB(t)
	transfer := &stubTransfer{err: pkgerrors.New(pkgerrors.CodePayout, "insufficient balance")}
	svc := newPayoutService(t, db, Registry{enums.ProviderPaystack: transfer})
	order := seedPayableOrder(t, db, nil)
	connectVendor(t, db, order)

	err := svc.Dispatch(context.Background(), order.ID)
	require.Error(t, err)

	got := reloadOrder(t, db, order.ID)
	require.Equal(t, enums.PayoutStatusFailed, got.PayoutStatus)

	// Failed payouts wait for the operator; re-dispatch must not retry.
	require.NoError(t, svc.Dispatch(context.Background(), order.ID))
	require.Equal(t, 1, transfer.calls)
}

func TestDispatchMissingTransferClient(t *testing.T) {
	db := setupPayoutsTestDB(t)
	svc := newPayoutService(t, db, Registry{})
	order := seedPayableOrder(t, db, nil)
	connectVendor(t, db, order)

	err := svc.Dispatch(context.Background(), order.ID)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeConfiguration, typed.Code())

	got := reloadOrder(t, db, order.ID)
	require.Equal(t, enums.PayoutStatusFailed, got.PayoutStatus)
}

func TestDispatchSkipsNonMarketplaceOrder(t *testing.T) {
	db := setupPayoutsTestDB(t)
	transfer := &stubTransfer{result: &TransferResult{BatchID: "TRF_abc"}}
	svc := newPayoutService(t, db, Registry{enums.ProviderPaystack: transfer})
	order := seedPayableOrder(t, db, func(o *models.Order) {
		o.Marketplace = false
	})

	require.NoError(t, svc.Dispatch(context.Background(), order.ID))
	require.Equal(t, 0, transfer.calls)
	require.Empty(t, loadAttempts(t, db, order.ID))
}

func TestDispatchSkipsIncompleteOrder(t *testing.T) {
	db := setupPayoutsTestDB(t)
	transfer := &stubTransfer{result: &TransferResult{BatchID: "TRF_abc"}}
	svc := newPayoutService(t, db, Registry{enums.ProviderPaystack: transfer})
	order := seedPayableOrder(t, db, func(o *models.Order) {
		o.Status = enums.OrderStatusPaid
	})

	require.NoError(t, svc.Dispatch(context.Background(), order.ID))
	require.Equal(t, 0, transfer.calls)
}

func TestDispatchSkipsInFlightPayout(t *testing.T) {
	db := setupPayoutsTestDB(t)
	transfer := &stubTransfer{result: &TransferResult{BatchID: "TRF_abc"}}
	svc := newPayoutService(t, db, Registry{enums.ProviderPaystack: transfer})
	order := seedPayableOrder(t, db, func(o *models.Order) {
		o.PayoutStatus = enums.PayoutStatusPending
	})

	require.NoError(t, svc.Dispatch(context.Background(), order.ID))
	require.Equal(t, 0, transfer.calls)
}

func TestRetryAfterFailure(t *testing.T) {
	db := setupPayoutsTestDB(t)
	transfer := &stubTransfer{err: pkgerrors.New(pkgerrors.CodePayout, "insufficient balance")}
	svc := newPayoutService(t, db, Registry{enums.ProviderPaystack: transfer})
	order := seedPayableOrder(t, db, nil)
	connectVendor(t, db, order)

	require.Error(t, svc.Dispatch(context.Background(), order.ID))

	transfer.err = nil
	transfer.result = &TransferResult{BatchID: "TRF_retry"}
	require.NoError(t, svc.Retry(context.Background(), order.ID))

	got := reloadOrder(t, db, order.ID)
	require.Equal(t, enums.PayoutStatusPaid, got.PayoutStatus)
	require.Nil(t, got.PayoutError)

	attempts := loadAttempts(t, db, order.ID)
	require.Len(t, attempts, 2)
	require.Equal(t, enums.PayoutAttemptStatusFailed, attempts[0].Status)
	require.Equal(t, enums.PayoutAttemptStatusSent, attempts[1].Status)
	require.Equal(t, 2, attempts[1].AttemptNumber)
}

func TestRetryRequiresFailedState(t *testing.T) {
	db := setupPayoutsTestDB(t)
	svc := newPayoutService(t, db, Registry{})
	order := seedPayableOrder(t, db, nil)

	err := svc.Retry(context.Background(), order.ID)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

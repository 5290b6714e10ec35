package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorpay-backend/pkg/db/models"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) FindByProviderOrder(ctx context.Context, provider enums.Provider, externalOrderID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("payment_provider = ? AND external_order_id = ?", provider, externalOrderID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// SaveCAS persists mutable order columns with an optimistic version check.
// The WHERE clause pins the version read at load time; zero rows affected
// means another writer got there first and the caller must reload.
func (r *Repository) SaveCAS(ctx context.Context, order *models.Order) error {
	loadedVersion := order.Version
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND version = ?", order.ID, loadedVersion).
		Updates(map[string]any{
			"status":                order.Status,
			"platform_fee_minor":    order.PlatformFeeMinor,
			"vendor_earnings_minor": order.VendorEarnings,
			"payout_status":         order.PayoutStatus,
			"payout_error":          order.PayoutError,
			"payout_due_at":         order.PayoutDueAt,
			"paid_at":               order.PaidAt,
			"completed_at":          order.CompletedAt,
			"archived_at":           order.ArchivedAt,
			"updated_at":            time.Now(),
			"version":               loadedVersion + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "order modified concurrently")
	}
	order.Version = loadedVersion + 1
	return nil
}

// FindDuePayouts returns marketplace orders whose scheduled payout time has
// arrived. The worker feeds these to the dispatcher.
func (r *Repository) FindDuePayouts(ctx context.Context, now time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("payout_status = ?", enums.PayoutStatusNone).
		Where("payout_due_at IS NOT NULL AND payout_due_at <= ?", now).
		Order("payout_due_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

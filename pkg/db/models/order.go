package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
)

// Order is the local record of a purchase reconciled against provider events.
// Status changes only through the order state machine; the Version column
// backs optimistic locking so concurrent webhook deliveries serialize per order.
type Order struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID         uuid.UUID          `gorm:"column:vendor_id;type:uuid;not null;index"`
	PaymentProvider  enums.Provider     `gorm:"column:payment_provider;type:provider_enum;not null;uniqueIndex:uniq_orders_provider_external_order"`
	ExternalOrderID  string             `gorm:"column:external_order_id;not null;uniqueIndex:uniq_orders_provider_external_order"`
	Status           enums.OrderStatus  `gorm:"column:status;type:order_status;not null;default:'pending_payment'"`
	TotalMinor       int64              `gorm:"column:total_minor;not null"`
	Currency         enums.Currency     `gorm:"column:currency;type:text;not null;default:'USD'"`
	Marketplace      bool               `gorm:"column:marketplace;not null;default:false"`
	PlatformFeeMinor *int64             `gorm:"column:platform_fee_minor"`
	VendorEarnings   *int64             `gorm:"column:vendor_earnings_minor"`
	PayoutStatus     enums.PayoutStatus `gorm:"column:payout_status;type:payout_status;not null;default:'none'"`
	PayoutError      *string            `gorm:"column:payout_error"`
	PayoutDueAt      *time.Time         `gorm:"column:payout_due_at;index"`
	PaidAt           *time.Time         `gorm:"column:paid_at"`
	CompletedAt      *time.Time         `gorm:"column:completed_at"`
	ArchivedAt       *time.Time         `gorm:"column:archived_at"`
	Version          int64              `gorm:"column:version;not null;default:0"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// HasSplit reports whether marketplace fee fields are populated.
func (o *Order) HasSplit() bool {
	return o.PlatformFeeMinor != nil && o.VendorEarnings != nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
)

// VendorAccount is a vendor's payout destination for one provider. The
// reconciliation core only reads these rows; the connect flow owns mutation.
type VendorAccount struct {
	ID       uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID uuid.UUID      `gorm:"column:vendor_id;type:uuid;not null;uniqueIndex:uniq_vendor_accounts_vendor_provider"`
	Provider enums.Provider `gorm:"column:provider;type:provider_enum;not null;uniqueIndex:uniq_vendor_accounts_vendor_provider"`
	// Destination holds the provider-specific payout target: PayPal payee
	// email, Square team member id, Mercado Pago user id, or a Paystack
	// transfer recipient code.
	Destination string         `gorm:"column:destination;not null"`
	Currencies  pq.StringArray `gorm:"column:currencies;type:text[]"`
	Connected   bool           `gorm:"column:connected;not null;default:false"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

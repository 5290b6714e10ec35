package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
)

// PayoutAttempt records one try at transferring vendor earnings. Append-only;
// the order's current payout state is derived from the latest attempt.
type PayoutAttempt struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID                 `gorm:"column:order_id;type:uuid;not null;index"`
	VendorID      uuid.UUID                 `gorm:"column:vendor_id;type:uuid;not null"`
	Provider      enums.Provider            `gorm:"column:provider;type:provider_enum;not null"`
	AttemptNumber int                       `gorm:"column:attempt_number;not null"`
	Status        enums.PayoutAttemptStatus `gorm:"column:status;type:payout_attempt_status;not null;default:'pending'"`
	AmountMinor   int64                     `gorm:"column:amount_minor;not null"`
	Currency      enums.Currency            `gorm:"column:currency;type:text;not null"`
	BatchID       *string                   `gorm:"column:batch_id"`
	Error         *string                   `gorm:"column:error"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

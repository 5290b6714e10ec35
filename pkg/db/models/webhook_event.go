package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
)

// WebhookEvent is the idempotency ledger: one row per provider event ever
// accepted. The (provider, external_event_id) unique index is the atomic
// insert-if-absent gate; rows are retained indefinitely because providers
// may redeliver over hours or days. RawPayload is kept for audit and replay.
type WebhookEvent struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Provider        enums.Provider  `gorm:"column:provider;type:provider_enum;not null;uniqueIndex:uniq_webhook_events_provider_event"`
	ExternalEventID string          `gorm:"column:external_event_id;not null;uniqueIndex:uniq_webhook_events_provider_event"`
	ExternalOrderID string          `gorm:"column:external_order_id;index"`
	Kind            enums.EventKind `gorm:"column:kind;type:event_kind;not null;default:'unhandled'"`
	AmountMinor     int64           `gorm:"column:amount_minor;not null;default:0"`
	Currency        enums.Currency  `gorm:"column:currency;type:text"`
	RawPayload      []byte          `gorm:"column:raw_payload"`
	ReceivedAt      time.Time       `gorm:"column:received_at;not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}

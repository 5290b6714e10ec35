package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorpay-backend/pkg/db/models"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
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
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func insertAlertRow(t *testing.T, db *gorm.DB, createdAt time.Time) uuid.UUID {
	t.Helper()
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.OutboxEventPayoutFailed,
		AggregateType: enums.OutboxAggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"reason":"test"}`),
		CreatedAt:     createdAt,
	}
	require.NoError(t, db.Create(&row).Error)
	return row.ID
}

func TestFetchUnpublishedSkipsExhaustedRows(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	fresh := insertAlertRow(t, db, time.Now().Add(-time.Minute))
	exhausted := insertAlertRow(t, db, time.Now().Add(-2*time.Minute))
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("id = ?", exhausted).
		Update("attempt_count", 10).Error)

	rows, err := repo.FetchUnpublishedTx(db, 10, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, fresh, rows[0].ID)
}

func TestMarkPublishedAndFailed(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	id := insertAlertRow(t, db, time.Now())

	require.NoError(t, repo.MarkFailedTx(db, id, errors.New("publish timeout")))
	var row models.OutboxEvent
	require.NoError(t, db.First(&row, "id = ?", id).Error)
	require.Equal(t, 1, row.AttemptCount)
	require.NotNil(t, row.LastError)

	require.NoError(t, repo.MarkPublishedTx(db, id))
	require.NoError(t, db.First(&row, "id = ?", id).Error)
	require.NotNil(t, row.PublishedAt)

	rows, err := repo.FetchUnpublishedTx(db, 10, 10)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestDeletePublishedBeforePrunesOnlyOldPublished(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	oldPublished := insertAlertRow(t, db, time.Now().Add(-48*time.Hour))
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("id = ?", oldPublished).
		Update("published_at", time.Now().Add(-36*time.Hour)).Error)
	unpublished := insertAlertRow(t, db, time.Now().Add(-48*time.Hour))

	removed, err := repo.DeletePublishedBefore(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	var remaining []models.OutboxEvent
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	require.Equal(t, unpublished, remaining[0].ID)
}

func TestServiceEmitWrapsPayloadInEnvelope(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	aggregateID := uuid.New()
	err := svc.Emit(context.Background(), db, Alert{
		EventType:     enums.OutboxEventVendorNotConnected,
		AggregateType: enums.OutboxAggregatePayout,
		AggregateID:   aggregateID,
		Data:          map[string]string{"vendor_id": "v-1"},
	})
	require.NoError(t, err)

	var row models.OutboxEvent
	require.NoError(t, db.First(&row).Error)
	require.Equal(t, enums.OutboxEventVendorNotConnected, row.EventType)
	require.Equal(t, aggregateID, row.AggregateID)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	require.Equal(t, 1, envelope.Version)
	require.NotEmpty(t, envelope.EventID)
	require.JSONEq(t, `{"vendor_id":"v-1"}`, string(envelope.Data))
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	err := svc.Emit(context.Background(), nil, Alert{})
	require.Error(t, err)
}

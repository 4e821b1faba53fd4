package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/retailhive/retailhive-backend/pkg/db/dbtest"
	"github.com/retailhive/retailhive-backend/pkg/db/models"
	"github.com/retailhive/retailhive-backend/pkg/enums"
)

func TestEmitWritesEnvelope(t *testing.T) {
	client, conn := dbtest.Client(t)
	svc := NewService(NewRepository(conn), nil)
	orderID := uuid.New()
	actor := uuid.New()

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &ActorRef{UserID: actor, Role: "customer"},
			Data:          map[string]string{"order_id": orderID.String()},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventOrderCreated, rows[0].EventType)
	assert.Equal(t, orderID, rows[0].AggregateID)
	assert.Nil(t, rows[0].PublishedAt)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	assert.False(t, envelope.OccurredAt.IsZero())
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, actor, envelope.Actor.UserID)
	assert.JSONEq(t, `{"order_id":"`+orderID.String()+`"}`, string(envelope.Data))
}

func TestEmitRollsBackWithCaller(t *testing.T) {
	client, conn := dbtest.Client(t)
	svc := NewService(NewRepository(conn), nil)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventProductApproved,
			AggregateType: enums.AggregateProduct,
			AggregateID:   uuid.New(),
			Data:          struct{}{},
		}); err != nil {
			return err
		}
		return errors.New("caller failed")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitValidates(t *testing.T) {
	_, conn := dbtest.Client(t)
	svc := NewService(NewRepository(conn), nil)
	ctx := context.Background()

	assert.Error(t, svc.Emit(ctx, nil, DomainEvent{}))
	assert.Error(t, svc.Emit(ctx, conn, DomainEvent{EventType: "bogus", AggregateType: enums.AggregateOrder, AggregateID: uuid.New()}))
	assert.Error(t, svc.Emit(ctx, conn, DomainEvent{EventType: enums.EventOrderCreated, AggregateType: "bogus", AggregateID: uuid.New()}))
	assert.Error(t, svc.Emit(ctx, conn, DomainEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder}))
}

func seedEvent(t *testing.T, conn *gorm.DB, createdAt time.Time, attempts int, published bool) models.OutboxEvent {
	t.Helper()
	row := models.OutboxEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		CreatedAt:     createdAt,
		AttemptCount:  attempts,
	}
	if published {
		ts := createdAt.Add(time.Second)
		row.PublishedAt = &ts
	}
	require.NoError(t, conn.Create(&row).Error)
	return row
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	client, conn := dbtest.Client(t)
	repo := NewRepository(conn)
	now := time.Now().UTC()

	oldest := seedEvent(t, conn, now.Add(-3*time.Minute), 0, false)
	failing := seedEvent(t, conn, now.Add(-2*time.Minute), 2, false)
	seedEvent(t, conn, now.Add(-time.Minute), 0, true)
	seedEvent(t, conn, now, 5, false)

	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 5)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, oldest.ID, rows[0].ID)
		assert.Equal(t, failing.ID, rows[1].ID)

		require.NoError(t, repo.MarkPublishedTx(tx, oldest.ID))
		require.NoError(t, repo.MarkFailedTx(tx, failing.ID, errors.New("pubsub unavailable")))
		return nil
	}))

	var reloaded models.OutboxEvent
	require.NoError(t, conn.First(&reloaded, "id = ?", failing.ID).Error)
	assert.Equal(t, 3, reloaded.AttemptCount)
	require.NotNil(t, reloaded.LastError)
	assert.Equal(t, "pubsub unavailable", *reloaded.LastError)

	require.NoError(t, conn.First(&reloaded, "id = ?", oldest.ID).Error)
	assert.NotNil(t, reloaded.PublishedAt)

	pending, err := repo.CountPending(context.Background(), 5)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending)

	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return repo.MarkTerminalTx(tx, failing.ID, errors.New("gave up"), 5)
	}))
	pending, err = repo.CountPending(context.Background(), 5)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestPruneDelivered(t *testing.T) {
	client, conn := dbtest.Client(t)
	repo := NewRepository(conn)
	now := time.Now().UTC()
	cutoff := now.Add(-24 * time.Hour)

	seedEvent(t, conn, now.Add(-48*time.Hour), 0, true)
	seedEvent(t, conn, now.Add(-48*time.Hour), 10, false)
	keptPending := seedEvent(t, conn, now.Add(-48*time.Hour), 1, false)
	keptRecent := seedEvent(t, conn, now, 0, true)

	var deleted int64
	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		deleted, err = repo.PruneDelivered(context.Background(), tx, cutoff, 10, 1)
		return err
	}))
	assert.EqualValues(t, 1, deleted)

	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		deleted, err = repo.PruneDelivered(context.Background(), tx, cutoff, 10, 0)
		return err
	}))
	assert.EqualValues(t, 1, deleted)

	var remaining []models.OutboxEvent
	require.NoError(t, conn.Order("created_at").Find(&remaining).Error)
	require.Len(t, remaining, 2)
	assert.ElementsMatch(t, []uuid.UUID{keptPending.ID, keptRecent.ID}, []uuid.UUID{remaining[0].ID, remaining[1].ID})
}

func TestDLQRepository(t *testing.T) {
	client, conn := dbtest.Client(t)
	repo := NewDLQRepository(conn)
	eventID := uuid.New()
	long := strings.Repeat("x", 2000)

	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return repo.InsertTx(tx, models.OutboxDLQ{
			EventID:       eventID,
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
			ErrorMessage:  &long,
			FailedAt:      time.Now().UTC(),
		})
	}))

	row, err := repo.FindByEventID(context.Background(), eventID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, row.ErrorReason)
	require.NotNil(t, row.ErrorMessage)
	assert.Len(t, *row.ErrorMessage, maxDLQErrorLen)

	missing, err := repo.FindByEventID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

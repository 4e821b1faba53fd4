package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailhive/retailhive-backend/pkg/config"
	"github.com/retailhive/retailhive-backend/pkg/db/models"
	"github.com/retailhive/retailhive-backend/pkg/enums"
	"github.com/retailhive/retailhive-backend/pkg/outbox"
	"github.com/retailhive/retailhive-backend/pkg/outbox/payloads"
)

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders-topic", CatalogTopic: "catalog-topic"})
	require.NoError(t, err)
	return reg
}

func mustEnvelope(t *testing.T, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return envelope
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{CatalogTopic: "c"})
	assert.Error(t, err)
	_, err = NewEventRegistry(config.PubSubConfig{OrdersTopic: "o"})
	assert.Error(t, err)
}

func TestResolveOrderCreated(t *testing.T) {
	reg := newTestEventRegistry(t)
	orderID := uuid.New()

	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload: mustEnvelope(t, payloads.OrderCreatedEvent{
			OrderID:     orderID,
			TotalAmount: decimal.RequireFromString("25.00"),
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, "orders-topic", resolved.Descriptor.Topic)
	assert.NotEmpty(t, resolved.Envelope.EventID)

	payload, ok := resolved.Payload.(*payloads.OrderCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, orderID, payload.OrderID)
	assert.True(t, decimal.NewFromInt(25).Equal(payload.TotalAmount))
}

func TestResolveProductDecisionUsesCatalogTopic(t *testing.T) {
	reg := newTestEventRegistry(t)

	for _, eventType := range []enums.OutboxEventType{enums.EventProductApproved, enums.EventProductRejected} {
		resolved, err := reg.Resolve(models.OutboxEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateProduct,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, payloads.ProductDecisionEvent{ProductName: "Lamp"}),
		})
		require.NoError(t, err)
		assert.Equal(t, "catalog-topic", resolved.Descriptor.Topic)
		assert.IsType(t, &payloads.ProductDecisionEvent{}, resolved.Payload)
	}
}

func TestResolveFailuresAreNonRetryable(t *testing.T) {
	reg := newTestEventRegistry(t)
	valid := mustEnvelope(t, payloads.OrderCreatedEvent{})

	cases := map[string]models.OutboxEvent{
		"unknown type": {EventType: "order_shipped", AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: valid},
		"aggregate mismatch": {
			EventType: enums.EventOrderCreated, AggregateType: enums.AggregateProduct, AggregateID: uuid.New(), Payload: valid,
		},
		"missing aggregate id": {EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, Payload: valid},
		"bad envelope": {
			EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{`),
		},
		"null data": {
			EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(),
			Payload: json.RawMessage(`{"version":1,"eventId":"x","data":null}`),
		},
		"bad data": {
			EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(),
			Payload: json.RawMessage(`{"version":1,"eventId":"x","data":{"order_id":42}}`),
		},
	}

	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			require.Error(t, err)
			var nonRetry NonRetryableError
			assert.True(t, errors.As(err, &nonRetry))
		})
	}
}

func TestDescriptorLookup(t *testing.T) {
	reg := newTestEventRegistry(t)
	desc, ok := reg.Descriptor(enums.EventProductRejected)
	require.True(t, ok)
	assert.Equal(t, enums.AggregateProduct, desc.AggregateType)

	_, ok = reg.Descriptor("nope")
	assert.False(t, ok)
}

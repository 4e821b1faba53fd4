// Package analytics streams placed orders into BigQuery.
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/retailhive/retailhive-backend/pkg/enums"
	"github.com/retailhive/retailhive-backend/pkg/logger"
	"github.com/retailhive/retailhive-backend/pkg/metrics"
	"github.com/retailhive/retailhive-backend/pkg/outbox"
	"github.com/retailhive/retailhive-backend/pkg/outbox/payloads"
	"github.com/retailhive/retailhive-backend/pkg/outbox/registry"
)

const analyticsConsumerName = "analytics"

type orderEventWriter interface {
	InsertOrderEvent(ctx context.Context, row OrderEventRow) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer writes order events to BigQuery while honoring Redis idempotency.
type Consumer struct {
	writer   orderEventWriter
	manager  idempotencyChecker
	decoders *registry.DecoderRegistry
	metrics  *metrics.ConsumerMetrics
	logg     *logger.Logger
}

// NewConsumer builds a new analytics consumer. consumerMetrics may be nil.
func NewConsumer(writer orderEventWriter, manager idempotencyChecker, consumerMetrics *metrics.ConsumerMetrics, logg *logger.Logger) (*Consumer, error) {
	if writer == nil {
		return nil, fmt.Errorf("order event writer required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	decoders := registry.NewDecoderRegistry()
	decoders.Register(enums.EventOrderCreated, 1, registry.JSONDecoder[payloads.OrderCreatedEvent]())

	return &Consumer{
		writer:   writer,
		manager:  manager,
		decoders: decoders,
		metrics:  consumerMetrics,
		logg:     logg,
	}, nil
}

// Run consumes analytics messages until the context is canceled.
func (c *Consumer) Run(ctx context.Context, subscription *pubsub.Subscriber) error {
	if subscription == nil {
		return errors.New("analytics subscription is required")
	}
	return subscription.Receive(ctx, func(innerCtx context.Context, msg *pubsub.Message) {
		if c.handleMessage(innerCtx, msg) {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// handleMessage reports whether msg should be nacked.
func (c *Consumer) handleMessage(ctx context.Context, msg *pubsub.Message) bool {
	logCtx := c.logg.WithField(ctx, "message_id", msg.ID)

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "invalid analytics envelope")
		return false
	}
	if strings.TrimSpace(envelope.EventID) == "" {
		envelope.EventID = strings.TrimSpace(msg.Attributes["event_id"])
	}
	if envelope.OccurredAt.IsZero() {
		if created := strings.TrimSpace(msg.Attributes["created_at"]); created != "" {
			if parsed, err := time.Parse(time.RFC3339Nano, created); err == nil {
				envelope.OccurredAt = parsed
			}
		}
	}

	eventType := enums.OutboxEventType(strings.TrimSpace(msg.Attributes["event_type"]))
	if err := c.Process(logCtx, eventType, envelope); err != nil {
		c.metrics.Inc(analyticsConsumerName, string(eventType), metrics.ConsumerOutcomeNack)
		return true
	}
	return false
}

// Process ingests the envelope into BigQuery when the event is an order_created.
func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": string(eventType),
	})

	if eventType != enums.EventOrderCreated {
		c.logg.Info(logCtx, "event not handled by analytics consumer")
		return nil
	}

	eventID, err := uuid.Parse(strings.TrimSpace(envelope.EventID))
	if err != nil {
		c.logg.Warn(logCtx, "invalid event id")
		return nil
	}

	already, err := c.manager.CheckAndMarkProcessed(ctx, analyticsConsumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return fmt.Errorf("idempotency check: %w", err)
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		c.metrics.Inc(analyticsConsumerName, string(eventType), metrics.ConsumerOutcomeDuplicate)
		return nil
	}

	version := envelope.Version
	if version <= 0 {
		version = 1
	}
	decoded, err := c.decoders.Decode(eventType, version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.manager.Release(ctx, analyticsConsumerName, eventID)
		return err
	}
	event := decoded.(*payloads.OrderCreatedEvent)
	logCtx = c.logg.WithField(logCtx, "order_id", event.OrderID.String())

	row, err := buildOrderEventRow(string(eventType), envelope, event)
	if err != nil {
		c.logg.Error(logCtx, "failed to build order event row", err)
		_ = c.manager.Release(ctx, analyticsConsumerName, eventID)
		return err
	}

	if err := c.writer.InsertOrderEvent(logCtx, row); err != nil {
		c.logg.Error(logCtx, "failed to insert order event row", err)
		_ = c.manager.Release(ctx, analyticsConsumerName, eventID)
		return err
	}

	c.logg.Info(logCtx, "order event ingested")
	c.metrics.Inc(analyticsConsumerName, string(eventType), metrics.ConsumerOutcomeAck)
	return nil
}

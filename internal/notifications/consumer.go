// Package notifications mails buyers and retailers about domain events.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/retailhive/retailhive-backend/pkg/enums"
	"github.com/retailhive/retailhive-backend/pkg/logger"
	"github.com/retailhive/retailhive-backend/pkg/mailer"
	"github.com/retailhive/retailhive-backend/pkg/metrics"
	"github.com/retailhive/retailhive-backend/pkg/outbox"
	"github.com/retailhive/retailhive-backend/pkg/outbox/payloads"
	"github.com/retailhive/retailhive-backend/pkg/outbox/registry"
)

const consumerName = "notifications"

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer turns order and catalog events into mail. Delivery is best
// effort: a failed send is logged and the message still acked.
type Consumer struct {
	sender   mailer.Sender
	manager  idempotencyChecker
	decoders *registry.DecoderRegistry
	metrics  *metrics.ConsumerMetrics
	logg     *logger.Logger
}

// NewConsumer builds a notification consumer. consumerMetrics may be nil.
func NewConsumer(sender mailer.Sender, manager idempotencyChecker, consumerMetrics *metrics.ConsumerMetrics, logg *logger.Logger) (*Consumer, error) {
	if sender == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	decoders := registry.NewDecoderRegistry()
	decoders.Register(enums.EventOrderCreated, 1, registry.JSONDecoder[payloads.OrderCreatedEvent]())
	decoders.Register(enums.EventProductApproved, 1, registry.JSONDecoder[payloads.ProductDecisionEvent]())
	decoders.Register(enums.EventProductRejected, 1, registry.JSONDecoder[payloads.ProductDecisionEvent]())

	return &Consumer{
		sender:   sender,
		manager:  manager,
		decoders: decoders,
		metrics:  consumerMetrics,
		logg:     logg,
	}, nil
}

// Run receives from every subscription until ctx is canceled and returns the
// combined receive errors.
func (c *Consumer) Run(ctx context.Context, subscriptions ...*pubsub.Subscriber) error {
	if len(subscriptions) == 0 {
		return fmt.Errorf("at least one subscription required")
	}
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	for _, sub := range subscriptions {
		if sub == nil {
			continue
		}
		wg.Add(1)
		go func(sub *pubsub.Subscriber) {
			defer wg.Done()
			err := sub.Receive(ctx, func(msgCtx context.Context, msg *pubsub.Message) {
				if c.handleMessage(msgCtx, msg) {
					msg.Nack()
					return
				}
				msg.Ack()
			})
			if err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
		}(sub)
	}
	wg.Wait()
	return errs
}

// handleMessage reports whether msg should be nacked.
func (c *Consumer) handleMessage(ctx context.Context, msg *pubsub.Message) bool {
	logCtx := c.logg.WithField(ctx, "message_id", msg.ID)

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return false
	}
	eventType := enums.OutboxEventType(strings.TrimSpace(msg.Attributes["event_type"]))
	if err := c.Process(logCtx, eventType, envelope); err != nil {
		c.metrics.Inc(consumerName, string(eventType), metrics.ConsumerOutcomeNack)
		return true
	}
	return false
}

// Process handles one envelope. A returned error means redeliver.
func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": string(eventType),
	})

	switch eventType {
	case enums.EventOrderCreated, enums.EventProductApproved, enums.EventProductRejected:
	default:
		c.logg.Info(logCtx, "event not handled by notifications consumer")
		c.metrics.Inc(consumerName, string(eventType), metrics.ConsumerOutcomeAck)
		return nil
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Warn(logCtx, "invalid event id")
		return nil
	}

	already, err := c.manager.CheckAndMarkProcessed(ctx, consumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return err
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		c.metrics.Inc(consumerName, string(eventType), metrics.ConsumerOutcomeDuplicate)
		return nil
	}

	version := envelope.Version
	if version <= 0 {
		version = 1
	}
	decoded, err := c.decoders.Decode(eventType, version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.manager.Release(ctx, consumerName, eventID)
		return err
	}

	var msg mailer.Message
	switch payload := decoded.(type) {
	case *payloads.OrderCreatedEvent:
		logCtx = c.logg.WithField(logCtx, "order_id", payload.OrderID.String())
		msg = orderConfirmation(*payload)
	case *payloads.ProductDecisionEvent:
		logCtx = c.logg.WithField(logCtx, "product_id", payload.ProductID.String())
		msg = productDecision(*payload)
	}

	if len(msg.To) == 0 {
		c.logg.Warn(logCtx, "notification skipped: no recipient")
		c.metrics.Inc(consumerName, string(eventType), metrics.ConsumerOutcomeAck)
		return nil
	}

	if err := c.sender.Send(ctx, msg); err != nil {
		c.logg.Error(logCtx, "notification mail failed", err)
	} else {
		c.logg.Info(logCtx, "notification mail sent")
	}
	c.metrics.Inc(consumerName, string(eventType), metrics.ConsumerOutcomeAck)
	return nil
}

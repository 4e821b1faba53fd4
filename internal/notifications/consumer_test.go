package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailhive/retailhive-backend/pkg/enums"
	"github.com/retailhive/retailhive-backend/pkg/logger"
	"github.com/retailhive/retailhive-backend/pkg/mailer"
	"github.com/retailhive/retailhive-backend/pkg/outbox"
	"github.com/retailhive/retailhive-backend/pkg/outbox/payloads"
)

type stubSender struct {
	sent []mailer.Message
	err  error
}

func (s *stubSender) Send(_ context.Context, msg mailer.Message) error {
	s.sent = append(s.sent, msg)
	return s.err
}

type stubManager struct {
	seen     map[uuid.UUID]bool
	released []uuid.UUID
	err      error
}

func newStubManager() *stubManager {
	return &stubManager{seen: map[uuid.UUID]bool{}}
}

func (m *stubManager) CheckAndMarkProcessed(_ context.Context, _ string, eventID uuid.UUID) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.seen[eventID] {
		return true, nil
	}
	m.seen[eventID] = true
	return false, nil
}

func (m *stubManager) Release(_ context.Context, _ string, eventID uuid.UUID) error {
	delete(m.seen, eventID)
	m.released = append(m.released, eventID)
	return nil
}

func newConsumer(t *testing.T, sender *stubSender, manager *stubManager) *Consumer {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
	c, err := NewConsumer(sender, manager, nil, logg)
	require.NoError(t, err)
	return c
}

func envelopeFor(t *testing.T, data any) outbox.PayloadEnvelope {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	}
}

func orderEvent() payloads.OrderCreatedEvent {
	return payloads.OrderCreatedEvent{
		OrderID:     uuid.New(),
		UserID:      uuid.New(),
		BuyerEmail:  "buyer@example.com",
		Status:      "pending",
		TotalAmount: decimal.RequireFromString("25"),
	}
}

func TestProcessOrderCreatedSendsConfirmation(t *testing.T) {
	sender := &stubSender{}
	c := newConsumer(t, sender, newStubManager())
	event := orderEvent()

	require.NoError(t, c.Process(context.Background(), enums.EventOrderCreated, envelopeFor(t, event)))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, []string{"buyer@example.com"}, msg.To)
	assert.Equal(t, "Order Confirmation - RetailHive", msg.Subject)
	assert.Contains(t, msg.Body, event.OrderID.String())
	assert.Contains(t, msg.Body, "Total: $25.00")
}

func TestProcessSkipsDuplicates(t *testing.T) {
	sender := &stubSender{}
	c := newConsumer(t, sender, newStubManager())
	env := envelopeFor(t, orderEvent())

	require.NoError(t, c.Process(context.Background(), enums.EventOrderCreated, env))
	require.NoError(t, c.Process(context.Background(), enums.EventOrderCreated, env))

	assert.Len(t, sender.sent, 1)
}

func TestProcessProductDecisions(t *testing.T) {
	sender := &stubSender{}
	c := newConsumer(t, sender, newStubManager())

	approved := payloads.ProductDecisionEvent{ProductID: uuid.New(), ProductName: "Mug", RetailerEmail: "shop@example.com", Approved: true}
	rejected := payloads.ProductDecisionEvent{ProductID: uuid.New(), ProductName: "Lamp", RetailerEmail: "shop@example.com", Reason: "Blurry photos"}

	require.NoError(t, c.Process(context.Background(), enums.EventProductApproved, envelopeFor(t, approved)))
	require.NoError(t, c.Process(context.Background(), enums.EventProductRejected, envelopeFor(t, rejected)))

	require.Len(t, sender.sent, 2)
	assert.Equal(t, productApprovedSubject, sender.sent[0].Subject)
	assert.Contains(t, sender.sent[0].Body, `"Mug"`)
	assert.Equal(t, productRejectedSubject, sender.sent[1].Subject)
	assert.Contains(t, sender.sent[1].Body, "Reason: Blurry photos")
}

func TestProcessWithoutRecipientAcks(t *testing.T) {
	sender := &stubSender{}
	c := newConsumer(t, sender, newStubManager())
	event := payloads.ProductDecisionEvent{ProductID: uuid.New(), ProductName: "Mug", Approved: true}

	require.NoError(t, c.Process(context.Background(), enums.EventProductApproved, envelopeFor(t, event)))
	assert.Empty(t, sender.sent)
}

func TestProcessSendFailureIsBestEffort(t *testing.T) {
	sender := &stubSender{err: errors.New("smtp down")}
	c := newConsumer(t, sender, newStubManager())

	assert.NoError(t, c.Process(context.Background(), enums.EventOrderCreated, envelopeFor(t, orderEvent())))
	assert.Len(t, sender.sent, 1)
}

func TestProcessBadPayloadReleasesClaim(t *testing.T) {
	manager := newStubManager()
	c := newConsumer(t, &stubSender{}, manager)
	env := outbox.PayloadEnvelope{Version: 1, EventID: uuid.NewString(), Data: json.RawMessage(`"not an object"`)}

	err := c.Process(context.Background(), enums.EventOrderCreated, env)
	require.Error(t, err)
	require.Len(t, manager.released, 1)
	assert.Equal(t, env.EventID, manager.released[0].String())
}

func TestProcessIdempotencyErrorRequestsRedelivery(t *testing.T) {
	manager := newStubManager()
	manager.err = errors.New("redis unavailable")
	c := newConsumer(t, &stubSender{}, manager)

	assert.Error(t, c.Process(context.Background(), enums.EventOrderCreated, envelopeFor(t, orderEvent())))
}

func TestProcessIgnoresUnknownEventsAndBadIDs(t *testing.T) {
	sender := &stubSender{}
	c := newConsumer(t, sender, newStubManager())

	assert.NoError(t, c.Process(context.Background(), enums.OutboxEventType("something_else"), envelopeFor(t, orderEvent())))

	env := envelopeFor(t, orderEvent())
	env.EventID = "nope"
	assert.NoError(t, c.Process(context.Background(), enums.EventOrderCreated, env))
	assert.Empty(t, sender.sent)
}

func TestHandleMessage(t *testing.T) {
	sender := &stubSender{}
	c := newConsumer(t, sender, newStubManager())

	raw, err := json.Marshal(envelopeFor(t, orderEvent()))
	require.NoError(t, err)
	msg := &pubsub.Message{
		ID:         "m-1",
		Data:       raw,
		Attributes: map[string]string{"event_type": string(enums.EventOrderCreated)},
	}
	assert.False(t, c.handleMessage(context.Background(), msg))
	assert.Len(t, sender.sent, 1)

	garbage := &pubsub.Message{ID: "m-2", Data: []byte("{"), Attributes: map[string]string{}}
	assert.False(t, c.handleMessage(context.Background(), garbage), "undecodable messages are dropped")

	bad := &pubsub.Message{
		ID:         "m-3",
		Data:       mustJSON(t, outbox.PayloadEnvelope{Version: 1, EventID: uuid.NewString(), Data: json.RawMessage(`[]`)}),
		Attributes: map[string]string{"event_type": string(enums.EventOrderCreated)},
	}
	assert.True(t, c.handleMessage(context.Background(), bad))
}

func TestNewConsumerValidation(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	_, err := NewConsumer(nil, newStubManager(), nil, logg)
	assert.Error(t, err)
	_, err = NewConsumer(&stubSender{}, nil, nil, logg)
	assert.Error(t, err)
	_, err = NewConsumer(&stubSender{}, newStubManager(), nil, nil)
	assert.Error(t, err)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

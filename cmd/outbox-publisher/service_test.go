package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/retailhive/retailhive-backend/pkg/config"
	"github.com/retailhive/retailhive-backend/pkg/db/models"
	"github.com/retailhive/retailhive-backend/pkg/enums"
	"github.com/retailhive/retailhive-backend/pkg/logger"
	"github.com/retailhive/retailhive-backend/pkg/metrics"
	"github.com/retailhive/retailhive-backend/pkg/outbox"
	"github.com/retailhive/retailhive-backend/pkg/outbox/payloads"
	"github.com/retailhive/retailhive-backend/pkg/outbox/registry"
)

func orderEvent(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       envelopeJSON(t, &payloads.OrderCreatedEvent{Status: "pending"}),
		AttemptCount:  attempts,
	}
}

func resolvedFor(topic string, payload any) *registry.ResolvedEvent {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: topic},
		Payload:    payload,
	}
}

func TestProcessBatchContinuesAfterTransientFailure(t *testing.T) {
	first, second := orderEvent(t, 0), orderEvent(t, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{results: []publishResult{
		fakePublishResult{err: errors.New("transient")},
		fakePublishResult{},
	}}
	reg := prometheus.NewRegistry()
	svc := newTestService(t, testParams{
		repo:     repo,
		pub:      pub,
		registry: &fakeRegistry{resolved: resolvedFor("orders", &payloads.OrderCreatedEvent{})},
		metrics:  metrics.NewOutboxMetrics(reg),
	})

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, []uuid.UUID{first.ID}, repo.failed)
	assert.Equal(t, []uuid.UUID{second.ID}, repo.published)
	assert.Equal(t, []string{"orders", "orders"}, pub.topics)
	assert.Equal(t, 1.0, outboxEventCount(t, reg, metrics.OutboxResultPublished))
	assert.Equal(t, 1.0, outboxEventCount(t, reg, metrics.OutboxResultFailed))
}

func TestProcessBatchRoutesProductDecisionsToCatalogTopic(t *testing.T) {
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventProductApproved,
		AggregateType: enums.AggregateProduct,
		AggregateID:   uuid.New(),
		Payload:       envelopeJSON(t, &payloads.ProductDecisionEvent{Approved: true}),
	}
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	svc := newTestService(t, testParams{
		repo:     repo,
		pub:      pub,
		registry: &fakeRegistry{resolved: resolvedFor("catalog", &payloads.ProductDecisionEvent{})},
	})

	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, pub.messages, 1)
	msg := pub.messages[0]
	assert.Equal(t, "catalog", pub.topics[0])
	assert.Equal(t, string(enums.EventProductApproved), msg.Attributes["event_type"])
	assert.Equal(t, string(enums.AggregateProduct), msg.Attributes["aggregate_type"])
	assert.Equal(t, event.AggregateID.String(), msg.Attributes["aggregate_id"])
	assert.JSONEq(t, string(event.Payload), string(msg.Data))
	assert.Equal(t, []uuid.UUID{event.ID}, repo.published)
}

func TestProcessBatchDeadLettersUnresolvableEvents(t *testing.T) {
	event := orderEvent(t, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQRepo{}
	pub := &fakePublisher{}
	svc := newTestService(t, testParams{
		repo:     repo,
		pub:      pub,
		registry: &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))},
		dlq:      dlq,
	})

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Empty(t, pub.messages)
	require.Len(t, dlq.entries, 1)
	entry := dlq.entries[0]
	assert.Equal(t, event.ID, entry.EventID)
	assert.JSONEq(t, string(event.Payload), string(entry.Payload))
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)
	require.NotNil(t, entry.ErrorMessage)
	assert.Contains(t, *entry.ErrorMessage, "invalid payload")
	assert.Equal(t, []uuid.UUID{event.ID}, repo.terminal)
}

func TestProcessBatchDeadLettersAfterMaxAttempts(t *testing.T) {
	event := orderEvent(t, 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQRepo{}
	svc := newTestService(t, testParams{
		repo:     repo,
		pub:      &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("transient")}}},
		registry: &fakeRegistry{resolved: resolvedFor("orders", &payloads.OrderCreatedEvent{})},
		dlq:      dlq,
		outbox:   config.OutboxConfig{BatchSize: 1, PollIntervalMS: 100, MaxAttempts: 2},
	})

	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, dlq.entries[0].ErrorReason)
	assert.Empty(t, repo.failed)
	assert.Equal(t, []uuid.UUID{event.ID}, repo.terminal)
}

func TestProcessBatchTreatsMissingPublisherAsTerminal(t *testing.T) {
	event := orderEvent(t, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQRepo{}
	svc := newTestService(t, testParams{
		repo:     repo,
		registry: &fakeRegistry{resolved: resolvedFor("orders", &payloads.OrderCreatedEvent{})},
		dlq:      dlq,
	})
	svc.publisherFactory = func(string) publisher { return nil }

	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, dlq.entries[0].ErrorReason)
}

func TestProcessBatchReportsIdleWhenEmpty(t *testing.T) {
	svc := newTestService(t, testParams{repo: &fakeRepo{}})

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestProcessBatchSurfacesBookkeepingErrors(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{orderEvent(t, 0)}, markErr: errors.New("db gone")}
	svc := newTestService(t, testParams{
		repo:     repo,
		pub:      &fakePublisher{results: []publishResult{fakePublishResult{}}},
		registry: &fakeRegistry{resolved: resolvedFor("orders", &payloads.OrderCreatedEvent{})},
	})

	_, err := svc.processBatch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db gone")
}

func TestRefreshBacklogSetsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	svc := newTestService(t, testParams{
		repo:    &fakeRepo{pending: 7},
		metrics: metrics.NewOutboxMetrics(reg),
	})

	svc.refreshBacklog(context.Background())

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, family := range families {
		if family.GetName() == "retailhive_outbox_backlog" {
			found = true
			assert.Equal(t, 7.0, family.GetMetric()[0].GetGauge().GetValue())
		}
	}
	assert.True(t, found)
}

func TestNewServiceAppliesDefaults(t *testing.T) {
	svc := newTestService(t, testParams{repo: &fakeRepo{}, outbox: config.OutboxConfig{}})

	assert.Equal(t, defaultBatchSize, svc.batchSize)
	assert.Equal(t, defaultMaxAttempts, svc.maxAttempts)
	assert.Equal(t, defaultPollMs*time.Millisecond, svc.pollInterval)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.EqualError(t, err, "config is required")

	_, err = NewService(ServiceParams{Config: &config.Config{}, Logger: testLogger()})
	assert.EqualError(t, err, "database client is required")
}

func TestRunStopsOnCancel(t *testing.T) {
	svc := newTestService(t, testParams{repo: &fakeRepo{}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffHelpers(t *testing.T) {
	base := 100 * time.Millisecond
	assert.Equal(t, 200*time.Millisecond, nextBackoff(base, base, time.Second))
	assert.Equal(t, time.Second, nextBackoff(800*time.Millisecond, base, time.Second))
	assert.Equal(t, 200*time.Millisecond, nextBackoff(0, base, time.Second))

	jittered := withJitter(base)
	assert.GreaterOrEqual(t, jittered, base)
	assert.Less(t, jittered, base+jitterWindow)
	assert.Zero(t, withJitter(0))
}

type testParams struct {
	repo     *fakeRepo
	pub      *fakePublisher
	registry registryResolver
	dlq      *fakeDLQRepo
	metrics  *metrics.OutboxMetrics
	outbox   config.OutboxConfig
}

func outboxEventCount(t *testing.T, reg *prometheus.Registry, result string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "retailhive_outbox_events_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "result" && label.GetValue() == result {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard})
}

func newTestService(t *testing.T, p testParams) *Service {
	t.Helper()
	if p.pub == nil {
		p.pub = &fakePublisher{}
	}
	if p.registry == nil {
		p.registry = &fakeRegistry{}
	}
	if p.dlq == nil {
		p.dlq = &fakeDLQRepo{}
	}
	if p.outbox == (config.OutboxConfig{}) && p.repo != nil && p.repo.events != nil {
		p.outbox = config.OutboxConfig{BatchSize: 2, PollIntervalMS: 100, MaxAttempts: 5}
	}
	pub := p.pub
	svc, err := NewService(ServiceParams{
		Config:           &config.Config{Outbox: p.outbox},
		Logger:           testLogger(),
		DB:               fakeDB{},
		PubSub:           fakePubSubClient{},
		Repository:       p.repo,
		Registry:         p.registry,
		PublisherFactory: func(topic string) publisher { return pub.forTopic(topic) },
		DLQRepository:    p.dlq,
		Metrics:          p.metrics,
	})
	require.NoError(t, err)
	return svc
}

func envelopeJSON(t *testing.T, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return payload
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
	pending   int64
	markErr   error
}

func (f *fakeRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

func (f *fakeRepo) CountPending(context.Context, int) (int64, error) {
	return f.pending, nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct{}

func (fakePubSubClient) Ping(context.Context) error { return nil }

func (fakePubSubClient) Publisher(string) *gcppubsub.Publisher { return nil }

type fakePublisher struct {
	results  []publishResult
	topics   []string
	messages []*gcppubsub.Message
	current  string
}

func (f *fakePublisher) forTopic(topic string) publisher {
	f.current = topic
	return f
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.topics = append(f.topics, f.current)
	f.messages = append(f.messages, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "server-id", f.err
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.resolved == nil {
		return nil, registry.NewNonRetryableError(errors.New("unknown event"))
	}
	resolved := *f.resolved
	resolved.Descriptor.EventType = event.EventType
	resolved.Descriptor.AggregateType = event.AggregateType
	resolved.Envelope = outbox.PayloadEnvelope{Version: 1, EventID: event.ID.String(), OccurredAt: time.Now()}
	return &resolved, nil
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

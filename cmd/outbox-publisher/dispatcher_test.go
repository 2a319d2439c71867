package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harbortrace/stockledger-backend/pkg/config"
	"github.com/harbortrace/stockledger-backend/pkg/db/models"
	"github.com/harbortrace/stockledger-backend/pkg/enums"
	"github.com/harbortrace/stockledger-backend/pkg/logger"
	"github.com/harbortrace/stockledger-backend/pkg/outbox"
	"github.com/harbortrace/stockledger-backend/pkg/outbox/registry"
)

func TestDispatcherDrainContinuesPastTransientFailure(t *testing.T) {
	rows := []models.OutboxEvent{
		stockRow(t, enums.EventStockChanged, "row-one"),
		stockRow(t, enums.EventStockChanged, "row-two"),
	}
	store := &stubStore{rows: rows}
	dispatcher := newTestDispatcher(t, testDispatcherOpts{
		store: store,
		publishErrs: map[string]error{
			"row-one": errors.New("transient"),
		},
	})

	drained, err := dispatcher.drainOnce(context.Background())
	if err != nil {
		t.Fatalf("drain returned error: %v", err)
	}
	if drained != 2 {
		t.Fatalf("expected both rows drained, got %d", drained)
	}
	if len(store.failed) != 1 || store.failed[0] != rows[0].ID {
		t.Fatalf("expected first row marked failed, got %v", store.failed)
	}
	if len(store.published) != 1 || store.published[0] != rows[1].ID {
		t.Fatalf("expected second row marked published, got %v", store.published)
	}
}

func TestDispatcherRoutesEachEventTypeToItsTopic(t *testing.T) {
	resolver, err := registry.NewEventRegistry(config.PubSubConfig{
		StockTopic: "sl-stock-events",
		AlertTopic: "sl-stock-alerts",
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}

	store := &stubStore{rows: []models.OutboxEvent{
		stockRow(t, enums.EventStockChanged, "changed"),
		stockRow(t, enums.EventStockLow, "low"),
	}}
	dispatcher := newTestDispatcher(t, testDispatcherOpts{
		store:    store,
		resolver: resolver,
	})

	drained, err := dispatcher.drainOnce(context.Background())
	if err != nil {
		t.Fatalf("drain returned error: %v", err)
	}
	if drained != 2 {
		t.Fatalf("expected both rows drained, got %d", drained)
	}
	if len(store.published) != 2 {
		t.Fatalf("expected both rows published, got %d", len(store.published))
	}
	sink := dispatcher.publishers("").(*stubPublisher)
	if len(sink.topics) != 2 || sink.topics[0] != "sl-stock-events" || sink.topics[1] != "sl-stock-alerts" {
		t.Fatalf("unexpected topic routing: %v", sink.topics)
	}
}

func TestDispatcherParksUnresolvableRows(t *testing.T) {
	row := stockRow(t, enums.EventStockChanged, "bad")
	store := &stubStore{rows: []models.OutboxEvent{row}}
	dlq := &stubDLQ{}
	dispatcher := newTestDispatcher(t, testDispatcherOpts{
		store:      store,
		dlq:        dlq,
		resolveErr: registry.NewNonRetryableError(errors.New("unknown schema")),
	})

	if _, err := dispatcher.drainOnce(context.Background()); err != nil {
		t.Fatalf("drain returned error: %v", err)
	}
	if len(dlq.entries) != 1 {
		t.Fatalf("expected one dlq entry, got %d", len(dlq.entries))
	}
	entry := dlq.entries[0]
	if entry.EventID != row.ID {
		t.Fatalf("dlq event_id mismatch: %s", entry.EventID)
	}
	if !bytes.Equal(entry.Payload, row.Payload) {
		t.Fatalf("dlq payload mismatch")
	}
	if entry.ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("unexpected error reason: %s", entry.ErrorReason)
	}
	if len(store.terminal) != 1 || store.terminal[0] != row.ID {
		t.Fatalf("expected row marked terminal, got %v", store.terminal)
	}
}

func TestDispatcherParksRowsAtMaxAttempts(t *testing.T) {
	row := stockRow(t, enums.EventStockChanged, "exhausted")
	row.AttemptCount = 1
	store := &stubStore{rows: []models.OutboxEvent{row}}
	dlq := &stubDLQ{}
	dispatcher := newTestDispatcher(t, testDispatcherOpts{
		store: store,
		dlq:   dlq,
		outbox: &config.OutboxConfig{
			BatchSize:      1,
			PollIntervalMS: 100,
			MaxAttempts:    2,
		},
		publishErrs: map[string]error{
			"exhausted": errors.New("transient"),
		},
	})

	if _, err := dispatcher.drainOnce(context.Background()); err != nil {
		t.Fatalf("drain returned error: %v", err)
	}
	if len(store.failed) != 0 {
		t.Fatalf("exhausted row must not be retried, got %v", store.failed)
	}
	if len(dlq.entries) != 1 {
		t.Fatalf("expected one dlq entry, got %d", len(dlq.entries))
	}
	if dlq.entries[0].ErrorReason != enums.OutboxDLQReasonMaxAttempts {
		t.Fatalf("unexpected error reason: %s", dlq.entries[0].ErrorReason)
	}
}

type testDispatcherOpts struct {
	store       *stubStore
	dlq         *stubDLQ
	resolver    topicResolver
	resolveErr  error
	outbox      *config.OutboxConfig
	publishErrs map[string]error
}

func newTestDispatcher(t *testing.T, opts testDispatcherOpts) *Dispatcher {
	t.Helper()

	outboxCfg := config.OutboxConfig{
		BatchSize:      10,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if opts.outbox != nil {
		outboxCfg = *opts.outbox
	}
	dlq := opts.dlq
	if dlq == nil {
		dlq = &stubDLQ{}
	}
	resolver := opts.resolver
	if resolver == nil {
		resolver = stubResolver{err: opts.resolveErr}
	}
	sink := &stubPublisher{errs: opts.publishErrs}

	logg := logger.New(logger.Options{
		ServiceName: "outbox-dispatcher-test",
		Output:      io.Discard,
	})
	dispatcher, err := NewDispatcher(DispatcherParams{
		Config:   &config.Config{Outbox: outboxCfg},
		Logger:   logg,
		DB:       stubDB{},
		PubSub:   stubBus{},
		Store:    opts.store,
		DLQ:      dlq,
		Resolver: resolver,
		Publishers: func(topic string) publisher {
			if topic != "" {
				sink.topics = append(sink.topics, topic)
			}
			return sink
		},
	})
	if err != nil {
		t.Fatalf("failed to construct dispatcher: %v", err)
	}
	return dispatcher
}

// stockRow builds an outbox row whose envelope EventID doubles as a handle
// for per-row publish error injection.
func stockRow(t *testing.T, eventType enums.OutboxEventType, handle string) models.OutboxEvent {
	t.Helper()
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    handle,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateInventoryItem,
		AggregateID:   uuid.New(),
		Payload:       payload,
	}
}

type stubStore struct {
	rows      []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (s *stubStore) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return s.rows, nil
}

func (s *stubStore) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	s.published = append(s.published, id)
	return nil
}

func (s *stubStore) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	s.failed = append(s.failed, id)
	return nil
}

func (s *stubStore) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	s.terminal = append(s.terminal, id)
	return nil
}

type stubDLQ struct {
	entries []models.OutboxDLQ
}

func (s *stubDLQ) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	s.entries = append(s.entries, entry)
	return nil
}

type stubDB struct{}

func (stubDB) Ping(context.Context) error { return nil }

func (stubDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type stubBus struct{}

func (stubBus) Ping(context.Context) error { return nil }

func (stubBus) Publisher(string) *gcppubsub.Publisher { return nil }

type stubResolver struct {
	err error
}

func (s stubResolver) Resolve(row models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &env); err != nil {
		return nil, registry.NewNonRetryableError(err)
	}
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			EventType:     row.EventType,
			AggregateType: row.AggregateType,
			Topic:         "stub-topic",
		},
		Envelope: env,
	}, nil
}

// stubPublisher records routed topics and fails publishes keyed by the
// envelope event_id attribute.
type stubPublisher struct {
	errs   map[string]error
	topics []string
}

func (s *stubPublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	return stubResult{err: s.errs[msg.Attributes["event_id"]]}
}

type stubResult struct {
	err error
}

func (s stubResult) Get(context.Context) (string, error) {
	return "", s.err
}

package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harbortrace/stockledger-backend/pkg/config"
	"github.com/harbortrace/stockledger-backend/pkg/db/models"
	"github.com/harbortrace/stockledger-backend/pkg/enums"
	"github.com/harbortrace/stockledger-backend/pkg/logger"
	"github.com/harbortrace/stockledger-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPollMs      = 500
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxIdleBackoff     = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

// eventStore is the slice of the outbox repository the dispatcher needs.
type eventStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type deadLetterStore interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type topicResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type DispatcherParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       dbClient
	PubSub   pubSubClient
	Store    eventStore
	DLQ      deadLetterStore
	Resolver topicResolver
	// Publishers overrides topic lookup; tests inject fakes here.
	Publishers func(topic string) publisher
}

// Dispatcher drains unpublished outbox rows to Pub/Sub. Stock changes and
// low-stock alerts resolve to their own topics through the event registry;
// rows that can never publish are parked in the DLQ so the queue keeps moving.
type Dispatcher struct {
	logg        *logger.Logger
	db          dbClient
	bus         pubSubClient
	store       eventStore
	dlq         deadLetterStore
	resolver    topicResolver
	publishers  func(topic string) publisher
	batchSize   int
	maxAttempts int
	interval    time.Duration
	rng         *rand.Rand
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Store == nil {
		return nil, errors.New("outbox store is required")
	}
	if params.DLQ == nil {
		return nil, errors.New("dlq store is required")
	}
	if params.Resolver == nil {
		return nil, errors.New("event resolver is required")
	}

	lookup := params.Publishers
	if lookup == nil {
		// The registry only ever yields the stock and alert topics, so the
		// memo stays tiny. The dispatcher is single-threaded; no lock needed.
		memo := map[string]publisher{}
		lookup = func(topic string) publisher {
			if pub, ok := memo[topic]; ok {
				return pub
			}
			raw := params.PubSub.Publisher(topic)
			if raw == nil {
				return nil
			}
			pub := &gcpPublisher{Publisher: raw}
			memo[topic] = pub
			return pub
		}
	}

	cfg := params.Config.Outbox
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	pollMs := cfg.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}

	return &Dispatcher{
		logg:        params.Logger,
		db:          params.DB,
		bus:         params.PubSub,
		store:       params.Store,
		dlq:         params.DLQ,
		resolver:    params.Resolver,
		publishers:  lookup,
		batchSize:   batch,
		maxAttempts: attempts,
		interval:    time.Duration(pollMs) * time.Millisecond,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Run polls until ctx is canceled. A drain error backs the loop off
// exponentially (capped); an empty drain sleeps one jittered interval; a
// productive drain loops again immediately.
func (d *Dispatcher) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := d.checkDependencies(ctx); err != nil {
		return err
	}

	idle := d.interval
	for {
		if err := ctx.Err(); err != nil {
			d.logg.Info(ctx, "outbox dispatcher context canceled")
			return err
		}

		drained, err := d.drainOnce(ctx)
		if err != nil {
			d.logg.Error(ctx, "outbox drain failed", err)
			idle = bounded(idle*2, maxIdleBackoff)
		} else {
			idle = d.interval
			if drained > 0 {
				continue
			}
		}

		if err := d.pause(ctx, idle); err != nil {
			return err
		}
	}
}

func (d *Dispatcher) checkDependencies(ctx context.Context) error {
	if err := d.db.Ping(ctx); err != nil {
		d.logg.Error(ctx, "database ping failed", err)
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := d.bus.Ping(ctx); err != nil {
		d.logg.Error(ctx, "pubsub ping failed", err)
		return fmt.Errorf("pubsub ping failed: %w", err)
	}
	return nil
}

// drainOnce claims one batch inside a transaction and dispatches each row.
// Bookkeeping failures roll the whole batch back; publish failures do not.
func (d *Dispatcher) drainOnce(ctx context.Context) (int, error) {
	var drained int
	err := d.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := d.store.FetchUnpublishedForPublish(tx, d.batchSize, d.maxAttempts)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if err := d.dispatch(ctx, tx, row); err != nil {
				return err
			}
			drained++
		}
		return nil
	})
	return drained, err
}

func (d *Dispatcher) dispatch(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) error {
	resolved, err := d.resolver.Resolve(row)
	if err != nil {
		return d.park(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, err, "")
	}
	topic := resolved.Descriptor.Topic

	pubErr := d.publish(ctx, row, resolved)
	if pubErr == nil {
		if err := d.store.MarkPublishedTx(tx, row.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		d.logg.Info(d.rowCtx(ctx, row, topic), "outbox event published")
		return nil
	}

	var nonRetry registry.NonRetryableError
	if errors.As(pubErr, &nonRetry) {
		return d.park(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, pubErr, topic)
	}
	if row.AttemptCount+1 >= d.maxAttempts {
		terminal := fmt.Errorf("max publish attempts reached: %w", pubErr)
		return d.park(ctx, tx, row, enums.OutboxDLQReasonMaxAttempts, terminal, topic)
	}

	warnCtx := d.logg.WithField(d.rowCtx(ctx, row, topic), "error", pubErr.Error())
	d.logg.Warn(warnCtx, "outbox publish failed, will retry")
	if err := d.store.MarkFailedTx(tx, row.ID, pubErr); err != nil {
		return fmt.Errorf("mark failure %s: %w", row.ID, err)
	}
	return nil
}

func (d *Dispatcher) publish(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := d.publishers(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}

	msg := &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"created_at":     row.CreatedAt.Format(time.RFC3339Nano),
		},
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	res := pub.Publish(pubCtx, msg)
	if res == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned no result for topic %s", topic))
	}
	_, err := res.Get(pubCtx)
	return err
}

// park moves a row to the DLQ and marks it terminal in the same transaction.
func (d *Dispatcher) park(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, topic string) error {
	warnCtx := d.logg.WithFields(d.rowCtx(ctx, row, topic), map[string]any{
		"error_reason": reason,
		"error":        cause.Error(),
	})
	d.logg.Warn(warnCtx, "outbox event parked in dlq")

	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  row.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := d.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", row.ID, err)
	}
	if err := d.store.MarkTerminalTx(tx, row.ID, cause, d.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	return nil
}

func (d *Dispatcher) rowCtx(ctx context.Context, row models.OutboxEvent, topic string) context.Context {
	fields := map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    row.EventType,
		"aggregate_id":  row.AggregateID.String(),
		"attempt_count": row.AttemptCount,
	}
	if topic != "" {
		fields["topic"] = topic
	}
	if row.LastError != nil {
		fields["last_error"] = *row.LastError
	}
	return d.logg.WithFields(ctx, fields)
}

func (d *Dispatcher) pause(ctx context.Context, base time.Duration) error {
	delay := base + time.Duration(d.rng.Int63n(int64(jitterWindow)))
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func bounded(d, max time.Duration) time.Duration {
	if d > max {
		return max
	}
	return d
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}

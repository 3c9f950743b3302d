package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"feedra/internal/events"
)

const (
	defaultAttempts = 3
	defaultBackoff  = 500 * time.Millisecond
)

// Consumer reads events from a topic within a consumer group and hands them to
// a Handler. Offsets are committed after the handler returns, so a crash
// mid-batch redelivers; handlers dedupe on event id.
type Consumer struct {
	client   *kgo.Client
	handler  events.Handler
	logger   *slog.Logger
	attempts int
	backoff  time.Duration
}

type ConsumerOption func(*Consumer)

func WithLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) { c.logger = logger }
}

// WithRetry sets how many times a failing handler is called for one record
// and the pause between calls. The backoff doubles after each failure.
func WithRetry(attempts int, backoff time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if attempts > 0 {
			c.attempts = attempts
		}
		if backoff >= 0 {
			c.backoff = backoff
		}
	}
}

func NewConsumer(brokers []string, group, topic string, handler events.Handler, opts ...ConsumerOption) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	c := &Consumer{
		client:   client,
		handler:  handler,
		logger:   slog.Default(),
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run polls until ctx ends. Malformed records are logged and committed. A
// failing handler is retried in place; once the attempts run out the record is
// logged and committed so one bad event cannot stall its partition.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.client.Close()
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.WarnContext(ctx, "kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		var handled []*kgo.Record
		fetches.EachRecord(func(r *kgo.Record) {
			c.handle(ctx, r)
			handled = append(handled, r)
		})
		if len(handled) == 0 {
			continue
		}
		if err := c.client.CommitRecords(ctx, handled...); err != nil && ctx.Err() == nil {
			c.logger.WarnContext(ctx, "kafka commit failed", "records", len(handled), "error", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, r *kgo.Record) {
	var e events.Event
	if err := json.Unmarshal(r.Value, &e); err != nil {
		c.logger.WarnContext(ctx, "dropping malformed event",
			"key", string(r.Key),
			"offset", r.Offset,
			"error", err,
		)
		return
	}
	err := c.handleWithRetry(ctx, e)
	if err != nil && ctx.Err() == nil {
		c.logger.WarnContext(ctx, "event handler failed, giving up",
			"type", e.Type,
			"event_id", e.ID,
			"attempts", c.attempts,
			"error", err,
		)
	}
}

func (c *Consumer) handleWithRetry(ctx context.Context, e events.Event) error {
	wait := c.backoff
	var err error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err = c.handler.Handle(ctx, e); err == nil {
			return nil
		}
		if attempt == c.attempts {
			break
		}
		c.logger.DebugContext(ctx, "event handler failed, retrying",
			"type", e.Type,
			"event_id", e.ID,
			"attempt", attempt,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return err
}

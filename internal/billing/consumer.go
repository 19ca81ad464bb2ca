// Package billing consumes billing provider events from Kafka and feeds them
// to the subscription state machine.
package billing

import (
	"context"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/metric"
)

// Applier applies one raw billing event. Implemented by the subscription
// service; malformed events are handled inside Apply, so an error means the
// store is unavailable and the message should be retried.
type Applier interface {
	ApplyRaw(ctx context.Context, raw []byte) error
}

// messageSource is the slice of kafka.Reader the consumer needs. Offsets are
// committed explicitly, never on read, so an unapplied event stays on the
// topic.
type messageSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads billing events from a Kafka topic and applies them.
type Consumer struct {
	reader  messageSource
	applier Applier

	eventsApplied metric.Int64Counter
	eventsFailed  metric.Int64Counter
}

// NewConsumer creates a consumer for the given brokers, topic, and group.
func NewConsumer(brokers []string, topic, groupID string, applier Applier, meter metric.Meter) (*Consumer, error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
		MaxWait:  1 * time.Second,
	})

	applied, err := meter.Int64Counter("billing.events.applied")
	if err != nil {
		_ = reader.Close()
		return nil, err
	}
	failed, err := meter.Int64Counter("billing.events.failed")
	if err != nil {
		_ = reader.Close()
		return nil, err
	}

	return &Consumer{
		reader:        reader,
		applier:       applier,
		eventsApplied: applied,
		eventsFailed:  failed,
	}, nil
}

// Run consumes until ctx is cancelled. The offset is committed only after
// ApplyRaw succeeds: on an apply error the message stays uncommitted and is
// fetched again, so a store outage cannot drop a billing event.
// Application-level dedup makes the retry safe.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("billing: kafka fetch error: %v", err)
			continue
		}

		applyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = c.applier.ApplyRaw(applyCtx, msg.Value)
		cancel()
		if err != nil {
			c.eventsFailed.Add(ctx, 1)
			log.Printf("billing: apply failed for message at offset %d: %v", msg.Offset, err)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("billing: commit failed at offset %d: %v", msg.Offset, err)
			continue
		}
		c.eventsApplied.Add(ctx, 1)
	}
}

// Close closes the underlying Kafka reader. Safe to call multiple times.
func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

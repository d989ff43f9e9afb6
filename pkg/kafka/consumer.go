// Package kafka wraps segmentio/kafka-go: a producer that publishes JSON
// events keyed for partitioning, and a consumer loop that hands each message
// to a MessageHandler and commits it once handled.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/resilience"
)

// MessageHandler processes one message. Returning an error makes the
// consumer call it again with backoff before anything past the message is
// committed; returning ErrSkip commits it without retrying.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// ErrSkip marks a message that can never be processed, such as one that
// does not decode.
var ErrSkip = errors.New("kafka: skip message")

type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	handler MessageHandler
	backoff time.Duration
	retry   resilience.RetryConfig
}

// NewConsumer joins cfg.ConsumerGroup on topic. A new group starts from the
// oldest retained message so a fresh indexer sees the whole topic.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.FirstOffset,
	})
	return &Consumer{
		reader:  r,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
		handler: handler,
		backoff: time.Second,
		retry: resilience.RetryConfig{
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     30 * time.Second,
			Jitter:       0.2,
		},
	}
}

// Start consumes until ctx is cancelled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}
		c.logger.Debug("message received",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"value_size", len(msg.Value),
		)
		if !c.process(ctx, msg) {
			c.logger.Info("consumer stopping with message unhandled",
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// process calls the handler until it succeeds or skips the message. Commits
// are ordered, so a failing message holds back its partition. It returns
// false when ctx ends first, leaving the message uncommitted for the next
// member of the group.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	for attempt := 1; ; attempt++ {
		err := c.handler(ctx, msg.Key, msg.Value)
		if err == nil || errors.Is(err, ErrSkip) {
			return true
		}
		delay := c.retry.Delay(attempt)
		c.logger.Error("failed to process message, retrying",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"attempt", attempt,
			"next_delay", delay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
	}
}

// DecodeJSON unmarshals a message value into T. Decode failures wrap ErrSkip.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w: %w", ErrSkip, err)
	}
	return result, nil
}

// Package kafka publishes trade events to Kafka.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"

	"github.com/simaogato/cryptotrade-backend/internal/domain"
)

// ErrUnavailable is returned while the breaker is open and publishing is skipped
var ErrUnavailable = errors.New("trade event publisher unavailable")

// messageWriter is the part of *kafka.Writer the publisher uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config configures the publisher
type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// Publisher writes TradeExecuted events keyed by account ID, so one account's events stay ordered
// within a partition. A circuit breaker stops calls to an unreachable broker from slowing trades.
type Publisher struct {
	writer       messageWriter
	breaker      *gobreaker.CircuitBreaker
	writeTimeout time.Duration
	logger       *slog.Logger
}

// NewPublisher creates a publisher backed by a kafka.Writer
func NewPublisher(cfg Config, logger *slog.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            3,
		WriteBackoffMin:        100 * time.Millisecond,
		WriteBackoffMax:        time.Second,
		BatchTimeout:           10 * time.Millisecond,
	}
	return newPublisher(writer, cfg.WriteTimeout, logger)
}

func newPublisher(writer messageWriter, writeTimeout time.Duration, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		writer:       writer,
		writeTimeout: writeTimeout,
		logger:       logger,
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "kafka-trade-events",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return p
}

// PublishTradeExecuted implements domain.TradeEventPublisher
func (p *Publisher) PublishTradeExecuted(ctx context.Context, event domain.TradeExecuted) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal trade event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.AccountID.String()),
		Value: data,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("TradeExecuted")},
		},
	}

	_, err = p.breaker.Execute(func() (interface{}, error) {
		writeCtx := ctx
		if p.writeTimeout > 0 {
			var cancel context.CancelFunc
			writeCtx, cancel = context.WithTimeout(ctx, p.writeTimeout)
			defer cancel()
		}
		return nil, p.writer.WriteMessages(writeCtx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return fmt.Errorf("failed to write trade event: %w", err)
	}

	p.logger.DebugContext(ctx, "trade event published", "transaction_id", event.TransactionID)
	return nil
}

// Close flushes pending messages and closes the writer
func (p *Publisher) Close() error {
	return p.writer.Close()
}

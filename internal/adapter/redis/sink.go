// Package redis mirrors market price snapshots into Redis.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/simaogato/cryptotrade-backend/internal/domain"
)

// Config holds the connection settings
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects to Redis and verifies the connection
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// PriceSink stores the latest snapshot as a hash of symbol to price.
// The hash is replaced in a single MULTI/EXEC so readers never see a partial snapshot.
type PriceSink struct {
	client redis.Cmdable
	key    string
}

// NewPriceSink creates a sink writing to key
func NewPriceSink(client redis.Cmdable, key string) *PriceSink {
	return &PriceSink{client: client, key: key}
}

// WriteSnapshot implements domain.PriceSink
func (s *PriceSink) WriteSnapshot(ctx context.Context, snapshot domain.PriceSnapshot) error {
	fields := encodeSnapshot(snapshot)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(fields) > 0 {
			pipe.HSet(ctx, s.key, fields)
		}
		pipe.HSet(ctx, s.key+":meta", "updated_at", time.Now().UTC().Format(time.RFC3339))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write price snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot loads the last mirrored snapshot
func (s *PriceSink) ReadSnapshot(ctx context.Context) (domain.PriceSnapshot, error) {
	raw, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read price snapshot: %w", err)
	}
	return decodeSnapshot(raw)
}

func encodeSnapshot(snapshot domain.PriceSnapshot) map[string]any {
	fields := make(map[string]any, len(snapshot))
	for symbol, price := range snapshot {
		fields[symbol] = strconv.FormatFloat(price, 'f', -1, 64)
	}
	return fields
}

func decodeSnapshot(raw map[string]string) (domain.PriceSnapshot, error) {
	snapshot := make(domain.PriceSnapshot, len(raw))
	for symbol, value := range raw {
		price, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse price for %s: %w", symbol, err)
		}
		snapshot[symbol] = price
	}
	return snapshot, nil
}

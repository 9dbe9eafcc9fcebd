package domain

import (
	"context"
	"time"
)

// PriceTick is one parsed price update from the market feed
type PriceTick struct {
	Symbol     string
	Price      float64
	ReceivedAt time.Time
}

// PriceSnapshot maps feed symbols (e.g. "ETH/USD") to their last known price.
// Snapshots handed out by the cache are copies owned by the caller.
type PriceSnapshot map[string]float64

// Clone returns an independent copy of the snapshot
func (s PriceSnapshot) Clone() PriceSnapshot {
	out := make(PriceSnapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// FeedEvent is a decoded market feed message.
// Tick is nil for control messages (heartbeats, status notices).
type FeedEvent struct {
	Tick    *PriceTick
	Control string
	Error   string // rejection reason reported by the feed, if any
}

// FeedConn is a live streaming connection to the market feed
type FeedConn interface {
	// ReadMessage blocks until the next message arrives or the connection fails
	ReadMessage() ([]byte, error)
	WriteMessage(ctx context.Context, data []byte) error
	Close() error
}

// FeedDialer opens streaming connections to the market feed
type FeedDialer interface {
	Dial(ctx context.Context, url string) (FeedConn, error)
}

// PriceSink receives copies of the price snapshot for other processes to read
type PriceSink interface {
	WriteSnapshot(ctx context.Context, snapshot PriceSnapshot) error
}

// PriceSource returns the last snapshot a PriceSink stored
type PriceSource interface {
	ReadSnapshot(ctx context.Context) (PriceSnapshot, error)
}

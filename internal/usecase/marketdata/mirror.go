package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/simaogato/cryptotrade-backend/internal/domain"
)

// SnapshotMirror periodically copies the cache into a PriceSink
type SnapshotMirror struct {
	Cache    *PriceCache
	Sink     domain.PriceSink
	Interval time.Duration
	Logger   *slog.Logger

	written uint64
}

// NewSnapshotMirror creates a new SnapshotMirror instance
func NewSnapshotMirror(cache *PriceCache, sink domain.PriceSink, interval time.Duration) *SnapshotMirror {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &SnapshotMirror{
		Cache:    cache,
		Sink:     sink,
		Interval: interval,
		Logger:   slog.Default(),
	}
}

// Run writes the snapshot every interval when it changed since the last successful write.
// Returns ctx.Err() on shutdown.
func (m *SnapshotMirror) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Sync(ctx)
		}
	}
}

// Restore seeds the cache from a previously mirrored snapshot so quotes are available
// before the feed delivers its first tick. Symbols already in the cache are left alone.
// Returns the number of prices restored.
func (m *SnapshotMirror) Restore(ctx context.Context, source domain.PriceSource) (int, error) {
	snapshot, err := source.ReadSnapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to restore price snapshot: %w", err)
	}

	current := m.Cache.Snapshot()
	restored := 0
	now := time.Now()
	for symbol, price := range snapshot {
		if _, ok := current[symbol]; ok {
			continue
		}
		m.Cache.Apply(domain.PriceTick{Symbol: symbol, Price: price, ReceivedAt: now})
		restored++
	}

	// The sink already holds these prices
	if restored > 0 && len(current) == 0 {
		m.written = m.Cache.Version()
	}
	return restored, nil
}

// Sync writes the snapshot once if it changed. Sink failures are logged and retried on the next tick.
func (m *SnapshotMirror) Sync(ctx context.Context) {
	snapshot, version := m.Cache.versioned()
	if version == m.written {
		return
	}
	if err := m.Sink.WriteSnapshot(ctx, snapshot); err != nil {
		m.Logger.WarnContext(ctx, "failed to mirror price snapshot", "error", err, "symbols", len(snapshot))
		return
	}
	m.written = version
}

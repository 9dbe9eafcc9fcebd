package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/simaogato/cryptotrade-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockPriceSink is a mock implementation of PriceSink for testing
type MockPriceSink struct {
	mock.Mock
}

func (m *MockPriceSink) WriteSnapshot(ctx context.Context, snapshot domain.PriceSnapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

// MockPriceSource is a mock implementation of PriceSource for testing
type MockPriceSource struct {
	mock.Mock
}

func (m *MockPriceSource) ReadSnapshot(ctx context.Context) (domain.PriceSnapshot, error) {
	args := m.Called(ctx)
	snapshot, _ := args.Get(0).(domain.PriceSnapshot)
	return snapshot, args.Error(1)
}

func TestSnapshotMirror_SyncWritesOnlyChanges(t *testing.T) {
	ctx := context.Background()
	cache := NewPriceCache()
	sink := new(MockPriceSink)
	mirror := NewSnapshotMirror(cache, sink, time.Minute)

	// Nothing applied yet
	mirror.Sync(ctx)

	cache.Apply(domain.PriceTick{Symbol: "ETH/USD", Price: 3000})
	sink.On("WriteSnapshot", ctx, domain.PriceSnapshot{"ETH/USD": 3000}).Return(nil).Once()
	mirror.Sync(ctx)
	mirror.Sync(ctx)

	sink.AssertExpectations(t)
	sink.AssertNumberOfCalls(t, "WriteSnapshot", 1)
}

func TestSnapshotMirror_RetriesAfterSinkFailure(t *testing.T) {
	ctx := context.Background()
	cache := NewPriceCache()
	sink := new(MockPriceSink)
	mirror := NewSnapshotMirror(cache, sink, time.Minute)

	cache.Apply(domain.PriceTick{Symbol: "XBT/USD", Price: 60000})
	sink.On("WriteSnapshot", ctx, mock.Anything).Return(errors.New("redis down")).Once()
	sink.On("WriteSnapshot", ctx, mock.Anything).Return(nil).Once()

	mirror.Sync(ctx)
	mirror.Sync(ctx)
	mirror.Sync(ctx)

	sink.AssertNumberOfCalls(t, "WriteSnapshot", 2)
}

func TestSnapshotMirror_RunStopsOnCancel(t *testing.T) {
	cache := NewPriceCache()
	cache.Apply(domain.PriceTick{Symbol: "ETH/USD", Price: 3000})
	sink := new(MockPriceSink)
	written := make(chan struct{}, 1)
	sink.On("WriteSnapshot", mock.Anything, mock.Anything).Return(nil).Run(func(mock.Arguments) {
		select {
		case written <- struct{}{}:
		default:
		}
	})

	mirror := NewSnapshotMirror(cache, sink, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mirror.Run(ctx) }()

	select {
	case <-written:
	case <-time.After(time.Second):
		t.Fatal("mirror never wrote the snapshot")
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestSnapshotMirror_Restore(t *testing.T) {
	ctx := context.Background()

	t.Run("Empty cache is seeded and not written back", func(t *testing.T) {
		cache := NewPriceCache()
		sink := new(MockPriceSink)
		source := new(MockPriceSource)
		source.On("ReadSnapshot", ctx).Return(domain.PriceSnapshot{"ETH/USD": 3000, "XBT/USD": 60000}, nil)
		mirror := NewSnapshotMirror(cache, sink, time.Minute)

		restored, err := mirror.Restore(ctx, source)

		assert.NoError(t, err)
		assert.Equal(t, 2, restored)
		assert.Equal(t, domain.PriceSnapshot{"ETH/USD": 3000, "XBT/USD": 60000}, cache.Snapshot())

		mirror.Sync(ctx)
		sink.AssertNotCalled(t, "WriteSnapshot", mock.Anything, mock.Anything)
		source.AssertExpectations(t)
	})

	t.Run("Live prices win over stored ones", func(t *testing.T) {
		cache := NewPriceCache()
		cache.Apply(domain.PriceTick{Symbol: "ETH/USD", Price: 3100})
		sink := new(MockPriceSink)
		sink.On("WriteSnapshot", ctx, domain.PriceSnapshot{"ETH/USD": 3100, "XBT/USD": 60000}).Return(nil).Once()
		source := new(MockPriceSource)
		source.On("ReadSnapshot", ctx).Return(domain.PriceSnapshot{"ETH/USD": 3000, "XBT/USD": 60000}, nil)
		mirror := NewSnapshotMirror(cache, sink, time.Minute)

		restored, err := mirror.Restore(ctx, source)

		assert.NoError(t, err)
		assert.Equal(t, 1, restored)
		price, ok := cache.Price("ETH/USD")
		assert.True(t, ok)
		assert.Equal(t, 3100.0, price)

		mirror.Sync(ctx)
		sink.AssertExpectations(t)
	})

	t.Run("Source failure leaves the cache empty", func(t *testing.T) {
		cache := NewPriceCache()
		source := new(MockPriceSource)
		source.On("ReadSnapshot", ctx).Return(nil, errors.New("redis down"))
		mirror := NewSnapshotMirror(cache, new(MockPriceSink), time.Minute)

		restored, err := mirror.Restore(ctx, source)

		assert.Error(t, err)
		assert.Zero(t, restored)
		assert.Empty(t, cache.Snapshot())
	})
}

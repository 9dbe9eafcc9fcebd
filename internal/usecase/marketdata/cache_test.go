package marketdata

import (
	"sync"
	"testing"

	"github.com/simaogato/cryptotrade-backend/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestPriceCache_ApplyAndSnapshot(t *testing.T) {
	cache := NewPriceCache()
	assert.Empty(t, cache.Snapshot())

	cache.Apply(domain.PriceTick{Symbol: "ETH/USD", Price: 3000})
	cache.Apply(domain.PriceTick{Symbol: "XBT/USD", Price: 60000})
	cache.Apply(domain.PriceTick{Symbol: "ETH/USD", Price: 3000.5})

	assert.Equal(t, domain.PriceSnapshot{"ETH/USD": 3000.5, "XBT/USD": 60000}, cache.Snapshot())
	assert.Equal(t, uint64(3), cache.Version())
}

func TestPriceCache_SnapshotIsImmutableCopy(t *testing.T) {
	cache := NewPriceCache()
	cache.Apply(domain.PriceTick{Symbol: "ETH/USD", Price: 3000})

	first := cache.Snapshot()
	second := cache.Snapshot()
	assert.Equal(t, first, second)

	first["ETH/USD"] = 1
	delete(second, "ETH/USD")
	assert.Equal(t, domain.PriceSnapshot{"ETH/USD": 3000}, cache.Snapshot())

	held := cache.Snapshot()
	cache.Apply(domain.PriceTick{Symbol: "ETH/USD", Price: 3100})
	assert.Equal(t, 3000.0, held["ETH/USD"])
}

func TestPriceCache_Price(t *testing.T) {
	cache := NewPriceCache()
	cache.Apply(domain.PriceTick{Symbol: "XBT/USD", Price: 60000})
	cache.Apply(domain.PriceTick{Symbol: "ETH/USD", Price: 3000})
	cache.Apply(domain.PriceTick{Symbol: "XDG/USD", Price: 0.15})

	tests := []struct {
		symbol string
		want   float64
		found  bool
	}{
		{symbol: "XBT/USD", want: 60000, found: true},
		{symbol: "BTC", want: 60000, found: true},
		{symbol: "btc/usd", want: 60000, found: true},
		{symbol: "ETH", want: 3000, found: true},
		{symbol: " eth/usd ", want: 3000, found: true},
		{symbol: "DOGE", want: 0.15, found: true},
		{symbol: "SOL", found: false},
		{symbol: "", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			price, ok := cache.Price(tt.symbol)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, price)
		})
	}
}

func TestPriceCache_ConcurrentReadersAndWriter(t *testing.T) {
	cache := NewPriceCache()
	const writes = 1000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= writes; i++ {
			// Both symbols move together, so a reader must never see them differ by more than one step
			cache.Apply(domain.PriceTick{Symbol: "A", Price: float64(i)})
			cache.Apply(domain.PriceTick{Symbol: "B", Price: float64(i)})
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < writes; i++ {
				snap := cache.Snapshot()
				a, b := snap["A"], snap["B"]
				if a != b && a != b+1 {
					t.Errorf("inconsistent snapshot: A=%v B=%v", a, b)
					return
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, domain.PriceSnapshot{"A": writes, "B": writes}, cache.Snapshot())
}

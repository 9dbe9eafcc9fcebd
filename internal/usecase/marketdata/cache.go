package marketdata

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/simaogato/cryptotrade-backend/internal/domain"
)

// Feed names for symbols whose exchange ticker differs from the common one
var symbolAliases = map[string]string{
	"BTC":  "XBT",
	"DOGE": "XDG",
}

// QuoteCurrency is appended to bare symbols when looking up a price
const QuoteCurrency = "USD"

type snapshotState struct {
	prices  domain.PriceSnapshot
	version uint64
}

// PriceCache holds the latest price per symbol.
// Writes copy the current map and publish the copy, so readers never wait on a writer
// and never observe a partially applied update.
type PriceCache struct {
	writeMu sync.Mutex
	current atomic.Pointer[snapshotState]
}

// NewPriceCache creates an empty cache
func NewPriceCache() *PriceCache {
	c := &PriceCache{}
	c.current.Store(&snapshotState{prices: domain.PriceSnapshot{}})
	return c
}

// Apply records tick as the latest price of its symbol (last write wins)
func (c *PriceCache) Apply(tick domain.PriceTick) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	prev := c.current.Load()
	next := make(domain.PriceSnapshot, len(prev.prices)+1)
	for k, v := range prev.prices {
		next[k] = v
	}
	next[tick.Symbol] = tick.Price
	c.current.Store(&snapshotState{prices: next, version: prev.version + 1})
}

// Snapshot returns a point-in-time copy of every cached price
func (c *PriceCache) Snapshot() domain.PriceSnapshot {
	return c.current.Load().prices.Clone()
}

// Version increments on every applied tick
func (c *PriceCache) Version() uint64 {
	return c.current.Load().version
}

func (c *PriceCache) versioned() (domain.PriceSnapshot, uint64) {
	state := c.current.Load()
	return state.prices.Clone(), state.version
}

// Price looks up symbol as given, then as a USD pair using the feed's ticker names,
// so "BTC", "XBT/USD" and "btc" all resolve to the XBT/USD price.
func (c *PriceCache) Price(symbol string) (float64, bool) {
	prices := c.current.Load().prices
	for _, candidate := range quoteCandidates(symbol) {
		if price, ok := prices[candidate]; ok {
			return price, true
		}
	}
	return 0, false
}

func quoteCandidates(symbol string) []string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return nil
	}
	candidates := []string{s}
	base, quote, paired := strings.Cut(s, "/")
	if !paired {
		quote = QuoteCurrency
	}
	if alias, ok := symbolAliases[base]; ok {
		candidates = append(candidates, alias+"/"+quote)
	}
	if !paired {
		candidates = append(candidates, base+"/"+quote)
	}
	return candidates
}

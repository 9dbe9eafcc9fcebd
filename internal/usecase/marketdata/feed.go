package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/simaogato/cryptotrade-backend/internal/domain"
)

// State is the feed connection lifecycle state
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	default:
		return "disconnected"
	}
}

// DefaultPairs is the symbol set subscribed when none is configured
var DefaultPairs = []string{
	"XBT/USD", "ETH/USD", "XRP/USD", "ADA/USD", "DOT/USD", "SOL/USD",
	"SHIB/USD", "LTC/USD", "LINK/USD", "BCH/USD", "XLM/USD", "ATOM/USD",
	"FIL/USD", "APE/USD", "ICP/USD", "NEAR/USD", "DOGE/USD", "MATIC/USD",
}

// Message handling results
const (
	ResultApplied   = "applied"
	ResultIgnored   = "ignored"
	ResultMalformed = "malformed"
)

// TickerCodec encodes the subscription request and decodes inbound messages
type TickerCodec interface {
	SubscribeMessage(pairs []string) ([]byte, error)
	Decode(raw []byte) (domain.FeedEvent, error)
}

// FeedObserver receives feed activity for instrumentation
type FeedObserver interface {
	MessageHandled(result string)
	Reconnecting()
	StateChanged(state State)
}

type nopFeedObserver struct{}

func (nopFeedObserver) MessageHandled(string) {}
func (nopFeedObserver) Reconnecting()         {}
func (nopFeedObserver) StateChanged(State)    {}

// FeedConfig configures the feed task
type FeedConfig struct {
	URL            string
	Pairs          []string
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Feed owns the market feed connection and keeps the PriceCache warm.
// It is the cache's only writer.
type Feed struct {
	Dialer   domain.FeedDialer
	Codec    TickerCodec
	Cache    *PriceCache
	Config   FeedConfig
	Observer FeedObserver
	Logger   *slog.Logger

	state atomic.Int32
}

// NewFeed creates a new Feed instance
func NewFeed(dialer domain.FeedDialer, codec TickerCodec, cache *PriceCache, cfg FeedConfig) *Feed {
	if len(cfg.Pairs) == 0 {
		cfg.Pairs = DefaultPairs
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = 30 * time.Second
	}
	return &Feed{
		Dialer:   dialer,
		Codec:    codec,
		Cache:    cache,
		Config:   cfg,
		Observer: nopFeedObserver{},
		Logger:   slog.Default(),
	}
}

// State returns the current lifecycle state
func (f *Feed) State() State {
	return State(f.state.Load())
}

func (f *Feed) setState(ctx context.Context, state State) {
	if State(f.state.Swap(int32(state))) == state {
		return
	}
	f.Observer.StateChanged(state)
	f.Logger.InfoContext(ctx, "feed state changed", "state", state.String(), "url", f.Config.URL)
}

// Run connects, subscribes and applies ticks until ctx is cancelled.
// Any connection failure returns the feed to Disconnected and it retries after an exponential backoff.
// Returns ctx.Err() on shutdown.
func (f *Feed) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.Config.InitialBackoff
	b.MaxInterval = f.Config.MaxBackoff

	for {
		subscribed, err := f.session(ctx)
		f.setState(ctx, StateDisconnected)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if subscribed {
			b.Reset()
		}
		wait := b.NextBackOff()
		f.Observer.Reconnecting()
		f.Logger.WarnContext(ctx, "feed connection lost, reconnecting",
			"error", err, "retry_in", wait.String())

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// session runs one connection from dial to failure.
// subscribed reports whether the subscription request was sent.
func (f *Feed) session(ctx context.Context) (subscribed bool, err error) {
	f.setState(ctx, StateConnecting)

	conn, err := f.Dialer.Dial(ctx, f.Config.URL)
	if err != nil {
		return false, &FeedConnectionError{Op: "dial", Err: err}
	}
	defer conn.Close()

	// Unblock ReadMessage on shutdown
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	msg, err := f.Codec.SubscribeMessage(f.Config.Pairs)
	if err != nil {
		return false, fmt.Errorf("failed to encode subscription: %w", err)
	}
	if err := conn.WriteMessage(ctx, msg); err != nil {
		return false, &FeedConnectionError{Op: "subscribe", Err: err}
	}
	f.setState(ctx, StateSubscribed)

	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			return true, &FeedConnectionError{Op: "read", Err: err}
		}
		f.Observer.MessageHandled(f.handle(ctx, raw))
	}
}

// handle applies one message. It never fails: malformed messages are dropped and
// the cached prices are left as they were.
func (f *Feed) handle(ctx context.Context, raw []byte) (result string) {
	defer func() {
		if r := recover(); r != nil {
			f.Logger.WarnContext(ctx, "feed message handler panicked", "panic", r)
			result = ResultMalformed
		}
	}()

	event, err := f.Codec.Decode(raw)
	if err != nil {
		perr := &MessageParseError{Raw: string(raw), Err: err}
		f.Logger.DebugContext(ctx, "dropping feed message", "error", perr, "raw", perr.Raw)
		return ResultMalformed
	}
	if event.Tick == nil {
		if event.Error != "" {
			f.Logger.WarnContext(ctx, "feed rejected request", "event", event.Control, "reason", event.Error)
		}
		return ResultIgnored
	}
	if event.Tick.ReceivedAt.IsZero() {
		event.Tick.ReceivedAt = time.Now()
	}
	f.Cache.Apply(*event.Tick)
	return ResultApplied
}


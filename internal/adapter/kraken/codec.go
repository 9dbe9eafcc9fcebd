// Package kraken speaks the Kraken v1 public websocket protocol.
package kraken

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/simaogato/cryptotrade-backend/internal/domain"
)

// DefaultURL is the public market data endpoint
const DefaultURL = "wss://ws.kraken.com"

const tickerChannel = "ticker"

type subscribeRequest struct {
	Event        string       `json:"event"`
	Pair         []string     `json:"pair"`
	Subscription subscription `json:"subscription"`
}

type subscription struct {
	Name string `json:"name"`
}

// controlMessage covers heartbeat, systemStatus and subscriptionStatus objects
type controlMessage struct {
	Event        string `json:"event"`
	Status       string `json:"status"`
	Pair         string `json:"pair"`
	ErrorMessage string `json:"errorMessage"`
}

type tickerPayload struct {
	Close []string `json:"c"` // [price, lot volume]
}

// Codec implements the feed codec for Kraken ticker subscriptions
type Codec struct {
	Now func() time.Time
}

// SubscribeMessage builds {"event":"subscribe","pair":[...],"subscription":{"name":"ticker"}}
func (c Codec) SubscribeMessage(pairs []string) ([]byte, error) {
	if len(pairs) == 0 {
		return nil, errors.New("at least one pair is required")
	}
	return json.Marshal(subscribeRequest{
		Event:        "subscribe",
		Pair:         pairs,
		Subscription: subscription{Name: tickerChannel},
	})
}

// Decode parses one inbound message.
// Ticker arrays yield a tick, event objects yield a control event, anything else is an error.
func (c Codec) Decode(raw []byte) (domain.FeedEvent, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return domain.FeedEvent{}, errors.New("empty message")
	}

	switch trimmed[0] {
	case '{':
		return decodeControl(trimmed)
	case '[':
		return c.decodeChannel(trimmed)
	default:
		return domain.FeedEvent{}, errors.New("message is neither an object nor an array")
	}
}

func decodeControl(raw []byte) (domain.FeedEvent, error) {
	var msg controlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.FeedEvent{}, fmt.Errorf("failed to decode event: %w", err)
	}
	if msg.Event == "" {
		return domain.FeedEvent{}, errors.New("object without event field")
	}

	event := domain.FeedEvent{Control: msg.Event}
	if msg.Status == "error" {
		event.Error = msg.ErrorMessage
		if event.Error == "" {
			event.Error = "unspecified error"
		}
		if msg.Pair != "" {
			event.Error = msg.Pair + ": " + event.Error
		}
	}
	return event, nil
}

// decodeChannel handles [channelID, payload, channelName, pair]
func (c Codec) decodeChannel(raw []byte) (domain.FeedEvent, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return domain.FeedEvent{}, fmt.Errorf("failed to decode channel message: %w", err)
	}
	if len(parts) < 4 {
		return domain.FeedEvent{}, fmt.Errorf("channel message has %d elements, want 4", len(parts))
	}

	var channel, pair string
	if err := json.Unmarshal(parts[len(parts)-2], &channel); err != nil {
		return domain.FeedEvent{}, fmt.Errorf("failed to decode channel name: %w", err)
	}
	if channel != tickerChannel {
		return domain.FeedEvent{Control: channel}, nil
	}
	if err := json.Unmarshal(parts[len(parts)-1], &pair); err != nil || pair == "" {
		return domain.FeedEvent{}, errors.New("ticker message without pair")
	}

	var payload tickerPayload
	if err := json.Unmarshal(parts[1], &payload); err != nil {
		return domain.FeedEvent{}, fmt.Errorf("failed to decode ticker payload: %w", err)
	}
	if len(payload.Close) == 0 {
		return domain.FeedEvent{}, errors.New("ticker payload without close price")
	}
	price, err := strconv.ParseFloat(payload.Close[0], 64)
	if err != nil {
		return domain.FeedEvent{}, fmt.Errorf("non-numeric price %q: %w", payload.Close[0], err)
	}
	if price <= 0 || math.IsInf(price, 0) || math.IsNaN(price) {
		return domain.FeedEvent{}, fmt.Errorf("invalid price %q", payload.Close[0])
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return domain.FeedEvent{
		Tick: &domain.PriceTick{Symbol: pair, Price: price, ReceivedAt: now()},
	}, nil
}

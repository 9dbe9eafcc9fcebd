package kraken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_SubscribeMessage(t *testing.T) {
	msg, err := Codec{}.SubscribeMessage([]string{"XBT/USD", "ETH/USD"})
	require.NoError(t, err)

	assert.JSONEq(t, `{"event":"subscribe","pair":["XBT/USD","ETH/USD"],"subscription":{"name":"ticker"}}`, string(msg))

	_, err = Codec{}.SubscribeMessage(nil)
	assert.Error(t, err)
}

func TestCodec_Decode(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	codec := Codec{Now: func() time.Time { return fixed }}

	tests := []struct {
		name        string
		raw         string
		wantSymbol  string
		wantPrice   float64
		wantControl string
		wantError   string
		wantErr     bool
	}{
		{
			name:       "Ticker update",
			raw:        `[42,{"a":["3000.6","1","1.000"],"b":["3000.4","2","2.000"],"c":["3000.5","0.1"],"v":["1","2"]},"ticker","ETH/USD"]`,
			wantSymbol: "ETH/USD",
			wantPrice:  3000.5,
		},
		{
			name:        "Heartbeat is a control message",
			raw:         `{"event":"heartbeat"}`,
			wantControl: "heartbeat",
		},
		{
			name:        "System status is a control message",
			raw:         `{"connectionID":1,"event":"systemStatus","status":"online","version":"1.9.0"}`,
			wantControl: "systemStatus",
		},
		{
			name:        "Subscription rejection carries the reason",
			raw:         `{"errorMessage":"Currency pair not supported","event":"subscriptionStatus","pair":"FOO/USD","status":"error"}`,
			wantControl: "subscriptionStatus",
			wantError:   "FOO/USD: Currency pair not supported",
		},
		{
			name:        "Other channels are ignored",
			raw:         `[7,[["3000.1","0.5","1700000000.1","b","l",""]],"trade","ETH/USD"]`,
			wantControl: "trade",
		},
		{name: "Non-numeric price", raw: `[42,{"c":["abc","1"]},"ticker","ETH/USD"]`, wantErr: true},
		{name: "Negative price", raw: `[42,{"c":["-1","1"]},"ticker","ETH/USD"]`, wantErr: true},
		{name: "Missing close", raw: `[42,{"a":["1"]},"ticker","ETH/USD"]`, wantErr: true},
		{name: "Too few elements", raw: `[42,{"c":["1","1"]}]`, wantErr: true},
		{name: "Missing pair", raw: `[42,{"c":["1","1"]},"ticker",""]`, wantErr: true},
		{name: "Truncated JSON", raw: `[42,{"c":["1"`, wantErr: true},
		{name: "Object without event", raw: `{"foo":"bar"}`, wantErr: true},
		{name: "Plain text", raw: `hello`, wantErr: true},
		{name: "Empty", raw: `  `, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := codec.Decode([]byte(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			if tt.wantSymbol != "" {
				require.NotNil(t, event.Tick)
				assert.Equal(t, tt.wantSymbol, event.Tick.Symbol)
				assert.Equal(t, tt.wantPrice, event.Tick.Price)
				assert.Equal(t, fixed, event.Tick.ReceivedAt)
				return
			}
			assert.Nil(t, event.Tick)
			assert.Equal(t, tt.wantControl, event.Control)
			assert.Equal(t, tt.wantError, event.Error)
		})
	}
}


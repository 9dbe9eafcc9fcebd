package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Config{Level: "info", Format: "json", Output: "stdout"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	ctx := WithRequestID(context.Background(), "req-123")
	logger.With("component", "ledger").InfoContext(ctx, "trade executed", "symbol", "BTC")
	logger.DebugContext(ctx, "hidden at info level")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &record))
	assert.Equal(t, "trade executed", record["msg"])
	assert.Equal(t, "req-123", record["request_id"])
	assert.Equal(t, "ledger", record["component"])
	assert.Equal(t, "BTC", record["symbol"])
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	logger, closer, err := New(Config{Level: "debug", Format: "text", Output: "file", FilePath: path, MaxSize: 1}, &bytes.Buffer{})
	require.NoError(t, err)

	logger.Debug("written to file")
	require.NoError(t, closer.Close())
	assert.FileExists(t, path)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestLoggerFromContextCarriesOpAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := New("debug", FormatJSON, &buf)

	ctx := MakeContextWithLogger(context.Background(), logger)
	ctx = MakeContextWithRequestID(ctx, "req-42")

	GetLoggerFromContextWithOp(ctx, "vfs.VFS.Lookup").Info("resolved")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "resolved", record["msg"])
	assert.Equal(t, "vfs.VFS.Lookup", record["op"])
	assert.Equal(t, "req-42", record["request_id"])
}

func TestNewRequestIDIsGenerated(t *testing.T) {
	ctx := MakeContextWithNewRequestID(context.Background())
	assert.Len(t, GetRequestIDFromCtx(ctx), 36)
}

func TestPrettyLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New("info", FormatPretty, &buf)

	logger.Debug("hidden")
	assert.Empty(t, buf.String())

	logger.Info("shown", slog.Int("blocks", 3))
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "\"blocks\": 3")
}

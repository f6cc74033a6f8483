package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("nonsense"))
}

func TestProductionLoggerWritesJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(Config{Level: "info", Output: &buf})
	log.Debug("hidden")
	log.Info("verified", zap.String("user_id", "u1"))
	require.NoError(t, log.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "verified", entry["msg"])
	assert.Equal(t, "u1", entry["user_id"])
	assert.Equal(t, "info", entry["level"])
}

package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	t.Cleanup(func() { _ = Setup(Config{Level: "info", Format: "console"}) })

	assert.NoError(t, Setup(Config{Level: "debug", Format: "json"}))
	assert.Error(t, Setup(Config{Level: "loud"}))
	assert.Error(t, Setup(Config{Level: "info", Format: "xml"}))
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	require.NoError(t, Setup(Config{Level: "info", Format: "json"}))
	t.Cleanup(func() {
		_ = Setup(Config{Level: "info", Format: "console"})
	})

	logger := New("registry")
	logger.Debug().Msg("hidden")
	logger.Info().Str("channel", "single/1").Msg("connected")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "registry", entry["module"])
	assert.Equal(t, "single/1", entry["channel"])
	assert.Equal(t, "connected", entry["message"])
}

func TestWatermillAdapter(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	require.NoError(t, Setup(Config{Level: "info", Format: "json"}))
	t.Cleanup(func() {
		_ = Setup(Config{Level: "info", Format: "console"})
	})

	adapter := NewWatermillAdapter(New("events")).With(watermill.LogFields{"topic": "t"})
	adapter.Error("publish failed", errors.New("boom"), watermill.LogFields{"attempt": 1})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "t", entry["topic"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "publish failed", entry["message"])
}

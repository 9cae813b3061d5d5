package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestPrettyHandlerWritesAttributes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}).WithoutColor()
	log := slog.New(handler).With("component", "auth").WithGroup("req")

	log.Info("login", "status", 200, slog.Group("actor", "id", "u-1"))

	line := buf.String()
	assert.Contains(t, line, "INFO  login")
	assert.Contains(t, line, "component=auth")
	assert.Contains(t, line, "req.status=200")
	assert.Contains(t, line, "req.actor.id=u-1")
	assert.NotContains(t, line, "\033[")
}

func TestPrettyHandlerRespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	log.Info("ignored")
	assert.Empty(t, buf.String())

	log.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNewJSONFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	New(&buf, "info", "json").Info("ready", "port", "8080")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "ready", decoded["msg"])
	assert.Equal(t, "8080", decoded["port"])
}

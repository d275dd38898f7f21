package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codekiln/langstar/internal/config"
)

func TestNewLogger_Fields(t *testing.T) {
	cfg := config.Default()
	cfg.WorkspaceID = "ws-1"

	var buf bytes.Buffer
	logger := NewLogger(cfg, "langstar", &buf)
	logger.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "langstar", entry["service"])
	assert.Equal(t, "ws-1", entry["workspace_id"])
	assert.Equal(t, "hello", entry["message"])
}

func TestNewLogger_Level(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "warn"

	var buf bytes.Buffer
	logger := NewLogger(cfg, "", &buf)
	logger.Info().Msg("dropped")
	assert.Empty(t, buf.String())

	logger.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNewLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "loud"

	var buf bytes.Buffer
	logger := NewLogger(cfg, "", &buf)
	logger.Debug().Msg("dropped")
	logger.Info().Msg("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

package logging

import (
	"bytes"
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
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNew_JSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New("warn", "json", &buf)

	log.Info("dropped")
	log.Warn("provider failed", "provider", "google")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "provider failed", rec["msg"])
	assert.Equal(t, "google", rec["provider"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	New("info", "text", &buf).Info("search fallback", "mode", "text")
	assert.Contains(t, buf.String(), "mode=text")
}

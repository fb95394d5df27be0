package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"Warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}

func TestNewFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", false)

	logger.Info("hidden")
	logger.Warn("link timed out", "sector", "energy")

	out := buf.String()
	assert.NotContains(t, out, "hidden", "info message should be filtered at warn level")
	assert.Contains(t, out, "sector=energy")
}

func TestNewVerboseForcesDebug(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "error", true).Debug("polling")

	assert.Contains(t, buf.String(), "polling")
	assert.Contains(t, buf.String(), "source=", "verbose logger adds source locations")
}

package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	t.Run("creates with default config", func(t *testing.T) {
		l, err := New(nil)
		require.NoError(t, err)
		assert.NotNil(t, l)
	})

	t.Run("json format", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l, err := New(&Config{Level: "info", Format: "json", Output: buf})
		require.NoError(t, err)

		l.Info("payment resolved", zap.String("correlation_id", "ws_CO_1"))

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "payment resolved", entry["msg"])
		assert.Equal(t, "ws_CO_1", entry["correlation_id"])
		assert.Equal(t, "info", entry["level"])
	})

	t.Run("console format", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l, err := New(&Config{Level: "info", Format: "console", Output: buf})
		require.NoError(t, err)

		l.Info("test message")
		output := buf.String()
		assert.Contains(t, output, "test message")
		assert.False(t, strings.HasPrefix(output, "{"))
	})

	t.Run("unknown level", func(t *testing.T) {
		_, err := New(&Config{Level: "verbose"})
		assert.Error(t, err)
	})
}

func TestLogger_Levels(t *testing.T) {
	buf := &bytes.Buffer{}
	l, err := New(&Config{Level: "warn", Format: "json", Output: buf})
	require.NoError(t, err)

	l.Debug("debug")
	l.Info("info")
	assert.Empty(t, buf.String())

	l.Warn("warn")
	assert.Contains(t, buf.String(), "warn")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"debug", "debug"},
		{"DEBUG", "debug"},
		{"info", "info"},
		{"", "info"},
		{"warn", "warn"},
		{"warning", "warn"},
		{"error", "error"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := parseLevel(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, level.String())
		})
	}
}

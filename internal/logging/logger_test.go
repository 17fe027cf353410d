package logging

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/sqlassist/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"debug", DebugLevel},
		{"DEBUG", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{"ERROR", ErrorLevel},
		{"invalid", InfoLevel},
		{"", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", DebugLevel.String())
	assert.Equal(t, "INFO", InfoLevel.String())
	assert.Equal(t, "WARN", WarnLevel.String())
	assert.Equal(t, "ERROR", ErrorLevel.String())
	assert.Equal(t, "UNKNOWN", LogLevel(999).String())
}

func TestNewLoggerInvalidOutput(t *testing.T) {
	_, err := NewLogger(config.LoggingConfig{Level: "info", Output: "syslog"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log output")
}

func TestNewLoggerFileRequiresPath(t *testing.T) {
	_, err := NewLogger(config.LoggingConfig{Level: "info", Output: "file"})
	require.Error(t, err)
}

func readEntries(t *testing.T, path string) []map[string]any {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []map[string]any

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}

	require.NoError(t, scanner.Err())

	return entries
}

func TestFileLoggerWritesJSONWithFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	logger, err := NewLogger(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "file",
		File:   path,
	})
	require.NoError(t, err)

	logger.Debug("dropped below level")
	logger.WithField("conversation_id", "c-1").Infof("answered in %dms", 12)
	logger.WithFields(map[string]any{"reason": "table_mismatch"}).
		WithError(errors.New("boom")).
		Error("statement rejected")
	require.NoError(t, logger.Close())

	entries := readEntries(t, path)
	require.Len(t, entries, 2)

	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "answered in 12ms", entries[0]["msg"])
	assert.Equal(t, "c-1", entries[0]["conversation_id"])

	assert.Equal(t, "error", entries[1]["level"])
	assert.Equal(t, "table_mismatch", entries[1]["reason"])
	assert.Equal(t, "boom", entries[1]["error"])
}

func TestWithErrorNil(t *testing.T) {
	logger := NewNop()
	assert.Same(t, logger, logger.WithError(nil))
}

func TestGetLoggerFallsBack(t *testing.T) {
	SetLogger(nil)
	t.Cleanup(func() { SetLogger(nil) })

	logger := GetLogger()
	require.NotNil(t, logger)
	assert.Equal(t, InfoLevel, logger.Level())
}

func TestLoggerMiddleware(t *testing.T) {
	logger := NewNop()

	require.NoError(t, LoggerMiddleware(logger, "noop", func() error { return nil }))

	want := errors.New("failed")
	assert.ErrorIs(t, LoggerMiddleware(logger, "fail", func() error { return want }), want)
}

// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbarn/kitelogin/internal/config"
)

// syncBuffer adapts a bytes.Buffer to zapcore.WriteSyncer.
type syncBuffer struct {
	bytes.Buffer
}

func (b *syncBuffer) Sync() error { return nil }

func TestInitialize(t *testing.T) {

	t.Run("console format colorizes the level", func(t *testing.T) {
		ResetForTest()
		var buf syncBuffer

		Initialize(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "test-service",
			Colors:      config.ColorConfig{Info: "green"},
		}, &buf)

		GetLogger().Info("This is a test message.")

		output := buf.String()
		assert.Contains(t, output, "INFO")
		assert.Contains(t, output, "This is a test message.")
		assert.Contains(t, output, colorGreen)
		assert.Contains(t, output, colorReset)
		assert.Contains(t, output, "test-service.")
	})

	t.Run("level gates lower entries", func(t *testing.T) {
		ResetForTest()
		var buf syncBuffer

		Initialize(config.LoggerConfig{Level: "warn", Format: "console"}, &buf)
		logger := GetLogger()
		logger.Info("should be suppressed")
		logger.Warn("should appear")

		output := buf.String()
		assert.NotContains(t, output, "should be suppressed")
		assert.Contains(t, output, "should appear")
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		ResetForTest()
		var buf syncBuffer

		Initialize(config.LoggerConfig{Level: "chatty", Format: "console"}, &buf)
		logger := GetLogger()
		logger.Debug("debug hidden")
		logger.Info("info shown")

		output := buf.String()
		assert.NotContains(t, output, "debug hidden")
		assert.Contains(t, output, "info shown")
	})

	t.Run("file sink writes json", func(t *testing.T) {
		ResetForTest()
		var buf syncBuffer
		logFile := filepath.Join(t.TempDir(), "kitelogin.log")

		Initialize(config.LoggerConfig{
			Level:   "info",
			Format:  "console",
			LogFile: logFile,
		}, &buf)

		GetLogger().Info("written to both sinks")
		Sync()

		raw, err := os.ReadFile(logFile)
		require.NoError(t, err)

		line := strings.TrimSpace(strings.Split(string(raw), "\n")[0])
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		assert.Equal(t, "written to both sinks", entry["msg"])
		assert.Equal(t, "INFO", entry["level"])
	})

	t.Run("second initialize is a no-op", func(t *testing.T) {
		ResetForTest()
		var first, second syncBuffer

		Initialize(config.LoggerConfig{Level: "info", Format: "console"}, &first)
		Initialize(config.LoggerConfig{Level: "debug", Format: "console"}, &second)

		GetLogger().Info("routed to the first writer")

		assert.Contains(t, first.String(), "routed to the first writer")
		assert.Empty(t, second.String())
	})
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	ResetForTest()
	// Must not panic and must return something usable.
	logger := GetLogger()
	require.NotNil(t, logger)
	logger.Info("fallback logger works")
}

// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/shelfcheck/internal/config"
)

// syncBuffer is a goroutine safe buffer usable as a zapcore.WriteSyncer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) Sync() error { return nil }

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// resetGlobalLogger keeps tests isolated from the package singleton.
func resetGlobalLogger(t *testing.T) {
	t.Helper()
	ResetForTest()
	level.SetLevel(zap.InfoLevel)
	t.Cleanup(ResetForTest)
}

func TestInitialize(t *testing.T) {
	t.Run("console logger with colors", func(t *testing.T) {
		resetGlobalLogger(t)
		out := &syncBuffer{}

		Initialize(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "shelfcheck",
			Colors:      config.ColorConfig{Info: "green"},
		}, out)
		GetLogger().Info("page checked")
		Sync()

		output := out.String()
		assert.Contains(t, output, "INFO")
		assert.Contains(t, output, "page checked")
		assert.Contains(t, output, "shelfcheck.")
		assert.Contains(t, output, colorGreen)
		assert.Contains(t, output, colorReset)
	})

	t.Run("json logger", func(t *testing.T) {
		resetGlobalLogger(t)
		out := &syncBuffer{}

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"}, out)
		GetLogger().Warn("retrying check", zap.String("url", "https://shop.test/p/1"))
		Sync()

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(out.String()), &entry), "log output should be valid JSON")
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "JSONTest", entry["logger"])
		assert.Equal(t, "retrying check", entry["msg"])
		assert.Equal(t, "https://shop.test/p/1", entry["url"])
	})

	t.Run("writes rotated file when configured", func(t *testing.T) {
		resetGlobalLogger(t)
		logFile := filepath.Join(t.TempDir(), "shelfcheck.log")

		Initialize(config.LoggerConfig{Level: "debug", Format: "json", LogFile: logFile, MaxSize: 1}, zapcore.AddSync(&bytes.Buffer{}))
		GetLogger().Error("setup failed")
		Sync()

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "setup failed")
	})

	t.Run("initializes only once", func(t *testing.T) {
		resetGlobalLogger(t)
		out := &syncBuffer{}

		Initialize(config.LoggerConfig{Level: "info", ServiceName: "First"}, out)
		first := GetLogger()
		Initialize(config.LoggerConfig{Level: "debug", ServiceName: "Second"}, out)
		second := GetLogger()

		assert.Same(t, first, second)
		second.Info("test")
		Sync()
		assert.Contains(t, out.String(), "First")
		assert.NotContains(t, out.String(), "Second")
	})
}

func TestSetVerbose(t *testing.T) {
	resetGlobalLogger(t)
	out := &syncBuffer{}
	Initialize(config.LoggerConfig{Level: "info", Format: "json"}, out)

	GetLogger().Debug("hidden")
	SetVerbose(true)
	GetLogger().Debug("visible")
	SetVerbose(false)
	GetLogger().Debug("hidden again")
	Sync()

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "visible")
}

func TestGetLogger(t *testing.T) {
	t.Run("fallback before initialization", func(t *testing.T) {
		resetGlobalLogger(t)
		require.NotNil(t, GetLogger())
	})

	t.Run("global logger after initialization", func(t *testing.T) {
		resetGlobalLogger(t)
		Initialize(config.LoggerConfig{Level: "info", ServiceName: "GlobalTest"}, &syncBuffer{})
		assert.Same(t, globalLogger.Load(), GetLogger())
	})
}

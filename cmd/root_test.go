// File: cmd/root_test.go
package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/shelfcheck/internal/browser"
	"github.com/xkilldash9x/shelfcheck/internal/browser/browsertest"
	"github.com/xkilldash9x/shelfcheck/internal/config"
	"github.com/xkilldash9x/shelfcheck/internal/observability"
)

// newTestApp returns an app whose commands drive the given fake browser.
func newTestApp(t *testing.T, driver *browsertest.Driver) *app {
	t.Helper()
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)
	return &app{
		v: viper.New(),
		newDriver: func(*zap.Logger) browser.Driver {
			return driver
		},
	}
}

// executeCommand runs a fresh command tree built from a and returns
// everything it printed.
func executeCommand(ctx context.Context, a *app, args ...string) (string, error) {
	rootCmd := newRootCmd(a)
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	return buf.String(), err
}

// writeConfig writes content to a shelfcheck.yaml in a fresh directory.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shelfcheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestVersion(t *testing.T) {
	for _, args := range [][]string{{"--version"}, {"version"}} {
		out, err := executeCommand(context.Background(), newTestApp(t, browsertest.NewDriver()), args...)
		require.NoError(t, err, args)
		assert.Equal(t, "shelfcheck version "+Version+"\n", out)
	}
}

func TestConfigPrecedence(t *testing.T) {
	cfgPath := writeConfig(t, `
run:
  base_url: https://shop.test
  retries: 2
  timeout: 12000
  viewport:
    width: 1280
server:
  listen_addr: 127.0.0.1:9999
`)

	t.Run("file overrides defaults", func(t *testing.T) {
		a := newTestApp(t, browsertest.NewDriver())
		_, err := executeCommand(context.Background(), a, "--config", cfgPath, "version")
		require.NoError(t, err)

		cfg, err := config.NewConfigFromViper(a.v)
		require.NoError(t, err)
		assert.Equal(t, "https://shop.test", cfg.Run.BaseURL)
		assert.Equal(t, 2, cfg.Run.Retries)
		assert.Equal(t, 12_000, int(cfg.Run.Timeout.Milliseconds()))
		assert.Equal(t, 1280, cfg.Run.Viewport.Width)
		assert.Equal(t, 1080, cfg.Run.Viewport.Height, "unset keys keep their defaults")
		assert.Equal(t, "127.0.0.1:9999", cfg.Server.ListenAddr)
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		t.Setenv("SHELFCHECK_RUN_RETRIES", "4")
		a := newTestApp(t, browsertest.NewDriver())
		_, err := executeCommand(context.Background(), a, "--config", cfgPath, "version")
		require.NoError(t, err)

		cfg, err := config.NewConfigFromViper(a.v)
		require.NoError(t, err)
		assert.Equal(t, 4, cfg.Run.Retries)
	})

	t.Run("environment durations in milliseconds", func(t *testing.T) {
		t.Setenv("SHELFCHECK_RUN_TIMEOUT", "30000")
		t.Setenv("SHELFCHECK_RUN_RETRY_DELAY", "250ms")
		a := newTestApp(t, browsertest.NewDriver())
		_, err := executeCommand(context.Background(), a, "--config", cfgPath, "version")
		require.NoError(t, err)

		cfg, err := config.NewConfigFromViper(a.v)
		require.NoError(t, err)
		assert.Equal(t, 30*time.Second, cfg.Run.Timeout)
		assert.Equal(t, 250*time.Millisecond, cfg.Run.RetryDelay)
	})

	t.Run("flags override the environment", func(t *testing.T) {
		t.Setenv("SHELFCHECK_RUN_RETRIES", "4")
		a := newTestApp(t, browsertest.NewDriver())
		// No product URLs, so the run itself is rejected after config loads.
		_, err := executeCommand(context.Background(), a, "--config", cfgPath, "run", "--retries", "6", "--report=false")
		require.ErrorIs(t, err, config.ErrInvalid)

		cfg, err := config.NewConfigFromViper(a.v)
		require.NoError(t, err)
		assert.Equal(t, 6, cfg.Run.Retries)
		assert.False(t, cfg.Run.GenerateReport)
	})
}

func TestMissingConfigFile(t *testing.T) {
	a := newTestApp(t, browsertest.NewDriver())
	_, err := executeCommand(context.Background(), a, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "version")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalid)
	assert.Contains(t, err.Error(), "failed to initialize configuration")
}

func TestConfigFromWithoutPreRun(t *testing.T) {
	_, err := configFrom(context.Background())
	assert.EqualError(t, err, "configuration not loaded")
}

func TestExecuteReturnsCommandError(t *testing.T) {
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)

	// Execute reads the process arguments; an unknown flag must surface as an error.
	oldArgs := os.Args
	t.Cleanup(func() { os.Args = oldArgs })
	os.Args = []string{"shelfcheck", "--no-such-flag"}

	err := Execute(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrBelowThreshold))
}

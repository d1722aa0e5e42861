// File: cmd/shelfcheck/main_test.go
package main

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/shelfcheck/cmd"
)

// resetMocks restores the original function implementations.
func resetMocks() {
	osWriteFile = os.WriteFile
	osExit = os.Exit
	execute = cmd.Execute
}

func TestRunExitCodes(t *testing.T) {
	defer resetMocks()

	execute = func(context.Context) error { return nil }
	assert.Equal(t, 0, run(context.Background()))

	execute = func(context.Context) error { return cmd.ErrBelowThreshold }
	assert.Equal(t, 1, run(context.Background()))

	execute = func(context.Context) error { return errors.New("browser setup failed") }
	assert.Equal(t, 1, run(context.Background()))
}

func TestHandlePanic(t *testing.T) {
	defer resetMocks()

	t.Run("writes the panic log and exits 1", func(t *testing.T) {
		var written string
		var path string
		osWriteFile = func(name string, data []byte, _ os.FileMode) error {
			path, written = name, string(data)
			return nil
		}
		exitCode := -1
		osExit = func(code int) { exitCode = code }

		func() {
			defer handlePanic()
			panic("unexpected nil page")
		}()

		assert.Equal(t, 1, exitCode)
		assert.Equal(t, panicLogFile, path)
		assert.Contains(t, written, "panic: unexpected nil page")
		assert.Contains(t, written, "goroutine", "the stack trace is included")
	})

	t.Run("still exits 1 when the log cannot be written", func(t *testing.T) {
		osWriteFile = func(string, []byte, os.FileMode) error { return errors.New("read-only file system") }
		exitCode := -1
		osExit = func(code int) { exitCode = code }

		func() {
			defer handlePanic()
			panic("boom")
		}()

		assert.Equal(t, 1, exitCode)
	})

	t.Run("no panic is a no-op", func(t *testing.T) {
		called := false
		osExit = func(int) { called = true }
		func() {
			defer handlePanic()
		}()
		require.False(t, called)
	})
}

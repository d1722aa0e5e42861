// File: cmd/shelfcheck/main.go
/*
Copyright © 2025 Kyle McAllister (xkilldash9x@proton.me)
*/

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/shelfcheck/cmd"
	"github.com/xkilldash9x/shelfcheck/internal/observability"
)

const panicLogFile = "panic.log"

// Define function variables for dependency injection/mocking in tests.
var (
	osWriteFile = os.WriteFile
	// Allows mocking os.Exit in tests.
	osExit = os.Exit
	// Allows replacing the command tree in tests.
	execute = cmd.Execute
)

// main is the entry point of the application.
func main() {
	// The supervisor: nothing escapes as a bare crash.
	defer handlePanic()

	// Set up a context that listens for interrupt signals (SIGINT, SIGTERM) for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	osExit(run(ctx))
}

// run executes the command tree and maps the outcome to an exit code.
// cmd.Execute has already logged any failure.
func run(ctx context.Context) int {
	if err := execute(ctx); err != nil {
		return 1
	}
	return 0
}

// handlePanic converts a panic into a panic.log file and exit status 1.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}

	// Ensure logs are flushed before proceeding.
	observability.Sync()

	stackTrace := debug.Stack()
	panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, stackTrace)

	if err := osWriteFile(panicLogFile, []byte(panicMessage), 0o644); err != nil {
		// If logging fails, print to stderr as a fallback.
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
		osExit(1)
		return // Return facilitates testing when osExit is mocked.
	}

	fmt.Fprintf(os.Stderr, "\n----------------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "shelfcheck crashed: %v\n", r)
	fmt.Fprintf(os.Stderr, "Details logged to %s\n", panicLogFile)
	fmt.Fprintf(os.Stderr, "----------------------------------------------------------------\n")
	osExit(1)
}

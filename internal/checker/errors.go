package checker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/shelfcheck/internal/browser"
	"github.com/xkilldash9x/shelfcheck/internal/results"
)

// Source markers for console entries the observer creates itself.
const (
	SourceTestRunner    = "test-runner"
	SourcePageError     = "uncaught-exception"
	SourceWindowOnError = "window.onerror"
)

// ErrorObserver records console, network and resource failures seen while
// a page loads and settles.
type ErrorObserver struct {
	driver   browser.Driver
	settings Settings
	logger   *zap.Logger
}

// NewErrorObserver creates an error observer.
func NewErrorObserver(driver browser.Driver, settings Settings, logger *zap.Logger) *ErrorObserver {
	return &ErrorObserver{driver: driver, settings: settings, logger: logger.Named("error_observer")}
}

func consoleLevel(level string) (results.ConsoleLevel, bool) {
	switch level {
	case "error", "assert":
		return results.LevelError, true
	case "warning", "warn":
		return results.LevelWarning, true
	}
	return "", false
}

func optionalInt(v int) *int {
	return &v
}

// classifyEvents turns raw page events into the result lists.
func classifyEvents(events Events, result *results.ErrorResult) {
	for _, m := range events.Console {
		level, ok := consoleLevel(m.Level)
		if !ok {
			continue
		}
		entry := results.ConsoleError{Level: level, Message: m.Text, Source: m.URL}
		if m.HasLocation {
			entry.Line = optionalInt(m.Line)
			entry.Column = optionalInt(m.Column)
		}
		result.ConsoleErrors = append(result.ConsoleErrors, entry)
	}
	for _, pe := range events.PageErrors {
		result.ConsoleErrors = append(result.ConsoleErrors, results.ConsoleError{
			Level:   results.LevelError,
			Message: pe.Message,
			Source:  SourcePageError,
			Stack:   pe.Stack,
		})
	}
	for _, r := range events.Responses {
		if r.Status < 400 {
			continue
		}
		result.NetworkErrors = append(result.NetworkErrors, results.NetworkError{
			URL:          r.URL,
			Status:       r.Status,
			StatusText:   r.StatusText,
			Method:       r.Method,
			ResourceType: r.ResourceType,
		})
	}
	for _, f := range events.Failures {
		result.ResourceErrors = append(result.ResourceErrors, results.ResourceError{
			URL:   f.URL,
			Type:  results.ResourceKindFor(f.ResourceType),
			Error: f.ErrorText,
		})
	}
}

func trappedEntry(t browser.TrappedError) results.ConsoleError {
	entry := results.ConsoleError{
		Level:   results.LevelError,
		Message: t.Message,
		Source:  t.Source,
		Stack:   t.Stack,
	}
	if entry.Source == "" {
		entry.Source = SourceWindowOnError
	}
	if t.Line > 0 {
		entry.Line = optionalInt(t.Line)
		entry.Column = optionalInt(t.Column)
	}
	return entry
}

// Check visits url, waits for the settle period, pulls the in-page traps
// and classifies everything that was observed.
func (o *ErrorObserver) Check(ctx context.Context, url string) (results.ErrorResult, error) {
	result := results.ErrorResult{URL: url}
	page, release, err := openPage(ctx, o.driver, o.logger)
	if err != nil {
		return result, err
	}
	defer release()

	collector := NewCollector()
	if err := collector.Start(page); err != nil {
		return result, err
	}
	defer collector.Stop()

	var extra []results.ConsoleError
	if err := page.Navigate(ctx, url); err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		extra = append(extra, results.ConsoleError{
			Level:   results.LevelError,
			Message: fmt.Sprintf("Navigation failed: %v", err),
			Source:  SourceTestRunner,
		})
	} else {
		if err := sleep(ctx, o.settings.ErrorSettle); err != nil {
			return result, err
		}
		trapped, err := page.CaptureInPageErrors(ctx, o.settings.InPageErrorWindow)
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if err != nil {
			// The page itself logged nothing; keep this out of the result.
			o.logger.Warn("In-page error capture failed.", zap.String("url", url), zap.Error(err))
		}
		for _, t := range trapped {
			extra = append(extra, trappedEntry(t))
		}
	}

	classifyEvents(collector.Stop(), &result)
	result.ConsoleErrors = append(result.ConsoleErrors, extra...)
	result.Finalize()

	o.logger.Debug("Errors observed.",
		zap.String("url", url),
		zap.Bool("success", result.Success),
		zap.Int("console", len(result.ConsoleErrors)),
		zap.Int("network", len(result.NetworkErrors)),
		zap.Int("resource", len(result.ResourceErrors)),
	)
	return result, nil
}

// Package checker implements the per-URL checks: element presence, image
// integrity and error observation. Every check opens its own page, uses it
// for one visit, and closes it before returning.
package checker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/shelfcheck/internal/browser"
	"github.com/xkilldash9x/shelfcheck/internal/config"
)

// Check kinds, used in logs and metrics.
const (
	KindProductPage = "product_page"
	KindImages      = "images"
	KindErrors      = "errors"
)

// Settings holds the waits shared by the checkers.
type Settings struct {
	// ImageSettle is waited after navigation so lazy images can load.
	ImageSettle time.Duration
	// ErrorSettle is waited after navigation so async errors can surface.
	ErrorSettle time.Duration
	// InPageErrorWindow is how long the in-page error traps listen.
	InPageErrorWindow time.Duration
}

// SettingsFromRun extracts checker settings from a run configuration.
func SettingsFromRun(run config.TestConfiguration) Settings {
	return Settings{
		ImageSettle:       run.ImageSettle,
		ErrorSettle:       run.ErrorSettle,
		InPageErrorWindow: run.InPageErrorWindow,
	}
}

// openPage opens a tab and returns a release function that always closes it,
// even when ctx has been canceled.
func openPage(ctx context.Context, driver browser.Driver, logger *zap.Logger) (browser.Page, func(), error) {
	page, err := driver.NewPage(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("opening page: %w", err)
	}
	release := func() {
		if err := page.Close(browser.Detach(ctx)); err != nil {
			logger.Warn("Failed to close page.", zap.Error(err))
		}
	}
	return page, release, nil
}

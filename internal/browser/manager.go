// internal/browser/manager.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Manager handles the lifecycle of one Chrome process and one isolated
// browsing context. Pages opened through it share the context's cookie jar.
type Manager struct {
	logger *zap.Logger
	opts   Options

	mu sync.Mutex
	// allocatorCtx manages the browser process.
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	// anchorCtx owns the browsing context; tabs are derived from it.
	anchorCtx    context.Context
	anchorCancel context.CancelFunc
}

var _ Driver = (*Manager)(nil)

// NewManager creates a manager. Nothing is launched until Start.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger.Named("browser_manager")}
}

// Start launches Chrome, creates the browsing context and installs cookies.
// Any failure tears down whatever was created.
func (m *Manager) Start(ctx context.Context, opts Options) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.browserCtx != nil {
		return errors.New("browser already started")
	}
	m.opts = opts.withDefaults()

	cookies, err := cookieParams(m.opts)
	if err != nil {
		return err
	}

	m.logger.Info("Launching browser...", zap.Bool("headless", m.opts.Headless))
	m.allocatorCtx, m.allocatorCancel = chromedp.NewExecAllocator(ctx, allocatorOptions(m.opts)...)
	m.browserCtx, m.browserCancel = chromedp.NewContext(m.allocatorCtx,
		chromedp.WithLogf(m.logger.Sugar().Debugf),
		chromedp.WithErrorf(m.logger.Sugar().Debugf),
	)
	if err := chromedp.Run(m.browserCtx); err != nil {
		m.release()
		return fmt.Errorf("browser failed to start: %w", err)
	}

	m.anchorCtx, m.anchorCancel = chromedp.NewContext(m.browserCtx, chromedp.WithNewBrowserContext())
	setup := []chromedp.Action{network.Enable()}
	if len(cookies) > 0 {
		setup = append(setup, network.SetCookies(cookies))
	}
	if err := chromedp.Run(m.anchorCtx, setup...); err != nil {
		m.release()
		return fmt.Errorf("failed to prepare browsing context: %w", err)
	}

	m.logger.Info("Browser ready.",
		zap.Int("viewport_width", m.opts.Viewport.Width),
		zap.Int("viewport_height", m.opts.Viewport.Height),
		zap.Int("cookies", len(cookies)),
		zap.Int("headers", len(m.opts.Headers)),
	)
	return nil
}

// NewPage opens a tab in the shared browsing context.
func (m *Manager) NewPage(ctx context.Context) (Page, error) {
	m.mu.Lock()
	anchor := m.anchorCtx
	opts := m.opts
	m.mu.Unlock()
	if anchor == nil {
		return nil, ErrNotStarted
	}

	tabCtx, cancel := chromedp.NewContext(anchor)
	s := newSession(tabCtx, cancel, opts, m.logger)
	if err := s.initialize(ctx); err != nil {
		_ = s.Close(Detach(ctx))
		return nil, err
	}
	return s, nil
}

// Close disposes the browsing context, then the browser process. Both steps
// run even if the first fails.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.browserCtx == nil {
		return nil
	}

	var errs []error
	if m.anchorCtx != nil {
		if err := cancelWithin(ctx, m.anchorCtx); err != nil {
			errs = append(errs, fmt.Errorf("closing browsing context: %w", err))
		}
	}
	if err := cancelWithin(ctx, m.browserCtx); err != nil {
		errs = append(errs, fmt.Errorf("closing browser: %w", err))
	}
	m.release()
	m.logger.Info("Browser shut down.")
	return errors.Join(errs...)
}

// release cancels every context the manager created. Caller holds mu.
func (m *Manager) release() {
	if m.anchorCancel != nil {
		m.anchorCancel()
	}
	if m.browserCancel != nil {
		m.browserCancel()
	}
	if m.allocatorCancel != nil {
		m.allocatorCancel()
		<-m.allocatorCtx.Done()
	}
	m.anchorCtx, m.anchorCancel = nil, nil
	m.browserCtx, m.browserCancel = nil, nil
	m.allocatorCtx, m.allocatorCancel = nil, nil
}

// cancelWithin runs chromedp.Cancel but gives up when ctx is done.
func cancelWithin(ctx context.Context, target context.Context) error {
	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(target) }()
	select {
	case err := <-done:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

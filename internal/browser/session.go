// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const closeTimeout = 10 * time.Second

// Session is a chromedp tab implementing Page.
type Session struct {
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *zap.Logger
	opts      Options
	harvester *Harvester

	mu       sync.Mutex
	isClosed bool
}

var _ Page = (*Session)(nil)

func newSession(tabCtx context.Context, cancel context.CancelFunc, opts Options, logger *zap.Logger) *Session {
	id := uuid.New().String()
	l := logger.With(zap.String("session_id", id[:8]))
	return &Session{
		ctx:       tabCtx,
		cancel:    cancel,
		logger:    l,
		opts:      opts,
		harvester: NewHarvester(l),
	}
}

// initialize creates the target, attaches the harvester, and applies the
// per-tab settings: viewport and extra headers.
func (s *Session) initialize(ctx context.Context) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	// The first Run creates the tab.
	if err := chromedp.Run(runCtx); err != nil {
		return fmt.Errorf("failed to open tab: %w", err)
	}
	s.harvester.Start(s.ctx)

	actions := []chromedp.Action{
		network.Enable(),
		runtime.Enable(),
		log.Enable(),
		chromedp.EmulateViewport(int64(s.opts.Viewport.Width), int64(s.opts.Viewport.Height)),
	}
	if len(s.opts.Headers) > 0 {
		actions = append(actions, network.SetExtraHTTPHeaders(headerMap(s.opts.Headers)))
	}
	if err := chromedp.Run(runCtx, actions...); err != nil {
		return fmt.Errorf("failed to configure tab: %w", err)
	}
	s.logger.Debug("Tab initialized.")
	return nil
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating", zap.String("url", url))
	navCtx, cancelNav := context.WithTimeout(ctx, s.opts.NavigationTimeout)
	defer cancelNav()
	runCtx, cancel := CombineContext(s.ctx, navCtx)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return s.navigationError(url, navCtx, err)
	}
	if err := s.harvester.WaitNetworkIdle(runCtx, s.opts.IdleQuietPeriod); err != nil {
		return s.navigationError(url, navCtx, err)
	}
	return nil
}

func (s *Session) navigationError(url string, navCtx context.Context, err error) error {
	if errors.Is(navCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("navigation to %s timed out after %s", url, s.opts.NavigationTimeout)
	}
	return fmt.Errorf("navigation to %s failed: %w", url, err)
}

// evaluate runs script in the page and decodes its result into res.
func (s *Session) evaluate(ctx context.Context, script string, res interface{}) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.Evaluate(script, res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
}

func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.evaluate(ctx, `document.title`, &title); err != nil {
		return "", fmt.Errorf("reading title: %w", err)
	}
	return title, nil
}

func (s *Session) QueryOne(ctx context.Context, selector string) (*Element, error) {
	var res struct {
		Found bool `json:"found"`
		Element
	}
	if err := s.evaluate(ctx, queryOneJS(selector), &res); err != nil {
		return nil, fmt.Errorf("querying %q: %w", selector, err)
	}
	if !res.Found {
		return nil, nil
	}
	return &res.Element, nil
}

func (s *Session) Count(ctx context.Context, selector string) (int, error) {
	var n int
	if err := s.evaluate(ctx, countJS(selector), &n); err != nil {
		return 0, fmt.Errorf("counting %q: %w", selector, err)
	}
	return n, nil
}

func (s *Session) Images(ctx context.Context) ([]Image, error) {
	var images []Image
	if err := s.evaluate(ctx, imagesScript, &images); err != nil {
		return nil, fmt.Errorf("enumerating images: %w", err)
	}
	return images, nil
}

func (s *Session) ProbeResource(ctx context.Context, url string) (int, error) {
	var status int
	if err := s.evaluate(ctx, probeJS(url), &status); err != nil {
		return 0, fmt.Errorf("probing %s: %w", url, err)
	}
	return status, nil
}

func (s *Session) CaptureInPageErrors(ctx context.Context, window time.Duration) ([]TrappedError, error) {
	var trapped []TrappedError
	if err := s.evaluate(ctx, errorTrapJS(window.Milliseconds()), &trapped); err != nil {
		return nil, fmt.Errorf("capturing in-page errors: %w", err)
	}
	return trapped, nil
}

func (s *Session) Subscribe(h EventHandler) func() {
	return s.harvester.Subscribe(h)
}

// Close stops event delivery and closes the tab, waiting at most
// closeTimeout for the browser to confirm.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed {
		return nil
	}
	s.isClosed = true
	s.harvester.Stop()

	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(s.ctx) }()

	select {
	case err := <-done:
		s.cancel()
		if err != nil {
			return fmt.Errorf("closing tab: %w", err)
		}
		s.logger.Debug("Tab closed.")
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	case <-time.After(closeTimeout):
		s.cancel()
		s.logger.Warn("Timeout waiting for tab to close.")
		return nil
	}
}

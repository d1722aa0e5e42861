// Package browsertest provides an in-memory browser.Driver whose pages are
// described declaratively, for tests of code built on the browser package.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xkilldash9x/shelfcheck/internal/browser"
)

// Probe is the scripted outcome of Page.ProbeResource for one URL.
type Probe struct {
	Status int
	Err    error
}

// Site describes what a page looks like once navigated to.
type Site struct {
	Title    string
	TitleErr error
	// Elements maps a selector to the first element it matches.
	Elements map[string]*browser.Element
	// Counts overrides Count for a selector; otherwise Count is 1 when the
	// selector is in Elements and 0 if not.
	Counts map[string]int
	// QueryErrs makes QueryOne and Count fail for a selector.
	QueryErrs map[string]error

	Images    []browser.Image
	ImagesErr error
	// Probes maps a URL to its HEAD probe result. Unlisted URLs answer 200.
	Probes map[string]Probe

	// Events are delivered to subscribers during Navigate, in order.
	Console   []browser.ConsoleMessage
	PageErrs  []browser.PageError
	Responses []browser.Response
	Failures  []browser.RequestFailure

	Trapped    []browser.TrappedError
	TrappedErr error

	NavigateErr error
	// LoadDelay is slept during Navigate.
	LoadDelay time.Duration
}

// Driver is a fake browser.Driver serving Sites by URL.
type Driver struct {
	mu    sync.Mutex
	sites map[string]*Site

	StartErr error
	CloseErr error
	// NewPageErrs are returned by successive NewPage calls; a nil entry or
	// an exhausted list means success.
	NewPageErrs []error

	started     bool
	StartCalls  int
	CloseCalls  int
	Options     browser.Options
	PagesOpened int
	PagesClosed int
	Navigations []string
	openPages   int
	maxOpen     int
}

var _ browser.Driver = (*Driver)(nil)

// NewDriver creates a driver with no sites.
func NewDriver() *Driver {
	return &Driver{sites: make(map[string]*Site)}
}

// Serve registers the content returned for url.
func (d *Driver) Serve(url string, site *Site) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sites[url] = site
	return d
}

func (d *Driver) Start(_ context.Context, opts browser.Options) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.StartCalls++
	d.Options = opts
	if d.StartErr != nil {
		return d.StartErr
	}
	d.started = true
	return nil
}

func (d *Driver) NewPage(_ context.Context) (browser.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return nil, browser.ErrNotStarted
	}
	if len(d.NewPageErrs) > 0 {
		err := d.NewPageErrs[0]
		d.NewPageErrs = d.NewPageErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	d.PagesOpened++
	d.openPages++
	if d.openPages > d.maxOpen {
		d.maxOpen = d.openPages
	}
	return &Page{driver: d}, nil
}

func (d *Driver) Close(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CloseCalls++
	d.started = false
	return d.CloseErr
}

// MaxOpenPages is the largest number of pages that were open at once.
func (d *Driver) MaxOpenPages() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxOpen
}

// OpenPages is the number of pages not yet closed.
func (d *Driver) OpenPages() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.openPages
}

func (d *Driver) site(url string) (*Site, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Navigations = append(d.Navigations, url)
	s, ok := d.sites[url]
	return s, ok
}

func (d *Driver) pageClosed() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.PagesClosed++
	d.openPages--
}

// ErrNoSite is returned when navigating to a URL nobody served.
var ErrNoSite = errors.New("net::ERR_NAME_NOT_RESOLVED")

// Page is a fake browser.Page.
type Page struct {
	driver *Driver

	mu       sync.Mutex
	site     *Site
	handlers map[int]browser.EventHandler
	next     int
	closed   bool
}

var _ browser.Page = (*Page)(nil)

func (p *Page) Navigate(ctx context.Context, url string) error {
	site, ok := p.driver.site(url)
	if !ok {
		return fmt.Errorf("navigation to %s failed: %w", url, ErrNoSite)
	}
	if site.LoadDelay > 0 {
		select {
		case <-time.After(site.LoadDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if site.NavigateErr != nil {
		return site.NavigateErr
	}

	p.mu.Lock()
	p.site = site
	handlers := make([]browser.EventHandler, 0, len(p.handlers))
	for _, h := range p.handlers {
		handlers = append(handlers, h)
	}
	p.mu.Unlock()

	for _, h := range handlers {
		for _, r := range site.Responses {
			h.OnResponse(r)
		}
		for _, f := range site.Failures {
			h.OnRequestFailed(f)
		}
		for _, c := range site.Console {
			h.OnConsole(c)
		}
		for _, e := range site.PageErrs {
			h.OnPageError(e)
		}
	}
	return nil
}

func (p *Page) current() (*Site, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errors.New("page is closed")
	}
	if p.site == nil {
		return nil, errors.New("page has not navigated")
	}
	return p.site, nil
}

func (p *Page) Title(context.Context) (string, error) {
	s, err := p.current()
	if err != nil {
		return "", err
	}
	return s.Title, s.TitleErr
}

func (p *Page) QueryOne(_ context.Context, selector string) (*browser.Element, error) {
	s, err := p.current()
	if err != nil {
		return nil, err
	}
	if err := s.QueryErrs[selector]; err != nil {
		return nil, err
	}
	el, ok := s.Elements[selector]
	if !ok || el == nil {
		return nil, nil
	}
	cp := *el
	return &cp, nil
}

func (p *Page) Count(_ context.Context, selector string) (int, error) {
	s, err := p.current()
	if err != nil {
		return 0, err
	}
	if err := s.QueryErrs[selector]; err != nil {
		return 0, err
	}
	if n, ok := s.Counts[selector]; ok {
		return n, nil
	}
	if _, ok := s.Elements[selector]; ok {
		return 1, nil
	}
	return 0, nil
}

func (p *Page) Images(context.Context) ([]browser.Image, error) {
	s, err := p.current()
	if err != nil {
		return nil, err
	}
	return append([]browser.Image(nil), s.Images...), s.ImagesErr
}

func (p *Page) ProbeResource(_ context.Context, url string) (int, error) {
	s, err := p.current()
	if err != nil {
		return 0, err
	}
	probe, ok := s.Probes[url]
	if !ok {
		return 200, nil
	}
	return probe.Status, probe.Err
}

func (p *Page) CaptureInPageErrors(ctx context.Context, window time.Duration) ([]browser.TrappedError, error) {
	s, err := p.current()
	if err != nil {
		return nil, err
	}
	select {
	case <-time.After(window):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return append([]browser.TrappedError(nil), s.Trapped...), s.TrappedErr
}

func (p *Page) Subscribe(h browser.EventHandler) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handlers == nil {
		p.handlers = make(map[int]browser.EventHandler)
	}
	id := p.next
	p.next++
	p.handlers[id] = h
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.handlers, id)
	}
}

func (p *Page) Close(context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.handlers = nil
	p.mu.Unlock()
	p.driver.pageClosed()
	return nil
}

package checker

import (
	"errors"
	"sync"

	"github.com/xkilldash9x/shelfcheck/internal/browser"
)

// Events is everything a Collector saw during one page visit.
type Events struct {
	Console    []browser.ConsoleMessage
	PageErrors []browser.PageError
	Responses  []browser.Response
	Failures   []browser.RequestFailure
}

// Collector records page events between Start and Stop. It serves exactly
// one page visit and cannot be restarted.
type Collector struct {
	mu          sync.Mutex
	events      Events
	unsubscribe func()
	started     bool
	stopped     bool
}

// NewCollector returns an idle collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Start subscribes to page. Call it before navigating.
func (c *Collector) Start(page browser.Page) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return errors.New("collector already started")
	}
	c.started = true
	c.unsubscribe = page.Subscribe(c)
	return nil
}

// Stop unsubscribes and returns the collected events. Later calls return
// the same events.
func (c *Collector) Stop() Events {
	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.stopped = true
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return Events{
		Console:    append([]browser.ConsoleMessage(nil), c.events.Console...),
		PageErrors: append([]browser.PageError(nil), c.events.PageErrors...),
		Responses:  append([]browser.Response(nil), c.events.Responses...),
		Failures:   append([]browser.RequestFailure(nil), c.events.Failures...),
	}
}

func (c *Collector) record(fn func(*Events)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	fn(&c.events)
}

func (c *Collector) OnConsole(m browser.ConsoleMessage) {
	c.record(func(e *Events) { e.Console = append(e.Console, m) })
}

func (c *Collector) OnPageError(pe browser.PageError) {
	c.record(func(e *Events) { e.PageErrors = append(e.PageErrors, pe) })
}

func (c *Collector) OnResponse(r browser.Response) {
	c.record(func(e *Events) { e.Responses = append(e.Responses, r) })
}

func (c *Collector) OnRequestFailed(f browser.RequestFailure) {
	c.record(func(e *Events) { e.Failures = append(e.Failures, f) })
}

// internal/browser/interface.go
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrNotStarted is returned when a page is requested before Start succeeded
// or after Close.
var ErrNotStarted = errors.New("browser is not started")

// Driver owns one browser process and one browsing context shared by every
// page it opens.
type Driver interface {
	// Start launches the browser and prepares the browsing context.
	Start(ctx context.Context, opts Options) error
	// NewPage opens a tab in the shared browsing context.
	NewPage(ctx context.Context) (Page, error)
	// Close disposes the browsing context and then the browser.
	Close(ctx context.Context) error
}

// Page is a single tab scoped to one URL visit. It is the only surface the
// checkers use to look at a page.
type Page interface {
	// Navigate loads url and waits until the network has gone quiet. The
	// whole wait is bounded by the configured navigation timeout.
	Navigate(ctx context.Context, url string) error
	// Title returns document.title.
	Title(ctx context.Context) (string, error)
	// QueryOne returns the first element matching selector, or nil.
	QueryOne(ctx context.Context, selector string) (*Element, error)
	// Count returns the number of elements matching selector.
	Count(ctx context.Context, selector string) (int, error)
	// Images enumerates every <img> element in document order.
	Images(ctx context.Context) ([]Image, error)
	// ProbeResource issues a HEAD fetch from inside the page and returns the
	// HTTP status. An error means the fetch itself threw.
	ProbeResource(ctx context.Context, url string) (int, error)
	// CaptureInPageErrors installs window.onerror and unhandledrejection
	// traps, chaining any existing handler, and returns what they caught
	// over window.
	CaptureInPageErrors(ctx context.Context, window time.Duration) ([]TrappedError, error)
	// Subscribe registers h for events of this page until the returned
	// function is called or the page closes.
	Subscribe(h EventHandler) (unsubscribe func())
	// Close closes the tab. It is safe to call more than once.
	Close(ctx context.Context) error
}

// Element is a snapshot of a DOM element.
type Element struct {
	Text    string            `json:"text"`
	Visible bool              `json:"visible"`
	Enabled bool              `json:"enabled"`
	Attrs   map[string]string `json:"attrs"`
}

// Attr returns the value of an attribute, or "" when absent.
func (e *Element) Attr(name string) string {
	if e == nil || e.Attrs == nil {
		return ""
	}
	return e.Attrs[name]
}

// Image is a snapshot of an <img> element.
type Image struct {
	// Src is the resolved src attribute, empty when the attribute is missing.
	Src string `json:"src"`
	// DataSrc is the resolved data-src attribute used by lazy loaders.
	DataSrc       string `json:"dataSrc"`
	Alt           string `json:"alt"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	NaturalWidth  int    `json:"naturalWidth"`
	NaturalHeight int    `json:"naturalHeight"`
	Complete      bool   `json:"complete"`
}

// EffectiveSrc falls back to the lazy-load attribute when src is empty.
func (i Image) EffectiveSrc() string {
	if i.Src != "" {
		return i.Src
	}
	return i.DataSrc
}

// TrappedError is an entry recorded by the in-page error traps.
type TrappedError struct {
	Message string `json:"message"`
	Source  string `json:"source"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Stack   string `json:"stack"`
}

// ConsoleMessage is a console API call or browser log entry.
type ConsoleMessage struct {
	// Level is the browser's name for the message type: "error",
	// "warning", "log", "info", "debug" and so on.
	Level       string
	Text        string
	URL         string
	Line        int
	Column      int
	HasLocation bool
}

// PageError is an uncaught exception raised by page script.
type PageError struct {
	Message string
	Stack   string
}

// Response is an HTTP response received by the page.
type Response struct {
	URL          string
	Status       int
	StatusText   string
	Method       string
	ResourceType string
}

// RequestFailure is a request that ended without a usable response.
type RequestFailure struct {
	URL          string
	Method       string
	ResourceType string
	ErrorText    string
}

// EventHandler receives page events. Calls arrive on the browser's event
// goroutine and must not block.
type EventHandler interface {
	OnConsole(ConsoleMessage)
	OnPageError(PageError)
	OnResponse(Response)
	OnRequestFailed(RequestFailure)
}

// HandlerFuncs adapts plain functions to EventHandler. Nil fields ignore
// their event.
type HandlerFuncs struct {
	Console       func(ConsoleMessage)
	PageError     func(PageError)
	Response      func(Response)
	RequestFailed func(RequestFailure)
}

func (h HandlerFuncs) OnConsole(m ConsoleMessage) {
	if h.Console != nil {
		h.Console(m)
	}
}

func (h HandlerFuncs) OnPageError(e PageError) {
	if h.PageError != nil {
		h.PageError(e)
	}
}

func (h HandlerFuncs) OnResponse(r Response) {
	if h.Response != nil {
		h.Response(r)
	}
}

func (h HandlerFuncs) OnRequestFailed(f RequestFailure) {
	if h.RequestFailed != nil {
		h.RequestFailed(f)
	}
}

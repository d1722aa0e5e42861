// internal/browser/harvester.go
package browser

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const networkIdleCheckFrequency = 100 * time.Millisecond

// requestInfo remembers what the response and failure events do not repeat.
type requestInfo struct {
	URL          string
	Method       string
	ResourceType string
}

// Harvester listens to the CDP events of one tab. It tracks in-flight
// requests for the network idle wait and translates console, exception,
// response and failure events for the page's subscribers.
type Harvester struct {
	logger *zap.Logger

	listenerCtx    context.Context
	cancelListener context.CancelFunc

	lock         sync.RWMutex
	requests     map[network.RequestID]requestInfo
	inflight     map[network.RequestID]struct{}
	lastActivity time.Time
	handlers     map[int]EventHandler
	nextHandler  int
	isStarted    bool
}

// NewHarvester creates a harvester; Start attaches it to a tab.
func NewHarvester(logger *zap.Logger) *Harvester {
	return &Harvester{
		logger:       logger.Named("harvester"),
		requests:     make(map[network.RequestID]requestInfo),
		inflight:     make(map[network.RequestID]struct{}),
		handlers:     make(map[int]EventHandler),
		lastActivity: time.Now(),
	}
}

// Start registers the CDP listener on tabCtx. The tab's target must exist.
func (h *Harvester) Start(tabCtx context.Context) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.isStarted {
		return
	}
	h.listenerCtx, h.cancelListener = context.WithCancel(tabCtx)
	chromedp.ListenTarget(h.listenerCtx, h.dispatch)
	h.isStarted = true
	h.logger.Debug("Harvester started and listening for events.")
}

// Stop detaches the listener and drops every subscriber.
func (h *Harvester) Stop() {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.cancelListener != nil {
		h.cancelListener()
		h.cancelListener = nil
	}
	h.handlers = make(map[int]EventHandler)
	h.isStarted = false
}

// Subscribe adds an event handler and returns its removal function.
func (h *Harvester) Subscribe(handler EventHandler) func() {
	h.lock.Lock()
	id := h.nextHandler
	h.nextHandler++
	h.handlers[id] = handler
	h.lock.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.lock.Lock()
			delete(h.handlers, id)
			h.lock.Unlock()
		})
	}
}

// WaitNetworkIdle blocks until no request has been in flight for
// quietPeriod.
func (h *Harvester) WaitNetworkIdle(ctx context.Context, quietPeriod time.Duration) error {
	ticker := time.NewTicker(networkIdleCheckFrequency)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("WaitNetworkIdle aborted.", zap.Error(ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
			h.lock.RLock()
			inflight := len(h.inflight)
			quietFor := time.Since(h.lastActivity)
			h.lock.RUnlock()

			if inflight == 0 && quietFor >= quietPeriod {
				return nil
			}
		}
	}
}

func (h *Harvester) snapshotHandlers() []EventHandler {
	h.lock.RLock()
	defer h.lock.RUnlock()
	out := make([]EventHandler, 0, len(h.handlers))
	for _, handler := range h.handlers {
		out = append(out, handler)
	}
	return out
}

// dispatch runs on the chromedp event goroutine.
func (h *Harvester) dispatch(ev interface{}) {
	switch e := ev.(type) {
	// -- Network Events --
	case *network.EventRequestWillBeSent:
		h.handleRequestWillBeSent(e)
	case *network.EventResponseReceived:
		h.handleResponseReceived(e)
	case *network.EventLoadingFinished:
		h.finishRequest(e.RequestID)
	case *network.EventLoadingFailed:
		h.handleLoadingFailed(e)

	// -- Console and Runtime Events --
	case *runtime.EventConsoleAPICalled:
		h.handleConsoleAPICalled(e)
	case *log.EventEntryAdded:
		h.handleLogEntryAdded(e)
	case *runtime.EventExceptionThrown:
		h.handleExceptionThrown(e)
	}
}

func (h *Harvester) handleRequestWillBeSent(e *network.EventRequestWillBeSent) {
	if e.Request == nil {
		return
	}
	h.lock.Lock()
	defer h.lock.Unlock()
	h.inflight[e.RequestID] = struct{}{}
	h.lastActivity = time.Now()
	h.requests[e.RequestID] = requestInfo{
		URL:          e.Request.URL,
		Method:       e.Request.Method,
		ResourceType: string(e.Type),
	}
}

func (h *Harvester) finishRequest(id network.RequestID) requestInfo {
	h.lock.Lock()
	defer h.lock.Unlock()
	delete(h.inflight, id)
	h.lastActivity = time.Now()
	return h.requests[id]
}

func (h *Harvester) handleResponseReceived(e *network.EventResponseReceived) {
	if e.Response == nil {
		return
	}
	h.lock.RLock()
	info := h.requests[e.RequestID]
	h.lock.RUnlock()

	status := int(e.Response.Status)
	statusText := e.Response.StatusText
	// HTTP/2 responses carry no reason phrase.
	if statusText == "" {
		statusText = http.StatusText(status)
	}
	method := info.Method
	if method == "" {
		method = http.MethodGet
	}
	resp := Response{
		URL:          e.Response.URL,
		Status:       status,
		StatusText:   statusText,
		Method:       method,
		ResourceType: string(e.Type),
	}
	for _, handler := range h.snapshotHandlers() {
		handler.OnResponse(resp)
	}
}

func (h *Harvester) handleLoadingFailed(e *network.EventLoadingFailed) {
	info := h.finishRequest(e.RequestID)
	resourceType := string(e.Type)
	if resourceType == "" {
		resourceType = info.ResourceType
	}
	failure := RequestFailure{
		URL:          info.URL,
		Method:       info.Method,
		ResourceType: resourceType,
		ErrorText:    e.ErrorText,
	}
	for _, handler := range h.snapshotHandlers() {
		handler.OnRequestFailed(failure)
	}
}

// -- Console and Log Handlers --

func (h *Harvester) handleConsoleAPICalled(e *runtime.EventConsoleAPICalled) {
	var text strings.Builder
	for i, arg := range e.Args {
		if i > 0 {
			text.WriteString(" ")
		}
		var val interface{}
		if len(arg.Value) > 0 && json.Unmarshal([]byte(arg.Value), &val) == nil {
			text.WriteString(fmt.Sprintf("%v", val))
		} else if arg.Description != "" {
			text.WriteString(arg.Description)
		} else {
			text.WriteString(fmt.Sprintf("[%s]", arg.Type))
		}
	}

	msg := ConsoleMessage{Level: string(e.Type), Text: text.String()}
	if e.StackTrace != nil && len(e.StackTrace.CallFrames) > 0 {
		frame := e.StackTrace.CallFrames[0]
		msg.URL = frame.URL
		msg.Line = int(frame.LineNumber)
		msg.Column = int(frame.ColumnNumber)
		msg.HasLocation = true
	}
	for _, handler := range h.snapshotHandlers() {
		handler.OnConsole(msg)
	}
}

// handleLogEntryAdded forwards browser generated messages, such as
// "Failed to load resource", which never pass through the console API.
func (h *Harvester) handleLogEntryAdded(e *log.EventEntryAdded) {
	if e.Entry == nil {
		return
	}
	msg := ConsoleMessage{
		Level: string(e.Entry.Level),
		Text:  e.Entry.Text,
		URL:   e.Entry.URL,
	}
	if e.Entry.URL != "" {
		msg.Line = int(e.Entry.LineNumber)
		msg.HasLocation = true
	}
	for _, handler := range h.snapshotHandlers() {
		handler.OnConsole(msg)
	}
}

func (h *Harvester) handleExceptionThrown(e *runtime.EventExceptionThrown) {
	if e.ExceptionDetails == nil {
		return
	}
	details := e.ExceptionDetails
	message := details.Text
	stack := ""
	if details.Exception != nil && details.Exception.Description != "" {
		// The description is "Name: message" followed by the stack frames.
		stack = details.Exception.Description
		message = strings.SplitN(stack, "\n", 2)[0]
	}
	if details.StackTrace != nil && stack == "" {
		var b strings.Builder
		for _, f := range details.StackTrace.CallFrames {
			fmt.Fprintf(&b, "    at %s (%s:%d:%d)\n", f.FunctionName, f.URL, f.LineNumber+1, f.ColumnNumber+1)
		}
		stack = strings.TrimRight(b.String(), "\n")
	}
	pageErr := PageError{Message: message, Stack: stack}
	for _, handler := range h.snapshotHandlers() {
		handler.OnPageError(pageErr)
	}
}

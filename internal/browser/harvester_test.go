package browser

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// recorder collects every event delivered to it.
type recorder struct {
	mu        sync.Mutex
	console   []ConsoleMessage
	pageErrs  []PageError
	responses []Response
	failures  []RequestFailure
}

func (r *recorder) OnConsole(m ConsoleMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.console = append(r.console, m)
}

func (r *recorder) OnPageError(e PageError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pageErrs = append(r.pageErrs, e)
}

func (r *recorder) OnResponse(resp Response) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, resp)
}

func (r *recorder) OnRequestFailed(f RequestFailure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, f)
}

func newTestHarvester(t *testing.T) (*Harvester, *recorder) {
	h := NewHarvester(zaptest.NewLogger(t))
	rec := &recorder{}
	h.Subscribe(rec)
	return h, rec
}

func TestHarvester_NetworkEvents(t *testing.T) {
	t.Run("response carries method from the originating request", func(t *testing.T) {
		h, rec := newTestHarvester(t)
		h.dispatch(&network.EventRequestWillBeSent{
			RequestID: "1",
			Request:   &network.Request{URL: "https://shop.test/api/stock", Method: "POST"},
			Type:      network.ResourceTypeXHR,
		})
		h.dispatch(&network.EventResponseReceived{
			RequestID: "1",
			Type:      network.ResourceTypeXHR,
			Response:  &network.Response{URL: "https://shop.test/api/stock", Status: 503},
		})

		require.Len(t, rec.responses, 1)
		resp := rec.responses[0]
		assert.Equal(t, 503, resp.Status)
		assert.Equal(t, "Service Unavailable", resp.StatusText, "empty reason phrase falls back to the standard text")
		assert.Equal(t, "POST", resp.Method)
		assert.Equal(t, "XHR", resp.ResourceType)
	})

	t.Run("loading failure resolves the request url", func(t *testing.T) {
		h, rec := newTestHarvester(t)
		h.dispatch(&network.EventRequestWillBeSent{
			RequestID: "7",
			Request:   &network.Request{URL: "https://cdn.test/app.css", Method: "GET"},
			Type:      network.ResourceTypeStylesheet,
		})
		h.dispatch(&network.EventLoadingFailed{RequestID: "7", Type: network.ResourceTypeStylesheet, ErrorText: "net::ERR_CONNECTION_REFUSED"})

		require.Len(t, rec.failures, 1)
		assert.Equal(t, RequestFailure{
			URL:          "https://cdn.test/app.css",
			Method:       "GET",
			ResourceType: "Stylesheet",
			ErrorText:    "net::ERR_CONNECTION_REFUSED",
		}, rec.failures[0])
	})

	t.Run("unsubscribed handlers receive nothing", func(t *testing.T) {
		h := NewHarvester(zaptest.NewLogger(t))
		rec := &recorder{}
		unsubscribe := h.Subscribe(rec)
		unsubscribe()
		unsubscribe()

		h.dispatch(&network.EventResponseReceived{RequestID: "1", Response: &network.Response{Status: 200}})
		assert.Empty(t, rec.responses)
	})
}

func TestHarvester_ConsoleEvents(t *testing.T) {
	h, rec := newTestHarvester(t)

	h.dispatch(&runtime.EventConsoleAPICalled{
		Type: runtime.APITypeError,
		Args: []*runtime.RemoteObject{
			{Type: runtime.TypeString, Value: []byte(`"cart failed:"`)},
			{Type: runtime.TypeNumber, Value: []byte(`42`)},
		},
		StackTrace: &runtime.StackTrace{CallFrames: []*runtime.CallFrame{
			{URL: "https://shop.test/app.js", LineNumber: 10, ColumnNumber: 4},
		}},
	})
	h.dispatch(&log.EventEntryAdded{Entry: &log.Entry{
		Level: log.LevelError,
		Text:  "Failed to load resource: the server responded with a status of 404 ()",
		URL:   "https://shop.test/missing.png",
	}})
	h.dispatch(&runtime.EventExceptionThrown{ExceptionDetails: &runtime.ExceptionDetails{
		Text:      "Uncaught",
		Exception: &runtime.RemoteObject{Description: "TypeError: x is undefined\n    at render (app.js:3:9)"},
	}})

	require.Len(t, rec.console, 2)
	assert.Equal(t, "error", rec.console[0].Level)
	assert.Equal(t, "cart failed: 42", rec.console[0].Text)
	assert.True(t, rec.console[0].HasLocation)
	assert.Equal(t, 10, rec.console[0].Line)
	assert.Equal(t, "https://shop.test/missing.png", rec.console[1].URL)

	require.Len(t, rec.pageErrs, 1)
	assert.Equal(t, "TypeError: x is undefined", rec.pageErrs[0].Message)
	assert.Contains(t, rec.pageErrs[0].Stack, "at render")
}

func TestHarvester_WaitNetworkIdle(t *testing.T) {
	t.Run("returns once requests settle", func(t *testing.T) {
		h, _ := newTestHarvester(t)
		h.dispatch(&network.EventRequestWillBeSent{RequestID: "1", Request: &network.Request{URL: "https://shop.test/"}})

		go func() {
			time.Sleep(150 * time.Millisecond)
			h.dispatch(&network.EventLoadingFinished{RequestID: "1"})
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		start := time.Now()
		require.NoError(t, h.WaitNetworkIdle(ctx, 200*time.Millisecond))
		assert.GreaterOrEqual(t, time.Since(start), 350*time.Millisecond)
	})

	t.Run("gives up when the context ends", func(t *testing.T) {
		h, _ := newTestHarvester(t)
		h.dispatch(&network.EventRequestWillBeSent{RequestID: "long-poll", Request: &network.Request{URL: "https://shop.test/poll"}})

		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, h.WaitNetworkIdle(ctx, 100*time.Millisecond), context.DeadlineExceeded)
	})
}

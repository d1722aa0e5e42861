package browser

import (
	"context"
	"time"
)

// CombineContext returns a context derived from tabCtx, so chromedp can find
// its target, that is also canceled when opCtx is done. opCtx carries the
// caller's deadline.
func CombineContext(tabCtx, opCtx context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(tabCtx)
	go func() {
		select {
		case <-opCtx.Done():
			cancel()
		case <-combined.Done():
		}
	}()
	return combined, cancel
}

type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach keeps the values of ctx but drops its cancellation. Teardown uses
// it so a canceled run can still close its tabs.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}

package bridge

import (
	"context"
	"sync"

	"github.com/morezero/console-bridge/pkg/envelope"
)

// future is completed exactly once when the matching response arrives, the
// owning bridge is disposed, or the caller gives up. Duplicate or late
// completions are ignored.
type future struct {
	ch   chan struct{} // closed when the result is ready
	resp *envelope.Response
	err  error

	once sync.Once
	mu   sync.Mutex
}

func newFuture() *future {
	return &future{ch: make(chan struct{})}
}

// complete sets the result exactly once and wakes all waiters.
func (f *future) complete(resp *envelope.Response, err error) {
	f.once.Do(func() {
		f.mu.Lock()
		f.resp = resp
		f.err = err
		f.mu.Unlock()
		close(f.ch)
	})
}

// wait blocks until the future is completed or ctx is done.
func (f *future) wait(ctx context.Context) (*envelope.Response, error) {
	select {
	case <-f.ch:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.resp, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Package cancel tracks one cancellation token per logical request slot, so
// starting a new operation on a slot invalidates the previous one.
// Cancellation is cooperative: in-flight host-side work is not killed, its
// result is discarded on arrival by checking the token.
package cancel

import (
	"context"
	"sync"
)

// Token is the handle held by one in-flight operation. It only answers "am I
// still current" and signals invalidation; it never reaches into the network
// layer.
type Token struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Current reports whether this token is still the live one for its slot.
func (t *Token) Current() bool {
	return t.ctx.Err() == nil
}

// Invalidated is closed when a newer token replaces this one.
func (t *Token) Invalidated() <-chan struct{} {
	return t.ctx.Done()
}

// Context is cancelled on invalidation, for passing into blocking calls.
func (t *Token) Context() context.Context {
	return t.ctx
}

// Registry holds the live token for each named slot.
type Registry struct {
	mu    sync.Mutex
	slots map[string]*Token
}

// NewRegistry creates an empty slot registry.
func NewRegistry() *Registry {
	return &Registry{slots: make(map[string]*Token)}
}

// Renew invalidates any token previously issued for slot and returns a fresh
// one. The old token observes its invalidation before Renew returns.
func (r *Registry) Renew(slot string) *Token {
	ctx, cancelFn := context.WithCancel(context.Background())
	fresh := &Token{ctx: ctx, cancel: cancelFn}

	r.mu.Lock()
	old := r.slots[slot]
	r.slots[slot] = fresh
	r.mu.Unlock()

	if old != nil {
		old.cancel()
	}
	return fresh
}

// Cancel invalidates the slot's token without issuing a new one.
func (r *Registry) Cancel(slot string) {
	r.mu.Lock()
	old := r.slots[slot]
	delete(r.slots, slot)
	r.mu.Unlock()

	if old != nil {
		old.cancel()
	}
}

// CancelAll invalidates every slot. Used on session disposal.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	old := r.slots
	r.slots = make(map[string]*Token)
	r.mu.Unlock()

	for _, t := range old {
		t.cancel()
	}
}

// Package debounce coalesces rapid-fire UI requests: only the last call
// within the quiet window for a key actually executes.
package debounce

import (
	"sync"
	"time"
)

// DefaultDelay is the quiet window for filter/search inputs.
const DefaultDelay = 300 * time.Millisecond

// Dispatcher schedules at most one pending call per key. Scheduling again
// with the same key before the delay elapses drops the previous call.
type Dispatcher struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{timers: make(map[string]*time.Timer)}
}

// Schedule runs fn after delay unless another Schedule for key arrives
// first. A non-positive delay falls back to DefaultDelay.
func (d *Dispatcher) Schedule(key string, delay time.Duration, fn func()) {
	if delay <= 0 {
		delay = DefaultDelay
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if prev, ok := d.timers[key]; ok {
		prev.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		d.mu.Lock()
		// Only fire if we are still the registered timer for this key;
		// a replacement may have raced the Stop.
		if d.stopped || d.timers[key] != timer {
			d.mu.Unlock()
			return
		}
		delete(d.timers, key)
		d.mu.Unlock()
		fn()
	})
	d.timers[key] = timer
}

// Immediate drops any pending call for key and runs fn right away.
// Pagination and explicit button actions bypass debouncing this way.
func (d *Dispatcher) Immediate(key string, fn func()) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if prev, ok := d.timers[key]; ok {
		prev.Stop()
		delete(d.timers, key)
	}
	d.mu.Unlock()

	fn()
}

// Pending reports whether a call is scheduled for key.
func (d *Dispatcher) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.timers[key]
	return ok
}

// Stop drops every pending call and rejects further scheduling. Idempotent.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	for key, timer := range d.timers {
		timer.Stop()
		delete(d.timers, key)
	}
}

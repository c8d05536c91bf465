// Package resilience provides composable timeout and retry wrappers for
// asynchronous operations against the remote data service.
package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/morezero/console-bridge/pkg/fault"
)

const logPrefix = "resilience:resilience"

const (
	// DefaultMaxAttempts is the total attempt budget for WithRetry.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is the backoff base; the wait before attempt n is
	// BaseDelay * 2^(n-1).
	DefaultBaseDelay = 1 * time.Second
)

// Operation is any cancellable unit of work producing a value.
type Operation[T any] func(ctx context.Context) (T, error)

// WithTimeout races op against a timer. On expiry it returns a timeout fault
// and leaves op running in the background; its eventual result is discarded.
func WithTimeout[T any](ctx context.Context, timeout time.Duration, op Operation[T]) (T, error) {
	var zero T

	type result struct {
		value T
		err   error
	}
	// Buffered so the loser can finish and be garbage collected rather
	// than leaking a blocked goroutine.
	done := make(chan result, 1)

	opCtx, cancel := context.WithCancel(ctx)
	go func() {
		v, err := op(opCtx)
		done <- result{value: v, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		cancel()
		return r.value, r.err
	case <-timer.C:
		cancel()
		return zero, fault.Wrap(fault.KindTimeout, fmt.Sprintf("operation exceeded %s", timeout), context.DeadlineExceeded)
	case <-ctx.Done():
		cancel()
		return zero, fault.Wrap(fault.KindAborted, "operation cancelled", ctx.Err())
	}
}

// RetryPolicy configures WithRetry. Zero values fall back to defaults.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// WithRetry invokes op up to MaxAttempts times with exponential backoff
// between attempts. Abort-kind failures are never retried and propagate
// immediately; any other failure is retried until the budget is exhausted,
// after which the last error is returned.
func WithRetry[T any](ctx context.Context, policy RetryPolicy, op Operation[T]) (T, error) {
	var zero T

	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	baseDelay := policy.BaseDelay
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		value, err := op(ctx)
		if err == nil {
			return value, nil
		}
		if fault.IsAbort(err) {
			return zero, err
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}

		delay := baseDelay << (attempt - 1)
		slog.Debug(fmt.Sprintf("%s - attempt %d/%d failed (%v), retrying in %s", logPrefix, attempt, maxAttempts, err, delay))

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, fault.Wrap(fault.KindAborted, "retry cancelled", ctx.Err())
		}
	}
	return zero, lastErr
}

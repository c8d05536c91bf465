// Package bridge implements the UI-side correlator: it gives request/response
// semantics to the fire-and-forget panel channel by matching responses to
// pending requests purely by requestId.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/console-bridge/pkg/commsutil"
	"github.com/morezero/console-bridge/pkg/envelope"
	"github.com/morezero/console-bridge/pkg/fault"
)

const logPrefix = "bridge:bridge"

// Bridge owns the pending-request map for one panel session. Responses may
// arrive in any order; delivery is not guaranteed, so every send path must
// either resolve, time out via the caller's context, or be rejected on
// dispose; a pending entry never outlives the bridge.
type Bridge struct {
	nc        *comms.Conn
	sessionID string

	mu        sync.Mutex
	pending   map[string]*future
	listeners map[int]func(*envelope.Response)
	nextLsn   int
	disposed  bool

	respSub  *comms.Subscription
	bcastSub *comms.Subscription
}

// New creates a bridge for the given session and subscribes to its response
// subject plus the broadcast subjects.
func New(nc *comms.Conn, sessionID string) (*Bridge, error) {
	b := &Bridge{
		nc:        nc,
		sessionID: sessionID,
		pending:   make(map[string]*future),
		listeners: make(map[int]func(*envelope.Response)),
	}

	respSub, err := nc.Subscribe(commsutil.BuildResponseSubject(sessionID), b.handleInbound)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to subscribe to responses: %w", logPrefix, err)
	}
	b.respSub = respSub

	bcastSub, err := nc.Subscribe(commsutil.BroadcastWildcard, b.handleInbound)
	if err != nil {
		respSub.Unsubscribe()
		return nil, fmt.Errorf("%s - failed to subscribe to broadcasts: %w", logPrefix, err)
	}
	b.bcastSub = bcastSub

	// The channel is fire and forget: a push published before the server
	// has registered these subscriptions is lost forever. Flush so a
	// returned bridge is guaranteed to observe everything sent after it.
	if err := nc.Flush(); err != nil {
		respSub.Unsubscribe()
		bcastSub.Unsubscribe()
		return nil, fmt.Errorf("%s - failed to flush subscriptions: %w", logPrefix, err)
	}

	return b, nil
}

// Send transmits a request envelope and blocks until the correlated response
// arrives or ctx is done. A response carrying an error detail is returned as
// a fault; a disposed bridge rejects immediately.
func (b *Bridge) Send(ctx context.Context, command string, payload interface{}) (json.RawMessage, error) {
	data, err := envelope.EncodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to encode payload for %s: %w", logPrefix, command, err)
	}

	requestID := uuid.NewString()
	f := newFuture()

	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return nil, fault.ErrDisposed
	}
	b.pending[requestID] = f
	b.mu.Unlock()

	req := envelope.Request{Command: command, RequestID: requestID, Payload: data}
	raw, err := json.Marshal(&req)
	if err != nil {
		b.forget(requestID)
		return nil, fmt.Errorf("%s - failed to encode request %s: %w", logPrefix, command, err)
	}
	if err := b.nc.Publish(commsutil.BuildRequestSubject(b.sessionID), raw); err != nil {
		b.forget(requestID)
		return nil, fmt.Errorf("%s - failed to publish %s: %w", logPrefix, command, err)
	}

	resp, err := f.wait(ctx)
	if err != nil {
		// Caller gave up; a late response for this id must be dropped,
		// not resolved.
		b.forget(requestID)
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fault.Wrap(fault.KindTimeout, command+" timed out", err)
		}
		return nil, fault.Wrap(fault.KindAborted, command+" superseded", err)
	}
	if resp.Error != nil {
		return nil, resp.Error.Fault()
	}
	return resp.Payload, nil
}

// OnBroadcast registers a listener for uncorrelated state-push messages.
// The returned function removes the listener.
func (b *Bridge) OnBroadcast(fn func(*envelope.Response)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextLsn
	b.nextLsn++
	b.listeners[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

// PendingCount reports the number of in-flight requests.
func (b *Bridge) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Dispose rejects every pending request with a disposed fault and drops the
// subscriptions. Idempotent; messages after dispose are no-ops.
func (b *Bridge) Dispose() {
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return
	}
	b.disposed = true
	orphans := b.pending
	b.pending = make(map[string]*future)
	b.listeners = make(map[int]func(*envelope.Response))
	b.mu.Unlock()

	// Complete outside the lock: waiters may call back into the bridge.
	for _, f := range orphans {
		f.complete(nil, fault.ErrDisposed)
	}

	if b.respSub != nil {
		b.respSub.Unsubscribe()
	}
	if b.bcastSub != nil {
		b.bcastSub.Unsubscribe()
	}
}

// handleInbound routes one raw message: correlated responses resolve their
// pending entry, broadcasts fan out to listeners, and anything unmatched is
// dropped without error to tolerate duplicate or late delivery.
func (b *Bridge) handleInbound(msg *comms.Msg) {
	var resp envelope.Response
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		slog.Warn(fmt.Sprintf("%s - dropping malformed message on %s: %v", logPrefix, msg.Subject, err))
		return
	}

	if resp.RequestID == "" {
		b.mu.Lock()
		if b.disposed {
			b.mu.Unlock()
			return
		}
		fns := make([]func(*envelope.Response), 0, len(b.listeners))
		for _, fn := range b.listeners {
			fns = append(fns, fn)
		}
		b.mu.Unlock()
		for _, fn := range fns {
			fn(&resp)
		}
		return
	}

	b.mu.Lock()
	f, ok := b.pending[resp.RequestID]
	if ok {
		delete(b.pending, resp.RequestID)
	}
	b.mu.Unlock()

	if !ok {
		slog.Debug(fmt.Sprintf("%s - ignoring response for unknown requestId %s", logPrefix, resp.RequestID))
		return
	}
	f.complete(&resp, nil)
}

// forget removes a pending entry without completing it.
func (b *Bridge) forget(requestID string) {
	b.mu.Lock()
	delete(b.pending, requestID)
	b.mu.Unlock()
}

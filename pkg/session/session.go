// Package session pairs one UI panel process with its host-side controller:
// it owns the panel's request subscription, routes inbound commands to
// handlers, and manages the Uninitialized → Ready → Disposed lifecycle.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/console-bridge/pkg/commsutil"
	"github.com/morezero/console-bridge/pkg/envelope"
	"github.com/morezero/console-bridge/pkg/fault"
)

const logPrefix = "session:session"

// Type identifies a panel kind.
type Type string

// Panel types.
const (
	TypeConnection Type = "connection"
	TypeAlias      Type = "alias"
	TypeBackup     Type = "backup"
	TypeRBAC       Type = "rbac"
	TypeCluster    Type = "cluster"
	TypeExplorer   Type = "explorer"
)

// Singleton reports whether at most one live panel of this type may exist.
// Opening a second one reveals the existing instance instead.
func (t Type) Singleton() bool {
	switch t {
	case TypeConnection, TypeAlias:
		return true
	}
	return false
}

// State is the session lifecycle state. Disposed is terminal.
type State int

// Lifecycle states.
const (
	StateUninitialized State = iota
	StateReady
	StateDisposed
)

// Handler executes one command and returns the response payload. Returned
// errors are classified by fault kind and reported back on the originating
// requestId; a failing mutation never crashes the session.
type Handler func(ctx context.Context, req *envelope.Request) (interface{}, error)

// Session is the host-side controller for one UI panel process.
type Session struct {
	id        string
	panelType Type
	nc        *comms.Conn
	timeout   time.Duration

	mu        sync.Mutex
	state     State
	handlers  map[string]Handler
	onDispose []func()

	sub *comms.Subscription
}

// New creates an Uninitialized session for the given panel type.
func New(nc *comms.Conn, panelType Type, timeout time.Duration) *Session {
	return &Session{
		id:        uuid.NewString(),
		panelType: panelType,
		nc:        nc,
		timeout:   timeout,
		handlers:  make(map[string]Handler),
	}
}

// ID returns the session identifier used in channel subjects.
func (s *Session) ID() string {
	return s.id
}

// PanelType returns the panel kind this session controls.
func (s *Session) PanelType() Type {
	return s.panelType
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Register binds a handler to a command. Must be called before Start.
func (s *Session) Register(command string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[command] = h
}

// Handler returns the handler registered for command, if any.
func (s *Session) Handler(command string) (Handler, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handlers[command]
	return h, ok
}

// OnDispose adds a hook run exactly once when the session is disposed.
// Hooks added after disposal never run.
func (s *Session) OnDispose(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisposed {
		return
	}
	s.onDispose = append(s.onDispose, fn)
}

// Start subscribes to the panel's request subject and moves to Ready.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state != StateUninitialized {
		s.mu.Unlock()
		return fmt.Errorf("%s - session %s already started or disposed", logPrefix, s.id)
	}
	s.mu.Unlock()

	sub, err := s.nc.Subscribe(commsutil.BuildRequestSubject(s.id), s.handleInbound)
	if err != nil {
		return fmt.Errorf("%s - failed to subscribe for session %s: %w", logPrefix, s.id, err)
	}

	s.mu.Lock()
	s.sub = sub
	s.state = StateReady
	s.mu.Unlock()

	slog.Info(fmt.Sprintf("%s - Session %s (%s) ready", logPrefix, s.id, s.panelType))
	return nil
}

// PushSetMode reconfigures the live panel in place, e.g. switching the alias
// panel from create-mode to edit-mode without recreating the process.
func (s *Session) PushSetMode(mode string, params map[string]string) error {
	resp, err := envelope.Ok(envelope.CmdSetMode, "", &envelope.SetModeParams{Mode: mode, Params: params})
	if err != nil {
		return fmt.Errorf("%s - failed to encode setMode: %w", logPrefix, err)
	}
	return s.post(resp)
}

// Dispose tears the session down. Idempotent; all further inbound and
// outbound messages for this session are no-ops.
func (s *Session) Dispose() {
	s.mu.Lock()
	if s.state == StateDisposed {
		s.mu.Unlock()
		return
	}
	s.state = StateDisposed
	hooks := s.onDispose
	s.onDispose = nil
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	for _, fn := range hooks {
		fn()
	}
	slog.Info(fmt.Sprintf("%s - Session %s (%s) disposed", logPrefix, s.id, s.panelType))
}

// handleInbound decodes one request and dispatches it to its handler.
// Malformed envelopes and unknown commands are protocol faults: logged and
// dropped, never answered with a crash.
func (s *Session) handleInbound(msg *comms.Msg) {
	var req envelope.Request
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		slog.Warn(fmt.Sprintf("%s - dropping malformed request on %s: %v", logPrefix, msg.Subject, err))
		return
	}
	if req.RequestID == "" {
		slog.Warn(fmt.Sprintf("%s - dropping request without requestId (command=%s)", logPrefix, req.Command))
		return
	}
	if !envelope.KnownCommand(req.Command) {
		slog.Warn(fmt.Sprintf("%s - dropping unknown command %q (requestId=%s)", logPrefix, req.Command, req.RequestID))
		return
	}

	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return
	}
	h, ok := s.handlers[req.Command]
	s.mu.Unlock()

	if !ok {
		slog.Warn(fmt.Sprintf("%s - no handler for %q on %s panel", logPrefix, req.Command, s.panelType))
		return
	}

	// Dispatch on a fresh goroutine. The subscription callback delivers
	// messages serially, so a handler blocking in a debounce window or a
	// slow remote call must not hold up the requests arriving behind it;
	// a later query has to be able to supersede an in-flight one.
	go s.dispatch(h, &req)
}

// dispatch runs one handler to completion and posts its outcome on the
// originating requestId.
func (s *Session) dispatch(h Handler, req *envelope.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	payload, err := s.invoke(ctx, h, req)
	if err != nil {
		kind := fault.KindOf(err)
		s.post(envelope.Err(req.Command, req.RequestID, kind, err.Error()))
		return
	}

	resp, err := envelope.Ok(req.Command, req.RequestID, payload)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response for %s: %v", logPrefix, req.Command, err))
		s.post(envelope.Err(req.Command, req.RequestID, fault.KindProtocol, "failed to encode response"))
		return
	}
	s.post(resp)
}

// invoke runs the handler with panic recovery so one bad mutation cannot
// take the whole session down.
func (s *Session) invoke(ctx context.Context, h Handler, req *envelope.Request) (payload interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error(fmt.Sprintf("%s - handler for %s panicked: %v", logPrefix, req.Command, r))
			err = fault.New(fault.KindRemote, fmt.Sprintf("internal error handling %s", req.Command))
		}
	}()
	return h(ctx, req)
}

// post publishes a response envelope to the panel. No-op after dispose.
func (s *Session) post(resp *envelope.Response) error {
	s.mu.Lock()
	disposed := s.state == StateDisposed
	s.mu.Unlock()
	if disposed {
		return nil
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("%s - failed to encode response: %w", logPrefix, err)
	}
	return s.nc.Publish(commsutil.BuildResponseSubject(s.id), data)
}

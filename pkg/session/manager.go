package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	comms "github.com/nats-io/nats.go"
)

const managerLogPrefix = "session:manager"

// Factory attaches the panel's command handlers to a freshly created
// session before it starts.
type Factory func(s *Session) error

// Manager tracks every live session and enforces singleton panel types
// through an explicit registry with atomic check-then-set.
type Manager struct {
	nc      *comms.Conn
	timeout time.Duration

	mu         sync.Mutex
	factories  map[Type]Factory
	singletons map[Type]*Session
	sessions   map[string]*Session
}

// NewManager creates an empty session manager.
func NewManager(nc *comms.Conn, timeout time.Duration) *Manager {
	return &Manager{
		nc:         nc,
		timeout:    timeout,
		factories:  make(map[Type]Factory),
		singletons: make(map[Type]*Session),
		sessions:   make(map[string]*Session),
	}
}

// RegisterFactory binds a panel type to its handler factory.
func (m *Manager) RegisterFactory(t Type, f Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[t] = f
}

// Open creates a session for the panel type. For singleton types with a
// live instance it instead reveals the existing one by pushing a setMode
// message with the new parameters. The returned bool is true when a new
// session was created.
func (m *Manager) Open(t Type, mode string, params map[string]string) (*Session, bool, error) {
	m.mu.Lock()
	if t.Singleton() {
		if existing, ok := m.singletons[t]; ok && existing.State() != StateDisposed {
			m.mu.Unlock()
			if err := existing.PushSetMode(mode, params); err != nil {
				return nil, false, fmt.Errorf("%s - failed to reconfigure %s panel: %w", managerLogPrefix, t, err)
			}
			slog.Info(fmt.Sprintf("%s - Revealed existing %s panel (session %s)", managerLogPrefix, t, existing.ID()))
			return existing, false, nil
		}
	}
	factory, ok := m.factories[t]
	m.mu.Unlock()
	if !ok {
		return nil, false, fmt.Errorf("%s - no factory registered for panel type %s", managerLogPrefix, t)
	}

	s := New(m.nc, t, m.timeout)
	if err := factory(s); err != nil {
		return nil, false, fmt.Errorf("%s - factory for %s failed: %w", managerLogPrefix, t, err)
	}
	if err := s.Start(); err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	// A rival Open may have created the singleton while the factory ran;
	// last registration wins and the loser is disposed below.
	var loser *Session
	if t.Singleton() {
		if existing, ok := m.singletons[t]; ok && existing.State() != StateDisposed {
			loser = s
			s = existing
		} else {
			m.singletons[t] = s
		}
	}
	if loser == nil {
		m.sessions[s.ID()] = s
		sid := s.ID()
		s.OnDispose(func() { m.forget(t, sid) })
	}
	m.mu.Unlock()

	if loser != nil {
		loser.Dispose()
		if err := s.PushSetMode(mode, params); err != nil {
			return nil, false, err
		}
		return s, false, nil
	}
	return s, true, nil
}

// Get returns the live singleton session for a panel type, if any.
func (m *Manager) Get(t Type) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.singletons[t]
	if !ok || s.State() == StateDisposed {
		return nil, false
	}
	return s, true
}

// GetByID returns the live session with the given id, if any.
func (m *Manager) GetByID(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Sessions returns a snapshot of every live session.
func (m *Manager) Sessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	return all
}

// Count reports the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll disposes every live session. Used on host shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.Unlock()

	for _, s := range all {
		s.Dispose()
	}
}

// forget clears the registry entries for a disposed session so a subsequent
// creation does not collide with the dead instance.
func (m *Manager) forget(t Type, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	if cur, ok := m.singletons[t]; ok && cur.ID() == sessionID {
		delete(m.singletons, t)
	}
}

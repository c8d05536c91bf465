// Package panels provides the host-side command handlers for each panel
// type, wiring the remote client through the resilience, cache, and
// preference layers.
package panels

import (
	"time"

	"github.com/morezero/console-bridge/pkg/cache"
	"github.com/morezero/console-bridge/pkg/events"
	"github.com/morezero/console-bridge/pkg/prefs"
	"github.com/morezero/console-bridge/pkg/remote"
	"github.com/morezero/console-bridge/pkg/resilience"
	"github.com/morezero/console-bridge/pkg/session"
)

// Default knobs, overridable through Deps.
const (
	DefaultCallTimeout = 30 * time.Second
	DefaultCacheTTL    = 30 * time.Second
)

// Deps bundles the collaborators shared by every panel's handlers.
type Deps struct {
	Remote remote.Client
	// Prefs may be nil when no database is configured; connection
	// save/load then answer with an error instead of persisting.
	Prefs  *prefs.Store
	Events events.Publisher
	// Cache is shared by all explorer sessions so invalidation covers
	// every open panel. Created on demand when nil.
	Cache *cache.Cache

	Retry         resilience.RetryPolicy
	CallTimeout   time.Duration
	CacheTTL      time.Duration
	DebounceDelay time.Duration
}

// normalized fills zero values with defaults.
func (d Deps) normalized() Deps {
	if d.Events == nil {
		d.Events = &events.NoOpPublisher{}
	}
	if d.Cache == nil {
		d.Cache = cache.New(0)
	}
	if d.CallTimeout <= 0 {
		d.CallTimeout = DefaultCallTimeout
	}
	if d.CacheTTL <= 0 {
		d.CacheTTL = DefaultCacheTTL
	}
	return d
}

// RegisterAll binds every panel type's factory on the manager.
func RegisterAll(m *session.Manager, deps Deps) {
	deps = deps.normalized()
	m.RegisterFactory(session.TypeConnection, ConnectionFactory(deps))
	m.RegisterFactory(session.TypeAlias, AliasFactory(deps))
	m.RegisterFactory(session.TypeBackup, BackupFactory(deps))
	m.RegisterFactory(session.TypeRBAC, RBACFactory(deps))
	m.RegisterFactory(session.TypeCluster, ClusterFactory(deps))
	m.RegisterFactory(session.TypeExplorer, ExplorerFactory(deps))
}

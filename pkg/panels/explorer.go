package panels

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/morezero/console-bridge/pkg/cache"
	"github.com/morezero/console-bridge/pkg/cancel"
	"github.com/morezero/console-bridge/pkg/debounce"
	"github.com/morezero/console-bridge/pkg/envelope"
	"github.com/morezero/console-bridge/pkg/fault"
	"github.com/morezero/console-bridge/pkg/remote"
	"github.com/morezero/console-bridge/pkg/resilience"
	"github.com/morezero/console-bridge/pkg/session"
)

const explorerLogPrefix = "panels:explorer"

// Cancellation slots. One slot per operation kind: a new query supersedes
// the previous query but leaves an in-flight aggregation alone.
const (
	slotQuery        = "runQuery"
	slotAggregations = "getAggregations"
)

// queryKey is the cacheable subset of QueryParams. The Immediate flag stays
// out: an immediate and a debounced request for the same page must share a
// cache entry.
type queryKey struct {
	Filters map[string]string `json:"filters,omitempty"`
	Sort    string            `json:"sort,omitempty"`
	Page    int               `json:"page,omitempty"`
	Limit   int               `json:"limit,omitempty"`
	Tenant  string            `json:"tenant,omitempty"`
}

// explorer holds per-session state for the data explorer panel. The cache
// is shared across sessions; cancellation slots and the debounce dispatcher
// are private to each session.
type explorer struct {
	deps    Deps
	cancels *cancel.Registry
	deb     *debounce.Dispatcher
}

// ExplorerFactory builds the handlers for the data explorer panel. Filter
// typing is debounced and superseded by newer input; pagination and button
// actions run immediately; results are cached by request fingerprint.
func ExplorerFactory(deps Deps) session.Factory {
	deps = deps.normalized()
	return func(s *session.Session) error {
		e := &explorer{
			deps:    deps,
			cancels: cancel.NewRegistry(),
			deb:     debounce.NewDispatcher(),
		}
		s.OnDispose(func() {
			e.cancels.CancelAll()
			e.deb.Stop()
		})

		s.Register(envelope.CmdListCollections, e.listCollections)
		s.Register(envelope.CmdListTenants, e.listTenants)
		s.Register(envelope.CmdSetTenant, e.setTenant)
		s.Register(envelope.CmdRunQuery, e.runQuery)
		s.Register(envelope.CmdGetAggregations, e.getAggregations)
		s.Register(envelope.CmdInvalidateSchema, e.invalidateSchema)
		return nil
	}
}

// await holds the request in the debounce window. It returns an abort fault
// when a newer request for the same slot supersedes this one before the
// window elapses.
func (e *explorer) await(ctx context.Context, slot string, token *cancel.Token, immediate bool) error {
	if immediate {
		// Drop any pending debounced call; the explicit action wins.
		e.deb.Immediate(slot, func() {})
		return nil
	}

	released := make(chan struct{})
	e.deb.Schedule(slot, e.deps.DebounceDelay, func() { close(released) })

	select {
	case <-released:
		return nil
	case <-token.Invalidated():
		return fault.ErrAborted
	case <-ctx.Done():
		return fault.Wrap(fault.KindAborted, "request cancelled", ctx.Err())
	}
}

func (e *explorer) runQuery(ctx context.Context, req *envelope.Request) (interface{}, error) {
	var p envelope.QueryParams
	if err := envelope.DecodePayload(req.Payload, &p); err != nil {
		return nil, fault.New(fault.KindProtocol, "malformed runQuery payload")
	}
	if p.Collection == "" {
		return nil, fault.New(fault.KindProtocol, "runQuery requires a collection")
	}

	token := e.cancels.Renew(slotQuery)
	if err := e.await(ctx, slotQuery, token, p.Immediate); err != nil {
		return nil, err
	}

	key := queryKey{Filters: p.Filters, Sort: p.Sort, Page: p.Page, Limit: p.Limit, Tenant: p.Tenant}
	fp := cache.Fingerprint(envelope.CmdRunQuery, p.Collection, key)

	value, err := e.deps.Cache.GetOrFetch(token.Context(), fp, e.deps.CacheTTL, func(ctx context.Context) (interface{}, error) {
		return resilience.WithRetry(ctx, e.deps.Retry, func(ctx context.Context) (*remote.QueryResult, error) {
			return resilience.WithTimeout(ctx, e.deps.CallTimeout, func(ctx context.Context) (*remote.QueryResult, error) {
				return e.deps.Remote.RunQuery(ctx, p.Collection, p.Filters, p.Sort, p.Page, p.Limit)
			})
		})
	})
	if err != nil {
		return nil, err
	}
	// The fetch may have outlived this request. The result stays cached
	// for the successor; this response is discarded.
	if !token.Current() {
		return nil, fault.ErrAborted
	}
	return value, nil
}

func (e *explorer) getAggregations(ctx context.Context, req *envelope.Request) (interface{}, error) {
	var p envelope.QueryParams
	if err := envelope.DecodePayload(req.Payload, &p); err != nil {
		return nil, fault.New(fault.KindProtocol, "malformed getAggregations payload")
	}
	if p.Collection == "" {
		return nil, fault.New(fault.KindProtocol, "getAggregations requires a collection")
	}

	token := e.cancels.Renew(slotAggregations)
	if err := e.await(ctx, slotAggregations, token, p.Immediate); err != nil {
		return nil, err
	}

	key := queryKey{Filters: p.Filters, Tenant: p.Tenant}
	fp := cache.Fingerprint(envelope.CmdGetAggregations, p.Collection, key)

	value, err := e.deps.Cache.GetOrFetch(token.Context(), fp, e.deps.CacheTTL, func(ctx context.Context) (interface{}, error) {
		return resilience.WithRetry(ctx, e.deps.Retry, func(ctx context.Context) (*remote.AggregationResult, error) {
			return resilience.WithTimeout(ctx, e.deps.CallTimeout, func(ctx context.Context) (*remote.AggregationResult, error) {
				return e.deps.Remote.GetAggregations(ctx, p.Collection, p.Filters)
			})
		})
	})
	if err != nil {
		return nil, err
	}
	if !token.Current() {
		return nil, fault.ErrAborted
	}
	return value, nil
}

func (e *explorer) listCollections(ctx context.Context, req *envelope.Request) (interface{}, error) {
	fp := cache.Fingerprint(envelope.CmdListCollections, "", nil)
	return e.deps.Cache.GetOrFetch(ctx, fp, e.deps.CacheTTL, func(ctx context.Context) (interface{}, error) {
		return resilience.WithRetry(ctx, e.deps.Retry, func(ctx context.Context) ([]remote.Collection, error) {
			return resilience.WithTimeout(ctx, e.deps.CallTimeout, func(ctx context.Context) ([]remote.Collection, error) {
				return e.deps.Remote.ListCollections(ctx)
			})
		})
	})
}

func (e *explorer) listTenants(ctx context.Context, req *envelope.Request) (interface{}, error) {
	var p envelope.TenantParams
	if err := envelope.DecodePayload(req.Payload, &p); err != nil {
		return nil, fault.New(fault.KindProtocol, "malformed listTenants payload")
	}
	if p.Collection == "" {
		return nil, fault.New(fault.KindProtocol, "listTenants requires a collection")
	}

	fp := cache.Fingerprint(envelope.CmdListTenants, p.Collection, nil)
	return e.deps.Cache.GetOrFetch(ctx, fp, e.deps.CacheTTL, func(ctx context.Context) (interface{}, error) {
		return resilience.WithRetry(ctx, e.deps.Retry, func(ctx context.Context) ([]remote.Tenant, error) {
			return resilience.WithTimeout(ctx, e.deps.CallTimeout, func(ctx context.Context) ([]remote.Tenant, error) {
				return e.deps.Remote.ListTenants(ctx, p.Collection)
			})
		})
	})
}

func (e *explorer) setTenant(ctx context.Context, req *envelope.Request) (interface{}, error) {
	var p envelope.TenantParams
	if err := envelope.DecodePayload(req.Payload, &p); err != nil {
		return nil, fault.New(fault.KindProtocol, "malformed setTenant payload")
	}
	if p.Collection == "" || p.Tenant == "" {
		return nil, fault.New(fault.KindProtocol, "setTenant requires a collection and a tenant")
	}

	if err := e.deps.Remote.SetTenant(ctx, p.Collection, p.Tenant); err != nil {
		return nil, err
	}
	// Tenant activation changes what queries can see.
	e.invalidateCollection(p.Collection)
	return map[string]string{"collection": p.Collection, "tenant": p.Tenant}, nil
}

func (e *explorer) invalidateSchema(ctx context.Context, req *envelope.Request) (interface{}, error) {
	var p envelope.InvalidateSchemaParams
	if err := envelope.DecodePayload(req.Payload, &p); err != nil {
		return nil, fault.New(fault.KindProtocol, "malformed invalidateSchema payload")
	}
	if p.Collection == "" {
		return nil, fault.New(fault.KindProtocol, "invalidateSchema requires a collection")
	}

	removed := e.invalidateCollection(p.Collection)
	// The collection list itself may be stale after a schema change.
	removed += e.deps.Cache.InvalidatePrefix(cache.ScopePrefix(envelope.CmdListCollections, ""))

	slog.Info(fmt.Sprintf("%s - invalidated %d cached results for collection %s", explorerLogPrefix, removed, p.Collection))
	return map[string]int{"removed": removed}, nil
}

// invalidateCollection drops every cached query, aggregation, and tenant
// result scoped to the collection.
func (e *explorer) invalidateCollection(collection string) int {
	removed := 0
	for _, op := range []string{envelope.CmdRunQuery, envelope.CmdGetAggregations, envelope.CmdListTenants} {
		removed += e.deps.Cache.InvalidatePrefix(cache.ScopePrefix(op, collection))
	}
	return removed
}

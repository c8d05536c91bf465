package panels

import (
	"context"
	"errors"
	"fmt"

	"github.com/morezero/console-bridge/pkg/envelope"
	"github.com/morezero/console-bridge/pkg/fault"
	"github.com/morezero/console-bridge/pkg/prefs"
	"github.com/morezero/console-bridge/pkg/remote"
	"github.com/morezero/console-bridge/pkg/resilience"
	"github.com/morezero/console-bridge/pkg/session"
)

const connectionLogPrefix = "panels:connection"

// ConnectionFactory builds the handlers for the connection form panel:
// probing an endpoint and persisting named connection configs.
func ConnectionFactory(deps Deps) session.Factory {
	deps = deps.normalized()
	return func(s *session.Session) error {
		s.Register(envelope.CmdTestConnection, func(ctx context.Context, req *envelope.Request) (interface{}, error) {
			var p envelope.TestConnectionParams
			if err := envelope.DecodePayload(req.Payload, &p); err != nil {
				return nil, fault.New(fault.KindProtocol, "malformed testConnection payload")
			}
			if p.Endpoint == "" {
				return nil, fault.New(fault.KindProtocol, "testConnection requires an endpoint")
			}

			info := remote.ConnectionInfo{Endpoint: p.Endpoint, APIKey: p.APIKey}
			_, err := resilience.WithRetry(ctx, deps.Retry, func(ctx context.Context) (struct{}, error) {
				return resilience.WithTimeout(ctx, deps.CallTimeout, func(ctx context.Context) (struct{}, error) {
					return struct{}{}, deps.Remote.TestConnection(ctx, info)
				})
			})
			if err != nil {
				return nil, err
			}
			return map[string]bool{"reachable": true}, nil
		})

		s.Register(envelope.CmdSaveConnection, func(ctx context.Context, req *envelope.Request) (interface{}, error) {
			var p envelope.SaveConnectionParams
			if err := envelope.DecodePayload(req.Payload, &p); err != nil {
				return nil, fault.New(fault.KindProtocol, "malformed saveConnection payload")
			}
			if p.Name == "" || p.Endpoint == "" {
				return nil, fault.New(fault.KindProtocol, "saveConnection requires a name and an endpoint")
			}
			if deps.Prefs == nil {
				return nil, fmt.Errorf("%s - no preference store configured, cannot save connection %q", connectionLogPrefix, p.Name)
			}

			info := remote.ConnectionInfo{Endpoint: p.Endpoint, APIKey: p.APIKey}
			if err := deps.Prefs.Set(ctx, prefs.NamespaceConnections, p.Name, info); err != nil {
				return nil, err
			}
			return map[string]string{"name": p.Name}, nil
		})

		s.Register(envelope.CmdLoadConnection, func(ctx context.Context, req *envelope.Request) (interface{}, error) {
			var p envelope.LoadConnectionParams
			if err := envelope.DecodePayload(req.Payload, &p); err != nil {
				return nil, fault.New(fault.KindProtocol, "malformed loadConnection payload")
			}
			if deps.Prefs == nil {
				return nil, fmt.Errorf("%s - no preference store configured", connectionLogPrefix)
			}

			// An empty name lists the saved connection names instead.
			if p.Name == "" {
				names, err := deps.Prefs.Keys(ctx, prefs.NamespaceConnections)
				if err != nil {
					return nil, err
				}
				return map[string][]string{"names": names}, nil
			}

			var info remote.ConnectionInfo
			err := deps.Prefs.Get(ctx, prefs.NamespaceConnections, p.Name, &info)
			if errors.Is(err, prefs.ErrNotFound) {
				return nil, fmt.Errorf("%s - no saved connection named %q", connectionLogPrefix, p.Name)
			}
			if err != nil {
				return nil, err
			}
			return info, nil
		})

		return nil
	}
}

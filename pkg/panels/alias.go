package panels

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/morezero/console-bridge/pkg/envelope"
	"github.com/morezero/console-bridge/pkg/events"
	"github.com/morezero/console-bridge/pkg/fault"
	"github.com/morezero/console-bridge/pkg/remote"
	"github.com/morezero/console-bridge/pkg/resilience"
	"github.com/morezero/console-bridge/pkg/session"
)

const aliasLogPrefix = "panels:alias"

// AliasFactory builds the handlers for the alias manager panel. Mutations
// answer on their own requestId and additionally broadcast the refreshed
// alias list to every open panel.
func AliasFactory(deps Deps) session.Factory {
	deps = deps.normalized()
	return func(s *session.Session) error {
		listAliases := func(ctx context.Context) ([]remote.Alias, error) {
			return resilience.WithRetry(ctx, deps.Retry, func(ctx context.Context) ([]remote.Alias, error) {
				return resilience.WithTimeout(ctx, deps.CallTimeout, func(ctx context.Context) ([]remote.Alias, error) {
					return deps.Remote.ListAliases(ctx)
				})
			})
		}

		// broadcastAliases pushes the post-mutation state to all panels.
		// Best effort: a failed broadcast never fails the mutation that
		// already succeeded.
		broadcastAliases := func(ctx context.Context) {
			aliases, err := listAliases(ctx)
			if err != nil {
				slog.Warn(fmt.Sprintf("%s - failed to refresh aliases for broadcast: %v", aliasLogPrefix, err))
				return
			}
			if err := deps.Events.Broadcast(ctx, envelope.CmdAliasesUpdated, &events.AliasesUpdatedEvent{Aliases: aliases}); err != nil {
				slog.Warn(fmt.Sprintf("%s - failed to broadcast aliasesUpdated: %v", aliasLogPrefix, err))
			}
		}

		s.Register(envelope.CmdListAliases, func(ctx context.Context, req *envelope.Request) (interface{}, error) {
			return listAliases(ctx)
		})

		s.Register(envelope.CmdCreateAlias, func(ctx context.Context, req *envelope.Request) (interface{}, error) {
			p, err := decodeAliasParams(req)
			if err != nil {
				return nil, err
			}
			if p.Collection == "" {
				return nil, fault.New(fault.KindProtocol, "createAlias requires a collection")
			}
			if err := deps.Remote.CreateAlias(ctx, remote.Alias{Alias: p.Alias, Collection: p.Collection}); err != nil {
				return nil, err
			}
			broadcastAliases(ctx)
			return map[string]string{"alias": p.Alias}, nil
		})

		s.Register(envelope.CmdUpdateAlias, func(ctx context.Context, req *envelope.Request) (interface{}, error) {
			p, err := decodeAliasParams(req)
			if err != nil {
				return nil, err
			}
			if p.Collection == "" {
				return nil, fault.New(fault.KindProtocol, "updateAlias requires a collection")
			}
			if err := deps.Remote.UpdateAlias(ctx, remote.Alias{Alias: p.Alias, Collection: p.Collection}); err != nil {
				return nil, err
			}
			broadcastAliases(ctx)
			return map[string]string{"alias": p.Alias}, nil
		})

		s.Register(envelope.CmdDeleteAlias, func(ctx context.Context, req *envelope.Request) (interface{}, error) {
			p, err := decodeAliasParams(req)
			if err != nil {
				return nil, err
			}
			if err := deps.Remote.DeleteAlias(ctx, p.Alias); err != nil {
				return nil, err
			}
			broadcastAliases(ctx)
			return map[string]string{"alias": p.Alias}, nil
		})

		return nil
	}
}

func decodeAliasParams(req *envelope.Request) (*envelope.AliasParams, error) {
	var p envelope.AliasParams
	if err := envelope.DecodePayload(req.Payload, &p); err != nil {
		return nil, fault.New(fault.KindProtocol, fmt.Sprintf("malformed %s payload", req.Command))
	}
	if p.Alias == "" {
		return nil, fault.New(fault.KindProtocol, fmt.Sprintf("%s requires an alias name", req.Command))
	}
	return &p, nil
}

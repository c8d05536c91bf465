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

const rbacLogPrefix = "panels:rbac"

// RBACFactory builds the handlers for the role editor panel. Every role
// mutation broadcasts the refreshed role list so other panels reflect
// permission changes without polling.
func RBACFactory(deps Deps) session.Factory {
	deps = deps.normalized()
	return func(s *session.Session) error {
		listRoles := func(ctx context.Context) ([]remote.Role, error) {
			return resilience.WithRetry(ctx, deps.Retry, func(ctx context.Context) ([]remote.Role, error) {
				return resilience.WithTimeout(ctx, deps.CallTimeout, func(ctx context.Context) ([]remote.Role, error) {
					return deps.Remote.ListRoles(ctx)
				})
			})
		}

		broadcastRoles := func(ctx context.Context) {
			roles, err := listRoles(ctx)
			if err != nil {
				slog.Warn(fmt.Sprintf("%s - failed to refresh roles for broadcast: %v", rbacLogPrefix, err))
				return
			}
			if err := deps.Events.Broadcast(ctx, envelope.CmdRolesUpdated, &events.RolesUpdatedEvent{Roles: roles}); err != nil {
				slog.Warn(fmt.Sprintf("%s - failed to broadcast rolesUpdated: %v", rbacLogPrefix, err))
			}
		}

		s.Register(envelope.CmdListRoles, func(ctx context.Context, req *envelope.Request) (interface{}, error) {
			return listRoles(ctx)
		})

		s.Register(envelope.CmdUpsertRole, func(ctx context.Context, req *envelope.Request) (interface{}, error) {
			var p envelope.RoleParams
			if err := envelope.DecodePayload(req.Payload, &p); err != nil {
				return nil, fault.New(fault.KindProtocol, "malformed upsertRole payload")
			}
			if p.Name == "" {
				return nil, fault.New(fault.KindProtocol, "upsertRole requires a role name")
			}
			if err := deps.Remote.UpsertRole(ctx, remote.Role{Name: p.Name, Permissions: p.Permissions}); err != nil {
				return nil, err
			}
			broadcastRoles(ctx)
			return map[string]string{"name": p.Name}, nil
		})

		s.Register(envelope.CmdDeleteRole, func(ctx context.Context, req *envelope.Request) (interface{}, error) {
			var p envelope.RoleParams
			if err := envelope.DecodePayload(req.Payload, &p); err != nil {
				return nil, fault.New(fault.KindProtocol, "malformed deleteRole payload")
			}
			if p.Name == "" {
				return nil, fault.New(fault.KindProtocol, "deleteRole requires a role name")
			}
			if err := deps.Remote.DeleteRole(ctx, p.Name); err != nil {
				return nil, err
			}
			broadcastRoles(ctx)
			return map[string]string{"name": p.Name}, nil
		})

		return nil
	}
}

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

const backupLogPrefix = "panels:backup"

// DefaultBackupBackend is used when a request does not name one.
const DefaultBackupBackend = "filesystem"

// BackupFactory builds the handlers for the backup manager panel. Listing
// is retried; create and restore are not, because replaying a half-applied
// backup mutation could start the same job twice.
func BackupFactory(deps Deps) session.Factory {
	deps = deps.normalized()
	return func(s *session.Session) error {
		listBackups := func(ctx context.Context, backend string) ([]remote.Backup, error) {
			return resilience.WithRetry(ctx, deps.Retry, func(ctx context.Context) ([]remote.Backup, error) {
				return resilience.WithTimeout(ctx, deps.CallTimeout, func(ctx context.Context) ([]remote.Backup, error) {
					return deps.Remote.ListBackups(ctx, backend)
				})
			})
		}

		broadcastBackups := func(ctx context.Context, backend string) {
			backups, err := listBackups(ctx, backend)
			if err != nil {
				slog.Warn(fmt.Sprintf("%s - failed to refresh backups for broadcast: %v", backupLogPrefix, err))
				return
			}
			if err := deps.Events.Broadcast(ctx, envelope.CmdBackupsUpdated, &events.BackupsUpdatedEvent{Backend: backend, Backups: backups}); err != nil {
				slog.Warn(fmt.Sprintf("%s - failed to broadcast backupsUpdated: %v", backupLogPrefix, err))
			}
		}

		s.Register(envelope.CmdListBackups, func(ctx context.Context, req *envelope.Request) (interface{}, error) {
			p, err := decodeBackupParams(req)
			if err != nil {
				return nil, err
			}
			return listBackups(ctx, p.Backend)
		})

		s.Register(envelope.CmdCreateBackup, func(ctx context.Context, req *envelope.Request) (interface{}, error) {
			p, err := decodeBackupParams(req)
			if err != nil {
				return nil, err
			}
			backup, err := deps.Remote.CreateBackup(ctx, p.Backend, p.Include)
			if err != nil {
				return nil, err
			}
			broadcastBackups(ctx, p.Backend)
			return backup, nil
		})

		s.Register(envelope.CmdRestoreBackup, func(ctx context.Context, req *envelope.Request) (interface{}, error) {
			p, err := decodeBackupParams(req)
			if err != nil {
				return nil, err
			}
			if p.BackupID == "" {
				return nil, fault.New(fault.KindProtocol, "restoreBackup requires a backupId")
			}
			backup, err := deps.Remote.RestoreBackup(ctx, p.Backend, p.BackupID)
			if err != nil {
				return nil, err
			}
			broadcastBackups(ctx, p.Backend)
			return backup, nil
		})

		return nil
	}
}

func decodeBackupParams(req *envelope.Request) (*envelope.BackupParams, error) {
	var p envelope.BackupParams
	if err := envelope.DecodePayload(req.Payload, &p); err != nil {
		return nil, fault.New(fault.KindProtocol, fmt.Sprintf("malformed %s payload", req.Command))
	}
	if p.Backend == "" {
		p.Backend = DefaultBackupBackend
	}
	return &p, nil
}

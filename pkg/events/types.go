// Package events defines the state-push messages the host broadcasts to all
// UI panels, and the publisher interfaces for sending them.
package events

import "github.com/morezero/console-bridge/pkg/remote"

// RolesUpdatedEvent is broadcast after any role mutation.
type RolesUpdatedEvent struct {
	Roles []remote.Role `json:"roles"`
}

// AliasesUpdatedEvent is broadcast after any alias mutation.
type AliasesUpdatedEvent struct {
	Aliases []remote.Alias `json:"aliases"`
}

// BackupsUpdatedEvent is broadcast when a backup job is created or changes
// status.
type BackupsUpdatedEvent struct {
	Backend string          `json:"backend"`
	Backups []remote.Backup `json:"backups"`
}

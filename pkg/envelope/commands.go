package envelope

// Command names form a closed set; the session dispatcher rejects anything
// outside it as a protocol fault.
const (
	// Connection form
	CmdTestConnection = "testConnection"
	CmdSaveConnection = "saveConnection"
	CmdLoadConnection = "loadConnection"

	// Alias manager
	CmdListAliases = "listAliases"
	CmdCreateAlias = "createAlias"
	CmdUpdateAlias = "updateAlias"
	CmdDeleteAlias = "deleteAlias"

	// Backup manager
	CmdListBackups   = "listBackups"
	CmdCreateBackup  = "createBackup"
	CmdRestoreBackup = "restoreBackup"

	// RBAC editor
	CmdListRoles  = "listRoles"
	CmdUpsertRole = "upsertRole"
	CmdDeleteRole = "deleteRole"

	// Cluster monitor
	CmdClusterNodes = "clusterNodes"

	// Data explorer
	CmdListCollections  = "listCollections"
	CmdListTenants      = "listTenants"
	CmdSetTenant        = "setTenant"
	CmdRunQuery         = "runQuery"
	CmdGetAggregations  = "getAggregations"
	CmdInvalidateSchema = "invalidateSchema"

	// Session control, host → UI
	CmdSetMode = "setMode"

	// Broadcasts, host → all UIs
	CmdRolesUpdated   = "rolesUpdated"
	CmdBackupsUpdated = "backupsUpdated"
	CmdAliasesUpdated = "aliasesUpdated"
)

// knownCommands is the closed request command set accepted by sessions.
var knownCommands = map[string]struct{}{
	CmdTestConnection:   {},
	CmdSaveConnection:   {},
	CmdLoadConnection:   {},
	CmdListAliases:      {},
	CmdCreateAlias:      {},
	CmdUpdateAlias:      {},
	CmdDeleteAlias:      {},
	CmdListBackups:      {},
	CmdCreateBackup:     {},
	CmdRestoreBackup:    {},
	CmdListRoles:        {},
	CmdUpsertRole:       {},
	CmdDeleteRole:       {},
	CmdClusterNodes:     {},
	CmdListCollections:  {},
	CmdListTenants:      {},
	CmdSetTenant:        {},
	CmdRunQuery:         {},
	CmdGetAggregations:  {},
	CmdInvalidateSchema: {},
}

// KnownCommand reports whether cmd belongs to the closed request command set.
func KnownCommand(cmd string) bool {
	_, ok := knownCommands[cmd]
	return ok
}

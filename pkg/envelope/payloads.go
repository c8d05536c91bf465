package envelope

// Typed payloads for each command. The dispatcher decodes into these shapes
// so unknown or malformed payloads fail at the protocol boundary instead of
// being silently mis-handled.

// TestConnectionParams holds parameters for the testConnection command.
type TestConnectionParams struct {
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"apiKey,omitempty"`
}

// SaveConnectionParams holds parameters for the saveConnection command.
type SaveConnectionParams struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"apiKey,omitempty"`
}

// LoadConnectionParams holds parameters for the loadConnection command.
type LoadConnectionParams struct {
	Name string `json:"name"`
}

// AliasParams holds parameters for alias mutations.
type AliasParams struct {
	Alias      string `json:"alias"`
	Collection string `json:"collection,omitempty"`
}

// BackupParams holds parameters for backup operations.
type BackupParams struct {
	BackupID string   `json:"backupId,omitempty"`
	Backend  string   `json:"backend,omitempty"`
	Include  []string `json:"include,omitempty"`
}

// RoleParams holds parameters for role mutations.
type RoleParams struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions,omitempty"`
}

// TenantParams holds parameters for the setTenant and listTenants commands.
type TenantParams struct {
	Collection string `json:"collection"`
	Tenant     string `json:"tenant,omitempty"`
}

// QueryParams holds parameters for runQuery and getAggregations. The field
// order is irrelevant; the cache fingerprint normalizes it.
type QueryParams struct {
	Collection string            `json:"collection"`
	Filters    map[string]string `json:"filters,omitempty"`
	Sort       string            `json:"sort,omitempty"`
	Page       int               `json:"page,omitempty"`
	Limit      int               `json:"limit,omitempty"`
	Tenant     string            `json:"tenant,omitempty"`
	// Immediate skips the debounce window. Set for pagination and explicit
	// button actions; filter typing leaves it false.
	Immediate bool `json:"immediate,omitempty"`
}

// InvalidateSchemaParams holds parameters for the invalidateSchema command.
type InvalidateSchemaParams struct {
	Collection string `json:"collection"`
}

// SetModeParams is pushed to a singleton panel when it is revealed with new
// parameters instead of being recreated.
type SetModeParams struct {
	Mode   string            `json:"mode"`
	Params map[string]string `json:"params,omitempty"`
}

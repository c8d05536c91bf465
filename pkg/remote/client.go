// Package remote specifies the network collaborator that talks to the
// remote data service. The host owns the only implementation with real
// network access; panels reach it exclusively through the message bridge.
package remote

import "context"

// Alias maps a stable name onto a collection.
type Alias struct {
	Alias      string `json:"alias"`
	Collection string `json:"collection"`
}

// Collection describes one collection/class on the data service.
type Collection struct {
	Name         string `json:"name"`
	MultiTenancy bool   `json:"multiTenancy"`
	ObjectCount  int64  `json:"objectCount,omitempty"`
}

// Tenant is one tenant of a multi-tenant collection.
type Tenant struct {
	Name           string `json:"name"`
	ActivityStatus string `json:"activityStatus"`
}

// Backup describes a backup job.
type Backup struct {
	ID          string   `json:"id"`
	Backend     string   `json:"backend"`
	Status      string   `json:"status"`
	Collections []string `json:"collections,omitempty"`
	StartedAt   string   `json:"startedAt,omitempty"`
}

// Role is a role with its permission set.
type Role struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// Node describes one cluster node.
type Node struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Status  string `json:"status"`
	GitHash string `json:"gitHash,omitempty"`
}

// QueryResult is a page of objects from runQuery.
type QueryResult struct {
	Objects []map[string]interface{} `json:"objects"`
	Total   int64                    `json:"total"`
}

// AggregationResult holds per-field aggregation counts.
type AggregationResult struct {
	Collection string           `json:"collection"`
	Counts     map[string]int64 `json:"counts"`
}

// ConnectionInfo addresses one data service deployment.
type ConnectionInfo struct {
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"apiKey,omitempty"`
}

// Client is the host-side collaborator holding the real network client.
// Every method blocks until the remote call finishes or ctx is done;
// failures surface as *OperationError.
type Client interface {
	TestConnection(ctx context.Context, info ConnectionInfo) error

	ListAliases(ctx context.Context) ([]Alias, error)
	CreateAlias(ctx context.Context, alias Alias) error
	UpdateAlias(ctx context.Context, alias Alias) error
	DeleteAlias(ctx context.Context, name string) error

	ListCollections(ctx context.Context) ([]Collection, error)
	ListTenants(ctx context.Context, collection string) ([]Tenant, error)
	SetTenant(ctx context.Context, collection, tenant string) error

	RunQuery(ctx context.Context, collection string, filters map[string]string, sort string, page, limit int) (*QueryResult, error)
	GetAggregations(ctx context.Context, collection string, filters map[string]string) (*AggregationResult, error)

	ListBackups(ctx context.Context, backend string) ([]Backup, error)
	CreateBackup(ctx context.Context, backend string, include []string) (*Backup, error)
	RestoreBackup(ctx context.Context, backend, backupID string) (*Backup, error)

	ListRoles(ctx context.Context) ([]Role, error)
	UpsertRole(ctx context.Context, role Role) error
	DeleteRole(ctx context.Context, name string) error

	ClusterNodes(ctx context.Context) ([]Node, error)
}

package remote

import "context"

// Fake is a Client whose behavior is supplied per method through function
// fields; unset methods succeed with zero values. Intended for tests and for
// running the host without a live deployment.
type Fake struct {
	TestConnectionFn  func(ctx context.Context, info ConnectionInfo) error
	ListAliasesFn     func(ctx context.Context) ([]Alias, error)
	CreateAliasFn     func(ctx context.Context, alias Alias) error
	UpdateAliasFn     func(ctx context.Context, alias Alias) error
	DeleteAliasFn     func(ctx context.Context, name string) error
	ListCollectionsFn func(ctx context.Context) ([]Collection, error)
	ListTenantsFn     func(ctx context.Context, collection string) ([]Tenant, error)
	SetTenantFn       func(ctx context.Context, collection, tenant string) error
	RunQueryFn        func(ctx context.Context, collection string, filters map[string]string, sort string, page, limit int) (*QueryResult, error)
	GetAggregationsFn func(ctx context.Context, collection string, filters map[string]string) (*AggregationResult, error)
	ListBackupsFn     func(ctx context.Context, backend string) ([]Backup, error)
	CreateBackupFn    func(ctx context.Context, backend string, include []string) (*Backup, error)
	RestoreBackupFn   func(ctx context.Context, backend, backupID string) (*Backup, error)
	ListRolesFn       func(ctx context.Context) ([]Role, error)
	UpsertRoleFn      func(ctx context.Context, role Role) error
	DeleteRoleFn      func(ctx context.Context, name string) error
	ClusterNodesFn    func(ctx context.Context) ([]Node, error)
}

var _ Client = (*Fake)(nil)

func (f *Fake) TestConnection(ctx context.Context, info ConnectionInfo) error {
	if f.TestConnectionFn != nil {
		return f.TestConnectionFn(ctx, info)
	}
	return nil
}

func (f *Fake) ListAliases(ctx context.Context) ([]Alias, error) {
	if f.ListAliasesFn != nil {
		return f.ListAliasesFn(ctx)
	}
	return nil, nil
}

func (f *Fake) CreateAlias(ctx context.Context, alias Alias) error {
	if f.CreateAliasFn != nil {
		return f.CreateAliasFn(ctx, alias)
	}
	return nil
}

func (f *Fake) UpdateAlias(ctx context.Context, alias Alias) error {
	if f.UpdateAliasFn != nil {
		return f.UpdateAliasFn(ctx, alias)
	}
	return nil
}

func (f *Fake) DeleteAlias(ctx context.Context, name string) error {
	if f.DeleteAliasFn != nil {
		return f.DeleteAliasFn(ctx, name)
	}
	return nil
}

func (f *Fake) ListCollections(ctx context.Context) ([]Collection, error) {
	if f.ListCollectionsFn != nil {
		return f.ListCollectionsFn(ctx)
	}
	return nil, nil
}

func (f *Fake) ListTenants(ctx context.Context, collection string) ([]Tenant, error) {
	if f.ListTenantsFn != nil {
		return f.ListTenantsFn(ctx, collection)
	}
	return nil, nil
}

func (f *Fake) SetTenant(ctx context.Context, collection, tenant string) error {
	if f.SetTenantFn != nil {
		return f.SetTenantFn(ctx, collection, tenant)
	}
	return nil
}

func (f *Fake) RunQuery(ctx context.Context, collection string, filters map[string]string, sort string, page, limit int) (*QueryResult, error) {
	if f.RunQueryFn != nil {
		return f.RunQueryFn(ctx, collection, filters, sort, page, limit)
	}
	return &QueryResult{}, nil
}

func (f *Fake) GetAggregations(ctx context.Context, collection string, filters map[string]string) (*AggregationResult, error) {
	if f.GetAggregationsFn != nil {
		return f.GetAggregationsFn(ctx, collection, filters)
	}
	return &AggregationResult{Collection: collection}, nil
}

func (f *Fake) ListBackups(ctx context.Context, backend string) ([]Backup, error) {
	if f.ListBackupsFn != nil {
		return f.ListBackupsFn(ctx, backend)
	}
	return nil, nil
}

func (f *Fake) CreateBackup(ctx context.Context, backend string, include []string) (*Backup, error) {
	if f.CreateBackupFn != nil {
		return f.CreateBackupFn(ctx, backend, include)
	}
	return &Backup{Backend: backend}, nil
}

func (f *Fake) RestoreBackup(ctx context.Context, backend, backupID string) (*Backup, error) {
	if f.RestoreBackupFn != nil {
		return f.RestoreBackupFn(ctx, backend, backupID)
	}
	return &Backup{ID: backupID, Backend: backend}, nil
}

func (f *Fake) ListRoles(ctx context.Context) ([]Role, error) {
	if f.ListRolesFn != nil {
		return f.ListRolesFn(ctx)
	}
	return nil, nil
}

func (f *Fake) UpsertRole(ctx context.Context, role Role) error {
	if f.UpsertRoleFn != nil {
		return f.UpsertRoleFn(ctx, role)
	}
	return nil
}

func (f *Fake) DeleteRole(ctx context.Context, name string) error {
	if f.DeleteRoleFn != nil {
		return f.DeleteRoleFn(ctx, name)
	}
	return nil
}

func (f *Fake) ClusterNodes(ctx context.Context) ([]Node, error) {
	if f.ClusterNodesFn != nil {
		return f.ClusterNodesFn(ctx)
	}
	return nil, nil
}

//go:build integration

package tests

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/morezero/console-bridge/pkg/bridge"
	"github.com/morezero/console-bridge/pkg/envelope"
	"github.com/morezero/console-bridge/pkg/panels"
	"github.com/morezero/console-bridge/pkg/prefs"
	"github.com/morezero/console-bridge/pkg/remote"
	"github.com/morezero/console-bridge/pkg/session"
)

const integrationTestPrefix = "tests:integration_test"

// Integration tests use DATABASE_URL (e.g. .../bridge_test on platform Postgres).

func TestIntegration_ConnectionPanelWithDB_SaveAndLoad(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skipf("%s - DATABASE_URL not set, skipping", integrationTestPrefix)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := prefs.NewPool(ctx, url)
	if err != nil {
		t.Fatalf("%s - NewPool failed: %v", integrationTestPrefix, err)
	}
	defer pool.Close()

	migrationPath := "migrations"
	if _, err := os.Stat(migrationPath); os.IsNotExist(err) {
		migrationPath = filepath.Join("..", "migrations")
	}
	migrationSQL, err := prefs.LoadMigrationFiles(migrationPath)
	if err != nil {
		t.Fatalf("%s - LoadMigrationFiles failed: %v", integrationTestPrefix, err)
	}
	if err := prefs.RunMigrations(ctx, pool, migrationSQL); err != nil {
		t.Fatalf("%s - RunMigrations failed: %v", integrationTestPrefix, err)
	}
	if err := prefs.ClearStore(ctx, pool); err != nil {
		t.Fatalf("%s - ClearStore failed: %v", integrationTestPrefix, err)
	}

	env := setupE2E(t, 14290, &remote.Fake{})

	// Rebind the connection panel with the real store.
	store := prefs.NewStore(pool)
	env.manager.RegisterFactory(session.TypeConnection, panels.ConnectionFactory(panels.Deps{
		Remote: &remote.Fake{},
		Prefs:  store,
	}))

	s, _, err := env.manager.Open(session.TypeConnection, "", nil)
	if err != nil {
		t.Fatalf("%s - open connection panel: %v", integrationTestPrefix, err)
	}
	b, err := bridge.New(env.uiNC, s.ID())
	if err != nil {
		t.Fatalf("%s - bridge attach: %v", integrationTestPrefix, err)
	}
	defer b.Dispose()

	if _, err := b.Send(ctx, envelope.CmdSaveConnection, &envelope.SaveConnectionParams{
		Name:     "local",
		Endpoint: "http://localhost:8080",
		APIKey:   "secret",
	}); err != nil {
		t.Fatalf("%s - saveConnection failed: %v", integrationTestPrefix, err)
	}

	raw, err := b.Send(ctx, envelope.CmdLoadConnection, &envelope.LoadConnectionParams{Name: "local"})
	if err != nil {
		t.Fatalf("%s - loadConnection failed: %v", integrationTestPrefix, err)
	}
	var info remote.ConnectionInfo
	if err := envelope.DecodePayload(raw, &info); err != nil {
		t.Fatalf("%s - decode connection: %v", integrationTestPrefix, err)
	}
	if info.Endpoint != "http://localhost:8080" || info.APIKey != "secret" {
		t.Errorf("%s - loaded connection = %+v", integrationTestPrefix, info)
	}

	// Listing saved names via an empty load.
	raw, err = b.Send(ctx, envelope.CmdLoadConnection, &envelope.LoadConnectionParams{})
	if err != nil {
		t.Fatalf("%s - list connections failed: %v", integrationTestPrefix, err)
	}
	var names struct {
		Names []string `json:"names"`
	}
	if err := envelope.DecodePayload(raw, &names); err != nil {
		t.Fatalf("%s - decode names: %v", integrationTestPrefix, err)
	}
	if len(names.Names) != 1 || names.Names[0] != "local" {
		t.Errorf("%s - names = %v, want [local]", integrationTestPrefix, names.Names)
	}
}

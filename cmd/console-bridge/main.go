// Package main is the entrypoint for the console-bridge host.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/morezero/console-bridge/internal/config"
	"github.com/morezero/console-bridge/internal/host"
	"github.com/morezero/console-bridge/pkg/prefs"
)

const usage = `Usage: console-bridge [command]
       console-bridge serve         Start the bridge host (broker, sessions, HTTP health).
       console-bridge migrate up    Run database migrations.
       console-bridge clear         Truncate stored preferences; schema is preserved.

Commands:
  serve       (default) Start the console-bridge host.
  migrate up  Run database migrations only.
  clear       Truncate preference data; schema preserved.

Environment: COMMS_URL, EMBEDDED_BROKER (default true), DATABASE_URL (optional),
MIGRATION_PATH, BRIDGE_HTTP_ADDR, LOG_LEVEL. See README.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "migrate":
		if len(args) < 2 || args[1] != "up" {
			log.Fatalf("console-bridge migrate: require subcommand \"up\"")
		}
		if err := runMigrateUp(); err != nil {
			log.Fatalf("console-bridge migrate up: %v", err)
		}
		return
	case "clear":
		if err := runClear(); err != nil {
			log.Fatalf("console-bridge clear: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
		// serve (explicit or default)
		break
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := host.Run(); err != nil {
		log.Fatalf("console-bridge: %v", err)
	}
}

func runMigrateUp() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := prefs.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	migrationSQL, err := prefs.LoadMigrationFiles(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	if err := prefs.RunMigrations(ctx, pool, migrationSQL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func runClear() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := prefs.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := prefs.ClearStore(ctx, pool); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	return nil
}

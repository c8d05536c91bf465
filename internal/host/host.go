// Package host orchestrates all components: embedded or external broker,
// database, session manager, panel handlers, HTTP health.
package host

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/console-bridge/internal/config"
	"github.com/morezero/console-bridge/pkg/cache"
	"github.com/morezero/console-bridge/pkg/commsutil"
	"github.com/morezero/console-bridge/pkg/events"
	"github.com/morezero/console-bridge/pkg/panels"
	"github.com/morezero/console-bridge/pkg/prefs"
	"github.com/morezero/console-bridge/pkg/remote"
	"github.com/morezero/console-bridge/pkg/resilience"
	"github.com/morezero/console-bridge/pkg/session"
)

const logPrefix = "host:host"

// Options customizes the host. The zero value runs with a stub remote
// client; embedders supply the real one.
type Options struct {
	Client remote.Client
}

// Host is the console-bridge orchestrator.
type Host struct {
	cfg        *config.Config
	nc         *comms.Conn
	pool       *pgxpool.Pool
	broker     *commsserver.Server
	manager    *session.Manager
	httpServer *http.Server
}

// Run starts the host with default options, blocks until a shutdown signal,
// then cleans up.
func Run() error {
	return RunWithOptions(Options{})
}

// RunWithOptions starts the host, blocks until shutdown signal, then cleans up.
func RunWithOptions(opts Options) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	SetupLogging(cfg.LogLevel)
	slog.Info(fmt.Sprintf("%s - Starting console-bridge", logPrefix))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := &Host{cfg: cfg}

	// Step 1: Broker. Desktop installs run one in-process; a standalone
	// broker is used when EMBEDDED_BROKER=false.
	brokerURL := cfg.COMMSURL
	if cfg.EmbeddedBroker {
		broker, err := commsutil.StartEmbeddedBroker(cfg.EmbeddedHost, cfg.EmbeddedPort)
		if err != nil {
			return err
		}
		h.broker = broker
		brokerURL = broker.ClientURL()
	}

	// Step 2: Connect to the broker
	nc, err := commsutil.Connect(brokerURL, cfg.COMMSName)
	if err != nil {
		h.stopBroker()
		return fmt.Errorf("%s - failed to connect to broker: %w", logPrefix, err)
	}
	h.nc = nc
	slog.Info(fmt.Sprintf("%s - Connected to broker at %s", logPrefix, brokerURL))

	// Step 3: Database (optional). Without it the host runs, but
	// connection save/load is disabled.
	var store *prefs.Store
	if cfg.DatabaseURL != "" {
		pool, err := prefs.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			nc.Close()
			h.stopBroker()
			return fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
		}
		h.pool = pool

		if cfg.RunMigrations {
			migrationSQL, err := prefs.LoadMigrationFiles(cfg.MigrationPath)
			if err != nil {
				h.closeAll()
				return fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
			}
			if err := prefs.RunMigrations(ctx, pool, migrationSQL); err != nil {
				h.closeAll()
				return fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
			}
		}
		store = prefs.NewStore(pool)
	} else {
		slog.Warn(fmt.Sprintf("%s - No DATABASE_URL configured, connection persistence disabled", logPrefix))
	}

	// Step 4: Remote client
	client := opts.Client
	if client == nil {
		slog.Warn(fmt.Sprintf("%s - No remote client supplied, serving stub data", logPrefix))
		client = &remote.Fake{}
	}

	// Step 5: Session manager and panel handlers
	manager := session.NewManager(nc, cfg.RequestTimeout)
	h.manager = manager
	panels.RegisterAll(manager, panels.Deps{
		Remote: client,
		Prefs:  store,
		Events: events.NewCommsPublisher(nc),
		Cache:  cache.New(cfg.CacheMaxEntries),
		Retry: resilience.RetryPolicy{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
		},
		CallTimeout:   cfg.CallTimeout,
		CacheTTL:      cfg.CacheTTL,
		DebounceDelay: cfg.DebounceDelay,
	})

	// Step 6: Control subject, where UIs open and close panel sessions
	controlSub, err := nc.Subscribe(commsutil.SubjectControl, h.handleControl)
	if err != nil {
		h.closeAll()
		return fmt.Errorf("%s - failed to subscribe to %s: %w", logPrefix, commsutil.SubjectControl, err)
	}
	slog.Info(fmt.Sprintf("%s - Subscribed to %s", logPrefix, commsutil.SubjectControl))

	// Step 7: HTTP health server
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.handleHome())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		healthCtx, cancel := context.WithTimeout(r.Context(), cfg.HealthCheckTimeout)
		defer cancel()
		report := h.health(healthCtx)
		w.Header().Set("Content-Type", "application/json")
		if report.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(report)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})

	httpAddr := h.cfg.HTTPAddr
	if httpAddr == "" {
		httpAddr = fmt.Sprintf(":%d", cfg.HTTPPort)
	}
	h.httpServer = &http.Server{Addr: httpAddr, Handler: mux}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP health server listening on %s", logPrefix, httpAddr))
		if err := h.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	slog.Info(fmt.Sprintf("%s - Console-bridge is ready", logPrefix))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	// Graceful shutdown
	controlSub.Unsubscribe()
	manager.CloseAll()
	h.httpServer.Shutdown(ctx)
	nc.Drain()
	if h.pool != nil {
		h.pool.Close()
	}
	h.stopBroker()

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

// SetupLogging installs the default text logger at the configured level.
func SetupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func (h *Host) stopBroker() {
	if h.broker != nil {
		commsutil.StopEmbeddedBroker(h.broker)
		h.broker = nil
	}
}

func (h *Host) closeAll() {
	if h.pool != nil {
		h.pool.Close()
	}
	if h.nc != nil {
		h.nc.Close()
	}
	h.stopBroker()
}

// healthReport is the /health response body.
type healthReport struct {
	Status   string            `json:"status"`
	Checks   map[string]bool   `json:"checks"`
	Sessions int               `json:"sessions"`
	Time     time.Time         `json:"timestamp"`
}

func (h *Host) health(ctx context.Context) *healthReport {
	report := &healthReport{
		Status:   "healthy",
		Checks:   map[string]bool{"broker": h.nc != nil && h.nc.Status() == comms.CONNECTED},
		Sessions: h.manager.Count(),
		Time:     time.Now().UTC(),
	}
	if !report.Checks["broker"] {
		report.Status = "unhealthy"
	}
	if h.pool != nil {
		dbOK := h.pool.Ping(ctx) == nil
		report.Checks["database"] = dbOK
		if !dbOK {
			report.Status = "unhealthy"
		}
	}
	return report
}

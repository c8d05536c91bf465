// Package config provides host configuration loaded from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:LoadConfig"

// Config holds console-bridge host configuration.
type Config struct {
	// COMMS: connect to a standalone broker at COMMSURL, or run an
	// embedded one for desktop mode.
	COMMSURL       string `envconfig:"COMMS_URL" default:"nats://127.0.0.1:4222"`
	COMMSName      string `envconfig:"SERVICE_NAME" default:"console-bridge"`
	EmbeddedBroker bool   `envconfig:"EMBEDDED_BROKER" default:"true"`
	EmbeddedHost   string `envconfig:"EMBEDDED_BROKER_HOST" default:"127.0.0.1"`
	EmbeddedPort   int    `envconfig:"EMBEDDED_BROKER_PORT" default:"4222"`

	// Timeouts and retry
	RequestTimeout   time.Duration `envconfig:"BRIDGE_REQUEST_TIMEOUT" default:"25s"`
	CallTimeout      time.Duration `envconfig:"REMOTE_CALL_TIMEOUT" default:"30s"`
	RetryMaxAttempts int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryBaseDelay   time.Duration `envconfig:"RETRY_BASE_DELAY" default:"1s"`

	// Explorer knobs
	DebounceDelay   time.Duration `envconfig:"DEBOUNCE_DELAY" default:"300ms"`
	CacheTTL        time.Duration `envconfig:"CACHE_TTL" default:"30s"`
	CacheMaxEntries int           `envconfig:"CACHE_MAX_ENTRIES" default:"512"`

	// Database (optional; connection save/load is disabled without it)
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"false"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"migrations"`

	// HTTP health endpoint (BRIDGE_HTTP_ADDR preferred, e.g. "0.0.0.0:8080")
	HTTPAddr           string        `envconfig:"BRIDGE_HTTP_ADDR"`
	HTTPPort           int           `envconfig:"HTTP_PORT" default:"8080"`
	HealthCheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ValidateForServe checks required config when running the bridge host.
func (c *Config) ValidateForServe() error {
	if !c.EmbeddedBroker && c.COMMSURL == "" {
		return fmt.Errorf("%s - COMMS_URL is required when EMBEDDED_BROKER is false", logPrefix)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s - BRIDGE_REQUEST_TIMEOUT must be positive", logPrefix)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("%s - REMOTE_CALL_TIMEOUT must be positive", logPrefix)
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("%s - RETRY_MAX_ATTEMPTS must be at least 1", logPrefix)
	}
	if c.DebounceDelay <= 0 {
		return fmt.Errorf("%s - DEBOUNCE_DELAY must be positive", logPrefix)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("%s - HEALTH_CHECK_TIMEOUT must be positive", logPrefix)
	}
	return nil
}

// ValidateForDB checks required config when running DB-dependent commands
// (migrate, clear).
func (c *Config) ValidateForDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required", logPrefix)
	}
	return nil
}

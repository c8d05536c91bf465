package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const storeLogPrefix = "prefs:store"

// Namespaces partition the key-value table by kind of stored value.
const (
	NamespaceConnections = "connections"
	NamespaceQueries     = "queries"
	NamespacePrefs       = "prefs"
)

// ErrNotFound is returned when no value exists for a key.
var ErrNotFound = fmt.Errorf("prefs: not found")

// Store provides durable get/set access. The core never manages the
// payload format beyond JSON encoding.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store with the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Set stores value (JSON-encoded) under namespace/key, overwriting any
// previous value.
func (s *Store) Set(ctx context.Context, namespace, key string, value interface{}) error {
	slog.Debug(fmt.Sprintf("%s - Set %s/%s", storeLogPrefix, namespace, key))

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s - failed to encode value for %s/%s: %w", storeLogPrefix, namespace, key, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO kv_entries (namespace, key, value, modified)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (namespace, key) DO UPDATE SET
		   value = $3,
		   modified = $4`,
		namespace, key, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%s - failed to upsert %s/%s: %w", storeLogPrefix, namespace, key, err)
	}
	return nil
}

// Get loads the value stored under namespace/key into out.
func (s *Store) Get(ctx context.Context, namespace, key string, out interface{}) error {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE namespace = $1 AND key = $2`,
		namespace, key).Scan(&data)
	if err == pgx.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%s - failed to load %s/%s: %w", storeLogPrefix, namespace, key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s - failed to decode %s/%s: %w", storeLogPrefix, namespace, key, err)
	}
	return nil
}

// Delete removes the value under namespace/key. Missing keys are no-ops.
func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM kv_entries WHERE namespace = $1 AND key = $2`, namespace, key)
	if err != nil {
		return fmt.Errorf("%s - failed to delete %s/%s: %w", storeLogPrefix, namespace, key, err)
	}
	return nil
}

// Keys lists all keys in a namespace, sorted.
func (s *Store) Keys(ctx context.Context, namespace string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key FROM kv_entries WHERE namespace = $1 ORDER BY key`, namespace)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to list keys in %s: %w", storeLogPrefix, namespace, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("%s - failed to scan key: %w", storeLogPrefix, err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// ClearStore truncates the key-value table. Schema is preserved.
func ClearStore(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info(fmt.Sprintf("%s - Clearing kv_entries", storeLogPrefix))
	if _, err := pool.Exec(ctx, `TRUNCATE TABLE kv_entries`); err != nil {
		return fmt.Errorf("%s - truncate failed: %w", storeLogPrefix, err)
	}
	return nil
}

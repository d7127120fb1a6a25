// Package kvcache is a small persistent cache of JSON values with an expiry,
// stored in SQLite. Each row holds a {value, expiry} envelope; expired rows are
// dropped when read.
package kvcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultTTL is used by Set when ttl is zero.
const DefaultTTL = 5 * time.Minute

const schema = `
CREATE TABLE IF NOT EXISTS cache (
	key      TEXT PRIMARY KEY,
	envelope TEXT NOT NULL
)`

type envelope struct {
	Value  json.RawMessage `json:"value"`
	Expiry int64           `json:"expiry"` // unix milliseconds
}

// Cache is a key/value store backed by a SQLite file.
type Cache struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the cache database at path. ":memory:" is
// accepted for tests.
func Open(path string) (*Cache, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping cache: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return &Cache{db: db, now: time.Now}, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Get decodes the value stored under key into dest. It returns false when the
// key is missing or expired.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	var raw string
	err := c.db.QueryRowContext(ctx, `SELECT envelope FROM cache WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read cache %q: %w", key, err)
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		_ = c.Delete(ctx, key)
		return false, nil
	}
	if env.Expiry > 0 && c.now().UnixMilli() >= env.Expiry {
		if err := c.Delete(ctx, key); err != nil {
			return false, err
		}
		return false, nil
	}
	if err := json.Unmarshal(env.Value, dest); err != nil {
		return false, fmt.Errorf("decode cache %q: %w", key, err)
	}
	return true, nil
}

// Set stores value under key for ttl (DefaultTTL when zero, no expiry when
// negative).
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache %q: %w", key, err)
	}
	if ttl == 0 {
		ttl = DefaultTTL
	}
	env := envelope{Value: encoded}
	if ttl > 0 {
		env.Expiry = c.now().Add(ttl).UnixMilli()
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode cache %q: %w", key, err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO cache (key, envelope) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET envelope = excluded.envelope`,
		key, string(raw))
	if err != nil {
		return fmt.Errorf("write cache %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM cache WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete cache %q: %w", key, err)
	}
	return nil
}

// Purge removes every expired entry and returns how many were dropped.
func (c *Cache) Purge(ctx context.Context) (int, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT key, envelope FROM cache`)
	if err != nil {
		return 0, fmt.Errorf("scan cache: %w", err)
	}
	var expired []string
	now := c.now().UnixMilli()
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("scan cache: %w", err)
		}
		var env envelope
		if json.Unmarshal([]byte(raw), &env) != nil || (env.Expiry > 0 && now >= env.Expiry) {
			expired = append(expired, key)
		}
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}
	for _, key := range expired {
		if err := c.Delete(ctx, key); err != nil {
			return 0, err
		}
	}
	return len(expired), nil
}

// Remember returns the cached value for key, or calls load, stores its result
// for ttl and returns it. Cache errors are not fatal: load still runs.
func Remember[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if c != nil {
		if ok, err := c.Get(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}
	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	if c != nil {
		if err := c.Set(ctx, key, value, ttl); err != nil {
			log.Printf("cache %s: %v", key, err)
		}
	}
	return value, nil
}

// Package cache provides a SQLite-based cache for artwork lookup results.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/chartfy-backend/internal/domain/collage"
)

const (
	// CurrentSchemaVersion is the current database schema version.
	CurrentSchemaVersion = "1"

	// DefaultDBPath is the default path for the cache database.
	DefaultDBPath = "data/lookups.db"

	// DefaultTTL is how long a lookup result stays valid.
	DefaultTTL = 7 * 24 * time.Hour
)

// Entry is one cached lookup result.
type Entry struct {
	Key       string
	Images    collage.ImageVariantSet
	FetchedAt time.Time
	ExpiresAt time.Time
}

// Stats summarizes cache contents.
type Stats struct {
	Entries int `json:"entries"`
	Expired int `json:"expired"`
}

// DB represents the SQLite cache database.
type DB struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewDB creates a new cache database instance.
func NewDB(path string) *DB {
	if path == "" {
		path = DefaultDBPath
	}
	return &DB{
		path: path,
		now:  time.Now,
	}
}

// Open opens the database and initializes the schema.
func (d *DB) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Ensure directory exists
	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", d.path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	d.db = db

	if err := d.initSchema(); err != nil {
		d.db.Close()
		d.db = nil
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Info().Str("path", d.path).Msg("Lookup cache opened")
	return nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		err := d.db.Close()
		d.db = nil
		return err
	}
	return nil
}

func (d *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS lookups (
		key TEXT PRIMARY KEY,
		images TEXT NOT NULL,
		fetched_at TEXT NOT NULL,
		expires_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cache_meta (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_lookups_expires ON lookups(expires_at);
	`
	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	var version string
	err := d.db.QueryRow("SELECT value FROM cache_meta WHERE key = 'schema_version'").Scan(&version)
	if err == nil && version == CurrentSchemaVersion {
		return nil
	}
	if version != "" {
		log.Info().
			Str("current", version).
			Str("target", CurrentSchemaVersion).
			Msg("Migrating lookup cache schema")
	}

	now := d.now().UTC().Format(time.RFC3339)
	_, err = d.db.Exec(`
		INSERT INTO cache_meta (key, value, updated_at) VALUES ('schema_version', ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, CurrentSchemaVersion, now)
	return err
}

// Get returns the entry for key. A missing or expired entry returns (nil, nil).
func (d *DB) Get(key string) (*Entry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return nil, fmt.Errorf("cache database not open")
	}

	var images, fetchedAt, expiresAt string
	err := d.db.QueryRow(
		"SELECT images, fetched_at, expires_at FROM lookups WHERE key = ?", key,
	).Scan(&images, &fetchedAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query lookup: %w", err)
	}

	entry := &Entry{Key: key}
	entry.FetchedAt, _ = time.Parse(time.RFC3339, fetchedAt)
	entry.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt)
	if !d.now().Before(entry.ExpiresAt) {
		return nil, nil
	}

	if err := json.Unmarshal([]byte(images), &entry.Images); err != nil {
		return nil, fmt.Errorf("decode images: %w", err)
	}
	return entry, nil
}

// Put stores images under key for ttl.
func (d *DB) Put(key string, images collage.ImageVariantSet, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return fmt.Errorf("cache database not open")
	}

	if images == nil {
		images = collage.ImageVariantSet{}
	}
	data, err := json.Marshal(images)
	if err != nil {
		return fmt.Errorf("encode images: %w", err)
	}

	now := d.now().UTC()
	_, err = d.db.Exec(`
		INSERT INTO lookups (key, images, fetched_at, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			images = excluded.images,
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at
	`, key, string(data), now.Format(time.RFC3339), now.Add(ttl).Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store lookup: %w", err)
	}
	return nil
}

// Prune deletes expired entries and returns how many were removed.
func (d *DB) Prune() (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return 0, fmt.Errorf("cache database not open")
	}

	res, err := d.db.Exec("DELETE FROM lookups WHERE expires_at <= ?", d.now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("prune lookups: %w", err)
	}
	return res.RowsAffected()
}

// GetStats returns cache statistics.
func (d *DB) GetStats() (*Stats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return nil, fmt.Errorf("cache database not open")
	}

	stats := &Stats{}
	now := d.now().UTC().Format(time.RFC3339)
	if err := d.db.QueryRow("SELECT COUNT(*) FROM lookups").Scan(&stats.Entries); err != nil {
		return nil, err
	}
	if err := d.db.QueryRow("SELECT COUNT(*) FROM lookups WHERE expires_at <= ?", now).Scan(&stats.Expired); err != nil {
		return nil, err
	}
	return stats, nil
}

// Package store provides SQLite persistence for the sitrep pipeline.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type Store struct {
	db *sql.DB
	mu sync.RWMutex // Protects all database operations
}

// Open creates a new Store with the given database path.
// Creates tables if they don't exist.
// Uses WAL mode for better concurrent read performance (file-based DBs only).
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// For in-memory databases, use shared cache mode so all connections
		// in the pool see the same database
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// For in-memory databases, limit to 1 connection to avoid issues
	// with multiple connections getting different databases
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return s, nil
}

// createTables creates the required tables and indexes if they don't exist.
func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS raw_items (
		id TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		provider_id TEXT NOT NULL,
		title TEXT NOT NULL,
		snippet TEXT,
		url TEXT,
		domain TEXT,
		country TEXT,
		lat REAL,
		lon REAL,
		published_at DATETIME NOT NULL,
		fetched_at DATETIME NOT NULL,
		UNIQUE(provider, provider_id)
	);
	CREATE INDEX IF NOT EXISTS idx_raw_items_fetched ON raw_items(fetched_at DESC);

	CREATE TABLE IF NOT EXISTS candidates (
		id TEXT PRIMARY KEY,
		raw_item_id TEXT NOT NULL UNIQUE,
		category TEXT NOT NULL,
		keywords TEXT,  -- JSON array, frequency order
		actors TEXT,    -- JSON array
		title TEXT NOT NULL,
		snippet TEXT,
		url TEXT,
		domain TEXT,
		country TEXT,
		lat REAL,
		lon REAL,
		reported_at DATETIME NOT NULL,
		happened_at DATETIME,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_candidates_reported ON candidates(reported_at);

	CREATE TABLE IF NOT EXISTS clusters (
		id TEXT PRIMARY KEY,
		headline TEXT NOT NULL,
		category TEXT NOT NULL,
		country TEXT,
		lat REAL,
		lon REAL,
		first_seen_at DATETIME NOT NULL,
		last_updated_at DATETIME NOT NULL,
		keywords TEXT,  -- JSON array, pooled
		actors TEXT,    -- JSON array
		sources_count INTEGER DEFAULT 0,
		severity_band INTEGER DEFAULT 1,
		confidence TEXT DEFAULT 'LOW',
		score REAL DEFAULT 0,
		is_active INTEGER DEFAULT 1,
		know TEXT,      -- JSON array of bullets
		unclear TEXT,   -- JSON array of bullets
		why TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_clusters_updated ON clusters(last_updated_at DESC);
	CREATE INDEX IF NOT EXISTS idx_clusters_score ON clusters(score DESC);

	CREATE TABLE IF NOT EXISTS cluster_items (
		cluster_id TEXT NOT NULL,
		candidate_id TEXT NOT NULL UNIQUE,
		PRIMARY KEY (cluster_id, candidate_id)
	);
	CREATE INDEX IF NOT EXISTS idx_cluster_items_cluster ON cluster_items(cluster_id);

	CREATE TABLE IF NOT EXISTS cluster_sources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cluster_id TEXT NOT NULL,
		url TEXT,
		domain TEXT,
		published_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_cluster_sources_cluster ON cluster_sources(cluster_id);

	CREATE TABLE IF NOT EXISTS feed_cache (
		key TEXT PRIMARY KEY,
		payload TEXT NOT NULL,  -- JSON array of cards
		generated_at DATETIME NOT NULL
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
// Thread-safe: acquires write lock to prevent closing during in-flight operations.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// encodeList marshals a string slice for a TEXT column.
// nil and empty encode as "[]" so scans never deal with NULL JSON.
func encodeList(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// decodeList unmarshals a TEXT column back into a string slice.
func decodeList(data string) []string {
	if data == "" || data == "[]" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(data), &list); err != nil {
		return nil
	}
	return list
}

// fromNullFloat converts a nullable column to an optional coordinate.
func fromNullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// toNullFloat converts an optional coordinate for binding.
func toNullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

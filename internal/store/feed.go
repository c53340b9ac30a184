package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/infblueocean/sitrep/internal/model"
)

// UpsertFeedEntry fully replaces one materialized feed view. The payload
// and generation timestamp land in a single upsert, never a patch.
// Thread-safe: acquires write lock.
func (s *Store) UpsertFeedEntry(entry model.FeedEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(entry.Cards)
	if err != nil {
		return fmt.Errorf("encode feed payload: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO feed_cache (key, payload, generated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			payload = excluded.payload,
			generated_at = excluded.generated_at
	`, entry.Key, string(payload), entry.GeneratedAt)
	return err
}

// GetFeedEntry returns one materialized feed view, or nil when the key
// has never been published.
// Thread-safe: acquires read lock.
func (s *Store) GetFeedEntry(key string) (*model.FeedEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entry model.FeedEntry
	var payload string
	err := s.db.QueryRow(
		"SELECT key, payload, generated_at FROM feed_cache WHERE key = ?",
		key,
	).Scan(&entry.Key, &payload, &entry.GeneratedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(payload), &entry.Cards); err != nil {
		return nil, fmt.Errorf("decode feed payload: %w", err)
	}
	return &entry, nil
}

// FeedKeys returns all published feed keys.
// Thread-safe: acquires read lock.
func (s *Store) FeedKeys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT key FROM feed_cache ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/infblueocean/sitrep/internal/model"
)

// SaveRawItems stores raw items, returning count of new items inserted.
// Duplicates (by provider + provider_id) are silently ignored via
// INSERT OR IGNORE, which makes repeated ingestion idempotent.
// Thread-safe: acquires write lock.
func (s *Store) SaveRawItems(items []model.RawItem) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(items) == 0 {
		return 0, nil
	}

	stmt, err := s.db.Prepare(`
		INSERT OR IGNORE INTO raw_items (
			id, provider, provider_id, title, snippet, url, domain,
			country, lat, lon, published_at, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	newCount := 0
	for _, item := range items {
		result, err := stmt.Exec(
			item.ID,
			item.Provider,
			item.ProviderID,
			item.Title,
			item.Snippet,
			item.URL,
			item.Domain,
			item.Country,
			toNullFloat(item.Lat),
			toNullFloat(item.Lon),
			item.PublishedAt,
			item.FetchedAt,
		)
		if err != nil {
			return newCount, err
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return newCount, err
		}
		if affected > 0 {
			newCount++
		}
	}

	return newCount, nil
}

// UnprocessedRawItems returns raw items fetched after since that have no
// EventCandidate yet, oldest first, capped at limit.
// Thread-safe: acquires read lock.
func (s *Store) UnprocessedRawItems(since time.Time, limit int) ([]model.RawItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT r.id, r.provider, r.provider_id, r.title, r.snippet, r.url,
			r.domain, r.country, r.lat, r.lon, r.published_at, r.fetched_at
		FROM raw_items r
		LEFT JOIN candidates c ON c.raw_item_id = r.id
		WHERE c.id IS NULL AND r.fetched_at >= ?
		ORDER BY r.published_at, r.id
		LIMIT ?
	`

	rows, err := s.db.Query(query, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.RawItem
	for rows.Next() {
		var item model.RawItem
		var lat, lon sql.NullFloat64
		err := rows.Scan(
			&item.ID,
			&item.Provider,
			&item.ProviderID,
			&item.Title,
			&item.Snippet,
			&item.URL,
			&item.Domain,
			&item.Country,
			&lat,
			&lon,
			&item.PublishedAt,
			&item.FetchedAt,
		)
		if err != nil {
			return nil, err
		}
		item.Lat = fromNullFloat(lat)
		item.Lon = fromNullFloat(lon)
		items = append(items, item)
	}

	return items, rows.Err()
}

// InsertCandidates bulk-inserts candidates inside one transaction.
// Any uniqueness conflict aborts the whole transaction; callers should
// fall back to InsertCandidateIgnore per item so one conflict does not
// drop the batch.
// Thread-safe: acquires write lock.
func (s *Store) InsertCandidates(cands []model.EventCandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(cands) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin candidate insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(candidateInsertSQL(false))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range cands {
		if _, err := stmt.Exec(candidateArgs(c)...); err != nil {
			return fmt.Errorf("insert candidate %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// InsertCandidateIgnore inserts one candidate, ignoring uniqueness
// conflicts. Returns true if a row was actually inserted.
// Thread-safe: acquires write lock.
func (s *Store) InsertCandidateIgnore(c model.EventCandidate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(candidateInsertSQL(true), candidateArgs(c)...)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// CountCandidates returns the total number of candidates.
// Thread-safe: acquires read lock.
func (s *Store) CountCandidates() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM candidates").Scan(&n)
	return n, err
}

func candidateInsertSQL(ignore bool) string {
	verb := "INSERT"
	if ignore {
		verb = "INSERT OR IGNORE"
	}
	return verb + ` INTO candidates (
		id, raw_item_id, category, keywords, actors, title, snippet, url,
		domain, country, lat, lon, reported_at, happened_at, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
}

func candidateArgs(c model.EventCandidate) []any {
	var happened any
	if c.HappenedAt != nil {
		happened = *c.HappenedAt
	}
	return []any{
		c.ID,
		c.RawItemID,
		string(c.Category),
		encodeList(c.Keywords),
		encodeList(c.Actors),
		c.Title,
		c.Snippet,
		c.URL,
		c.Domain,
		c.Country,
		toNullFloat(c.Lat),
		toNullFloat(c.Lon),
		c.ReportedAt,
		happened,
		c.CreatedAt,
	}
}

// scanCandidate reads one candidate row in candidateSelectCols order.
func scanCandidate(rows *sql.Rows) (model.EventCandidate, error) {
	var c model.EventCandidate
	var keywords, actors string
	var lat, lon sql.NullFloat64
	var happened sql.NullTime
	err := rows.Scan(
		&c.ID,
		&c.RawItemID,
		&c.Category,
		&keywords,
		&actors,
		&c.Title,
		&c.Snippet,
		&c.URL,
		&c.Domain,
		&c.Country,
		&lat,
		&lon,
		&c.ReportedAt,
		&happened,
		&c.CreatedAt,
	)
	if err != nil {
		return c, err
	}
	c.Keywords = decodeList(keywords)
	c.Actors = decodeList(actors)
	c.Lat = fromNullFloat(lat)
	c.Lon = fromNullFloat(lon)
	if happened.Valid {
		t := happened.Time
		c.HappenedAt = &t
	}
	return c, nil
}

const candidateSelectCols = `id, raw_item_id, category, keywords, actors,
	title, snippet, url, domain, country, lat, lon, reported_at,
	happened_at, created_at`

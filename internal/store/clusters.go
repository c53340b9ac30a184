package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/infblueocean/sitrep/internal/model"
)

const clusterSelectCols = `id, headline, category, country, lat, lon,
	first_seen_at, last_updated_at, keywords, actors, sources_count,
	severity_band, confidence, score, is_active, know, unclear, why`

// UnlinkedCandidates returns candidates not yet attached to any cluster,
// in stable order (reported_at, then id) so clustering decisions are
// deterministic across reruns.
// Thread-safe: acquires read lock.
func (s *Store) UnlinkedCandidates(limit int) ([]model.EventCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + candidateSelectCols + `
		FROM candidates
		WHERE id NOT IN (SELECT candidate_id FROM cluster_items)
		ORDER BY reported_at, id
		LIMIT ?
	`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cands []model.EventCandidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		cands = append(cands, c)
	}
	return cands, rows.Err()
}

// ClustersUpdatedSince returns active clusters whose last_updated_at is
// within the lookback window, in stable order (first_seen_at, then id).
// Thread-safe: acquires read lock.
func (s *Store) ClustersUpdatedSince(t time.Time) ([]model.Cluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + clusterSelectCols + `
		FROM clusters
		WHERE is_active = 1 AND last_updated_at >= ?
		ORDER BY first_seen_at, id
	`
	return s.queryClusters(query, t)
}

// CreateCluster inserts a cluster together with its initial membership
// links and provenance rows in one transaction.
// Thread-safe: acquires write lock.
func (s *Store) CreateCluster(c model.Cluster, candidateIDs []string, sources []model.ClusterSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin cluster create: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO clusters (
			id, headline, category, country, lat, lon, first_seen_at,
			last_updated_at, keywords, actors, sources_count, severity_band,
			confidence, score, is_active, know, unclear, why
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID,
		c.Headline,
		string(c.Category),
		c.Country,
		toNullFloat(c.Lat),
		toNullFloat(c.Lon),
		c.FirstSeenAt,
		c.LastUpdatedAt,
		encodeList(c.Keywords),
		encodeList(c.Actors),
		c.SourcesCount,
		c.SeverityBand,
		string(c.Confidence),
		c.Score,
		boolToInt(c.IsActive),
		encodeList(c.KnowBullets),
		encodeList(c.UnclearItems),
		c.WhyText,
	)
	if err != nil {
		return fmt.Errorf("insert cluster: %w", err)
	}

	for _, id := range candidateIDs {
		if _, err := tx.Exec(
			"INSERT INTO cluster_items (cluster_id, candidate_id) VALUES (?, ?)",
			c.ID, id,
		); err != nil {
			return fmt.Errorf("link candidate %s: %w", id, err)
		}
	}

	for _, src := range sources {
		if _, err := tx.Exec(
			"INSERT INTO cluster_sources (cluster_id, url, domain, published_at) VALUES (?, ?, ?, ?)",
			c.ID, src.URL, src.Domain, src.PublishedAt,
		); err != nil {
			return fmt.Errorf("insert source: %w", err)
		}
	}

	return tx.Commit()
}

// AttachCandidate appends a membership link and provenance row and
// advances the cluster's pooled keywords and last_updated_at. The link
// insert uses OR IGNORE: a candidate already linked elsewhere stays
// where it is (attachment is permanent).
// Thread-safe: acquires write lock.
func (s *Store) AttachCandidate(clusterID, candidateID string, src model.ClusterSource, pooledKeywords []string, lastUpdated time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin attach: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		"INSERT OR IGNORE INTO cluster_items (cluster_id, candidate_id) VALUES (?, ?)",
		clusterID, candidateID,
	)
	if err != nil {
		return fmt.Errorf("link candidate: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Already linked (possibly to another cluster) - nothing to do.
		return tx.Commit()
	}

	if _, err := tx.Exec(
		"INSERT INTO cluster_sources (cluster_id, url, domain, published_at) VALUES (?, ?, ?, ?)",
		clusterID, src.URL, src.Domain, src.PublishedAt,
	); err != nil {
		return fmt.Errorf("insert source: %w", err)
	}

	if _, err := tx.Exec(
		"UPDATE clusters SET keywords = ?, last_updated_at = ? WHERE id = ?",
		encodeList(pooledKeywords), lastUpdated, clusterID,
	); err != nil {
		return fmt.Errorf("advance cluster: %w", err)
	}

	return tx.Commit()
}

// ClusterMembers returns all candidates linked to a cluster in
// first-seen order (reported_at, then created_at, then id).
// Thread-safe: acquires read lock.
func (s *Store) ClusterMembers(clusterID string) ([]model.EventCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + candidateSelectCols + `
		FROM candidates
		WHERE id IN (SELECT candidate_id FROM cluster_items WHERE cluster_id = ?)
		ORDER BY reported_at, created_at, id
	`
	rows, err := s.db.Query(query, clusterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cands []model.EventCandidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		cands = append(cands, c)
	}
	return cands, rows.Err()
}

// ClusterDomains returns the distinct non-empty source domains recorded
// for a cluster.
// Thread-safe: acquires read lock.
func (s *Store) ClusterDomains(clusterID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT DISTINCT domain FROM cluster_sources WHERE cluster_id = ? AND domain != '' ORDER BY domain",
		clusterID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// ReplaceAggregates writes a cluster's derived fields in a single UPDATE
// so concurrent readers never observe a half-applied aggregate.
// Thread-safe: acquires write lock.
func (s *Store) ReplaceAggregates(clusterID string, agg model.Aggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE clusters SET
			category = ?, country = ?, lat = ?, lon = ?,
			first_seen_at = ?, last_updated_at = ?,
			keywords = ?, actors = ?, sources_count = ?
		WHERE id = ?
	`,
		string(agg.Category),
		agg.Country,
		toNullFloat(agg.Lat),
		toNullFloat(agg.Lon),
		agg.FirstSeenAt,
		agg.LastUpdatedAt,
		encodeList(agg.Keywords),
		encodeList(agg.Actors),
		agg.SourcesCount,
		clusterID,
	)
	return err
}

// UpdateScore writes a cluster's scoring output in a single UPDATE.
// Thread-safe: acquires write lock.
func (s *Store) UpdateScore(clusterID string, band int, conf model.Confidence, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"UPDATE clusters SET severity_band = ?, confidence = ?, score = ? WHERE id = ?",
		band, string(conf), score, clusterID,
	)
	return err
}

// UpdateSummary writes a cluster's summary output in a single UPDATE.
// Thread-safe: acquires write lock.
func (s *Store) UpdateSummary(clusterID, headline string, know, unclear []string, why string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"UPDATE clusters SET headline = ?, know = ?, unclear = ?, why = ? WHERE id = ?",
		headline, encodeList(know), encodeList(unclear), why, clusterID,
	)
	return err
}

// ScorableClusters returns active clusters with at least one recorded
// source, in stable order.
// Thread-safe: acquires read lock.
func (s *Store) ScorableClusters() ([]model.Cluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + clusterSelectCols + `
		FROM clusters
		WHERE is_active = 1 AND sources_count >= 1
		ORDER BY first_seen_at, id
	`
	return s.queryClusters(query)
}

// ActiveClusters returns all active clusters in stable order.
// Thread-safe: acquires read lock.
func (s *Store) ActiveClusters() ([]model.Cluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + clusterSelectCols + `
		FROM clusters
		WHERE is_active = 1
		ORDER BY first_seen_at, id
	`
	return s.queryClusters(query)
}

// TopClusters returns the highest-scoring active clusters, descending.
// Thread-safe: acquires read lock.
func (s *Store) TopClusters(n int) ([]model.Cluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + clusterSelectCols + `
		FROM clusters
		WHERE is_active = 1
		ORDER BY score DESC, last_updated_at DESC, id
		LIMIT ?
	`
	return s.queryClusters(query, n)
}

// GetCluster returns one cluster by id, or nil when absent.
// Thread-safe: acquires read lock.
func (s *Store) GetCluster(id string) (*model.Cluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + clusterSelectCols + ` FROM clusters WHERE id = ?`
	clusters, err := s.queryClusters(query, id)
	if err != nil {
		return nil, err
	}
	if len(clusters) == 0 {
		return nil, nil
	}
	return &clusters[0], nil
}

// queryClusters executes a query and scans results into Clusters.
// Caller must hold s.mu (read lock is sufficient).
func (s *Store) queryClusters(query string, args ...any) ([]model.Cluster, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clusters []model.Cluster
	for rows.Next() {
		var c model.Cluster
		var lat, lon sql.NullFloat64
		var keywords, actors, know, unclear string
		var activeInt int
		err := rows.Scan(
			&c.ID,
			&c.Headline,
			&c.Category,
			&c.Country,
			&lat,
			&lon,
			&c.FirstSeenAt,
			&c.LastUpdatedAt,
			&keywords,
			&actors,
			&c.SourcesCount,
			&c.SeverityBand,
			&c.Confidence,
			&c.Score,
			&activeInt,
			&know,
			&unclear,
			&c.WhyText,
		)
		if err != nil {
			return nil, err
		}
		c.Lat = fromNullFloat(lat)
		c.Lon = fromNullFloat(lon)
		c.Keywords = decodeList(keywords)
		c.Actors = decodeList(actors)
		c.KnowBullets = decodeList(know)
		c.UnclearItems = decodeList(unclear)
		c.IsActive = activeInt != 0
		clusters = append(clusters, c)
	}

	return clusters, rows.Err()
}

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Config is the persistent application configuration
type Config struct {
	// DBPath is the SQLite database location. Empty means the default
	// under ~/.sitrep.
	DBPath string `json:"db_path"`

	Sources    []SourceConfig   `json:"sources"`
	Ingest     IngestConfig     `json:"ingest"`
	Normalize  NormalizeConfig  `json:"normalize"`
	Clustering ClusteringConfig `json:"clustering"`
	Scoring    ScoringConfig    `json:"scoring"`
	Summary    SummaryConfig    `json:"summary"`
	Feed       FeedConfig       `json:"feed"`
	Server     ServerConfig     `json:"server"`
}

// SourceConfig describes one upstream feed.
type SourceConfig struct {
	Provider string `json:"provider"` // stable provider key, e.g. "reuters-world"
	Name     string `json:"name"`     // display name
	URL      string `json:"url"`
	Country  string `json:"country,omitempty"` // ISO code hint applied to items lacking one
}

// IngestConfig holds fetch behavior settings.
type IngestConfig struct {
	TimeoutSeconds int     `json:"timeout_seconds"`
	MaxConcurrent  int     `json:"max_concurrent"`
	MaxRetries     int     `json:"max_retries"`
	PerHostRPS     float64 `json:"per_host_rps"`
}

// NormalizeConfig bounds the normalizer's work batch.
type NormalizeConfig struct {
	WindowHours int `json:"window_hours"` // only raw items this recent are considered
	BatchLimit  int `json:"batch_limit"`
	MaxKeywords int `json:"max_keywords"` // keyword bag cap per candidate
	MaxActors   int `json:"max_actors"`
}

// ClusteringConfig holds similarity weights and windows.
// Weights must sum to 1; similarity is normalized to [0,1].
type ClusteringConfig struct {
	LookbackHours     int     `json:"lookback_hours"`      // eligible clusters by last_updated_at
	WindowHours       int     `json:"window_hours"`        // time-proximity window vs reported_at
	GeoCapKm          float64 `json:"geo_cap_km"`          // distance where geo proximity reaches 0
	GeoMissingDefault float64 `json:"geo_missing_default"` // tunable, no principled derivation
	AttachThreshold   float64 `json:"attach_threshold"`
	TitleWeight       float64 `json:"title_weight"`
	KeywordWeight     float64 `json:"keyword_weight"`
	TimeWeight        float64 `json:"time_weight"`
	GeoWeight         float64 `json:"geo_weight"`
	TitlePrefixRunes  int     `json:"title_prefix_runes"` // edit-distance bound
	MaxPoolKeywords   int     `json:"max_pool_keywords"`  // pooled keyword cap per cluster
}

// ScoringConfig holds credibility inputs.
type ScoringConfig struct {
	HighTrustDomains []string           `json:"high_trust_domains"`
	DomainAuthority  map[string]float64 `json:"domain_authority"` // per-domain bonus weight
}

// SummaryConfig bounds extractive summaries.
type SummaryConfig struct {
	MinSentenceLen  int `json:"min_sentence_len"`
	MaxSentenceLen  int `json:"max_sentence_len"`
	MaxHeadlineLen  int `json:"max_headline_len"` // beyond this a headline is synthesized
	MaxKnowBullets  int `json:"max_know_bullets"`
	MaxUnclearItems int `json:"max_unclear_items"`
}

// FeedConfig bounds published read views.
type FeedConfig struct {
	Size            int `json:"size"`              // top-N clusters per feed
	CacheTTLSeconds int `json:"cache_ttl_seconds"` // in-process read cache TTL
}

// ServerConfig for the read API.
type ServerConfig struct {
	Addr string `json:"addr"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Sources: []SourceConfig{},
		Ingest: IngestConfig{
			TimeoutSeconds: 30,
			MaxConcurrent:  5,
			MaxRetries:     3,
			PerHostRPS:     1,
		},
		Normalize: NormalizeConfig{
			WindowHours: 48,
			BatchLimit:  500,
			MaxKeywords: 12,
			MaxActors:   12,
		},
		Clustering: ClusteringConfig{
			LookbackHours:     72,
			WindowHours:       48,
			GeoCapKm:          300,
			GeoMissingDefault: 0.5,
			AttachThreshold:   0.70,
			TitleWeight:       0.35,
			KeywordWeight:     0.25,
			TimeWeight:        0.25,
			GeoWeight:         0.15,
			TitlePrefixRunes:  120,
			MaxPoolKeywords:   40,
		},
		Scoring: ScoringConfig{
			HighTrustDomains: []string{
				"reuters.com", "apnews.com", "afp.com", "bbc.com", "bbc.co.uk",
			},
			DomainAuthority: map[string]float64{
				"reuters.com":    10,
				"apnews.com":     10,
				"afp.com":        10,
				"bbc.com":        8,
				"bbc.co.uk":      8,
				"aljazeera.com":  6,
				"theguardian.com": 5,
				"nytimes.com":    5,
			},
		},
		Summary: SummaryConfig{
			MinSentenceLen:  30,
			MaxSentenceLen:  220,
			MaxHeadlineLen:  110,
			MaxKnowBullets:  4,
			MaxUnclearItems: 2,
		},
		Feed: FeedConfig{
			Size:            50,
			CacheTTLSeconds: 30,
		},
		Server: ServerConfig{
			Addr: ":8632",
		},
	}
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".sitrep", "config.json")
}

// DefaultDBPath returns the default database location.
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".sitrep", "sitrep.db")
}

// Load reads config from disk, or returns defaults
func Load() (*Config, error) {
	path := ConfigPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), nil
	}

	return &cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	path := ConfigPath()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ClusterWindow returns the time-proximity window as a Duration.
func (c *ClusteringConfig) ClusterWindow() time.Duration {
	return time.Duration(c.WindowHours) * time.Hour
}

// Lookback returns the eligible-cluster lookback as a Duration.
func (c *ClusteringConfig) Lookback() time.Duration {
	return time.Duration(c.LookbackHours) * time.Hour
}

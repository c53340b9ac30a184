// Package model defines the domain records shared across pipeline stages.
package model

import "time"

// Category classifies what kind of incident a report describes.
type Category string

const (
	CategoryAirstrike    Category = "airstrike"
	CategoryArtillery    Category = "artillery"
	CategoryClash        Category = "clash"
	CategoryExplosion    Category = "explosion"
	CategoryCeasefire    Category = "ceasefire"
	CategoryDiplomacy    Category = "diplomacy"
	CategoryProtest      Category = "protest"
	CategoryHumanitarian Category = "humanitarian"
	CategoryOther        Category = "other"
)

// Confidence labels corroboration strength for a cluster.
type Confidence string

const (
	ConfidenceHigh Confidence = "HIGH"
	ConfidenceMed  Confidence = "MED"
	ConfidenceLow  Confidence = "LOW"
)

// RawItem is an unmodified ingested report from one external feed.
// Immutable once written; (Provider, ProviderID) is unique.
type RawItem struct {
	ID          string
	Provider    string
	ProviderID  string
	Title       string
	Snippet     string
	URL         string
	Domain      string
	Country     string
	Lat         *float64
	Lon         *float64
	PublishedAt time.Time
	FetchedAt   time.Time
}

// HasGeo reports whether both coordinates are present.
func (r *RawItem) HasGeo() bool {
	return r.Lat != nil && r.Lon != nil
}

// EventCandidate is the classified, tagged derivative of exactly one
// RawItem. Created once, immutable thereafter. Title, Snippet, URL and
// Domain are carried from the source item so downstream stages never
// need to rejoin raw_items.
type EventCandidate struct {
	ID         string
	RawItemID  string
	Category   Category
	Keywords   []string // frequency-ranked, capped
	Actors     []string
	Title      string
	Snippet    string
	URL        string
	Domain     string
	Country    string
	Lat        *float64
	Lon        *float64
	ReportedAt time.Time
	HappenedAt *time.Time
	CreatedAt  time.Time
}

// HasGeo reports whether both coordinates are present.
func (c *EventCandidate) HasGeo() bool {
	return c.Lat != nil && c.Lon != nil
}

// Cluster is the system's hypothesis of one real-world incident.
type Cluster struct {
	ID            string
	Headline      string
	Category      Category // majority vote over members
	Country       string
	Lat           *float64 // median over members with geo
	Lon           *float64
	FirstSeenAt   time.Time // min reported_at over members
	LastUpdatedAt time.Time // max reported_at over members
	Keywords      []string  // pooled, capped
	Actors        []string
	SourcesCount  int // distinct non-null source domains
	SeverityBand  int // 1..5
	Confidence    Confidence
	Score         float64 // composite rank score, [0,100]
	IsActive      bool
	KnowBullets   []string
	UnclearItems  []string
	WhyText       string
}

// HasGeo reports whether both aggregated coordinates are present.
func (c *Cluster) HasGeo() bool {
	return c.Lat != nil && c.Lon != nil
}

// ClusterSource is a provenance record appended when a candidate is
// attached; it drives distinct-domain counts.
type ClusterSource struct {
	ClusterID   string
	URL         string
	Domain      string
	PublishedAt time.Time
}

// Aggregate is a complete replacement record for a cluster's derived
// fields, produced by one recompute pass over the full membership.
type Aggregate struct {
	Category      Category
	Country       string
	Lat           *float64
	Lon           *float64
	FirstSeenAt   time.Time
	LastUpdatedAt time.Time
	Keywords      []string
	Actors        []string
	SourcesCount  int
}

// FeedCard is the display projection of one cluster in a published feed.
type FeedCard struct {
	ClusterID    string     `json:"cluster_id"`
	Headline     string     `json:"headline"`
	Category     Category   `json:"category"`
	Country      string     `json:"country,omitempty"`
	SeverityBand int        `json:"severity_band"`
	Confidence   Confidence `json:"confidence"`
	Score        float64    `json:"score"`
	SourcesCount int        `json:"sources_count"`
	FirstSeenAt  time.Time  `json:"first_seen_at"`
	LastSeenAt   time.Time  `json:"last_seen_at"`
}

// FeedEntry is one materialized read view, keyed by scope
// ("global:top", "country:SY"). Fully replaced each publish cycle.
type FeedEntry struct {
	Key         string
	Cards       []FeedCard
	GeneratedAt time.Time
}

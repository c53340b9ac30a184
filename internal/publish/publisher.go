// Package publish materializes ranked, size-bounded read views from
// scored clusters.
package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/infblueocean/sitrep/internal/config"
	"github.com/infblueocean/sitrep/internal/logging"
	"github.com/infblueocean/sitrep/internal/model"
	"github.com/infblueocean/sitrep/internal/store"
)

// GlobalFeedKey is the scope key for the global ranked view.
const GlobalFeedKey = "global:top"

// CountryFeedKey returns the scope key for one country's view.
func CountryFeedKey(country string) string {
	return "country:" + country
}

// Publisher writes the feed cache. Every cycle fully replaces each
// entry; entries are never patched.
type Publisher struct {
	store *store.Store
	cfg   config.FeedConfig
	now   func() time.Time
}

// Result reports what a publish run did.
type Result struct {
	Clusters int // clusters projected into the global feed
	Feeds    int // feed entries replaced (global + per-country)
}

// New creates a Publisher.
func New(s *store.Store, cfg config.FeedConfig) *Publisher {
	return &Publisher{store: s, cfg: cfg, now: time.Now}
}

// Run reads the top-N active clusters by score and atomically replaces
// the global entry plus one entry per country represented in the top-N,
// all stamped with the same fresh generation timestamp.
func (p *Publisher) Run(ctx context.Context) (Result, error) {
	var res Result
	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	clusters, err := p.store.TopClusters(p.cfg.Size)
	if err != nil {
		return res, fmt.Errorf("load top clusters: %w", err)
	}

	generated := p.now()
	cards := make([]model.FeedCard, 0, len(clusters))
	byCountry := make(map[string][]model.FeedCard)
	for _, c := range clusters {
		card := Project(&c)
		cards = append(cards, card)
		if c.Country != "" {
			byCountry[c.Country] = append(byCountry[c.Country], card)
		}
	}

	if err := p.store.UpsertFeedEntry(model.FeedEntry{
		Key:         GlobalFeedKey,
		Cards:       cards,
		GeneratedAt: generated,
	}); err != nil {
		return res, fmt.Errorf("replace global feed: %w", err)
	}
	res.Clusters = len(cards)
	res.Feeds = 1

	for country, countryCards := range byCountry {
		err := p.store.UpsertFeedEntry(model.FeedEntry{
			Key:         CountryFeedKey(country),
			Cards:       countryCards,
			GeneratedAt: generated,
		})
		if err != nil {
			// One country view failing does not invalidate the rest.
			logging.Error("publish: country feed", "country", country, "error", err)
			continue
		}
		res.Feeds++
	}

	return res, nil
}

// Project converts a cluster to its display card. The card always
// carries headline, category, severity, confidence, score and a
// consistent first/last-seen pair.
func Project(c *model.Cluster) model.FeedCard {
	return model.FeedCard{
		ClusterID:    c.ID,
		Headline:     c.Headline,
		Category:     c.Category,
		Country:      c.Country,
		SeverityBand: c.SeverityBand,
		Confidence:   c.Confidence,
		Score:        c.Score,
		SourcesCount: c.SourcesCount,
		FirstSeenAt:  c.FirstSeenAt,
		LastSeenAt:   c.LastUpdatedAt,
	}
}

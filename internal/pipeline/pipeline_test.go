package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/infblueocean/sitrep/internal/config"
	"github.com/infblueocean/sitrep/internal/model"
	"github.com/infblueocean/sitrep/internal/publish"
	"github.com/infblueocean/sitrep/internal/store"
)

func ptr(v float64) *float64 { return &v }

// TestRunFullPipeline drives raw items through every stage and checks
// the published view at the end. No sources are configured, so ingest is
// skipped and the pre-seeded items are the input.
func TestRunFullPipeline(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer st.Close()

	now := time.Now()
	items := []model.RawItem{
		{
			ID: "r1", Provider: "aj", ProviderID: "a1",
			Title:   "Airstrike hits Damascus",
			Snippet: "At least 12 people were killed when warplanes struck the eastern outskirts of Damascus on Tuesday.",
			URL:     "https://aljazeera.com/a1", Domain: "aljazeera.com",
			Country: "SY", Lat: ptr(33.51), Lon: ptr(36.29),
			PublishedAt: now.Add(-3 * time.Hour), FetchedAt: now,
		},
		{
			ID: "r2", Provider: "rt", ProviderID: "b1",
			Title:   "Air strike hits Damascus suburb",
			Snippet: "At least 12 people were killed when warplanes struck the eastern outskirts of Damascus on Tuesday.",
			URL:     "https://reuters.com/b1", Domain: "reuters.com",
			Country: "SY", Lat: ptr(33.48), Lon: ptr(36.35),
			PublishedAt: now.Add(-2 * time.Hour), FetchedAt: now,
		},
		{
			ID: "r3", Provider: "bbc", ProviderID: "c1",
			Title:   "Ceasefire talks resume",
			Snippet: "Negotiators returned to the table for a new round of discussions on Wednesday.",
			URL:     "https://bbc.com/c1", Domain: "bbc.com",
			Country: "SY",
			PublishedAt: now.Add(-time.Hour), FetchedAt: now,
		},
	}
	if _, err := st.SaveRawItems(items); err != nil {
		t.Fatalf("SaveRawItems failed: %v", err)
	}

	cfg := config.DefaultConfig()
	p := New(st, cfg)

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Normalize.Inserted != 3 {
		t.Errorf("normalized %d, want 3", report.Normalize.Inserted)
	}
	if report.Cluster.Created != 2 || report.Cluster.Attached != 1 {
		t.Errorf("cluster created=%d attached=%d, want 2/1",
			report.Cluster.Created, report.Cluster.Attached)
	}
	if report.Score.Scored != 2 {
		t.Errorf("scored %d, want 2", report.Score.Scored)
	}
	if report.Summarize.Summarized != 2 {
		t.Errorf("summarized %d, want 2", report.Summarize.Summarized)
	}
	if report.Publish.Clusters != 2 {
		t.Errorf("published %d clusters, want 2", report.Publish.Clusters)
	}

	feed, err := st.GetFeedEntry(publish.GlobalFeedKey)
	if err != nil {
		t.Fatalf("GetFeedEntry failed: %v", err)
	}
	if feed == nil || len(feed.Cards) != 2 {
		t.Fatalf("global feed = %+v, want 2 cards", feed)
	}
	for _, card := range feed.Cards {
		if card.Headline == "" || card.Score <= 0 {
			t.Errorf("incomplete card: %+v", card)
		}
		if card.Confidence == "" || card.SeverityBand < 1 || card.SeverityBand > 5 {
			t.Errorf("card missing scores: %+v", card)
		}
	}
	// Both strike reports landed in one cluster with two distinct
	// corroborating domains.
	var strike *model.FeedCard
	for i := range feed.Cards {
		if feed.Cards[i].Category == model.CategoryAirstrike {
			strike = &feed.Cards[i]
		}
	}
	if strike == nil {
		t.Fatal("strike cluster missing from feed")
	}
	if strike.SourcesCount != 2 {
		t.Errorf("strike sources_count = %d, want 2", strike.SourcesCount)
	}
	if strike.Country != "SY" {
		t.Errorf("strike country = %s, want SY", strike.Country)
	}

	sy, err := st.GetFeedEntry(publish.CountryFeedKey("SY"))
	if err != nil {
		t.Fatalf("GetFeedEntry failed: %v", err)
	}
	if sy == nil || len(sy.Cards) != 2 {
		t.Fatalf("SY feed = %+v, want 2 cards", sy)
	}

	// Rerunning the whole pipeline is a no-op for membership and card
	// counts; only scores and generation stamps move.
	report, err = p.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if report.Normalize.Inserted != 0 || report.Cluster.Created != 0 || report.Cluster.Attached != 0 {
		t.Errorf("second run not idempotent: %+v", report)
	}
	feed2, err := st.GetFeedEntry(publish.GlobalFeedKey)
	if err != nil {
		t.Fatalf("GetFeedEntry failed: %v", err)
	}
	if len(feed2.Cards) != 2 {
		t.Errorf("second generation has %d cards, want 2", len(feed2.Cards))
	}
}

package publish

import (
	"context"
	"testing"
	"time"

	"github.com/infblueocean/sitrep/internal/config"
	"github.com/infblueocean/sitrep/internal/model"
	"github.com/infblueocean/sitrep/internal/store"
)

func testPublisher(t *testing.T, size int) (*Publisher, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.DefaultConfig().Feed
	cfg.Size = size
	return New(st, cfg), st
}

func seedCluster(t *testing.T, st *store.Store, id, country string, score float64, at time.Time) {
	t.Helper()
	c := model.Cluster{
		ID: id, Headline: "Cluster " + id, Category: model.CategoryClash,
		Country: country, FirstSeenAt: at, LastUpdatedAt: at,
		SourcesCount: 1, SeverityBand: 3, Confidence: model.ConfidenceMed,
		IsActive: true,
	}
	if err := st.CreateCluster(c, nil, nil); err != nil {
		t.Fatalf("CreateCluster failed: %v", err)
	}
	if err := st.UpdateScore(id, 3, model.ConfidenceMed, score); err != nil {
		t.Fatalf("UpdateScore failed: %v", err)
	}
}

func TestRunPublishesRankedViews(t *testing.T) {
	p, st := testPublisher(t, 2)
	t0 := time.Now().Add(-time.Hour)
	p.now = func() time.Time { return t0 }

	seedCluster(t, st, "cl-low", "SY", 40, t0)
	seedCluster(t, st, "cl-top", "SY", 90, t0)
	seedCluster(t, st, "cl-mid", "IQ", 70, t0)

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// Global plus one entry per country in the top-N.
	if res.Clusters != 2 || res.Feeds != 3 {
		t.Fatalf("clusters=%d feeds=%d, want 2/3", res.Clusters, res.Feeds)
	}

	global, err := st.GetFeedEntry(GlobalFeedKey)
	if err != nil {
		t.Fatalf("GetFeedEntry failed: %v", err)
	}
	if global == nil {
		t.Fatal("global feed not published")
	}
	if len(global.Cards) != 2 {
		t.Fatalf("global has %d cards, want size cap 2", len(global.Cards))
	}
	if global.Cards[0].ClusterID != "cl-top" || global.Cards[1].ClusterID != "cl-mid" {
		t.Errorf("global order = %s, %s", global.Cards[0].ClusterID, global.Cards[1].ClusterID)
	}
	if global.Cards[0].Score != 90 || global.Cards[0].SeverityBand != 3 {
		t.Errorf("card fields = %+v", global.Cards[0])
	}

	// Country views contain only that country's top-N slice: cl-low fell
	// outside the global cut and is absent everywhere.
	sy, err := st.GetFeedEntry(CountryFeedKey("SY"))
	if err != nil || sy == nil {
		t.Fatalf("SY feed missing: %v", err)
	}
	if len(sy.Cards) != 1 || sy.Cards[0].ClusterID != "cl-top" {
		t.Errorf("SY cards = %+v", sy.Cards)
	}
	iq, err := st.GetFeedEntry(CountryFeedKey("IQ"))
	if err != nil || iq == nil {
		t.Fatalf("IQ feed missing: %v", err)
	}
	if len(iq.Cards) != 1 || iq.Cards[0].ClusterID != "cl-mid" {
		t.Errorf("IQ cards = %+v", iq.Cards)
	}
}

func TestRunReplacesPreviousGeneration(t *testing.T) {
	p, st := testPublisher(t, 5)
	t0 := time.Now().Add(-time.Hour)

	seedCluster(t, st, "cl-a", "SY", 80, t0)

	p.now = func() time.Time { return t0 }
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	first, err := st.GetFeedEntry(GlobalFeedKey)
	if err != nil || first == nil {
		t.Fatalf("first generation missing: %v", err)
	}

	// A new cluster overtakes and the whole entry is replaced, including
	// a strictly later generation stamp.
	seedCluster(t, st, "cl-b", "SY", 95, t0.Add(time.Minute))
	p.now = func() time.Time { return t0.Add(time.Minute) }
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	second, err := st.GetFeedEntry(GlobalFeedKey)
	if err != nil || second == nil {
		t.Fatalf("second generation missing: %v", err)
	}
	if len(second.Cards) != 2 || second.Cards[0].ClusterID != "cl-b" {
		t.Errorf("second generation cards = %+v", second.Cards)
	}
	if !second.GeneratedAt.After(first.GeneratedAt) {
		t.Errorf("generated_at did not advance: %v -> %v", first.GeneratedAt, second.GeneratedAt)
	}
}

func TestReaderCachesAndInvalidates(t *testing.T) {
	p, st := testPublisher(t, 5)
	t0 := time.Now().Add(-time.Hour)
	p.now = func() time.Time { return t0 }

	seedCluster(t, st, "cl-a", "SY", 80, t0)
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	r := NewReader(st, time.Minute)

	entry, err := r.Feed(GlobalFeedKey)
	if err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if entry == nil || len(entry.Cards) != 1 {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	// Publish a newer generation; the cached copy is served until
	// invalidation.
	seedCluster(t, st, "cl-b", "SY", 95, t0.Add(time.Minute))
	p.now = func() time.Time { return t0.Add(time.Minute) }
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	cached, err := r.Feed(GlobalFeedKey)
	if err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if len(cached.Cards) != 1 {
		t.Errorf("expected cached generation with 1 card, got %d", len(cached.Cards))
	}

	r.Invalidate()
	fresh, err := r.Feed(GlobalFeedKey)
	if err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if len(fresh.Cards) != 2 {
		t.Errorf("expected fresh generation with 2 cards, got %d", len(fresh.Cards))
	}

	// Unpublished scopes read through as nil without caching an entry.
	missing, err := r.Feed(CountryFeedKey("XX"))
	if err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unpublished scope, got %+v", missing)
	}
}

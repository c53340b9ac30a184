package normalize

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/infblueocean/sitrep/internal/config"
	"github.com/infblueocean/sitrep/internal/model"
	"github.com/infblueocean/sitrep/internal/store"
)

func testNormalizer(t *testing.T) (*Normalizer, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return New(st, config.DefaultConfig().Normalize), st
}

func TestClassify(t *testing.T) {
	n, _ := testNormalizer(t)

	tests := []struct {
		text string
		want model.Category
	}{
		{"Airstrike hits Damascus", model.CategoryAirstrike},
		{"Heavy shelling reported along the front line", model.CategoryArtillery},
		{"Car bomb detonated near a market", model.CategoryExplosion},
		{"Gunmen ambush patrol in the north", model.CategoryClash},
		// "ceasefire" outranks "talks" in rule order.
		{"Ceasefire talks resume in Cairo", model.CategoryCeasefire},
		{"Envoy arrives for a new round of negotiations", model.CategoryDiplomacy},
		{"Thousands join protest in the capital", model.CategoryProtest},
		{"Aid convoy reaches displaced families", model.CategoryHumanitarian},
		{"Quiet day across the region", model.CategoryOther},
		// Keyword matching is word-bounded: "warplanes" is not "warplane".
		{"Warplanes circle over the city", model.CategoryOther},
	}
	for _, tt := range tests {
		if got := n.Classify(tt.text); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestExtractKeywords(t *testing.T) {
	// Frequency ranks first; equal counts keep first-occurrence order.
	got := ExtractKeywords("alpha beta gamma delta alpha beta alpha", 3)
	want := []string{"alpha", "beta", "gamma"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractKeywords = %v, want %v", got, want)
	}

	// Stopwords and short tokens never appear.
	got = ExtractKeywords("the strike on at of it strike Damascus", 10)
	want = []string{"strike", "damascus"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractKeywords = %v, want %v", got, want)
	}
}

func TestExtractActors(t *testing.T) {
	// Dictionary keys are scanned in sorted order, so output is stable.
	got := ExtractActors("UN warns as IDF and Hamas exchange fire", 10)
	want := []string{"Hamas", "IDF", "UN"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractActors = %v, want %v", got, want)
	}

	// Aliases collapse to one canonical name.
	got = ExtractActors("Israeli forces say the IDF struck overnight", 10)
	want = []string{"IDF"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractActors alias dedup = %v, want %v", got, want)
	}

	if got := ExtractActors("No known groups mentioned here", 10); len(got) != 0 {
		t.Errorf("expected no actors, got %v", got)
	}
}

func TestRunIdempotent(t *testing.T) {
	n, st := testNormalizer(t)
	now := time.Now()

	items := []model.RawItem{
		{
			ID: "r1", Provider: "wire", ProviderID: "a1",
			Title: "Airstrike hits Damascus", Snippet: "Warplanes struck overnight.",
			Domain: "example.com", PublishedAt: now.Add(-time.Hour), FetchedAt: now,
		},
		{
			ID: "r2", Provider: "wire", ProviderID: "a2",
			Title: "  ", // malformed: skipped, not an error
			Domain: "example.com", PublishedAt: now, FetchedAt: now,
		},
	}
	if _, err := st.SaveRawItems(items); err != nil {
		t.Fatalf("SaveRawItems failed: %v", err)
	}

	res, err := n.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Inserted != 1 || res.Skipped != 1 {
		t.Errorf("first run: inserted=%d skipped=%d, want 1/1", res.Inserted, res.Skipped)
	}

	// A second run finds no pending work for the already-linked item.
	res, err = n.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if res.Inserted != 0 {
		t.Errorf("second run inserted %d candidates, want 0", res.Inserted)
	}

	count, err := st.CountCandidates()
	if err != nil {
		t.Fatalf("CountCandidates failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly 1 candidate, got %d", count)
	}
}

func TestCandidateCarriesSourceFields(t *testing.T) {
	n, st := testNormalizer(t)
	now := time.Now()

	lat, lon := 33.51, 36.29
	item := model.RawItem{
		ID: "r1", Provider: "wire", ProviderID: "a1",
		Title:   "Airstrike hits Damascus",
		Snippet: "IDF warplanes struck overnight, officials said.",
		URL:     "https://example.com/a1", Domain: "example.com",
		Country: "SY", Lat: &lat, Lon: &lon,
		PublishedAt: now.Add(-time.Hour), FetchedAt: now,
	}
	if _, err := st.SaveRawItems([]model.RawItem{item}); err != nil {
		t.Fatalf("SaveRawItems failed: %v", err)
	}
	if _, err := n.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	cands, err := st.UnlinkedCandidates(10)
	if err != nil {
		t.Fatalf("UnlinkedCandidates failed: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}

	c := cands[0]
	if c.Category != model.CategoryAirstrike {
		t.Errorf("category = %s, want airstrike", c.Category)
	}
	if c.Title != item.Title || c.URL != item.URL || c.Domain != item.Domain || c.Country != "SY" {
		t.Errorf("candidate did not carry source fields: %+v", c)
	}
	if !c.HasGeo() || *c.Lat != lat || *c.Lon != lon {
		t.Errorf("candidate did not carry coordinates")
	}
	if len(c.Actors) != 1 || c.Actors[0] != "IDF" {
		t.Errorf("actors = %v, want [IDF]", c.Actors)
	}
	if !c.ReportedAt.Equal(item.PublishedAt.Round(0)) && c.ReportedAt.Unix() != item.PublishedAt.Unix() {
		t.Errorf("reported_at = %v, want %v", c.ReportedAt, item.PublishedAt)
	}
}

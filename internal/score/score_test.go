package score

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/infblueocean/sitrep/internal/config"
	"github.com/infblueocean/sitrep/internal/model"
	"github.com/infblueocean/sitrep/internal/store"
)

func scoringEngine() *Engine {
	return New(nil, config.DefaultConfig().Scoring)
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"baseline", "Delegates meet for a quiet summit", 30},
		{"high term", "Dozens killed overnight", 50},
		{"medium term", "Buildings destroyed in the blast", 40},
		{"high and medium", "Troops killed as shelling continues", 60},
		{"one casualty count", "12 killed in the strike", 30 + 20 + 10},
		{"counts capped at two", "10 killed. 20 people killed. 30 soldiers killed.", 30 + 20 + 20},
	}
	for _, tt := range tests {
		if got := Severity(tt.text); got != tt.want {
			t.Errorf("%s: Severity = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSeverityBand(t *testing.T) {
	tests := []struct {
		severity float64
		want     int
	}{
		{0, 1}, {20, 1}, {30, 2}, {40, 2}, {41, 3}, {60, 3}, {61, 4}, {80, 4}, {81, 5}, {100, 5},
	}
	for _, tt := range tests {
		if got := SeverityBand(tt.severity); got != tt.want {
			t.Errorf("SeverityBand(%v) = %d, want %d", tt.severity, got, tt.want)
		}
	}
}

func TestRecency(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if got := Recency(now, now); got != 100 {
		t.Errorf("zero age = %v, want 100", got)
	}
	// Clock skew: a future update never scores above fresh.
	if got := Recency(now.Add(time.Hour), now); got != 100 {
		t.Errorf("future update = %v, want 100", got)
	}
	// At the e-folding age the score is exactly 100/e.
	got := Recency(now.Add(-10*time.Hour), now)
	if math.Abs(got-100*math.Exp(-1)) > 1e-9 {
		t.Errorf("10h age = %v, want 100/e", got)
	}
	if old := Recency(now.Add(-100*time.Hour), now); old <= 0 || old >= got {
		t.Errorf("100h age = %v, want decayed but positive", old)
	}
}

func TestCredibility(t *testing.T) {
	e := scoringEngine()

	tests := []struct {
		name    string
		domains []string
		want    float64
	}{
		{"no domains", nil, 0},
		{"one unknown domain", []string{"smalltown.example"}, 10},
		{"two unknown domains", []string{"a.example", "b.example"}, 20},
		{"high trust adds flat bonus", []string{"reuters.com"}, 10 + 10 + 10},
		{"domain part caps at 40", []string{"a.example", "b.example", "c.example", "d.example", "e.example"}, 40},
		{"authority caps at 20", []string{"reuters.com", "apnews.com", "afp.com", "bbc.com"}, 40 + 10 + 20},
	}
	for _, tt := range tests {
		if got := e.Credibility(tt.domains); got != tt.want {
			t.Errorf("%s: Credibility = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestConfidenceLabel(t *testing.T) {
	e := scoringEngine()

	tests := []struct {
		name    string
		domains []string
		want    model.Confidence
	}{
		{"no domains", nil, model.ConfidenceLow},
		{"single unknown", []string{"a.example"}, model.ConfidenceLow},
		{"two domains", []string{"a.example", "b.example"}, model.ConfidenceMed},
		{"three domains", []string{"a.example", "b.example", "c.example"}, model.ConfidenceHigh},
		{"single high trust", []string{"reuters.com"}, model.ConfidenceHigh},
	}
	for _, tt := range tests {
		if got := e.ConfidenceLabel(tt.domains); got != tt.want {
			t.Errorf("%s: ConfidenceLabel = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestComposite(t *testing.T) {
	if got := Composite(50, 50, 50); got != 50 {
		t.Errorf("uniform = %v, want 50", got)
	}
	// 0.45*80 + 0.35*70 + 0.20*30 = 66.5
	if got := Composite(80, 70, 30); got != 66.5 {
		t.Errorf("weighted = %v, want 66.5", got)
	}
	if got := Composite(100, 100, 100); got != 100 {
		t.Errorf("max = %v, want 100", got)
	}
}

func TestRunScoresClusters(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer st.Close()

	now := time.Now()
	cand := model.EventCandidate{
		ID: "c1", RawItemID: "r1", Category: model.CategoryAirstrike,
		Title:   "Airstrike hits Damascus",
		Snippet: "At least 12 killed when warplanes struck overnight, officials said.",
		Domain:  "reuters.com", Country: "SY",
		ReportedAt: now.Add(-time.Hour), CreatedAt: now,
	}
	if err := st.InsertCandidates([]model.EventCandidate{cand}); err != nil {
		t.Fatalf("InsertCandidates failed: %v", err)
	}

	cluster := model.Cluster{
		ID: "cl-1", Headline: cand.Title, Category: cand.Category, Country: "SY",
		FirstSeenAt: cand.ReportedAt, LastUpdatedAt: cand.ReportedAt,
		SourcesCount: 1, SeverityBand: 1, Confidence: model.ConfidenceLow, IsActive: true,
	}
	src := model.ClusterSource{ClusterID: cluster.ID, Domain: cand.Domain, PublishedAt: cand.ReportedAt}
	if err := st.CreateCluster(cluster, []string{cand.ID}, []model.ClusterSource{src}); err != nil {
		t.Fatalf("CreateCluster failed: %v", err)
	}

	e := New(st, config.DefaultConfig().Scoring)
	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Scored != 1 || res.Failed != 0 {
		t.Fatalf("scored=%d failed=%d, want 1/0", res.Scored, res.Failed)
	}

	got, err := st.GetCluster(cluster.ID)
	if err != nil {
		t.Fatalf("GetCluster failed: %v", err)
	}
	if got == nil {
		t.Fatal("cluster missing after scoring")
	}

	if got.Score <= 0 || got.Score > 100 {
		t.Errorf("score = %v, want (0,100]", got.Score)
	}
	// One reuters.com source makes the cluster high confidence.
	if got.Confidence != model.ConfidenceHigh {
		t.Errorf("confidence = %s, want HIGH", got.Confidence)
	}
	if got.SeverityBand < 2 || got.SeverityBand > 5 {
		t.Errorf("severity band = %d", got.SeverityBand)
	}

	// Rescoring is idempotent apart from recency drift.
	res, err = e.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if res.Scored != 1 {
		t.Errorf("second run scored %d, want 1", res.Scored)
	}
}

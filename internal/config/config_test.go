package config

import (
	"math"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	w := cfg.Clustering
	if sum := w.TitleWeight + w.KeywordWeight + w.TimeWeight + w.GeoWeight; math.Abs(sum-1) > 1e-9 {
		t.Errorf("similarity weights sum to %v, want 1", sum)
	}
	if w.AttachThreshold <= 0 || w.AttachThreshold >= 1 {
		t.Errorf("attach threshold = %v", w.AttachThreshold)
	}
	if w.ClusterWindow() != 48*time.Hour {
		t.Errorf("cluster window = %v, want 48h", w.ClusterWindow())
	}
	if w.Lookback() != 72*time.Hour {
		t.Errorf("lookback = %v, want 72h", w.Lookback())
	}

	if cfg.Summary.MinSentenceLen >= cfg.Summary.MaxSentenceLen {
		t.Errorf("sentence bounds inverted: %d >= %d",
			cfg.Summary.MinSentenceLen, cfg.Summary.MaxSentenceLen)
	}
	if cfg.Feed.Size <= 0 {
		t.Errorf("feed size = %d", cfg.Feed.Size)
	}
	if len(cfg.Scoring.HighTrustDomains) == 0 {
		t.Error("no high trust domains configured")
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.DBPath = "/tmp/sitrep-test.db"
	cfg.Clustering.AttachThreshold = 0.8
	cfg.Sources = []SourceConfig{{Provider: "wire", Name: "Wire", URL: "https://example.com/rss", Country: "SY"}}

	if err := cfg.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.DBPath != cfg.DBPath {
		t.Errorf("db_path = %q, want %q", loaded.DBPath, cfg.DBPath)
	}
	if loaded.Clustering.AttachThreshold != 0.8 {
		t.Errorf("attach threshold = %v, want 0.8", loaded.Clustering.AttachThreshold)
	}
	if len(loaded.Sources) != 1 || loaded.Sources[0].Provider != "wire" {
		t.Errorf("sources = %+v", loaded.Sources)
	}
}

func TestLoadMissingReturnsDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Clustering.AttachThreshold != DefaultConfig().Clustering.AttachThreshold {
		t.Errorf("missing config did not fall back to defaults: %+v", cfg.Clustering)
	}
}

// Package pipeline orchestrates the ordered stage sequence:
// normalize, cluster (with aggregate recompute), score, summarize,
// publish. Stages hand off only through the store, so any stage can be
// retried or rerun independently after a partial failure.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/infblueocean/sitrep/internal/cluster"
	"github.com/infblueocean/sitrep/internal/config"
	"github.com/infblueocean/sitrep/internal/ingest"
	"github.com/infblueocean/sitrep/internal/logging"
	"github.com/infblueocean/sitrep/internal/metrics"
	"github.com/infblueocean/sitrep/internal/normalize"
	"github.com/infblueocean/sitrep/internal/publish"
	"github.com/infblueocean/sitrep/internal/score"
	"github.com/infblueocean/sitrep/internal/store"
	"github.com/infblueocean/sitrep/internal/summarize"
)

// stageTimeout is the caller-imposed deadline per stage. A timed-out
// stage counts as failed for the run and is safely resumable next run:
// already-linked candidates are excluded from reprocessing and derived
// fields are fully recomputed, never patched.
const stageTimeout = 2 * time.Minute

// Pipeline wires the stages over one shared store.
type Pipeline struct {
	store      *store.Store
	cfg        *config.Config
	fetcher    *ingest.Fetcher
	normalizer *normalize.Normalizer
	clusterer  *cluster.Engine
	scorer     *score.Engine
	summarizer *summarize.Summarizer
	publisher  *publish.Publisher
	reader     *publish.Reader // optional; invalidated after publish
}

// RunReport carries every stage's counters for one run.
type RunReport struct {
	Ingest    ingest.Result
	Normalize normalize.Result
	Cluster   cluster.Result
	Score     score.Result
	Summarize summarize.Result
	Publish   publish.Result
}

// New wires a Pipeline from config.
func New(st *store.Store, cfg *config.Config) *Pipeline {
	return &Pipeline{
		store:      st,
		cfg:        cfg,
		fetcher:    ingest.NewFetcher(cfg.Ingest),
		normalizer: normalize.New(st, cfg.Normalize),
		clusterer:  cluster.New(st, cfg.Clustering),
		scorer:     score.New(st, cfg.Scoring),
		summarizer: summarize.New(st, cfg.Summary),
		publisher:  publish.New(st, cfg.Feed),
	}
}

// SetReader attaches a read cache to invalidate after publishing.
func (p *Pipeline) SetReader(r *publish.Reader) { p.reader = r }

// Ingest fetches configured sources into the raw item table.
func (p *Pipeline) Ingest(ctx context.Context) (ingest.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, stageTimeout)
	defer cancel()

	start := time.Now()
	res, err := p.fetcher.Run(ctx, p.store, p.cfg.Sources)
	metrics.ObserveStage("ingest", time.Since(start).Seconds(), err)
	metrics.CountItems("ingest", "fetched", res.Fetched)
	metrics.CountItems("ingest", "new", res.New)
	logging.Info("ingest done", "fetched", res.Fetched, "new", res.New, "source_errors", res.Errors)
	return res, err
}

// Normalize classifies pending raw items into candidates.
func (p *Pipeline) Normalize(ctx context.Context) (normalize.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, stageTimeout)
	defer cancel()

	start := time.Now()
	res, err := p.normalizer.Run(ctx)
	metrics.ObserveStage("normalize", time.Since(start).Seconds(), err)
	metrics.CountItems("normalize", "inserted", res.Inserted)
	metrics.CountItems("normalize", "skipped", res.Skipped)
	logging.Info("normalize done", "inserted", res.Inserted, "skipped", res.Skipped)
	return res, err
}

// Cluster attaches candidates to clusters and recomputes aggregates.
func (p *Pipeline) Cluster(ctx context.Context) (cluster.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, stageTimeout)
	defer cancel()

	start := time.Now()
	res, err := p.clusterer.Run(ctx)
	metrics.ObserveStage("cluster", time.Since(start).Seconds(), err)
	metrics.CountItems("cluster", "created", res.Created)
	metrics.CountItems("cluster", "attached", res.Attached)
	metrics.CountItems("cluster", "failed", res.Failed)
	logging.Info("cluster done", "created", res.Created, "attached", res.Attached,
		"failed", res.Failed, "recomputed", res.Recomputed)
	return res, err
}

// Score recomputes every scorable cluster's rank scores.
func (p *Pipeline) Score(ctx context.Context) (score.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, stageTimeout)
	defer cancel()

	start := time.Now()
	res, err := p.scorer.Run(ctx)
	metrics.ObserveStage("score", time.Since(start).Seconds(), err)
	metrics.CountItems("score", "scored", res.Scored)
	logging.Info("score done", "scored", res.Scored, "failed", res.Failed)
	return res, err
}

// Summarize rebuilds extractive summaries.
func (p *Pipeline) Summarize(ctx context.Context) (summarize.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, stageTimeout)
	defer cancel()

	start := time.Now()
	res, err := p.summarizer.Run(ctx)
	metrics.ObserveStage("summarize", time.Since(start).Seconds(), err)
	metrics.CountItems("summarize", "summarized", res.Summarized)
	logging.Info("summarize done", "summarized", res.Summarized, "failed", res.Failed)
	return res, err
}

// Publish replaces the materialized feed views.
func (p *Pipeline) Publish(ctx context.Context) (publish.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, stageTimeout)
	defer cancel()

	start := time.Now()
	res, err := p.publisher.Run(ctx)
	metrics.ObserveStage("publish", time.Since(start).Seconds(), err)
	metrics.CountItems("publish", "published", res.Clusters)
	if err == nil && p.reader != nil {
		p.reader.Invalidate()
	}
	logging.Info("publish done", "clusters", res.Clusters, "feeds", res.Feeds)
	return res, err
}

// Run executes the full ordered sequence. A stage-level failure aborts
// only that stage; later stages still run against whatever committed
// state exists, and the joined error reports everything that failed.
func (p *Pipeline) Run(ctx context.Context) (RunReport, error) {
	var report RunReport
	var errs []error

	var err error
	if len(p.cfg.Sources) > 0 {
		if report.Ingest, err = p.Ingest(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if report.Normalize, err = p.Normalize(ctx); err != nil {
		errs = append(errs, err)
	}
	if report.Cluster, err = p.Cluster(ctx); err != nil {
		errs = append(errs, err)
	}
	if report.Score, err = p.Score(ctx); err != nil {
		errs = append(errs, err)
	}
	if report.Summarize, err = p.Summarize(ctx); err != nil {
		errs = append(errs, err)
	}
	if report.Publish, err = p.Publish(ctx); err != nil {
		errs = append(errs, err)
	}

	return report, errors.Join(errs...)
}

// RunLoop runs the pipeline immediately and then on every tick until
// the context is cancelled. Context cancellation is the only stop
// mechanism.
func (p *Pipeline) RunLoop(ctx context.Context, interval time.Duration) {
	if _, err := p.Run(ctx); err != nil {
		logging.Error("pipeline run", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Run(ctx); err != nil {
				logging.Error("pipeline run", "error", err)
			}
		}
	}
}

// Package cluster assigns EventCandidates to incident clusters via
// weighted similarity and recomputes cluster aggregates.
package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/infblueocean/sitrep/internal/config"
	"github.com/infblueocean/sitrep/internal/logging"
	"github.com/infblueocean/sitrep/internal/model"
	"github.com/infblueocean/sitrep/internal/store"
)

// candidateBatchLimit bounds one clustering run.
const candidateBatchLimit = 2000

// Engine attaches candidates to clusters or creates new ones. It is the
// single writer for cluster membership: candidates are processed
// sequentially against a working set the engine alone owns for the run.
type Engine struct {
	store  *store.Store
	cfg    config.ClusteringConfig
	scorer Scorer
	now    func() time.Time
}

// Result reports what a clustering run did.
type Result struct {
	Created    int
	Attached   int
	Failed     int // cluster creates that failed; candidates left unlinked
	Recomputed int
}

// clusterState is one entry in the run's working set. The set has two
// partitions: rows loaded from the store (persisted=true) and clusters
// created earlier in this run (persisted=false), merged for read only.
// Run-local clusters are committed in a single phase at end of run.
type clusterState struct {
	cluster    model.Cluster
	keywordSet map[string]bool
	persisted  bool
	touched    bool

	// Pending membership for run-local clusters, committed at end of run.
	memberIDs []string
	sources   []model.ClusterSource
}

// New creates a clustering Engine.
func New(s *store.Store, cfg config.ClusteringConfig) *Engine {
	return &Engine{
		store:  s,
		cfg:    cfg,
		scorer: NewScorer(cfg),
		now:    time.Now,
	}
}

// Run processes all unlinked candidates: each is attached to the most
// similar eligible cluster (at or above the threshold) or seeds a new
// one. After the batch, every touched cluster gets one full aggregate
// recompute; aggregates are never advanced incrementally per candidate,
// which would make the result depend on processing order.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	var res Result
	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	cands, err := e.store.UnlinkedCandidates(candidateBatchLimit)
	if err != nil {
		return res, fmt.Errorf("load unlinked candidates: %w", err)
	}
	if len(cands) == 0 {
		return res, nil
	}

	lookback := e.now().Add(-e.cfg.Lookback())
	persisted, err := e.store.ClustersUpdatedSince(lookback)
	if err != nil {
		return res, fmt.Errorf("load eligible clusters: %w", err)
	}

	working := make([]*clusterState, 0, len(persisted))
	for _, c := range persisted {
		working = append(working, &clusterState{
			cluster:    c,
			keywordSet: sliceToSet(c.Keywords),
			persisted:  true,
		})
	}

	for i := range cands {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		cand := cands[i]

		best := e.bestMatch(cand, working)
		if best != nil {
			if e.attach(cand, best) {
				res.Attached++
			} else {
				res.Failed++
			}
			continue
		}

		working = append(working, e.seed(cand))
	}

	// Commit phase: persist run-local clusters, each in its own
	// transaction so one failure does not abort the rest.
	touched := make([]string, 0)
	for _, state := range working {
		if state.persisted {
			if state.touched {
				touched = append(touched, state.cluster.ID)
			}
			continue
		}
		if err := e.store.CreateCluster(state.cluster, state.memberIDs, state.sources); err != nil {
			res.Failed++
			logging.Error("cluster: create failed, candidates left unlinked",
				"cluster", state.cluster.ID, "members", len(state.memberIDs), "error", err)
			continue
		}
		res.Created++
		touched = append(touched, state.cluster.ID)
	}

	// One full aggregate recompute per touched cluster.
	for _, id := range touched {
		if err := Reaggregate(e.store, id, e.cfg.MaxPoolKeywords); err != nil {
			logging.Error("cluster: recompute aggregates", "cluster", id, "error", err)
			continue
		}
		res.Recomputed++
	}

	return res, nil
}

// bestMatch scans the working set in stable order (persisted eligibles
// by first_seen then id, run-local creations in creation order) and
// returns the highest-similarity eligible cluster at or above the attach
// threshold. A later cluster must strictly exceed the current best, so
// ties go to the first encountered.
func (e *Engine) bestMatch(cand model.EventCandidate, working []*clusterState) *clusterState {
	var best *clusterState
	var bestScore float64

	for _, state := range working {
		if !e.eligible(cand, state) {
			continue
		}
		score := e.scorer.Similarity(cand, state)
		if best == nil || score > bestScore {
			best = state
			bestScore = score
		}
	}

	if best == nil || bestScore < e.cfg.AttachThreshold {
		return nil
	}
	return best
}

// eligible applies scope pruning before any similarity scoring: country
// must match exactly (or either side be unset) and the candidate's
// reported_at must fall within the time-proximity window of the
// cluster's last update.
func (e *Engine) eligible(cand model.EventCandidate, state *clusterState) bool {
	if cand.Country != "" && state.cluster.Country != "" && cand.Country != state.cluster.Country {
		return false
	}
	dt := cand.ReportedAt.Sub(state.cluster.LastUpdatedAt)
	if dt < 0 {
		dt = -dt
	}
	return dt <= e.cfg.ClusterWindow()
}

// attach links the candidate to the chosen cluster. For persisted
// clusters the link is written immediately; for run-local clusters it is
// recorded in memory and committed with the cluster at end of run.
// Returns false only when a persisted write fails, leaving the candidate
// unlinked for the next run.
func (e *Engine) attach(cand model.EventCandidate, state *clusterState) bool {
	src := model.ClusterSource{
		ClusterID:   state.cluster.ID,
		URL:         cand.URL,
		Domain:      cand.Domain,
		PublishedAt: cand.ReportedAt,
	}

	pooled := extendPool(state.cluster.Keywords, state.keywordSet, cand.Keywords, e.cfg.MaxPoolKeywords)
	last := state.cluster.LastUpdatedAt
	if cand.ReportedAt.After(last) {
		last = cand.ReportedAt
	}

	if state.persisted {
		if err := e.store.AttachCandidate(state.cluster.ID, cand.ID, src, pooled, last); err != nil {
			logging.Error("cluster: attach failed, candidate left unlinked",
				"cluster", state.cluster.ID, "candidate", cand.ID, "error", err)
			return false
		}
	} else {
		state.memberIDs = append(state.memberIDs, cand.ID)
		state.sources = append(state.sources, src)
	}

	state.cluster.Keywords = pooled
	state.cluster.LastUpdatedAt = last
	state.touched = true
	logging.Debug("cluster: attached", "cluster", state.cluster.ID, "candidate", cand.ID)
	return true
}

// seed creates a run-local cluster from the first unmatched candidate in
// its scope. Derived fields are provisional until the recompute pass.
func (e *Engine) seed(cand model.EventCandidate) *clusterState {
	c := model.Cluster{
		ID:            uuid.NewString(),
		Headline:      cand.Title,
		Category:      cand.Category,
		Country:       cand.Country,
		Lat:           cand.Lat,
		Lon:           cand.Lon,
		FirstSeenAt:   cand.ReportedAt,
		LastUpdatedAt: cand.ReportedAt,
		Keywords:      append([]string(nil), cand.Keywords...),
		Actors:        append([]string(nil), cand.Actors...),
		SeverityBand:  1,
		Confidence:    model.ConfidenceLow,
		IsActive:      true,
	}
	if cand.Domain != "" {
		c.SourcesCount = 1
	}

	state := &clusterState{
		cluster:    c,
		keywordSet: sliceToSet(cand.Keywords),
		memberIDs:  []string{cand.ID},
		sources: []model.ClusterSource{{
			ClusterID:   c.ID,
			URL:         cand.URL,
			Domain:      cand.Domain,
			PublishedAt: cand.ReportedAt,
		}},
	}
	logging.Debug("cluster: seeded", "cluster", c.ID, "candidate", cand.ID)
	return state
}

// extendPool appends unseen keywords to the pooled list, capped.
func extendPool(pool []string, poolSet map[string]bool, add []string, cap int) []string {
	out := pool
	for _, kw := range add {
		if poolSet[kw] {
			continue
		}
		if len(out) >= cap {
			break
		}
		poolSet[kw] = true
		out = append(out, kw)
	}
	return out
}

func sliceToSet(list []string) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, v := range list {
		set[v] = true
	}
	return set
}

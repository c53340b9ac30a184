// Package score ranks clusters with an explainable composite of
// severity, credibility and recency sub-scores.
package score

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/infblueocean/sitrep/internal/config"
	"github.com/infblueocean/sitrep/internal/logging"
	"github.com/infblueocean/sitrep/internal/model"
	"github.com/infblueocean/sitrep/internal/store"
	"github.com/infblueocean/sitrep/internal/textutil"
)

// Composite weights. Severity dominates, recency only tips close calls.
const (
	severityWeight    = 0.45
	credibilityWeight = 0.35
	recencyWeight     = 0.20
)

// recencyHalfScaleHours is the e-folding time of the recency decay:
// a cluster last updated 10 hours ago scores 100/e.
const recencyHalfScaleHours = 10.0

// highSeverityTerms signal deadly incidents.
var highSeverityTerms = []string{
	"killed", "dead", "deaths", "fatalities", "massacre", "casualties",
	"death toll",
}

// mediumSeverityTerms signal violence without confirmed deaths.
var mediumSeverityTerms = []string{
	"injured", "wounded", "shelling", "explosion", "strikes", "attack",
	"destroyed",
}

// casualtyPattern matches explicit casualty counts like "12 killed" or
// "at least 30 people wounded".
var casualtyPattern = regexp.MustCompile(`(?i)\b\d+\s+(?:people\s+|civilians\s+|soldiers\s+|troops\s+)?(?:killed|dead|died|injured|wounded)\b`)

// Engine recomputes every cluster's scores from scratch each run, so
// runs are idempotent and order-independent.
type Engine struct {
	store *store.Store
	cfg   config.ScoringConfig
	now   func() time.Time
}

// Result reports what a scoring run did.
type Result struct {
	Scored int
	Failed int
}

// Breakdown carries one cluster's sub-scores for observability.
type Breakdown struct {
	Severity     float64
	SeverityBand int
	Credibility  float64
	Recency      float64
	Composite    float64
	Confidence   model.Confidence
}

// New creates a scoring Engine.
func New(s *store.Store, cfg config.ScoringConfig) *Engine {
	return &Engine{store: s, cfg: cfg, now: time.Now}
}

// Run scores all active clusters with at least one source. Per-cluster
// failures are isolated; a failure to load the work batch is fatal.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	var res Result
	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	clusters, err := e.store.ScorableClusters()
	if err != nil {
		return res, fmt.Errorf("load scorable clusters: %w", err)
	}

	for _, c := range clusters {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		b, err := e.ScoreCluster(&c)
		if err != nil {
			res.Failed++
			logging.Error("score: cluster failed", "cluster", c.ID, "error", err)
			continue
		}
		if err := e.store.UpdateScore(c.ID, b.SeverityBand, b.Confidence, b.Composite); err != nil {
			res.Failed++
			logging.Error("score: write failed", "cluster", c.ID, "error", err)
			continue
		}
		res.Scored++
	}

	return res, nil
}

// ScoreCluster computes the full breakdown for one cluster.
func (e *Engine) ScoreCluster(c *model.Cluster) (Breakdown, error) {
	var b Breakdown

	members, err := e.store.ClusterMembers(c.ID)
	if err != nil {
		return b, fmt.Errorf("load members: %w", err)
	}
	domains, err := e.store.ClusterDomains(c.ID)
	if err != nil {
		return b, fmt.Errorf("load domains: %w", err)
	}

	pooled := pooledText(members)

	b.Severity = Severity(pooled)
	b.SeverityBand = SeverityBand(b.Severity)
	b.Credibility = e.Credibility(domains)
	b.Recency = Recency(c.LastUpdatedAt, e.now())
	b.Composite = Composite(b.Severity, b.Credibility, b.Recency)
	b.Confidence = e.ConfidenceLabel(domains)
	return b, nil
}

// Severity starts from a baseline of 30 and adds keyword and
// casualty-count evidence, capped at 100.
func Severity(pooled string) float64 {
	score := 30.0
	lower := strings.ToLower(pooled)

	if anyTermPresent(lower, highSeverityTerms) {
		score += 20
	}
	if anyTermPresent(lower, mediumSeverityTerms) {
		score += 10
	}

	matches := len(casualtyPattern.FindAllString(pooled, -1))
	if matches > 2 {
		matches = 2
	}
	score += float64(matches) * 10

	if score > 100 {
		score = 100
	}
	return score
}

// SeverityBand maps a severity score to the 1-5 display band.
func SeverityBand(severity float64) int {
	switch {
	case severity <= 20:
		return 1
	case severity <= 40:
		return 2
	case severity <= 60:
		return 3
	case severity <= 80:
		return 4
	default:
		return 5
	}
}

// Credibility rewards distinct corroborating domains, a designated
// high-trust source, and per-domain authority weights.
func (e *Engine) Credibility(domains []string) float64 {
	score := float64(len(domains)) * 10
	if score > 40 {
		score = 40
	}

	if e.hasHighTrust(domains) {
		score += 10
	}

	var authority float64
	for _, d := range domains {
		authority += e.cfg.DomainAuthority[d]
	}
	if authority > 20 {
		authority = 20
	}
	score += authority

	if score > 100 {
		score = 100
	}
	return score
}

// Recency decays exponentially with age: 100·e^(−ageHours/10).
func Recency(lastUpdated, now time.Time) float64 {
	ageHours := now.Sub(lastUpdated).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	return 100 * math.Exp(-ageHours/recencyHalfScaleHours)
}

// Composite blends the sub-scores, rounded to 2 decimals.
func Composite(severity, credibility, recency float64) float64 {
	v := severityWeight*severity + credibilityWeight*credibility + recencyWeight*recency
	return math.Round(v*100) / 100
}

// ConfidenceLabel is a pure function of distinct-domain count and
// high-trust presence: HIGH at 3+ domains or any high-trust source,
// MED at exactly 2 domains, LOW otherwise.
func (e *Engine) ConfidenceLabel(domains []string) model.Confidence {
	if len(domains) >= 3 || e.hasHighTrust(domains) {
		return model.ConfidenceHigh
	}
	if len(domains) == 2 {
		return model.ConfidenceMed
	}
	return model.ConfidenceLow
}

func (e *Engine) hasHighTrust(domains []string) bool {
	for _, d := range domains {
		for _, trusted := range e.cfg.HighTrustDomains {
			if d == trusted {
				return true
			}
		}
	}
	return false
}

func anyTermPresent(lower string, terms []string) bool {
	for _, term := range terms {
		if textutil.ContainsWord(lower, term) {
			return true
		}
	}
	return false
}

func pooledText(members []model.EventCandidate) string {
	var sb strings.Builder
	for _, m := range members {
		sb.WriteString(m.Title)
		sb.WriteString(" ")
		sb.WriteString(m.Snippet)
		sb.WriteString(" ")
	}
	return sb.String()
}

// Package normalize turns raw feed items into classified EventCandidates.
package normalize

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/infblueocean/sitrep/internal/config"
	"github.com/infblueocean/sitrep/internal/logging"
	"github.com/infblueocean/sitrep/internal/model"
	"github.com/infblueocean/sitrep/internal/store"
	"github.com/infblueocean/sitrep/internal/textutil"
)

// Normalizer classifies and tags a bounded batch of raw items.
type Normalizer struct {
	store *store.Store
	cfg   config.NormalizeConfig
	rules []Rule
	now   func() time.Time
}

// Result reports what a normalizer run did.
type Result struct {
	Inserted int
	Skipped  int
}

// New creates a Normalizer using the default classification rules.
func New(s *store.Store, cfg config.NormalizeConfig) *Normalizer {
	return &Normalizer{
		store: s,
		cfg:   cfg,
		rules: DefaultRules,
		now:   time.Now,
	}
}

// Run processes one batch of unlinked raw items. Failing to load the
// work batch is fatal to this stage; everything past that point is
// per-item and never aborts the batch.
func (n *Normalizer) Run(ctx context.Context) (Result, error) {
	var res Result
	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	since := n.now().Add(-time.Duration(n.cfg.WindowHours) * time.Hour)
	items, err := n.store.UnprocessedRawItems(since, n.cfg.BatchLimit)
	if err != nil {
		return res, fmt.Errorf("load work batch: %w", err)
	}

	cands := make([]model.EventCandidate, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.Title) == "" {
			// Malformed input: skipped, not an error.
			res.Skipped++
			logging.Debug("normalize: empty title", "provider", item.Provider, "id", item.ProviderID)
			continue
		}
		cands = append(cands, n.candidateFor(item))
	}

	if len(cands) == 0 {
		return res, nil
	}

	// Bulk insert first; on a uniqueness conflict retry the batch
	// item-by-item so one conflict does not drop the rest.
	if err := n.store.InsertCandidates(cands); err != nil {
		logging.Warn("normalize: bulk insert failed, retrying individually", "error", err)
		for _, c := range cands {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			inserted, err := n.store.InsertCandidateIgnore(c)
			if err != nil {
				res.Skipped++
				logging.Error("normalize: insert candidate", "raw_item", c.RawItemID, "error", err)
				continue
			}
			if inserted {
				res.Inserted++
			} else {
				res.Skipped++
			}
		}
		return res, nil
	}

	res.Inserted = len(cands)
	return res, nil
}

// candidateFor derives the classified, tagged candidate for one item.
func (n *Normalizer) candidateFor(item model.RawItem) model.EventCandidate {
	text := item.Title + " " + item.Snippet
	return model.EventCandidate{
		ID:         uuid.NewString(),
		RawItemID:  item.ID,
		Category:   n.Classify(text),
		Keywords:   ExtractKeywords(text, n.cfg.MaxKeywords),
		Actors:     ExtractActors(text, n.cfg.MaxActors),
		Title:      strings.TrimSpace(item.Title),
		Snippet:    item.Snippet,
		URL:        item.URL,
		Domain:     item.Domain,
		Country:    item.Country,
		Lat:        item.Lat,
		Lon:        item.Lon,
		ReportedAt: item.PublishedAt,
		CreatedAt:  n.now(),
	}
}

// Classify evaluates the ordered rule list against text; first rule with
// any keyword present wins, default "other".
func (n *Normalizer) Classify(text string) model.Category {
	lower := strings.ToLower(text)
	for _, rule := range n.rules {
		for _, kw := range rule.Keywords {
			if textutil.ContainsWord(lower, kw) {
				return rule.Label
			}
		}
	}
	return model.CategoryOther
}

// ExtractKeywords returns the top-max most frequent non-stopword tokens,
// frequency-ranked. Equal counts keep first-occurrence order so the
// result is stable across runs.
func ExtractKeywords(text string, max int) []string {
	tokens := textutil.Tokenize(text)

	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	for i, tok := range tokens {
		if len(tok) < 3 || stopwords[tok] {
			continue
		}
		if _, ok := counts[tok]; !ok {
			firstSeen[tok] = i
		}
		counts[tok]++
	}

	ranked := make([]string, 0, len(counts))
	for tok := range counts {
		ranked = append(ranked, tok)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if counts[ranked[i]] != counts[ranked[j]] {
			return counts[ranked[i]] > counts[ranked[j]]
		}
		return firstSeen[ranked[i]] < firstSeen[ranked[j]]
	})

	if len(ranked) > max {
		ranked = ranked[:max]
	}
	return ranked
}

// ExtractActors returns dictionary entries whose text appears in text,
// case-insensitively on word boundaries, deduplicated by canonical name.
func ExtractActors(text string, max int) []string {
	lower := strings.ToLower(text)

	// Scan dictionary keys in sorted order for deterministic output.
	keys := make([]string, 0, len(actorDictionary))
	for k := range actorDictionary {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seen := make(map[string]bool)
	var actors []string
	for _, k := range keys {
		if !textutil.ContainsWord(lower, k) {
			continue
		}
		name := actorDictionary[k]
		if seen[name] {
			continue
		}
		seen[name] = true
		actors = append(actors, name)
		if len(actors) == max {
			break
		}
	}
	return actors
}

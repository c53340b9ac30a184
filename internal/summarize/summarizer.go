// Package summarize produces extractive headlines and bullet summaries
// for clusters. Every non-template token traces back to member text.
package summarize

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/infblueocean/sitrep/internal/config"
	"github.com/infblueocean/sitrep/internal/logging"
	"github.com/infblueocean/sitrep/internal/model"
	"github.com/infblueocean/sitrep/internal/store"
	"github.com/infblueocean/sitrep/internal/textutil"
)

// knowDedupThreshold rejects a sentence whose token set overlaps an
// already-accepted sentence beyond this Jaccard value.
const knowDedupThreshold = 0.7

// whyTemplates holds the fixed per-category context line. Not inferred
// from member text; these are display boilerplate.
var whyTemplates = map[model.Category]string{
	model.CategoryAirstrike:    "Air operations can mark an escalation in the intensity of a conflict.",
	model.CategoryArtillery:    "Sustained shelling often precedes or accompanies ground operations.",
	model.CategoryClash:        "Ground clashes indicate active contact between armed forces.",
	model.CategoryExplosion:    "Explosions in populated areas often carry significant civilian impact.",
	model.CategoryCeasefire:    "Ceasefire developments can change the trajectory of a conflict.",
	model.CategoryDiplomacy:    "Diplomatic activity can signal shifts in the positions of the parties.",
	model.CategoryProtest:      "Civil unrest can destabilize areas beyond the immediate location.",
	model.CategoryHumanitarian: "Humanitarian developments affect civilian populations directly.",
	model.CategoryOther:        "This incident is being tracked across multiple reports.",
}

// Summarizer extracts display summaries per cluster.
type Summarizer struct {
	store *store.Store
	cfg   config.SummaryConfig
	now   func() time.Time
}

// Result reports what a summarize run did.
type Result struct {
	Summarized int
	Failed     int
}

// Summary is the complete extractive output for one cluster.
type Summary struct {
	Headline string
	Know     []string
	Unclear  []string
	Why      string
}

// New creates a Summarizer.
func New(s *store.Store, cfg config.SummaryConfig) *Summarizer {
	return &Summarizer{store: s, cfg: cfg, now: time.Now}
}

// Run summarizes every active cluster with members. Per-cluster failures
// are isolated; failing to load the work batch is fatal.
func (s *Summarizer) Run(ctx context.Context) (Result, error) {
	var res Result
	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	clusters, err := s.store.ActiveClusters()
	if err != nil {
		return res, fmt.Errorf("load active clusters: %w", err)
	}

	for _, c := range clusters {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		members, err := s.store.ClusterMembers(c.ID)
		if err != nil {
			res.Failed++
			logging.Error("summarize: load members", "cluster", c.ID, "error", err)
			continue
		}
		if len(members) == 0 {
			continue
		}

		sum := s.Summarize(&c, members)
		if err := s.store.UpdateSummary(c.ID, sum.Headline, sum.Know, sum.Unclear, sum.Why); err != nil {
			res.Failed++
			logging.Error("summarize: write failed", "cluster", c.ID, "error", err)
			continue
		}
		res.Summarized++
	}

	return res, nil
}

// Summarize builds the full extractive summary for one cluster.
func (s *Summarizer) Summarize(c *model.Cluster, members []model.EventCandidate) Summary {
	return Summary{
		Headline: s.headline(c, members),
		Know:     s.knowBullets(members),
		Unclear:  s.unclearItems(members),
		Why:      whyText(c.Category),
	}
}

// headline picks the shortest member title containing the most frequent
// title bigram. An implausibly long winner is replaced by a synthesized
// "Bigram — scope" string; when no bigram exists the existing headline
// is kept.
func (s *Summarizer) headline(c *model.Cluster, members []model.EventCandidate) string {
	bigram, ok := topBigram(members)
	if !ok {
		return c.Headline
	}

	best := ""
	for _, m := range members {
		if !containsBigram(m.Title, bigram) {
			continue
		}
		if best == "" || len(m.Title) < len(best) {
			best = m.Title
		}
	}
	if best == "" {
		return c.Headline
	}

	if len(best) > s.cfg.MaxHeadlineLen {
		scope := c.Country
		if scope == "" {
			scope = string(c.Category)
		}
		return fmt.Sprintf("%s — %s", titleCase(bigram), scope)
	}
	return best
}

// knowBullets extracts deduplicated snippet sentences with a provenance
// prefix. The body after the prefix is always verbatim member text.
func (s *Summarizer) knowBullets(members []model.EventCandidate) []string {
	var bullets []string
	var accepted []map[string]bool

	for _, m := range members {
		if m.Snippet == "" {
			continue
		}
		for _, sentence := range splitSentences(m.Snippet) {
			if len(bullets) >= s.cfg.MaxKnowBullets {
				return bullets
			}
			if len(sentence) < s.cfg.MinSentenceLen || len(sentence) > s.cfg.MaxSentenceLen {
				continue
			}
			tokens := textutil.TokenSet(sentence)
			if nearDuplicate(tokens, accepted) {
				continue
			}
			accepted = append(accepted, tokens)
			bullets = append(bullets, prefixBullet(m.Domain, sentence))
		}
	}

	if len(bullets) == 0 {
		// No usable snippets anywhere: one bullet from the first title.
		bullets = append(bullets, prefixBullet(members[0].Domain, members[0].Title))
	}
	return bullets
}

// unclearItems applies fixed rules flagging what the reports leave open.
func (s *Summarizer) unclearItems(members []model.EventCandidate) []string {
	hasSnippets := false
	hasActors := false
	hasGeo := false
	for _, m := range members {
		if m.Snippet != "" {
			hasSnippets = true
		}
		if len(m.Actors) > 0 {
			hasActors = true
		}
		if m.HasGeo() {
			hasGeo = true
		}
	}

	var items []string
	if !hasActors || !hasSnippets {
		items = append(items, "Casualty figures have not been independently confirmed.")
	}
	if !hasSnippets {
		items = append(items, "Reports so far provide limited detail.")
	}
	if !hasGeo {
		items = append(items, "The reported location has not been verified.")
	}

	if len(items) > s.cfg.MaxUnclearItems {
		items = items[:s.cfg.MaxUnclearItems]
	}
	return items
}

func whyText(cat model.Category) string {
	if why, ok := whyTemplates[cat]; ok {
		return why
	}
	return whyTemplates[model.CategoryOther]
}

// topBigram returns the most frequent adjacent token pair across member
// titles. Ties break to the lexicographically smaller pair so reruns
// pick the same headline.
func topBigram(members []model.EventCandidate) (string, bool) {
	counts := make(map[string]int)
	for _, m := range members {
		tokens := textutil.Tokenize(m.Title)
		for i := 0; i+1 < len(tokens); i++ {
			counts[tokens[i]+" "+tokens[i+1]]++
		}
	}
	if len(counts) == 0 {
		return "", false
	}

	bigrams := make([]string, 0, len(counts))
	for bg := range counts {
		bigrams = append(bigrams, bg)
	}
	sort.Slice(bigrams, func(i, j int) bool {
		if counts[bigrams[i]] != counts[bigrams[j]] {
			return counts[bigrams[i]] > counts[bigrams[j]]
		}
		return bigrams[i] < bigrams[j]
	})
	return bigrams[0], true
}

// containsBigram reports whether the title's token sequence contains the
// bigram's two tokens adjacently.
func containsBigram(title, bigram string) bool {
	joined := " " + strings.Join(textutil.Tokenize(title), " ") + " "
	return strings.Contains(joined, " "+bigram+" ")
}

// splitSentences splits prose on terminal punctuation.
func splitSentences(text string) []string {
	var sentences []string
	var sb strings.Builder
	for _, r := range text {
		sb.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(sb.String()); s != "" {
				sentences = append(sentences, s)
			}
			sb.Reset()
		}
	}
	if s := strings.TrimSpace(sb.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// nearDuplicate reports whether tokens overlap any accepted sentence
// beyond the dedup threshold.
func nearDuplicate(tokens map[string]bool, accepted []map[string]bool) bool {
	for _, prev := range accepted {
		if textutil.Jaccard(tokens, prev) > knowDedupThreshold {
			return true
		}
	}
	return false
}

// prefixBullet attributes the body to its source domain when known.
func prefixBullet(domain, body string) string {
	if domain != "" {
		return fmt.Sprintf("According to %s, %s", domain, body)
	}
	return "Reports indicate that " + body
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

package cluster

import (
	"math"
	"time"

	"github.com/infblueocean/sitrep/internal/config"
	"github.com/infblueocean/sitrep/internal/model"
	"github.com/infblueocean/sitrep/internal/textutil"
)

const earthRadiusKm = 6371.0

// Scorer computes the weighted similarity between a candidate and a
// cluster. Each term is normalized to [0,1] before weighting, so the
// total stays in [0,1] as long as the configured weights sum to 1.
type Scorer struct {
	cfg config.ClusteringConfig
}

// NewScorer builds a Scorer from clustering config.
func NewScorer(cfg config.ClusteringConfig) Scorer {
	return Scorer{cfg: cfg}
}

// Similarity scores how likely cand describes the same incident as the
// cluster captured in state.
func (s Scorer) Similarity(cand model.EventCandidate, state *clusterState) float64 {
	title := TitleSimilarity(cand.Title, state.cluster.Headline, s.cfg.TitlePrefixRunes)
	keyword := textutil.Jaccard(textutil.SliceSet(cand.Keywords), state.keywordSet)
	timeProx := TimeProximity(cand.ReportedAt, state.cluster.LastUpdatedAt, s.cfg.ClusterWindow())
	geo := s.geoProximity(cand, state)

	return s.cfg.TitleWeight*title +
		s.cfg.KeywordWeight*keyword +
		s.cfg.TimeWeight*timeProx +
		s.cfg.GeoWeight*geo
}

// geoProximity decays linearly from 1 at 0 km to 0 at the distance cap.
// When either side lacks coordinates the configured default applies; the
// 0.5 default is a tunable constant, not a derived value.
func (s Scorer) geoProximity(cand model.EventCandidate, state *clusterState) float64 {
	if !cand.HasGeo() || !state.cluster.HasGeo() {
		return s.cfg.GeoMissingDefault
	}
	km := HaversineKm(*cand.Lat, *cand.Lon, *state.cluster.Lat, *state.cluster.Lon)
	if km >= s.cfg.GeoCapKm {
		return 0
	}
	return 1 - km/s.cfg.GeoCapKm
}

// TitleSimilarity blends token-set Jaccard with normalized edit-distance
// similarity over a bounded prefix of both titles. The prefix bound
// keeps Levenshtein's quadratic cost in check on pathological titles.
func TitleSimilarity(a, b string, prefixRunes int) float64 {
	jac := textutil.Jaccard(textutil.TokenSet(a), textutil.TokenSet(b))
	edit := editSimilarity(prefix(a, prefixRunes), prefix(b, prefixRunes))
	return 0.5*jac + 0.5*edit
}

// TimeProximity decays linearly from 1 at zero offset to 0 at the
// clustering window length.
func TimeProximity(a, b time.Time, window time.Duration) float64 {
	if window <= 0 {
		return 0
	}
	dt := a.Sub(b)
	if dt < 0 {
		dt = -dt
	}
	if dt >= window {
		return 0
	}
	return 1 - float64(dt)/float64(window)
}

// HaversineKm returns the great-circle distance between two points.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

// editSimilarity maps Levenshtein distance into [0,1]; identical strings
// score 1, disjoint ones approach 0.
func editSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

// levenshtein computes edit distance with a two-row table.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minInt(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func prefix(s string, runes int) string {
	r := []rune(s)
	if len(r) <= runes {
		return s
	}
	return string(r[:runes])
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

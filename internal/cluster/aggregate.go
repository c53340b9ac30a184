package cluster

import (
	"fmt"
	"sort"

	"github.com/infblueocean/sitrep/internal/model"
	"github.com/infblueocean/sitrep/internal/store"
)

// maxActorPool caps the merged actor set per cluster.
const maxActorPool = 12

// ComputeAggregate derives the complete aggregate record for a cluster
// from its full current membership. It is one idempotent function,
// callable from batch-end, repair jobs or manual resync; it never
// patches fields incrementally.
func ComputeAggregate(s *store.Store, clusterID string, maxKeywords int) (model.Aggregate, error) {
	var agg model.Aggregate

	members, err := s.ClusterMembers(clusterID)
	if err != nil {
		return agg, fmt.Errorf("load members: %w", err)
	}
	if len(members) == 0 {
		return agg, fmt.Errorf("cluster %s has no members", clusterID)
	}

	domains, err := s.ClusterDomains(clusterID)
	if err != nil {
		return agg, fmt.Errorf("load domains: %w", err)
	}

	agg.Category = majorityCategory(members)
	agg.Country = majorityCountry(members)
	agg.Lat, agg.Lon = medianGeo(members)
	agg.Keywords = mergeCapped(members, func(c model.EventCandidate) []string { return c.Keywords }, maxKeywords)
	agg.Actors = mergeCapped(members, func(c model.EventCandidate) []string { return c.Actors }, maxActorPool)
	agg.SourcesCount = len(domains)

	agg.FirstSeenAt = members[0].ReportedAt
	agg.LastUpdatedAt = members[0].ReportedAt
	for _, m := range members[1:] {
		if m.ReportedAt.Before(agg.FirstSeenAt) {
			agg.FirstSeenAt = m.ReportedAt
		}
		if m.ReportedAt.After(agg.LastUpdatedAt) {
			agg.LastUpdatedAt = m.ReportedAt
		}
	}

	return agg, nil
}

// Reaggregate recomputes and writes a cluster's aggregate fields as a
// single atomic replacement.
func Reaggregate(s *store.Store, clusterID string, maxKeywords int) error {
	agg, err := ComputeAggregate(s, clusterID, maxKeywords)
	if err != nil {
		return err
	}
	return s.ReplaceAggregates(clusterID, agg)
}

// majorityCategory picks the category with the most members. Ties break
// to the category that appeared first in first-seen order; members are
// already sorted that way by the store.
func majorityCategory(members []model.EventCandidate) model.Category {
	counts := make(map[model.Category]int)
	firstIdx := make(map[model.Category]int)
	for i, m := range members {
		if _, ok := counts[m.Category]; !ok {
			firstIdx[m.Category] = i
		}
		counts[m.Category]++
	}

	best := members[0].Category
	for cat, n := range counts {
		if n > counts[best] || (n == counts[best] && firstIdx[cat] < firstIdx[best]) {
			best = cat
		}
	}
	return best
}

// majorityCountry works like majorityCategory over non-empty countries.
func majorityCountry(members []model.EventCandidate) string {
	counts := make(map[string]int)
	firstIdx := make(map[string]int)
	for i, m := range members {
		if m.Country == "" {
			continue
		}
		if _, ok := counts[m.Country]; !ok {
			firstIdx[m.Country] = i
		}
		counts[m.Country]++
	}
	if len(counts) == 0 {
		return ""
	}

	best := ""
	for country, n := range counts {
		if best == "" || n > counts[best] || (n == counts[best] && firstIdx[country] < firstIdx[best]) {
			best = country
		}
	}
	return best
}

// medianGeo returns the per-axis median over members that have
// coordinates, or nils when none do.
func medianGeo(members []model.EventCandidate) (*float64, *float64) {
	var lats, lons []float64
	for _, m := range members {
		if m.HasGeo() {
			lats = append(lats, *m.Lat)
			lons = append(lons, *m.Lon)
		}
	}
	if len(lats) == 0 {
		return nil, nil
	}

	lat := median(lats)
	lon := median(lons)
	return &lat, &lon
}

func median(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// mergeCapped merges per-member lists preserving first-seen order,
// deduplicated and capped.
func mergeCapped(members []model.EventCandidate, pick func(model.EventCandidate) []string, cap int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range members {
		for _, v := range pick(m) {
			if seen[v] {
				continue
			}
			if len(out) >= cap {
				return out
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

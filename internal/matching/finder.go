package matching

import (
	"sort"

	"github.com/iliyamo/seatswap/internal/model"
)

// Finder ranks a candidate pool against a target listing.  The pool is
// expected to be filtered by the caller (same team, ACTIVE); Finder only
// removes the target itself.
type Finder struct {
	scorer *Scorer
}

// NewFinder returns a Finder that scores with s.
func NewFinder(s *Scorer) *Finder { return &Finder{scorer: s} }

// Find scores every candidate and returns them sorted by descending
// score.  The sort is stable so equal scores keep pool order.  An empty
// pool yields an empty, non-nil slice.
func (f *Finder) Find(target model.Listing, pool []model.Listing) []model.MatchResult {
	out := make([]model.MatchResult, 0, len(pool))
	for _, cand := range pool {
		if cand.ID == target.ID {
			continue
		}
		sc := f.scorer.Score(target, cand)
		out = append(out, model.MatchResult{Listing: cand, Score: sc.Value, Reason: sc.Reason})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Top truncates results to at most n entries.
func Top(results []model.MatchResult, n int) []model.MatchResult {
	if n < 0 {
		n = 0
	}
	if len(results) > n {
		return results[:n]
	}
	return results
}

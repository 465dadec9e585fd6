// Package matching scores pairs of seat listings and ranks candidate
// pools against a target listing.  Everything here is pure: no I/O,
// no clocks, no randomness.
package matching

import (
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/seatswap/internal/model"
)

// PriceTier awards Points when the absolute face value difference is
// strictly below MaxDiffCents.  Tiers are evaluated in order and the
// first one that applies wins.
type PriceTier struct {
	MaxDiffCents int64
	Points       int
}

// Weights holds the additive scoring constants.
type Weights struct {
	SameZone       int
	SameSection    int
	WantZone       int
	WantSection    int
	DateWindowDays int
	PriceTiers     []PriceTier
}

// DefaultWeights returns the production scoring constants.
func DefaultWeights() Weights {
	return Weights{
		SameZone:       3,
		SameSection:    5,
		WantZone:       2,
		WantSection:    3,
		DateWindowDays: 7,
		PriceTiers: []PriceTier{
			{MaxDiffCents: 1000, Points: 3},
			{MaxDiffCents: 2500, Points: 2},
			{MaxDiffCents: 5000, Points: 1},
		},
	}
}

// Score is the outcome of comparing two listings.
type Score struct {
	Value  int
	Reason string
}

// Scorer computes compatibility between two listings.
type Scorer struct {
	w Weights
}

// NewScorer returns a Scorer using w.
func NewScorer(w Weights) *Scorer { return &Scorer{w: w} }

// Score compares candidate against base.  Location matches only count
// for non-empty values so two WANT listings do not match on blank zones.
func (s *Scorer) Score(base, candidate model.Listing) Score {
	var (
		value   int
		reasons []string
	)
	if base.Section != "" && base.Section == candidate.Section {
		value += s.w.SameSection
		reasons = append(reasons, "same section "+base.Section)
	}
	if base.Zone != "" && base.Zone == candidate.Zone {
		value += s.w.SameZone
		reasons = append(reasons, "same zone "+base.Zone)
	}
	if candidate.WantsZone(base.Zone) {
		value += s.w.WantZone
		reasons = append(reasons, "wants zone "+base.Zone)
	}
	if candidate.WantsSection(base.Section) {
		value += s.w.WantSection
		reasons = append(reasons, "wants section "+base.Section)
	}

	days := DaysBetween(base.GameDate, candidate.GameDate)
	if pts := s.DatePoints(days); pts > 0 {
		value += pts
		if days == 0 {
			reasons = append(reasons, "same game date")
		} else {
			reasons = append(reasons, "games "+strconv.Itoa(days)+" day"+plural(days)+" apart")
		}
	}

	if pts := s.PricePoints(base.FaceValueCents, candidate.FaceValueCents); pts > 0 {
		value += pts
		reasons = append(reasons, "similar face value")
	}

	reason := "same team"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, ", ")
	}
	return Score{Value: value, Reason: reason}
}

// DatePoints returns max(0, window - days) for a non-negative day gap.
func (s *Scorer) DatePoints(days int) int {
	if days < 0 {
		days = -days
	}
	if pts := s.w.DateWindowDays - days; pts > 0 {
		return pts
	}
	return 0
}

// PricePoints returns the first tier's points whose bound exceeds the
// absolute difference between a and b.
func (s *Scorer) PricePoints(a, b int64) int {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	for _, t := range s.w.PriceTiers {
		if diff < t.MaxDiffCents {
			return t.Points
		}
	}
	return 0
}

// DaysBetween returns the absolute number of calendar days between the
// UTC dates of a and b.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	days := int(da.Sub(db).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

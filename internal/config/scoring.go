package config

import (
	"strconv"
	"strings"

	"github.com/iliyamo/seatswap/internal/matching"
)

// LoadScoringWeights builds the compatibility weights from SCORE_*
// variables, falling back to matching.DefaultWeights for anything unset
// or malformed.  SCORE_PRICE_TIERS is a comma separated list of
// "maxDiffCents:points" pairs, e.g. "1000:3,2500:2,5000:1".
func LoadScoringWeights() matching.Weights {
	w := matching.DefaultWeights()
	w.SameZone = envInt("SCORE_SAME_ZONE", w.SameZone)
	w.SameSection = envInt("SCORE_SAME_SECTION", w.SameSection)
	w.WantZone = envInt("SCORE_WANT_ZONE", w.WantZone)
	w.WantSection = envInt("SCORE_WANT_SECTION", w.WantSection)
	w.DateWindowDays = envInt("SCORE_DATE_WINDOW_DAYS", w.DateWindowDays)
	if tiers, ok := parsePriceTiers(envStr("SCORE_PRICE_TIERS", "")); ok {
		w.PriceTiers = tiers
	}
	return w
}

func parsePriceTiers(s string) ([]matching.PriceTier, bool) {
	if strings.TrimSpace(s) == "" {
		return nil, false
	}
	var out []matching.PriceTier
	for _, part := range strings.Split(s, ",") {
		bound, pts, found := strings.Cut(strings.TrimSpace(part), ":")
		if !found {
			return nil, false
		}
		maxDiff, err1 := strconv.ParseInt(strings.TrimSpace(bound), 10, 64)
		points, err2 := strconv.Atoi(strings.TrimSpace(pts))
		if err1 != nil || err2 != nil || maxDiff <= 0 {
			return nil, false
		}
		out = append(out, matching.PriceTier{MaxDiffCents: maxDiff, Points: points})
	}
	return out, true
}

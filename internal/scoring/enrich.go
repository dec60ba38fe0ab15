package scoring

import (
	"math"

	"trader-alpha-lab/internal/domain"
)

// ApplyStats merges phase-2 enrichment into the ranked entries in place.
// Scores are not recomputed; enrichment only updates the win rate, the
// stat columns and the audit blob. Entries absent from the map are left
// untouched.
func ApplyStats(entries []*domain.RankedEntry, stats map[string]*domain.AddressStats) {
	for _, e := range entries {
		s, ok := stats[e.Address]
		if !ok || s == nil {
			continue
		}
		if s.WinRate != nil {
			e.WinRate = clamp01(finiteOrZero(*s.WinRate))
		}
		setStatFields(e, s)
		e.Meta.Stats = mergeStats(e.Meta.Stats, s)
		if s.MaxDrawdown != nil {
			e.Meta.APIMaxDrawdown = math.Max(e.Meta.APIMaxDrawdown, finiteOrZero(*s.MaxDrawdown))
		}
	}
}

// Refilter re-evaluates the drawdown hard filter against the enriched
// stat drawdown, drops newly filtered entries, then re-ranks and
// re-weights the survivors. The result is never larger than the input.
func Refilter(entries []*domain.RankedEntry, params domain.ScoringParams, selectCount int) []*domain.RankedEntry {
	survivors := make([]*domain.RankedEntry, 0, len(entries))
	for _, e := range entries {
		if e.StatMaxDrawdown != nil && *e.StatMaxDrawdown > params.MaxDrawdownLimit {
			continue
		}
		survivors = append(survivors, e)
	}
	rankAndWeight(survivors, selectCount)
	return survivors
}

// mergeStats overlays the non-nil fields of next onto prev, returning a
// new blob. Either side may be nil.
func mergeStats(prev, next *domain.AddressStats) *domain.AddressStats {
	if prev == nil {
		if next == nil {
			return nil
		}
		merged := *next
		return &merged
	}
	merged := *prev
	if next == nil {
		return &merged
	}
	if next.WinRate != nil {
		merged.WinRate = next.WinRate
	}
	if next.OpenPosCount != nil {
		merged.OpenPosCount = next.OpenPosCount
	}
	if next.ClosePosCount != nil {
		merged.ClosePosCount = next.ClosePosCount
	}
	if next.AvgPosDuration != nil {
		merged.AvgPosDuration = next.AvgPosDuration
	}
	if next.TotalPnl != nil {
		merged.TotalPnl = next.TotalPnl
	}
	if next.MaxDrawdown != nil {
		merged.MaxDrawdown = next.MaxDrawdown
	}
	return &merged
}

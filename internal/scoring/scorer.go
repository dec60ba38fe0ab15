// Package scoring implements the two-phase trader scoring pipeline:
// phase 1 scores raw leaderboard entries, phase 2 merges enrichment and
// re-filters. All functions are pure: no I/O, no ambient state.
package scoring

import (
	"math"
	"sort"
	"strings"
	"time"

	"trader-alpha-lab/internal/domain"
)

// suspiciousWinRate and suspiciousMinOrders drop traders whose record is
// too perfect to trust: a win rate of effectively 1.0 over enough trades.
const (
	suspiciousWinRate   = 0.999
	suspiciousMinOrders = 10
)

// Score runs phase 1: map every raw entry to a ranked entry, apply the
// hard filters, drop suspicious perfect records, then rank and weight the
// survivors. When the surviving set is empty the pre-drop list is
// returned instead (unless the fallback is disabled), so downstream never
// sees an empty period. The second return value counts the entries
// dropped during mapping, by reason, regardless of the fallback.
func Score(raw []*domain.RawLeaderboardEntry, params domain.ScoringParams, selectCount int) ([]*domain.RankedEntry, map[domain.FilterReason]int) {
	now := time.Now().UnixMilli()

	mapped := make([]*domain.RankedEntry, 0, len(raw))
	for _, r := range raw {
		if r == nil {
			continue
		}
		mapped = append(mapped, mapEntry(r, params, now))
	}

	dropped := make(map[domain.FilterReason]int)
	survivors := make([]*domain.RankedEntry, 0, len(mapped))
	for _, e := range mapped {
		if e.Filtered {
			dropped[e.FilterReason]++
			continue
		}
		if e.WinRate >= suspiciousWinRate && e.ExecutedOrders >= suspiciousMinOrders {
			dropped[domain.FilterSuspiciousRecord]++
			continue
		}
		survivors = append(survivors, e)
	}

	if len(survivors) == 0 {
		if !params.FallbackWhenAllFiltered {
			return nil, dropped
		}
		survivors = mapped
	}

	rankAndWeight(survivors, selectCount)
	return survivors, dropped
}

// mapEntry scores a single raw entry. Hard filter A rejects on the
// API-reported drawdown, hard filter B on the trade count; the pnl-series
// drawdown is re-checked inside computeDetails.
func mapEntry(raw *domain.RawLeaderboardEntry, params domain.ScoringParams, nowMs int64) *domain.RankedEntry {
	address := strings.ToLower(strings.TrimSpace(raw.Address))
	winRate := clamp01(finiteOrZero(raw.WinRate))
	orders := raw.ExecutedOrders
	if orders < 0 {
		orders = 0
	}
	realizedPnl := finiteOrZero(raw.RealizedPnl)

	apiMaxDrawdown := 0.0
	if raw.Stats != nil && raw.Stats.MaxDrawdown != nil {
		apiMaxDrawdown = finiteOrZero(*raw.Stats.MaxDrawdown)
	} else if raw.MaxDrawdown != nil {
		apiMaxDrawdown = finiteOrZero(*raw.MaxDrawdown)
	}

	e := &domain.RankedEntry{
		Address:        address,
		WinRate:        winRate,
		ExecutedOrders: orders,
		RealizedPnl:    realizedPnl,
		Efficiency:     efficiency(realizedPnl, orders),
		Remark:         raw.Remark,
		Labels:         raw.Labels,
		FetchedAt:      nowMs,
		Meta: domain.EntryMeta{
			RawEntry:       raw,
			Stats:          raw.Stats,
			APIMaxDrawdown: apiMaxDrawdown,
		},
	}
	setStatFields(e, raw.Stats)

	if apiMaxDrawdown > params.MaxDrawdownLimit {
		markFiltered(e, domain.FilterMaxDrawdownExceeded)
		e.StatMaxDrawdown = ptr(apiMaxDrawdown)
		return e
	}
	if orders > params.MaxTradesHardLimit {
		markFiltered(e, domain.FilterScalpingPenalty)
		return e
	}

	details, pathFiltered := computeDetails(realizedPnl, orders, winRate, flattenPnlValues(raw.PnlList), params)
	e.Meta.ScoringDetails = &details
	e.StatMaxDrawdown = ptr(math.Max(apiMaxDrawdown, details.MaxDrawdown))

	if pathFiltered {
		markFiltered(e, domain.FilterMaxDrawdownExceeded)
		return e
	}

	e.PnlConsistency = details.SmoothPnlScore
	e.Score = finiteOrZero(details.SmoothPnlComponent + details.WinRateComponent +
		details.PnlComponent + details.TradeFreqComponent)
	return e
}

// rankAndWeight sorts by score descending (address ascending on ties, so
// ranking is deterministic), assigns dense 1-based ranks and normalizes
// weights over the top selectCount entries.
func rankAndWeight(entries []*domain.RankedEntry, selectCount int) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Address < entries[j].Address
	})
	for i, e := range entries {
		e.Rank = i + 1
	}
	assignWeights(entries, selectCount)
}

// assignWeights distributes weight proportionally to max(score, 0) over
// the top-K set. When every top-K score is non-positive all weights are 0;
// otherwise the top-K weights sum to 1.
func assignWeights(entries []*domain.RankedEntry, selectCount int) {
	topK := selectCount
	if topK > len(entries) {
		topK = len(entries)
	}
	if topK < 0 {
		topK = 0
	}

	sum := 0.0
	for i := 0; i < topK; i++ {
		sum += math.Max(entries[i].Score, 0)
	}

	for i, e := range entries {
		if i < topK && sum > 0 {
			e.Weight = math.Max(e.Score, 0) / sum
		} else {
			e.Weight = 0
		}
	}
}

func markFiltered(e *domain.RankedEntry, reason domain.FilterReason) {
	e.Filtered = true
	e.FilterReason = reason
	e.Score = 0
	e.Weight = 0
	e.PnlConsistency = 0
	e.Meta.Filtered = true
	e.Meta.FilterReason = reason
}

// setStatFields copies a stats blob into the entry's nullable stat columns.
// Only fields present in the blob are overwritten.
func setStatFields(e *domain.RankedEntry, s *domain.AddressStats) {
	if s == nil {
		return
	}
	if s.OpenPosCount != nil {
		e.StatOpenPositions = ptr(*s.OpenPosCount)
	}
	if s.ClosePosCount != nil {
		e.StatClosedPositions = ptr(*s.ClosePosCount)
	}
	if s.AvgPosDuration != nil {
		e.StatAvgPosDuration = ptr(*s.AvgPosDuration)
	}
	if s.TotalPnl != nil {
		e.StatTotalPnl = ptr(*s.TotalPnl)
	}
	if s.MaxDrawdown != nil {
		v := finiteOrZero(*s.MaxDrawdown)
		if e.StatMaxDrawdown == nil || v > *e.StatMaxDrawdown {
			e.StatMaxDrawdown = ptr(v)
		}
	}
}

// efficiency is realized pnl per executed order. With zero orders the
// ratio is not taken: the value is the realized pnl itself.
func efficiency(realizedPnl float64, orders int) float64 {
	if orders <= 0 {
		return realizedPnl
	}
	return realizedPnl / float64(orders)
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func ptr[T any](v T) *T {
	return &v
}

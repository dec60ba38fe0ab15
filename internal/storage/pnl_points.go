package storage

import (
	"fmt"

	"trader-alpha-lab/internal/domain"
)

// BuildPnlPoints flattens the persisted pnl series for one period from
// the two available sources: the leaderboard entry's own pnl list
// (window "period_{N}") and the exchange-native portfolio history
// windows matching the period. Duplicate timestamps within one
// (source, window) pair keep the first occurrence.
func BuildPnlPoints(periodDays int, entries []*domain.RankedEntry, seriesByAddr map[string][]domain.WindowSeries) []*domain.PnlPoint {
	var out []*domain.PnlPoint
	hyperbotWindow := fmt.Sprintf("period_%d", periodDays)

	for _, e := range entries {
		if e == nil {
			continue
		}

		if e.Meta.RawEntry != nil {
			seen := make(map[int64]struct{}, len(e.Meta.RawEntry.PnlList))
			for _, p := range e.Meta.RawEntry.PnlList {
				if _, dup := seen[p.TimestampMs]; dup {
					continue
				}
				seen[p.TimestampMs] = struct{}{}
				v := p.Value
				out = append(out, &domain.PnlPoint{
					PeriodDays: periodDays,
					Address:    e.Address,
					Source:     domain.PnlSourceHyperbot,
					WindowName: hyperbotWindow,
					PointTs:    p.TimestampMs,
					PnlValue:   &v,
				})
			}
		}

		for _, ws := range seriesByAddr[e.Address] {
			days, ok := domain.WindowPeriodDays(ws.Window)
			if !ok || days != periodDays {
				continue
			}
			out = append(out, mergeWindow(periodDays, e.Address, ws)...)
		}
	}
	return out
}

// mergeWindow joins one window's pnl and equity series on timestamp.
// Timestamps present in only one series yield a point with the other
// value nil.
func mergeWindow(periodDays int, address string, ws domain.WindowSeries) []*domain.PnlPoint {
	byTs := make(map[int64]*domain.PnlPoint, len(ws.PnlHistory))
	var order []int64

	for _, p := range ws.PnlHistory {
		if existing, ok := byTs[p.TimestampMs]; ok {
			if existing.PnlValue == nil {
				v := p.Value
				existing.PnlValue = &v
			}
			continue
		}
		v := p.Value
		point := &domain.PnlPoint{
			PeriodDays: periodDays,
			Address:    address,
			Source:     domain.PnlSourceHyperliquid,
			WindowName: ws.Window,
			PointTs:    p.TimestampMs,
			PnlValue:   &v,
		}
		byTs[p.TimestampMs] = point
		order = append(order, p.TimestampMs)
	}

	for _, p := range ws.AccountValueHistory {
		if existing, ok := byTs[p.TimestampMs]; ok {
			if existing.EquityValue == nil {
				v := p.Value
				existing.EquityValue = &v
			}
			continue
		}
		v := p.Value
		point := &domain.PnlPoint{
			PeriodDays:  periodDays,
			Address:     address,
			Source:      domain.PnlSourceHyperliquid,
			WindowName:  ws.Window,
			PointTs:     p.TimestampMs,
			EquityValue: &v,
		}
		byTs[p.TimestampMs] = point
		order = append(order, p.TimestampMs)
	}

	out := make([]*domain.PnlPoint, 0, len(order))
	for _, ts := range order {
		out = append(out, byTs[ts])
	}
	return out
}

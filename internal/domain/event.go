package domain

import (
	"fmt"
	"time"
)

// LeaderboardEventMeta carries the ranked snapshot a candidate event
// was derived from.
type LeaderboardEventMeta struct {
	PeriodDays     int      `json:"period_days"`
	Rank           int      `json:"rank"`
	Weight         float64  `json:"weight"`
	Score          float64  `json:"score"`
	WinRate        float64  `json:"winRate"`
	ExecutedOrders int      `json:"executedOrders"`
	RealizedPnl    float64  `json:"realizedPnl"`
	PnlConsistency float64  `json:"pnlConsistency"`
	Efficiency     float64  `json:"efficiency"`
	Labels         []string `json:"labels"`
}

// CandidateEventMeta wraps the leaderboard snapshot for the wire format.
type CandidateEventMeta struct {
	Leaderboard LeaderboardEventMeta `json:"leaderboard"`
}

// CandidateEvent is published to the downstream bus for each selected
// trader after a cycle commits. Delivery is at-most-once.
type CandidateEvent struct {
	Address   string             `json:"address"`
	Source    string             `json:"source"`
	Ts        string             `json:"ts"` // ISO-8601 UTC
	Tags      []string           `json:"tags"`
	Nickname  string             `json:"nickname,omitempty"`
	ScoreHint float64            `json:"score_hint"`
	Meta      CandidateEventMeta `json:"meta"`
}

// NewCandidateEvent builds the event for one ranked entry of a period.
func NewCandidateEvent(e *RankedEntry, period int, now time.Time) *CandidateEvent {
	return &CandidateEvent{
		Address:   e.Address,
		Source:    "daily",
		Ts:        now.UTC().Format(time.RFC3339),
		Tags:      []string{fmt.Sprintf("period:%d", period), "leaderboard"},
		Nickname:  e.Remark,
		ScoreHint: e.Score,
		Meta: CandidateEventMeta{
			Leaderboard: LeaderboardEventMeta{
				PeriodDays:     period,
				Rank:           e.Rank,
				Weight:         e.Weight,
				Score:          e.Score,
				WinRate:        e.WinRate,
				ExecutedOrders: e.ExecutedOrders,
				RealizedPnl:    e.RealizedPnl,
				PnlConsistency: e.PnlConsistency,
				Efficiency:     e.Efficiency,
				Labels:         e.Labels,
			},
		},
	}
}

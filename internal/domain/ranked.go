package domain

// FilterReason identifies which hard filter rejected an entry.
type FilterReason string

const (
	// FilterMaxDrawdownExceeded marks entries whose drawdown (API-reported
	// or derived from the pnl series) exceeds the configured limit.
	FilterMaxDrawdownExceeded FilterReason = "max_drawdown_exceeded"

	// FilterScalpingPenalty marks entries rejected for excessive trade count.
	FilterScalpingPenalty FilterReason = "scalping_penalty"

	// FilterSuspiciousRecord marks entries dropped for a perfect win rate
	// over a non-trivial trade count.
	FilterSuspiciousRecord FilterReason = "suspicious_record"
)

// ScoringDetails holds every intermediate of the composite score.
// All values are finite; degenerate inputs degrade to zeros, never NaN.
type ScoringDetails struct {
	SmoothPnlScore float64 `json:"smoothPnlScore"`
	MaxDrawdown    float64 `json:"maxDrawdown"`
	UlcerIndex     float64 `json:"ulcerIndex"`
	UpFraction     float64 `json:"upFraction"`
	RawWinRate     float64 `json:"rawWinRate"`
	AdjWinRate     float64 `json:"adjWinRate"`
	NormalizedPnl  float64 `json:"normalizedPnl"`
	TradeFreqScore float64 `json:"tradeFreqScore"`

	// Weighted components, already multiplied by their weight.
	SmoothPnlComponent float64 `json:"smoothPnlComponent"`
	WinRateComponent   float64 `json:"winRateComponent"`
	PnlComponent       float64 `json:"pnlComponent"`
	TradeFreqComponent float64 `json:"tradeFreqComponent"`
}

// EntryMeta is the structured audit blob persisted alongside a ranked entry.
type EntryMeta struct {
	RawEntry       *RawLeaderboardEntry `json:"rawEntry,omitempty"`
	ScoringDetails *ScoringDetails      `json:"scoringDetails,omitempty"`
	Stats          *AddressStats        `json:"stats,omitempty"`
	Filtered       bool                 `json:"filtered,omitempty"`
	FilterReason   FilterReason         `json:"filterReason,omitempty"`
	APIMaxDrawdown float64              `json:"apiMaxDrawdown"`
}

// RankedEntry is the scored output for one trader in one period.
// Produced by the scorer, owned by the scheduler until persisted.
type RankedEntry struct {
	Address        string
	Rank           int // 1-based, dense within the surviving set
	Score          float64
	Weight         float64
	Filtered       bool
	FilterReason   FilterReason
	WinRate        float64
	ExecutedOrders int
	RealizedPnl    float64

	// Efficiency is realized pnl per executed order. When no orders were
	// executed it equals the realized pnl itself (the ratio is not taken).
	Efficiency     float64
	PnlConsistency float64
	Remark         string
	Labels         []string

	// Enriched stats, nil until the stats endpoint supplied them
	// (StatMaxDrawdown is set from phase-1 inputs as well).
	StatOpenPositions   *int
	StatClosedPositions *int
	StatAvgPosDuration  *float64 // seconds
	StatTotalPnl        *float64
	StatMaxDrawdown     *float64

	Meta      EntryMeta
	FetchedAt int64 // Unix timestamp in milliseconds
}

package domain

// SeriesPoint is a single (timestamp, value) sample of a pnl or equity series.
// Timestamps are Unix milliseconds; series are chronological ascending.
type SeriesPoint struct {
	TimestampMs int64   `json:"ts"`
	Value       float64 `json:"value"`
}

// AddressStats is the per-trader stats blob from the stats endpoint.
// Every field is optional: upstream may omit it or send a non-numeric
// value, in which case the pointer is nil.
type AddressStats struct {
	WinRate        *float64 `json:"winRate,omitempty"`
	OpenPosCount   *int     `json:"openPosCount,omitempty"`
	ClosePosCount  *int     `json:"closePosCount,omitempty"`
	AvgPosDuration *float64 `json:"avgPosDuration,omitempty"` // seconds
	TotalPnl       *float64 `json:"totalPnl,omitempty"`
	MaxDrawdown    *float64 `json:"maxDrawdown,omitempty"`
}

// RawLeaderboardEntry is one row of an upstream leaderboard page after
// shape coercion but before scoring. It exists only within a refresh cycle.
type RawLeaderboardEntry struct {
	Address        string        `json:"address"`
	WinRate        float64       `json:"winRate"`
	ExecutedOrders int           `json:"executedOrders"`
	RealizedPnl    float64       `json:"realizedPnl"`
	Remark         string        `json:"remark,omitempty"`
	Labels         []string      `json:"labels,omitempty"`
	PnlList        []SeriesPoint `json:"pnlList,omitempty"`

	// MaxDrawdown is the top-level drawdown field some leaderboard
	// payloads carry outside the stats blob.
	MaxDrawdown *float64      `json:"maxDrawdown,omitempty"`
	Stats       *AddressStats `json:"stats,omitempty"`
}

// WindowSeries is one window of the portfolio-history endpoint:
// pnl and account value histories for a named lookback window.
type WindowSeries struct {
	Window              string        `json:"window"`
	PnlHistory          []SeriesPoint `json:"pnlHistory"`
	AccountValueHistory []SeriesPoint `json:"accountValueHistory"`
}

package domain

// PnlSource identifies which upstream a persisted pnl point came from.
type PnlSource string

const (
	// PnlSourceHyperbot marks points synthesized from the leaderboard
	// entry's own pnl list.
	PnlSourceHyperbot PnlSource = "hyperbot"

	// PnlSourceHyperliquid marks points from the exchange-native
	// portfolio-history endpoint.
	PnlSourceHyperliquid PnlSource = "hyperliquid"
)

// PnlPoint is a persisted time-series sample, keyed by
// (period, address, source, window, timestamp). Points are never mutated
// in place: a refresh cycle replaces the whole period.
type PnlPoint struct {
	PeriodDays  int
	Address     string
	Source      PnlSource
	WindowName  string
	PointTs     int64 // Unix timestamp in milliseconds
	PnlValue    *float64
	EquityValue *float64
}

// WindowPeriodDays maps a portfolio-history window name to the
// leaderboard period it covers. Unknown windows map to (0, false).
func WindowPeriodDays(window string) (int, bool) {
	switch window {
	case "day":
		return 1, true
	case "week":
		return 7, true
	case "month":
		return 30, true
	default:
		return 0, false
	}
}

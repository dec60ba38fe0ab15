package domain

// Default scoring parameters.
const (
	DefaultSmoothPnlWeight    = 0.45
	DefaultWinRateWeight      = 0.30
	DefaultPnlWeight          = 0.15
	DefaultTradeFreqWeight    = 0.10
	DefaultOptimalTrades      = 100
	DefaultTradeSigma         = 150
	DefaultPnlReference       = 100_000
	DefaultMaxDrawdownLimit   = 0.80
	DefaultScalpingThreshold  = 100
	DefaultMaxTradesHardLimit = 200
)

// ScoringParams configures the composite scorer. Loaded once at startup
// and treated as read-only for the life of the process.
type ScoringParams struct {
	SmoothPnlWeight float64
	WinRateWeight   float64
	PnlWeight       float64
	TradeFreqWeight float64

	// OptimalTrades and TradeSigma define the trade-count Gaussian.
	OptimalTrades float64
	TradeSigma    float64

	// PnlReference is the denominator of the log pnl normalization.
	PnlReference float64

	// MaxDrawdownLimit is the hard-reject peak-to-trough fraction.
	MaxDrawdownLimit float64

	// ScalpingThreshold starts the progressive trade-count penalty;
	// MaxTradesHardLimit rejects outright.
	ScalpingThreshold  int
	MaxTradesHardLimit int

	// FallbackWhenAllFiltered keeps the legacy behavior of returning the
	// unfiltered list when every candidate fails the hard filters. When
	// false an all-filtered page yields an empty ranking (and therefore
	// zero published candidates).
	FallbackWhenAllFiltered bool
}

// DefaultScoringParams returns the production defaults.
func DefaultScoringParams() ScoringParams {
	return ScoringParams{
		SmoothPnlWeight:         DefaultSmoothPnlWeight,
		WinRateWeight:           DefaultWinRateWeight,
		PnlWeight:               DefaultPnlWeight,
		TradeFreqWeight:         DefaultTradeFreqWeight,
		OptimalTrades:           DefaultOptimalTrades,
		TradeSigma:              DefaultTradeSigma,
		PnlReference:            DefaultPnlReference,
		MaxDrawdownLimit:        DefaultMaxDrawdownLimit,
		ScalpingThreshold:       DefaultScalpingThreshold,
		MaxTradesHardLimit:      DefaultMaxTradesHardLimit,
		FallbackWhenAllFiltered: true,
	}
}

package scoring

import (
	"math"

	"trader-alpha-lab/internal/domain"
)

// flattenPnlValues extracts the numeric values of a pnl series in order,
// dropping non-finite samples but keeping their valid neighbors.
func flattenPnlValues(points []domain.SeriesPoint) []float64 {
	values := make([]float64, 0, len(points))
	for _, p := range points {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			continue
		}
		values = append(values, p.Value)
	}
	return values
}

// smoothPnlStats computes the path-shape statistics of a cumulative pnl
// series: the smooth-pnl score, max drawdown, ulcer index and up fraction.
// Series with fewer than 2 valid points yield all zeros.
func smoothPnlStats(values []float64) (score, maxDrawdown, ulcer, upFraction float64) {
	n := len(values)
	if n < 2 {
		return 0, 0, 0, 0
	}

	// Normalize so the series starts at 0.
	x := make([]float64, n)
	for i, v := range values {
		x[i] = v - values[0]
	}

	peak := x[0]
	sumSqDrawdown := 0.0
	ups := 0
	maxAbs := 0.0
	for i, v := range x {
		if v > peak {
			peak = v
		}
		dd := 0.0
		if peak > 0 {
			dd = (peak - v) / peak
			if dd < 0 {
				dd = 0
			}
		}
		if dd > maxDrawdown {
			maxDrawdown = dd
		}
		sumSqDrawdown += dd * dd
		if i >= 1 && v > x[i-1] {
			ups++
		}
		if abs := math.Abs(v); abs > maxAbs {
			maxAbs = abs
		}
	}

	ulcer = math.Sqrt(sumSqDrawdown / float64(n))
	upFraction = float64(ups) / float64(n-1)

	last := x[n-1]
	r := 0.0
	if last > 0 && maxAbs > 0 {
		r = last / maxAbs
	}
	score = math.Max(0, r) * upFraction / (1 + maxDrawdown + ulcer)

	return finiteOrZero(score), finiteOrZero(maxDrawdown), finiteOrZero(ulcer), finiteOrZero(upFraction)
}

// adjustedWinRate applies Laplace smoothing plus penalties for
// implausibly clean records.
func adjustedWinRate(numWins, numLosses int) float64 {
	base := float64(numWins+1) / float64(numWins+numLosses+2)
	if numLosses == 0 && numWins > 0 {
		return base * 0.7
	}
	if base > 0.95 && numWins+numLosses > 20 {
		return base * 0.8
	}
	return base
}

// normalizedPnl maps realized pnl to [0,1] on a log10 scale against the
// configured reference. Non-positive pnl scores 0.
func normalizedPnl(realizedPnl, reference float64) float64 {
	if realizedPnl <= 0 || reference <= 1 {
		return 0
	}
	v := math.Log10(realizedPnl+1) / math.Log10(reference)
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// tradeFreqScore is a Gaussian centered on the optimal trade count,
// progressively penalized past the scalping threshold.
func tradeFreqScore(numTrades int, params domain.ScoringParams) float64 {
	if numTrades <= 0 {
		return 0
	}
	d := float64(numTrades) - params.OptimalTrades
	base := math.Exp(-(d * d) / (2 * params.TradeSigma * params.TradeSigma))

	if numTrades > params.ScalpingThreshold {
		excess := numTrades - params.ScalpingThreshold
		switch {
		case excess <= 50:
			base *= 0.7
		case excess <= 100:
			base *= 0.4
		case excess <= 200:
			base *= 0.2
		default:
			base *= 0.05
		}
	}
	return finiteOrZero(base)
}

// computeDetails computes the full scoring breakdown for one entry.
// Returns filtered=true when the pnl-series drawdown alone breaches the
// configured limit; components are zeroed in that case but the path
// statistics are kept for the audit blob.
func computeDetails(realizedPnl float64, numTrades int, winRate float64, pnlValues []float64, params domain.ScoringParams) (domain.ScoringDetails, bool) {
	numWins := int(math.Round(float64(numTrades) * winRate))
	numLosses := numTrades - numWins

	smooth, maxDD, ulcer, upFrac := smoothPnlStats(pnlValues)

	details := domain.ScoringDetails{
		SmoothPnlScore: smooth,
		MaxDrawdown:    maxDD,
		UlcerIndex:     ulcer,
		UpFraction:     upFrac,
		RawWinRate:     winRate,
		AdjWinRate:     finiteOrZero(adjustedWinRate(numWins, numLosses)),
		NormalizedPnl:  normalizedPnl(realizedPnl, params.PnlReference),
		TradeFreqScore: tradeFreqScore(numTrades, params),
	}

	if maxDD > params.MaxDrawdownLimit {
		return details, true
	}

	details.SmoothPnlComponent = finiteOrZero(params.SmoothPnlWeight * details.SmoothPnlScore)
	details.WinRateComponent = finiteOrZero(params.WinRateWeight * details.AdjWinRate)
	details.PnlComponent = finiteOrZero(params.PnlWeight * details.NormalizedPnl)
	details.TradeFreqComponent = finiteOrZero(params.TradeFreqWeight * details.TradeFreqScore)

	return details, false
}

func finiteOrZero(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

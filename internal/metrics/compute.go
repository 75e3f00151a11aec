// Package metrics aggregates resolved trade outcomes into strategy statistics.
package metrics

import (
	"math"
	"sort"

	"breakout-lab/internal/domain"
	"breakout-lab/internal/risk"
)

// Compute calculates all aggregate metrics from outcomes.
// Outcomes are sorted by ExitTimestampMs ASC, TradeID ASC before computing
// order-dependent metrics (MaxDrawdownR, MaxConsecutiveLosses).
// Symbol is set only when every outcome has the same symbol.
func Compute(outcomes []domain.OutcomeRecord) *domain.StrategyAggregate {
	n := len(outcomes)
	if n == 0 {
		return &domain.StrategyAggregate{}
	}

	sorted := make([]domain.OutcomeRecord, n)
	copy(sorted, outcomes)
	sortOutcomes(sorted)

	agg := &domain.StrategyAggregate{
		Symbol:      commonSymbol(sorted),
		TotalTrades: n,
	}

	rs := make([]float64, n)
	var mfe, mae, bars float64
	for i, o := range sorted {
		rs[i] = o.RealizedR
		mfe += o.MaxFavorableR
		mae += o.MaxAdverseR
		bars += float64(o.BarsHeld)
		if o.Result.IsWin() {
			agg.Wins++
		}

		switch o.Result {
		case domain.ResultWin3R:
			agg.Win3R++
		case domain.ResultWin2R:
			agg.Win2R++
		case domain.ResultLoss:
			agg.Losses++
		case domain.ResultBreakevenStop:
			agg.BreakevenStops++
		case domain.ResultSessionTimeout:
			agg.SessionTimeouts++
		}
	}
	agg.WinRate = computeWinRate(agg.Wins, n)

	sortedR := make([]float64, n)
	copy(sortedR, rs)
	sort.Float64s(sortedR)

	mean := computeMean(rs)
	agg.MeanR = mean
	agg.MedianR = computePercentile(sortedR, 0.50)
	agg.P10R = computePercentile(sortedR, 0.10)
	agg.P90R = computePercentile(sortedR, 0.90)
	agg.MinR = sortedR[0]
	agg.MaxR = sortedR[n-1]
	agg.StddevR = computeStddev(rs, mean)
	agg.TotalR = risk.RoundR(sum(rs))
	agg.Expectancy = risk.RoundR(mean)

	agg.MaxDrawdownR = computeMaxDrawdown(rs)
	agg.MaxConsecutiveLosses = computeMaxConsecutiveLosses(rs)

	agg.MeanMaxFavorableR = mfe / float64(n)
	agg.MeanMaxAdverseR = mae / float64(n)
	agg.MeanBarsHeld = bars / float64(n)
	return agg
}

// sortOutcomes orders outcomes by exit time, then trade ID, then session.
func sortOutcomes(outcomes []domain.OutcomeRecord) {
	sort.SliceStable(outcomes, func(i, j int) bool {
		a, b := outcomes[i], outcomes[j]
		if a.ExitTimestampMs != b.ExitTimestampMs {
			return a.ExitTimestampMs < b.ExitTimestampMs
		}
		if a.TradeID != b.TradeID {
			return a.TradeID < b.TradeID
		}
		return a.SessionID < b.SessionID
	})
}

func commonSymbol(outcomes []domain.OutcomeRecord) string {
	symbol := outcomes[0].Symbol
	for _, o := range outcomes[1:] {
		if o.Symbol != symbol {
			return ""
		}
	}
	return symbol
}

// computeWinRate calculates win rate as wins / total.
func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC; p is a fraction (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown calculates the worst peak-to-trough drop of the
// cumulative R curve. rs must be in chronological order.
func computeMaxDrawdown(rs []float64) float64 {
	cumulative := 0.0
	peak := 0.0
	maxDrawdown := 0.0

	for _, r := range rs {
		cumulative += r
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}

// computeMaxConsecutiveLosses finds the longest streak of negative R.
// Breakeven exits end a streak.
func computeMaxConsecutiveLosses(rs []float64) int {
	maxStreak := 0
	current := 0

	for _, r := range rs {
		if r < 0 {
			current++
			if current > maxStreak {
				maxStreak = current
			}
		} else {
			current = 0
		}
	}
	return maxStreak
}

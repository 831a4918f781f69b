package metrics

import (
	"math"
	"sort"

	"signal-leaderboard/internal/domain"
)

// HoursPerYear annualizes hourly figures.
const HoursPerYear = 8760

// Policy holds the leaderboard thresholds applied to the Sharpe ratio.
type Policy struct {
	// MinSharpeObservations is the minimum number of segments in a window
	// before a Sharpe ratio is reported.
	MinSharpeObservations int

	// MaturityRampHours is the window length at which the Sharpe ratio is
	// reported at full weight; shorter windows are scaled linearly.
	MaturityRampHours float64
}

// DefaultPolicy is the production leaderboard policy.
var DefaultPolicy = Policy{
	MinSharpeObservations: 24,
	MaturityRampHours:     720,
}

// ComputeWindowStats derives one window's statistics from a strategy's
// segments as of now. The result has no StrategyID set.
//
// A window with no segments yields a neutral row: zero return and drawdown,
// nil Sharpe and volatility.
func ComputeWindowStats(segments []*domain.Segment, window domain.Window, now int64, policy Policy) *domain.StrategyStats {
	stats := &domain.StrategyStats{
		Window:        window,
		LastUpdatedTs: now,
	}

	sorted := sortByEnd(segments)
	start := windowStart(sorted, window, now)
	if start == len(sorted) {
		return stats
	}
	slice := sorted[start:]

	base := 1.0
	if start > 0 {
		base = sorted[start-1].ValueIndexEnd
	}
	final := slice[len(slice)-1].ValueIndexEnd

	if base > 0 {
		stats.TotalReturn = final/base - 1
		stats.MaxDrawdown = computeMaxDrawdown(slice, base)
	}

	totalHours := 0.0
	returns := make([]float64, len(slice))
	for i, seg := range slice {
		totalHours += float64(seg.DurationSec) / domain.SecondsPerHour
		returns[i] = seg.HourlyEquivReturn
	}

	if len(returns) < 2 || totalHours <= 0 {
		return stats
	}

	sigma := computeStddev(returns, computeMean(returns))
	if sigma <= 0 || !isFinite(sigma) {
		return stats
	}
	stats.VolHourly = float64Ptr(sigma)
	stats.VolAnnual = float64Ptr(sigma * math.Sqrt(HoursPerYear))

	if len(returns) < policy.MinSharpeObservations {
		return stats
	}

	logReturn := math.Log(final) - math.Log(base)
	if !isFinite(logReturn) {
		return stats
	}
	mu := logReturn / totalHours
	sharpe := mu / sigma * math.Sqrt(HoursPerYear) * maturity(totalHours, policy.MaturityRampHours)
	if isFinite(sharpe) {
		stats.SharpeAnnual = float64Ptr(sharpe)
	}
	return stats
}

// ComputeAllWindows computes every window in display order.
func ComputeAllWindows(segments []*domain.Segment, now int64, policy Policy) []*domain.StrategyStats {
	sorted := sortByEnd(segments)
	out := make([]*domain.StrategyStats, 0, len(domain.AllWindows))
	for _, w := range domain.AllWindows {
		out = append(out, ComputeWindowStats(sorted, w, now, policy))
	}
	return out
}

// windowStart returns the index of the first segment with EndTs >= now - window.
func windowStart(sorted []*domain.Segment, window domain.Window, now int64) int {
	secs := window.Seconds()
	if secs == 0 {
		return 0
	}
	cutoff := now - secs
	return sort.Search(len(sorted), func(i int) bool {
		return sorted[i].EndTs >= cutoff
	})
}

func sortByEnd(segments []*domain.Segment) []*domain.Segment {
	out := make([]*domain.Segment, 0, len(segments))
	for _, s := range segments {
		if s != nil {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EndTs < out[j].EndTs
	})
	return out
}

// maturity ramps linearly from 0 to 1 over rampHours.
func maturity(totalHours, rampHours float64) float64 {
	if rampHours <= 0 {
		return 1
	}
	return math.Max(0, math.Min(1, totalHours/rampHours))
}

// computeMean calculates arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
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

// computeMaxDrawdown walks the value index normalized to base and returns
// the worst fractional decline from a running peak that starts at 1.0.
func computeMaxDrawdown(segments []*domain.Segment, base float64) float64 {
	peak := 1.0
	maxDrawdown := 0.0

	for _, s := range segments {
		equity := s.ValueIndexEnd / base
		if equity > peak {
			peak = equity
		}
		drawdown := (peak - equity) / peak
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func float64Ptr(v float64) *float64 {
	return &v
}

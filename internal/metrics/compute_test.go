package metrics

import (
	"math"
	"testing"

	"signal-leaderboard/internal/domain"
)

const now = int64(1_700_000_000 / 3600 * 3600)

// buildSegments creates consecutive hourly segments ending at end with the
// given raw returns, compounding the value index from start.
func buildSegments(end int64, start float64, returns ...float64) []*domain.Segment {
	segs := make([]*domain.Segment, len(returns))
	vi := start
	t := end - int64(len(returns))*domain.SecondsPerHour
	for i, r := range returns {
		vi *= 1 + r
		segs[i] = &domain.Segment{
			StrategyID:        "s1",
			StartTs:           t,
			EndTs:             t + domain.SecondsPerHour,
			DurationSec:       domain.SecondsPerHour,
			RawReturn:         r,
			HourlyEquivReturn: r,
			ValueIndexEnd:     vi,
		}
		t += domain.SecondsPerHour
	}
	return segs
}

func alternating(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = 0.01
		} else {
			out[i] = -0.004
		}
	}
	return out
}

func TestComputeWindowStats_SharpeNeeds24Observations(t *testing.T) {
	segs := buildSegments(now, 1.0, alternating(23)...)

	stats := ComputeWindowStats(segs, domain.WindowAll, now, DefaultPolicy)

	if stats.SharpeAnnual != nil {
		t.Errorf("expected nil Sharpe with 23 observations, got %f", *stats.SharpeAnnual)
	}
	if stats.VolHourly == nil || stats.VolAnnual == nil {
		t.Fatal("expected volatility with 23 observations")
	}
}

func TestComputeWindowStats_MaturityScaling(t *testing.T) {
	returns := alternating(24)
	segs := buildSegments(now, 1.0, returns...)

	stats := ComputeWindowStats(segs, domain.WindowAll, now, DefaultPolicy)
	if stats.SharpeAnnual == nil {
		t.Fatal("expected Sharpe with 24 observations")
	}

	sigma := computeStddev(returns, computeMean(returns))
	mu := math.Log(segs[len(segs)-1].ValueIndexEnd) / 24
	raw := mu / sigma * math.Sqrt(HoursPerYear)

	want := raw * 24.0 / 720.0
	if math.Abs(*stats.SharpeAnnual-want) > 1e-9 {
		t.Errorf("SharpeAnnual = %f, want %f", *stats.SharpeAnnual, want)
	}

	full := ComputeWindowStats(segs, domain.WindowAll, now, Policy{MinSharpeObservations: 24, MaturityRampHours: 24})
	if math.Abs(*full.SharpeAnnual-raw) > 1e-9 {
		t.Errorf("unscaled SharpeAnnual = %f, want %f", *full.SharpeAnnual, raw)
	}
}

func TestComputeWindowStats_Volatility(t *testing.T) {
	returns := []float64{0.01, -0.01, 0.02, 0.0}
	segs := buildSegments(now, 1.0, returns...)

	stats := ComputeWindowStats(segs, domain.WindowAll, now, DefaultPolicy)

	sigma := computeStddev(returns, computeMean(returns))
	if stats.VolHourly == nil || math.Abs(*stats.VolHourly-sigma) > 1e-12 {
		t.Fatalf("VolHourly = %v, want %f", stats.VolHourly, sigma)
	}
	if math.Abs(*stats.VolAnnual-sigma*math.Sqrt(8760)) > 1e-12 {
		t.Errorf("VolAnnual = %f, want %f", *stats.VolAnnual, sigma*math.Sqrt(8760))
	}
}

func TestComputeWindowStats_NeutralRowForEmptyWindow(t *testing.T) {
	// All segments are older than one week.
	old := now - 30*24*domain.SecondsPerHour
	segs := buildSegments(old, 1.0, 0.05, -0.02, 0.03)

	stats := ComputeWindowStats(segs, domain.Window1W, now, DefaultPolicy)

	if stats.TotalReturn != 0 || stats.MaxDrawdown != 0 {
		t.Errorf("expected neutral row, got return=%f drawdown=%f", stats.TotalReturn, stats.MaxDrawdown)
	}
	if stats.SharpeAnnual != nil || stats.VolAnnual != nil || stats.VolHourly != nil {
		t.Error("expected nil Sharpe and volatility")
	}
	if stats.Window != domain.Window1W || stats.LastUpdatedTs != now {
		t.Errorf("unexpected row identity: %+v", stats)
	}
}

func TestComputeWindowStats_AllTotalReturnMatchesValueIndex(t *testing.T) {
	segs := buildSegments(now, 1.0, 0.02, -0.01, 0.03, 0.015, -0.02)
	last := segs[len(segs)-1].ValueIndexEnd

	stats := ComputeWindowStats(segs, domain.WindowAll, now, DefaultPolicy)

	if math.Abs(stats.TotalReturn-(last-1)) > 1e-12 {
		t.Errorf("TotalReturn = %f, want %f", stats.TotalReturn, last-1)
	}
}

func TestComputeWindowStats_BaseFromPrecedingSegment(t *testing.T) {
	day := int64(24 * domain.SecondsPerHour)
	old := buildSegments(now-10*day, 1.0, 0.5)              // value index 1.5
	recent := buildSegments(now, old[0].ValueIndexEnd, 0.1) // 1.65
	segs := append(old, recent...)

	stats := ComputeWindowStats(segs, domain.Window1W, now, DefaultPolicy)

	if math.Abs(stats.TotalReturn-0.1) > 1e-12 {
		t.Errorf("TotalReturn = %f, want 0.1", stats.TotalReturn)
	}
}

func TestComputeWindowStats_MaxDrawdown(t *testing.T) {
	segs := []*domain.Segment{
		{EndTs: now - 3*3600, DurationSec: 3600, ValueIndexEnd: 1.1},
		{EndTs: now - 2*3600, DurationSec: 3600, ValueIndexEnd: 0.99},
		{EndTs: now - 3600, DurationSec: 3600, ValueIndexEnd: 1.2},
		{EndTs: now, DurationSec: 3600, ValueIndexEnd: 0.9},
	}

	stats := ComputeWindowStats(segs, domain.WindowAll, now, DefaultPolicy)

	if math.Abs(stats.MaxDrawdown-0.25) > 1e-12 {
		t.Errorf("MaxDrawdown = %f, want 0.25", stats.MaxDrawdown)
	}
}

func TestComputeWindowStats_DrawdownBelowStartingEquity(t *testing.T) {
	segs := buildSegments(now, 1.0, -0.2)

	stats := ComputeWindowStats(segs, domain.WindowAll, now, DefaultPolicy)

	if math.Abs(stats.MaxDrawdown-0.2) > 1e-12 {
		t.Errorf("MaxDrawdown = %f, want 0.2", stats.MaxDrawdown)
	}
}

func TestComputeWindowStats_InsufficientSample(t *testing.T) {
	segs := buildSegments(now, 1.0, 0.05)

	stats := ComputeWindowStats(segs, domain.WindowAll, now, DefaultPolicy)

	if stats.VolHourly != nil || stats.SharpeAnnual != nil {
		t.Error("expected nil volatility and Sharpe for a single observation")
	}
	if math.Abs(stats.TotalReturn-0.05) > 1e-12 {
		t.Errorf("TotalReturn = %f, want 0.05", stats.TotalReturn)
	}
}

func TestComputeWindowStats_ZeroStddev(t *testing.T) {
	segs := buildSegments(now, 1.0, make([]float64, 30)...)

	stats := ComputeWindowStats(segs, domain.WindowAll, now, DefaultPolicy)

	if stats.VolHourly != nil || stats.SharpeAnnual != nil {
		t.Error("expected nil volatility for flat returns")
	}
}

func TestComputeWindowStats_WipedOutEquity(t *testing.T) {
	returns := append(alternating(30), -1.0, 0, 0)
	segs := buildSegments(now, 1.0, returns...)

	stats := ComputeWindowStats(segs, domain.WindowAll, now, DefaultPolicy)

	if stats.SharpeAnnual != nil {
		t.Errorf("expected nil Sharpe for zero final equity, got %f", *stats.SharpeAnnual)
	}
	if stats.TotalReturn != -1 {
		t.Errorf("TotalReturn = %f, want -1", stats.TotalReturn)
	}
	if stats.MaxDrawdown != 1 {
		t.Errorf("MaxDrawdown = %f, want 1", stats.MaxDrawdown)
	}
}

func TestComputeWindowStats_ZeroBase(t *testing.T) {
	day := int64(24 * domain.SecondsPerHour)
	wiped := buildSegments(now-10*day, 1.0, 0.1, -1.0)
	flat := buildSegments(now, 0, make([]float64, 30)...)
	segs := append(wiped, flat...)

	stats := ComputeWindowStats(segs, domain.Window1W, now, DefaultPolicy)

	if stats.TotalReturn != 0 || stats.MaxDrawdown != 0 {
		t.Errorf("expected zero return and drawdown, got %f / %f", stats.TotalReturn, stats.MaxDrawdown)
	}
	if stats.SharpeAnnual != nil {
		t.Error("expected nil Sharpe on a zero base")
	}
}

func TestComputeAllWindows_EmitsEveryWindow(t *testing.T) {
	rows := ComputeAllWindows(nil, now, DefaultPolicy)

	if len(rows) != len(domain.AllWindows) {
		t.Fatalf("expected %d rows, got %d", len(domain.AllWindows), len(rows))
	}
	for i, w := range domain.AllWindows {
		if rows[i].Window != w {
			t.Errorf("row %d window = %s, want %s", i, rows[i].Window, w)
		}
	}
}

func TestMaturity(t *testing.T) {
	tests := []struct {
		hours, ramp, want float64
	}{
		{0, 720, 0},
		{24, 720, 24.0 / 720.0},
		{720, 720, 1},
		{5000, 720, 1},
		{10, 0, 1},
	}
	for _, tt := range tests {
		if got := maturity(tt.hours, tt.ramp); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("maturity(%f, %f) = %f, want %f", tt.hours, tt.ramp, got, tt.want)
		}
	}
}

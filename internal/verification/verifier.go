// Package verification checks stored equity segments against a replay from
// the first signal. Incremental passes and a full replay agree unless late
// signals or backfilled prices arrived after a segment was written.
package verification

import (
	"context"
	"math"

	"signal-leaderboard/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	StartTs  int64       `json:"start_ts"`
	Field    string      `json:"field"`
	Expected interface{} `json:"expected"` // stored value
	Actual   interface{} `json:"actual"`   // replayed value
}

// VerificationResult contains the result of verifying a single strategy.
type VerificationResult struct {
	StrategyID       string            `json:"strategy_id"`
	Match            bool              `json:"match"`
	StoredSegments   int               `json:"stored_segments"`
	ReplayedSegments int               `json:"replayed_segments"`
	Divergences      []FieldDivergence `json:"divergences,omitempty"`
	StoredValue      float64           `json:"stored_value_index"`
	ReplayedValue    float64           `json:"replayed_value_index"`
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalStrategies     int                  `json:"total_strategies"`
	MatchedStrategies   int                  `json:"matched_strategies"`
	DivergentStrategies int                  `json:"divergent_strategies"`
	Results             []VerificationResult `json:"results"`
}

// Verifier verifies stored segments by replaying.
type Verifier interface {
	// VerifyStrategy replays one strategy up to its watermark and compares
	// every segment.
	VerifyStrategy(ctx context.Context, strategyID string) (*VerificationResult, error)

	// VerifyAll verifies every strategy.
	VerifyAll(ctx context.Context) (*VerificationReport, error)
}

// CompareSegments matches segments by StartTs and reports every difference.
// Both slices must be ordered by StartTs.
func CompareSegments(stored, replayed []*domain.Segment) []FieldDivergence {
	var divergences []FieldDivergence

	byStart := make(map[int64]*domain.Segment, len(replayed))
	for _, seg := range replayed {
		byStart[seg.StartTs] = seg
	}

	seen := make(map[int64]struct{}, len(stored))
	for _, s := range stored {
		seen[s.StartTs] = struct{}{}
		r, ok := byStart[s.StartTs]
		if !ok {
			divergences = append(divergences, FieldDivergence{
				StartTs: s.StartTs, Field: "Segment", Expected: "present", Actual: "missing",
			})
			continue
		}
		divergences = append(divergences, compareSegment(s, r)...)
	}

	for _, r := range replayed {
		if _, ok := seen[r.StartTs]; !ok {
			divergences = append(divergences, FieldDivergence{
				StartTs: r.StartTs, Field: "Segment", Expected: "missing", Actual: "present",
			})
		}
	}
	return divergences
}

func compareSegment(stored, replayed *domain.Segment) []FieldDivergence {
	var divergences []FieldDivergence

	if stored.EndTs != replayed.EndTs {
		divergences = append(divergences, FieldDivergence{
			StartTs: stored.StartTs, Field: "EndTs", Expected: stored.EndTs, Actual: replayed.EndTs,
		})
	}

	if !floatEquals(stored.RawReturn, replayed.RawReturn) {
		divergences = append(divergences, FieldDivergence{
			StartTs: stored.StartTs, Field: "RawReturn", Expected: stored.RawReturn, Actual: replayed.RawReturn,
		})
	}

	if !floatEquals(stored.ValueIndexEnd, replayed.ValueIndexEnd) {
		divergences = append(divergences, FieldDivergence{
			StartTs: stored.StartTs, Field: "ValueIndexEnd", Expected: stored.ValueIndexEnd, Actual: replayed.ValueIndexEnd,
		})
	}

	return divergences
}

// floatEquals compares two float64 values within FloatTolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}

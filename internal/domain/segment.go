package domain

// SecondsPerHour is the canonical segment length.
const SecondsPerHour = 3600

// Segment is one immutable equity interval [StartTs, EndTs) of a strategy.
// Corresponds to strategy_segments table in PostgreSQL.
type Segment struct {
	StrategyID        string
	StartTs           int64
	EndTs             int64
	DurationSec       int64
	RawReturn         float64 // fractional return over the interval
	HourlyEquivReturn float64 // RawReturn / duration in hours
	ValueIndexEnd     float64 // cumulative equity at EndTs
}

// Holding is one per-asset bucket of a strategy's resumable state.
// Corresponds to strategy_holdings table in PostgreSQL.
type Holding struct {
	StrategyID string
	Asset      string
	Value      float64 // equity units; sum over assets == LastValueIndex
	Direction  Direction
	Leverage   int
	IsUSD      bool
}

// HourFloor returns the hour boundary at or before ts.
func HourFloor(ts int64) int64 {
	r := ts % SecondsPerHour
	if r < 0 {
		r += SecondsPerHour
	}
	return ts - r
}

// IsHourBoundary reports whether ts lies on the hourly grid.
func IsHourBoundary(ts int64) bool {
	return ts%SecondsPerHour == 0
}

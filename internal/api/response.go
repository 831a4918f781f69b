package api

import (
	"github.com/shopspring/decimal"

	"signal-leaderboard/internal/allocation"
	"signal-leaderboard/internal/domain"
)

// Display precision.
const (
	percentPlaces = 2
	returnPlaces  = 6
	ratioPlaces   = 4
)

// StrategyResponse is the public view of a strategy.
type StrategyResponse struct {
	ID               string  `json:"id"`
	Trader           string  `json:"trader"`
	Name             string  `json:"name"`
	FirstSignalTs    int64   `json:"first_signal_ts"`
	LastSignalTs     int64   `json:"last_signal_ts"`
	NumSignals       int     `json:"num_signals"`
	ValueIndex       float64 `json:"value_index"`
	LastSegmentEndTs *int64  `json:"last_segment_end_ts"`
	IsLiquidated     bool    `json:"is_liquidated"`
}

// StatsResponse is one window of strategy statistics.
type StatsResponse struct {
	Window        domain.Window `json:"window"`
	LastUpdatedTs int64         `json:"last_updated_ts"`
	SharpeAnnual  *float64      `json:"sharpe_annual"`
	VolAnnual     *float64      `json:"vol_annual"`
	VolHourly     *float64      `json:"vol_hourly"`
	TotalReturn   float64       `json:"total_return"`
	MaxDrawdown   float64       `json:"max_drawdown"`
}

// PositionResponse is one allocation line.
type PositionResponse struct {
	Asset     string  `json:"asset"`
	Percent   float64 `json:"percent"`
	Direction string  `json:"direction"`
	Leverage  int     `json:"leverage"`
}

// CurrentPositionResponse is the freshest known allocation of a strategy.
type CurrentPositionResponse struct {
	Source    allocation.Origin  `json:"source"`
	Timestamp int64              `json:"timestamp"`
	Positions []PositionResponse `json:"positions"`
}

// SnapshotResponse is one post-signal allocation.
type SnapshotResponse struct {
	SignalTs  int64              `json:"signal_ts"`
	Exact     bool               `json:"exact"`
	Message   string             `json:"message"`
	Positions []PositionResponse `json:"positions"`
}

// SegmentResponse is one point of the equity curve.
type SegmentResponse struct {
	StartTs       int64   `json:"start_ts"`
	EndTs         int64   `json:"end_ts"`
	RawReturn     float64 `json:"raw_return"`
	ValueIndexEnd float64 `json:"value_index_end"`
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank     int              `json:"rank"`
	Strategy StrategyResponse `json:"strategy"`
	Stats    StatsResponse    `json:"stats"`
}

// StrategyDetailResponse bundles a strategy with its stats and position.
type StrategyDetailResponse struct {
	Strategy StrategyResponse        `json:"strategy"`
	Stats    []StatsResponse         `json:"stats"`
	Position CurrentPositionResponse `json:"position"`
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func roundPtr(v *float64, places int32) *float64 {
	if v == nil {
		return nil
	}
	r := round(*v, places)
	return &r
}

func toStrategyResponse(s *domain.Strategy) StrategyResponse {
	return StrategyResponse{
		ID:               s.ID,
		Trader:           s.Trader,
		Name:             s.Name,
		FirstSignalTs:    s.FirstSignalTs,
		LastSignalTs:     s.LastSignalTs,
		NumSignals:       s.NumSignals,
		ValueIndex:       round(s.LastValueIndex, returnPlaces),
		LastSegmentEndTs: s.LastSegmentEndTs,
		IsLiquidated:     s.IsLiquidated,
	}
}

func toStatsResponse(s *domain.StrategyStats) StatsResponse {
	return StatsResponse{
		Window:        s.Window,
		LastUpdatedTs: s.LastUpdatedTs,
		SharpeAnnual:  roundPtr(s.SharpeAnnual, ratioPlaces),
		VolAnnual:     roundPtr(s.VolAnnual, returnPlaces),
		VolHourly:     roundPtr(s.VolHourly, returnPlaces),
		TotalReturn:   round(s.TotalReturn, returnPlaces),
		MaxDrawdown:   round(s.MaxDrawdown, returnPlaces),
	}
}

func toPositions(positions []domain.Position) []PositionResponse {
	out := make([]PositionResponse, 0, len(positions))
	for _, p := range positions {
		out = append(out, PositionResponse{
			Asset:     p.Asset,
			Percent:   round(p.Percent, percentPlaces),
			Direction: p.Direction.String(),
			Leverage:  p.Leverage,
		})
	}
	return out
}

func toSegmentResponse(s *domain.Segment) SegmentResponse {
	return SegmentResponse{
		StartTs:       s.StartTs,
		EndTs:         s.EndTs,
		RawReturn:     round(s.RawReturn, returnPlaces),
		ValueIndexEnd: round(s.ValueIndexEnd, returnPlaces),
	}
}

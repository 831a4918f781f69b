package domain

// Position is one line of a percentage-allocation view.
type Position struct {
	Asset     string    `json:"asset"`
	Percent   float64   `json:"percent"`
	Direction Direction `json:"direction"`
	Leverage  int       `json:"leverage"`
}

// PositionSnapshot is the allocation right after a signal was applied.
// Corresponds to strategy_position_snapshots table in PostgreSQL.
// Keyed by (StrategyID, SignalTs); an approximate snapshot (Exact=false)
// written at ingestion is overwritten by the replay-computed one.
type PositionSnapshot struct {
	StrategyID string
	SignalTs   int64
	Positions  []Position
	Message    string
	Exact      bool
}

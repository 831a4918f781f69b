package domain

import "sort"

// Strategy is the aggregate identity (trader, strategy name).
// Corresponds to strategies table in PostgreSQL.
type Strategy struct {
	ID            string // deterministic hash, see idhash.ComputeStrategyID
	Trader        string // lower-case hex address
	Name          string // strategy name as posted
	FirstSignalTs int64
	LastSignalTs  int64
	NumSignals    int

	// Replay progress. Written only by the replay engine.
	LastValueIndex      float64 // cumulative equity multiplier, starts at 1.0
	LastSegmentEndTs    *int64  // high-water mark, nil until first replay
	LastAppliedSignalID int64   // last signal consumed by replay
	Opened              bool    // a first position has been opened

	IsLiquidated bool // reserved
}

// NeedsExtension reports whether replay may produce new segments given the
// latest priced hour.
func (s *Strategy) NeedsExtension(latestPricedHour int64) bool {
	if s.LastSegmentEndTs == nil {
		return true
	}
	if *s.LastSegmentEndTs < latestPricedHour {
		return true
	}
	return s.LastSignalTs > *s.LastSegmentEndTs
}

// StrategyActivity is the per-strategy delta of one ingestion batch.
type StrategyActivity struct {
	StrategyID    string
	Trader        string
	Name          string
	FirstSignalTs int64
	LastSignalTs  int64
	NumSignals    int
}

// SummarizeActivity folds signals into one activity record per strategy,
// ordered by strategy id.
func SummarizeActivity(signals []*Signal) []*StrategyActivity {
	byID := make(map[string]*StrategyActivity)
	var ids []string
	for _, sig := range signals {
		a, ok := byID[sig.StrategyID]
		if !ok {
			a = &StrategyActivity{
				StrategyID:    sig.StrategyID,
				Trader:        sig.Trader,
				Name:          sig.StrategyName,
				FirstSignalTs: sig.Timestamp,
				LastSignalTs:  sig.Timestamp,
			}
			byID[sig.StrategyID] = a
			ids = append(ids, sig.StrategyID)
		}
		if sig.Timestamp < a.FirstSignalTs {
			a.FirstSignalTs = sig.Timestamp
		}
		if sig.Timestamp > a.LastSignalTs {
			a.LastSignalTs = sig.Timestamp
		}
		a.NumSignals++
	}
	sort.Strings(ids)

	out := make([]*StrategyActivity, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out
}

// NewStrategy creates a strategy that has never been replayed.
func NewStrategy(a *StrategyActivity) *Strategy {
	return &Strategy{
		ID:                  a.StrategyID,
		Trader:              a.Trader,
		Name:                a.Name,
		FirstSignalTs:       a.FirstSignalTs,
		LastSignalTs:        a.LastSignalTs,
		NumSignals:          a.NumSignals,
		LastValueIndex:      1.0,
		LastAppliedSignalID: NoSignalID,
	}
}

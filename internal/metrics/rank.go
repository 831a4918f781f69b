package metrics

import (
	"fmt"
	"math"
	"sort"

	"signal-leaderboard/internal/domain"
)

// SortKey selects the leaderboard ordering.
type SortKey string

// Sort keys of the leaderboard.
const (
	SortSharpe   SortKey = "sharpe"
	SortReturn   SortKey = "return"
	SortDrawdown SortKey = "drawdown"
)

// ParseSortKey validates a sort key.
func ParseSortKey(s string) (SortKey, error) {
	k := SortKey(s)
	if _, ok := rankings[k]; !ok {
		return "", fmt.Errorf("sort must be one of sharpe, return, drawdown")
	}
	return k, nil
}

// Rank orders rows best first in place. Unknown keys rank by Sharpe.
func Rank(rows []*domain.StrategyStats, key SortKey) {
	less, ok := rankings[key]
	if !ok {
		less = rankings[SortSharpe]
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return less(rows[i], rows[j])
	})
}

// rankings order stats rows best first, ties broken by strategy id.
var rankings = map[SortKey]func(a, b *domain.StrategyStats) bool{
	SortSharpe: func(a, b *domain.StrategyStats) bool {
		as, bs := nullableValue(a.SharpeAnnual), nullableValue(b.SharpeAnnual)
		if as != bs {
			return as > bs
		}
		if a.TotalReturn != b.TotalReturn {
			return a.TotalReturn > b.TotalReturn
		}
		return a.StrategyID < b.StrategyID
	},
	SortReturn: func(a, b *domain.StrategyStats) bool {
		if a.TotalReturn != b.TotalReturn {
			return a.TotalReturn > b.TotalReturn
		}
		return a.StrategyID < b.StrategyID
	},
	SortDrawdown: func(a, b *domain.StrategyStats) bool {
		if a.MaxDrawdown != b.MaxDrawdown {
			return a.MaxDrawdown < b.MaxDrawdown
		}
		return a.StrategyID < b.StrategyID
	},
}

// nullableValue sorts missing values after every real one.
func nullableValue(v *float64) float64 {
	if v == nil {
		return math.Inf(-1)
	}
	return *v
}

package reporting

import (
	"context"
	"fmt"
	"time"

	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/metrics"
	"signal-leaderboard/internal/storage"
)

// Generator produces leaderboard reports from stored statistics.
type Generator struct {
	strategies storage.StrategyStore
	stats      storage.StatsStore
	sortKey    metrics.SortKey
	limit      int
	now        func() time.Time // injectable clock for deterministic output
}

// NewGenerator creates a generator ranking by Sharpe with no row limit.
func NewGenerator(strategies storage.StrategyStore, stats storage.StatsStore) *Generator {
	return &Generator{
		strategies: strategies,
		stats:      stats,
		sortKey:    metrics.SortSharpe,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithSort sets the ranking key.
func (g *Generator) WithSort(key metrics.SortKey) *Generator {
	g.sortKey = key
	return g
}

// WithLimit caps rows per window; 0 means unlimited.
func (g *Generator) WithLimit(limit int) *Generator {
	g.limit = limit
	return g
}

// Generate ranks every window. Stats rows of unknown strategies are skipped.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	strategies, err := g.strategies.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load strategies: %w", err)
	}
	byID := make(map[string]*domain.Strategy, len(strategies))
	for _, s := range strategies {
		byID[s.ID] = s
	}

	report := &Report{
		GeneratedAt:   g.now(),
		SortKey:       g.sortKey,
		StrategyCount: len(strategies),
		Windows:       make([]WindowBoard, 0, len(domain.AllWindows)),
	}

	for _, w := range domain.AllWindows {
		rows, err := g.stats.GetByWindow(ctx, w)
		if err != nil {
			return nil, fmt.Errorf("load %s stats: %w", w, err)
		}

		ranked := make([]*domain.StrategyStats, 0, len(rows))
		for _, row := range rows {
			if _, ok := byID[row.StrategyID]; ok {
				ranked = append(ranked, row)
			}
		}
		metrics.Rank(ranked, g.sortKey)
		if g.limit > 0 && len(ranked) > g.limit {
			ranked = ranked[:g.limit]
		}

		board := WindowBoard{Window: w, Rows: make([]LeaderboardRow, 0, len(ranked))}
		for i, row := range ranked {
			s := byID[row.StrategyID]
			board.Rows = append(board.Rows, LeaderboardRow{
				Rank:          i + 1,
				StrategyID:    s.ID,
				Trader:        s.Trader,
				Name:          s.Name,
				NumSignals:    s.NumSignals,
				SharpeAnnual:  row.SharpeAnnual,
				VolAnnual:     row.VolAnnual,
				TotalReturn:   row.TotalReturn,
				MaxDrawdown:   row.MaxDrawdown,
				ValueIndex:    s.LastValueIndex,
				LastUpdatedTs: row.LastUpdatedTs,
			})
		}
		report.Windows = append(report.Windows, board)
	}

	return report, nil
}

// Package reporting renders the leaderboard as Markdown and CSV documents.
package reporting

import (
	"time"

	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/metrics"
)

// Report is a point-in-time leaderboard across every window.
type Report struct {
	GeneratedAt   time.Time
	SortKey       metrics.SortKey
	StrategyCount int
	Windows       []WindowBoard
}

// WindowBoard is the ranked leaderboard of one window.
type WindowBoard struct {
	Window domain.Window
	Rows   []LeaderboardRow
}

// LeaderboardRow is one ranked strategy in one window.
// Nil pointers mean the statistic was not computable.
type LeaderboardRow struct {
	Rank          int
	StrategyID    string
	Trader        string
	Name          string
	NumSignals    int
	SharpeAnnual  *float64
	VolAnnual     *float64
	TotalReturn   float64
	MaxDrawdown   float64
	ValueIndex    float64
	LastUpdatedTs int64
}

// Board returns the board of window w, or nil.
func (r *Report) Board(w domain.Window) *WindowBoard {
	for i := range r.Windows {
		if r.Windows[i].Window == w {
			return &r.Windows[i]
		}
	}
	return nil
}

package memory

import (
	"context"
	"errors"
	"testing"

	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/storage"
)

func TestStatsStore_ReplaceStats(t *testing.T) {
	db := NewDB()
	stats := NewStatsStore(db)
	ctx := context.Background()

	if err := NewCommitter(db).CommitIngestion(ctx, &storage.IngestionBatch{
		Signals: []*domain.Signal{testSignal(0, "s1", 10)},
	}); err != nil {
		t.Fatalf("CommitIngestion failed: %v", err)
	}

	sharpe := 1.5
	rows := make([]*domain.StrategyStats, 0, len(domain.AllWindows))
	for _, w := range domain.AllWindows {
		rows = append(rows, &domain.StrategyStats{StrategyID: "s1", Window: w, TotalReturn: 0.1, SharpeAnnual: &sharpe})
	}
	if err := stats.ReplaceStats(ctx, "s1", rows); err != nil {
		t.Fatalf("ReplaceStats failed: %v", err)
	}

	// Second pass overwrites every row.
	for _, r := range rows {
		r.TotalReturn = 0.2
		r.SharpeAnnual = nil
	}
	if err := stats.ReplaceStats(ctx, "s1", rows); err != nil {
		t.Fatalf("ReplaceStats failed: %v", err)
	}

	got, _ := stats.GetByStrategy(ctx, "s1")
	if len(got) != len(domain.AllWindows) {
		t.Fatalf("expected %d rows, got %d", len(domain.AllWindows), len(got))
	}
	for _, r := range got {
		if r.TotalReturn != 0.2 || r.SharpeAnnual != nil {
			t.Errorf("stale row for %s: %+v", r.Window, r)
		}
	}

	byWindow, _ := stats.GetByWindow(ctx, domain.Window1M)
	if len(byWindow) != 1 {
		t.Errorf("expected 1 row for 1M, got %d", len(byWindow))
	}
}

func TestStatsStore_RejectsForeignRows(t *testing.T) {
	stats := NewStatsStore(NewDB())

	err := stats.ReplaceStats(context.Background(), "s1", []*domain.StrategyStats{{StrategyID: "s2", Window: domain.WindowAll}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

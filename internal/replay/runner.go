package replay

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"signal-leaderboard/internal/allocation"
	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/lookup"
	"signal-leaderboard/internal/storage"
)

// Result summarizes one strategy's replay pass.
type Result struct {
	StrategyID       string
	SegmentsWritten  int
	SnapshotsWritten int
	SignalsApplied   int
	ValueIndex       float64
	LastSegmentEndTs *int64
}

// Runner loads a strategy's replay state, extends it and commits the result.
type Runner struct {
	signals   storage.SignalStore
	holdings  storage.HoldingStore
	committer storage.ReplayCommitter
	registry  domain.AssetRegistry
	logger    *zap.Logger
}

// NewRunner creates a new replay runner.
func NewRunner(
	signals storage.SignalStore,
	holdings storage.HoldingStore,
	committer storage.ReplayCommitter,
	registry domain.AssetRegistry,
	logger *zap.Logger,
) *Runner {
	if registry == nil {
		registry = domain.DefaultAssets
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		signals:   signals,
		holdings:  holdings,
		committer: committer,
		registry:  registry,
		logger:    logger,
	}
}

// Extend replays one strategy over grid and commits new segments, snapshots,
// holdings and the watermark in one transaction. Nothing is written when the
// pass produces no segments.
func (r *Runner) Extend(ctx context.Context, s *domain.Strategy, grid []int64, prices lookup.Prices, now int64) (*Result, error) {
	prior, err := r.loadState(ctx, s)
	if err != nil {
		return nil, err
	}

	pending, err := r.signals.GetByStrategy(ctx, s.ID, s.LastAppliedSignalID)
	if err != nil {
		return nil, fmt.Errorf("load pending signals: %w", err)
	}

	out := Extend(prior, Input{
		StrategyID:    s.ID,
		FirstSignalTs: s.FirstSignalTs,
		Signals:       pending,
		Grid:          grid,
		Prices:        prices,
		Registry:      r.registry,
		Now:           now,
	})

	result := &Result{
		StrategyID:       s.ID,
		ValueIndex:       out.State.ValueIndex,
		LastSegmentEndTs: out.State.LastSegmentEndTs,
	}
	if !out.Changed() {
		return result, nil
	}

	commit := &storage.ReplayCommit{
		StrategyID:          s.ID,
		PriorSegmentEndTs:   s.LastSegmentEndTs,
		Segments:            out.Segments,
		Snapshots:           out.Snapshots,
		Holdings:            out.State.Book.Holdings(s.ID),
		ValueIndex:          out.State.ValueIndex,
		LastSegmentEndTs:    *out.State.LastSegmentEndTs,
		LastAppliedSignalID: out.State.LastAppliedSignalID,
		Opened:              out.State.Opened,
	}
	if err := r.committer.CommitReplay(ctx, commit); err != nil {
		return nil, fmt.Errorf("commit replay: %w", err)
	}

	result.SegmentsWritten = len(out.Segments)
	result.SnapshotsWritten = len(out.Snapshots)
	result.SignalsApplied = out.Applied

	r.logger.Debug("strategy extended",
		zap.String("strategy_id", s.ID),
		zap.Int("segments", result.SegmentsWritten),
		zap.Int("signals", result.SignalsApplied),
		zap.Float64("value_index", result.ValueIndex),
	)
	return result, nil
}

func (r *Runner) loadState(ctx context.Context, s *domain.Strategy) (State, error) {
	st := State{
		ValueIndex:          s.LastValueIndex,
		LastSegmentEndTs:    s.LastSegmentEndTs,
		LastAppliedSignalID: s.LastAppliedSignalID,
		Opened:              s.Opened,
	}
	if s.LastSegmentEndTs == nil {
		return st, nil
	}

	holdings, err := r.holdings.GetByStrategy(ctx, s.ID)
	if err != nil {
		return State{}, fmt.Errorf("load holdings: %w", err)
	}
	st.Book = allocation.FromHoldings(holdings)
	return st, nil
}

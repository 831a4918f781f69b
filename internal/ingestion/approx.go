package ingestion

import (
	"context"
	"errors"
	"fmt"

	"signal-leaderboard/internal/allocation"
	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/storage"
)

// working is the percent-space position of one strategy while a batch is
// being folded.
type working struct {
	book   allocation.Book
	opened bool
}

// approximator derives approximate snapshots for freshly ingested signals.
// Signals of one strategy within a run chain from each other.
type approximator struct {
	strategies storage.StrategyStore
	holdings   storage.HoldingStore
	snapshots  storage.SnapshotStore
	registry   domain.AssetRegistry

	states map[string]*working
}

func newApproximator(strategies storage.StrategyStore, holdings storage.HoldingStore,
	snapshots storage.SnapshotStore, registry domain.AssetRegistry) *approximator {
	return &approximator{
		strategies: strategies,
		holdings:   holdings,
		snapshots:  snapshots,
		registry:   registry,
		states:     make(map[string]*working),
	}
}

// Snapshots applies signals in id order and returns one snapshot per
// (strategy, signal time); the last signal at a timestamp wins.
// Unsupported signals produce no snapshot.
func (a *approximator) Snapshots(ctx context.Context, signals []*domain.Signal) ([]*domain.PositionSnapshot, error) {
	var out []*domain.PositionSnapshot
	index := make(map[string]int)

	for _, sig := range signals {
		target := allocation.NewTarget(sig, a.registry)
		if !target.Supported {
			continue
		}

		st, err := a.state(ctx, sig.StrategyID)
		if err != nil {
			return nil, err
		}
		st.opened = st.book.Apply(target, st.opened)

		snap := &domain.PositionSnapshot{
			StrategyID: sig.StrategyID,
			SignalTs:   sig.Timestamp,
			Positions:  st.book.Positions(),
			Message:    sig.Message,
			Exact:      false,
		}
		key := fmt.Sprintf("%s|%d", sig.StrategyID, sig.Timestamp)
		if i, ok := index[key]; ok {
			out[i] = snap
			continue
		}
		index[key] = len(out)
		out = append(out, snap)
	}
	return out, nil
}

// Reset drops chained state so the next batch reloads from storage.
func (a *approximator) Reset() {
	a.states = make(map[string]*working)
}

func (a *approximator) state(ctx context.Context, strategyID string) (*working, error) {
	if st, ok := a.states[strategyID]; ok {
		return st, nil
	}

	strategy, err := a.strategies.GetByID(ctx, strategyID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load strategy %s: %w", strategyID, err)
	}

	var holdings []*domain.Holding
	if strategy != nil && strategy.LastSegmentEndTs != nil {
		holdings, err = a.holdings.GetByStrategy(ctx, strategyID)
		if err != nil {
			return nil, fmt.Errorf("load holdings %s: %w", strategyID, err)
		}
	}

	latest, err := a.snapshots.GetLatest(ctx, strategyID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("load latest snapshot %s: %w", strategyID, err)
		}
		latest = nil
	}

	cur := allocation.CurrentPosition(strategy, holdings, latest)
	st := &working{book: cur.Book.PercentBook(), opened: cur.Opened}
	a.states[strategyID] = st
	return st, nil
}

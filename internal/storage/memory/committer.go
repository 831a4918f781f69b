package memory

import (
	"context"
	"sort"

	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/storage"
)

// Committer applies ingestion batches and replay passes under the DB lock.
type Committer struct {
	db *DB
}

// NewCommitter creates a committer over db.
func NewCommitter(db *DB) *Committer {
	return &Committer{db: db}
}

// CommitIngestion inserts new signals, folds them into strategy aggregates
// and writes approximate snapshots.
func (c *Committer) CommitIngestion(_ context.Context, batch *storage.IngestionBatch) error {
	if batch == nil {
		return storage.ErrInvalidInput
	}
	for _, sig := range batch.Signals {
		if sig == nil || sig.StrategyID == "" {
			return storage.ErrInvalidInput
		}
	}

	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	var inserted []*domain.Signal
	for _, sig := range batch.Signals {
		if _, exists := c.db.signals[sig.ID]; exists {
			continue
		}
		sigCopy := *sig
		c.db.signals[sig.ID] = &sigCopy
		inserted = append(inserted, &sigCopy)
	}

	for _, a := range domain.SummarizeActivity(inserted) {
		st, ok := c.db.strategies[a.StrategyID]
		if !ok {
			c.db.strategies[a.StrategyID] = domain.NewStrategy(a)
			continue
		}
		if a.FirstSignalTs < st.FirstSignalTs {
			st.FirstSignalTs = a.FirstSignalTs
		}
		if a.LastSignalTs > st.LastSignalTs {
			st.LastSignalTs = a.LastSignalTs
		}
		st.NumSignals += a.NumSignals
	}

	for _, snap := range batch.Snapshots {
		key := snapshotKey(snap.StrategyID, snap.SignalTs)
		if existing, ok := c.db.snapshots[key]; ok && existing.Exact && !snap.Exact {
			continue
		}
		c.db.snapshots[key] = copySnapshot(snap)
	}
	return nil
}

// CommitReplay applies one replay pass or nothing.
func (c *Committer) CommitReplay(_ context.Context, rc *storage.ReplayCommit) error {
	if rc == nil || rc.StrategyID == "" {
		return storage.ErrInvalidInput
	}

	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	st, ok := c.db.strategies[rc.StrategyID]
	if !ok {
		return storage.ErrNotFound
	}
	if !sameWatermark(st.LastSegmentEndTs, rc.PriorSegmentEndTs) {
		return storage.ErrConflict
	}

	segs := c.db.segments[rc.StrategyID]
	seen := make(map[[2]int64]struct{}, len(segs))
	for _, seg := range segs {
		seen[[2]int64{seg.StartTs, seg.EndTs}] = struct{}{}
	}
	for _, seg := range rc.Segments {
		key := [2]int64{seg.StartTs, seg.EndTs}
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		segCopy := *seg
		segs = append(segs, &segCopy)
	}
	sort.SliceStable(segs, func(i, j int) bool {
		return segs[i].EndTs < segs[j].EndTs
	})
	c.db.segments[rc.StrategyID] = segs

	for _, snap := range rc.Snapshots {
		c.db.snapshots[snapshotKey(snap.StrategyID, snap.SignalTs)] = copySnapshot(snap)
	}

	holdings := make([]*domain.Holding, 0, len(rc.Holdings))
	for _, h := range rc.Holdings {
		hCopy := *h
		holdings = append(holdings, &hCopy)
	}
	sort.Slice(holdings, func(i, j int) bool {
		return holdings[i].Asset < holdings[j].Asset
	})
	c.db.holdings[rc.StrategyID] = holdings

	end := rc.LastSegmentEndTs
	st.LastSegmentEndTs = &end
	st.LastValueIndex = rc.ValueIndex
	st.LastAppliedSignalID = rc.LastAppliedSignalID
	st.Opened = rc.Opened
	return nil
}

func sameWatermark(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

var (
	_ storage.IngestionCommitter = (*Committer)(nil)
	_ storage.ReplayCommitter    = (*Committer)(nil)
)

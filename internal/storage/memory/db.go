package memory

import (
	"fmt"
	"sync"

	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/storage"
)

// DB holds every relational table behind one lock so that committers can
// apply multi-table writes atomically. Stores are thin views over a DB.
type DB struct {
	mu sync.RWMutex

	signals    map[int64]*domain.Signal
	strategies map[string]*domain.Strategy
	segments   map[string][]*domain.Segment // per strategy, ordered by end_ts
	holdings   map[string][]*domain.Holding // per strategy
	snapshots  map[string]*domain.PositionSnapshot
	stats      map[string]*domain.StrategyStats
}

// NewDB creates an empty in-memory database.
func NewDB() *DB {
	return &DB{
		signals:    make(map[int64]*domain.Signal),
		strategies: make(map[string]*domain.Strategy),
		segments:   make(map[string][]*domain.Segment),
		holdings:   make(map[string][]*domain.Holding),
		snapshots:  make(map[string]*domain.PositionSnapshot),
		stats:      make(map[string]*domain.StrategyStats),
	}
}

// snapshotKey generates a unique key for a snapshot.
func snapshotKey(strategyID string, signalTs int64) string {
	return fmt.Sprintf("%s|%d", strategyID, signalTs)
}

// statsKey generates a unique key for a stats row.
func statsKey(strategyID string, window domain.Window) string {
	return fmt.Sprintf("%s|%s", strategyID, window)
}

func copySnapshot(s *domain.PositionSnapshot) *domain.PositionSnapshot {
	c := *s
	c.Positions = append([]domain.Position(nil), s.Positions...)
	return &c
}

func copyStrategy(s *domain.Strategy) *domain.Strategy {
	c := *s
	if s.LastSegmentEndTs != nil {
		ts := *s.LastSegmentEndTs
		c.LastSegmentEndTs = &ts
	}
	return &c
}

func copyStats(s *domain.StrategyStats) *domain.StrategyStats {
	c := *s
	c.SharpeAnnual = copyFloat(s.SharpeAnnual)
	c.VolAnnual = copyFloat(s.VolAnnual)
	c.VolHourly = copyFloat(s.VolHourly)
	return &c
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// NewStores returns every store over a fresh DB.
func NewStores() *storage.Stores {
	db := NewDB()
	committer := NewCommitter(db)
	return &storage.Stores{
		Signals:    NewSignalStore(db),
		Strategies: NewStrategyStore(db),
		Segments:   NewSegmentStore(db),
		Holdings:   NewHoldingStore(db),
		Snapshots:  NewSnapshotStore(db),
		Stats:      NewStatsStore(db),
		Prices:     NewPriceStore(),
		Ingestion:  committer,
		Replay:     committer,
	}
}

package storage

// Stores bundles every store of one backend.
type Stores struct {
	Signals    SignalStore
	Strategies StrategyStore
	Segments   SegmentStore
	Holdings   HoldingStore
	Snapshots  SnapshotStore
	Stats      StatsStore
	Prices     PriceStore
	Ingestion  IngestionCommitter
	Replay     ReplayCommitter
}

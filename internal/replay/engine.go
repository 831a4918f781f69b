package replay

import (
	"math"
	"sort"

	"signal-leaderboard/internal/allocation"
	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/lookup"
)

// InitialValueIndex is the equity a strategy starts with.
const InitialValueIndex = 1.0

// State is the per-strategy replay state threaded between passes.
type State struct {
	ValueIndex          float64
	LastSegmentEndTs    *int64 // nil until the first segment is written
	LastAppliedSignalID int64
	Opened              bool
	Book                allocation.Book
}

// Input is everything one pass consumes besides the prior state.
type Input struct {
	StrategyID    string
	FirstSignalTs int64
	Signals       []*domain.Signal // pending signals: id > LastAppliedSignalID
	Grid          []int64          // hourly price timestamps, ASC
	Prices        lookup.Prices
	Registry      domain.AssetRegistry
	Now           int64
}

// Output is the result of one pass.
type Output struct {
	State     State
	Segments  []*domain.Segment
	Snapshots []*domain.PositionSnapshot
	Applied   int // signals consumed, supported or not
}

// Changed reports whether the pass produced anything to persist.
func (o *Output) Changed() bool {
	return len(o.Segments) > 0
}

// Extend walks the strategy forward over every closed hourly pair after the
// prior watermark. It is pure: identical arguments give identical output.
//
// On the first pass the walk starts at the hour containing FirstSignalTs
// with 1.0 in cash; later passes resume at LastSegmentEndTs from prior.Book.
// Grid entries after Now are never used.
func Extend(prior State, in Input) *Output {
	st := State{
		ValueIndex:          prior.ValueIndex,
		LastSegmentEndTs:    prior.LastSegmentEndTs,
		LastAppliedSignalID: prior.LastAppliedSignalID,
		Opened:              prior.Opened,
		Book:                prior.Book.Clone(),
	}

	var start int64
	if st.LastSegmentEndTs == nil {
		start = domain.HourFloor(in.FirstSignalTs)
		st.ValueIndex = InitialValueIndex
		st.Book = allocation.NewCashBook(InitialValueIndex)
	} else {
		start = *st.LastSegmentEndTs
	}

	out := &Output{}
	boundaries := boundariesFrom(in.Grid, start, in.Now)
	if len(boundaries) < 2 {
		out.State = prior
		out.State.Book = prior.Book.Clone()
		return out
	}

	signals := pendingSignals(in.Signals, st.LastAppliedSignalID)
	snaps := newSnapshotSet()
	next := 0

	apply := func(sig *domain.Signal) {
		target := allocation.NewTarget(sig, in.Registry)
		if target.Supported {
			st.Opened = st.Book.Apply(target, st.Opened)
			snaps.put(&domain.PositionSnapshot{
				StrategyID: in.StrategyID,
				SignalTs:   sig.Timestamp,
				Positions:  st.Book.Positions(),
				Message:    sig.Message,
				Exact:      true,
			})
		}
		st.LastAppliedSignalID = sig.ID
		out.Applied++
	}

	for k := 0; k+1 < len(boundaries); k++ {
		tStart, tEnd := boundaries[k], boundaries[k+1]

		for next < len(signals) && signals[next].Timestamp <= tStart {
			apply(signals[next])
			next++
		}

		equityStart := st.Book.Total()
		if equityStart <= 0 {
			out.Segments = append(out.Segments, newSegment(in.StrategyID, tStart, tEnd, 0, st.ValueIndex))
			st.LastSegmentEndTs = int64Ptr(tEnd)
			continue
		}

		cursor := tStart
		for next < len(signals) && signals[next].Timestamp <= tEnd {
			sig := signals[next]
			if sig.Timestamp > cursor {
				Drift(st.Book, in.Prices, cursor, sig.Timestamp)
				cursor = sig.Timestamp
			}
			apply(sig)
			next++
		}
		Drift(st.Book, in.Prices, cursor, tEnd)

		equityEnd := st.Book.Total()
		raw := equityEnd/equityStart - 1
		st.ValueIndex *= 1 + raw

		out.Segments = append(out.Segments, newSegment(in.StrategyID, tStart, tEnd, raw, st.ValueIndex))
		st.LastSegmentEndTs = int64Ptr(tEnd)
	}

	out.State = st
	out.Snapshots = snaps.list()
	return out
}

// Drift moves every non-cash bucket with its asset's price between t0 and t1.
// A bucket is left unchanged when either price is unknown or not positive,
// and never falls below zero.
func Drift(book allocation.Book, prices lookup.Prices, t0, t1 int64) {
	if t1 <= t0 || prices == nil {
		return
	}
	for asset, bucket := range book {
		if asset == domain.CashAsset || bucket.Direction == domain.DirectionCash {
			continue
		}
		p0, ok0 := prices.PriceAt(asset, t0)
		p1, ok1 := prices.PriceAt(asset, t1)
		if !ok0 || !ok1 || p0 <= 0 || p1 <= 0 {
			continue
		}
		r := (p1 - p0) / p0
		signed := bucket.Direction.Sign() * float64(bucket.Leverage) * r
		bucket.Value *= math.Max(0, 1+signed)
		book[asset] = bucket
	}
}

// boundariesFrom returns start followed by every grid entry in (start, now].
func boundariesFrom(grid []int64, start, now int64) []int64 {
	out := []int64{start}
	i := sort.Search(len(grid), func(i int) bool { return grid[i] > start })
	for ; i < len(grid) && grid[i] <= now; i++ {
		out = append(out, grid[i])
	}
	return out
}

// pendingSignals returns signals with id > afterID ordered by id.
// Ledger ids follow block order, so id order is chronological.
func pendingSignals(signals []*domain.Signal, afterID int64) []*domain.Signal {
	out := make([]*domain.Signal, 0, len(signals))
	for _, s := range signals {
		if s != nil && s.ID > afterID {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func newSegment(strategyID string, start, end int64, raw, valueIndex float64) *domain.Segment {
	duration := end - start
	return &domain.Segment{
		StrategyID:        strategyID,
		StartTs:           start,
		EndTs:             end,
		DurationSec:       duration,
		RawReturn:         raw,
		HourlyEquivReturn: raw / (float64(duration) / domain.SecondsPerHour),
		ValueIndexEnd:     valueIndex,
	}
}

func int64Ptr(v int64) *int64 {
	return &v
}

// snapshotSet keeps the last snapshot per signal timestamp in first-seen order.
type snapshotSet struct {
	order []int64
	byTs  map[int64]*domain.PositionSnapshot
}

func newSnapshotSet() *snapshotSet {
	return &snapshotSet{byTs: make(map[int64]*domain.PositionSnapshot)}
}

func (s *snapshotSet) put(snap *domain.PositionSnapshot) {
	if _, ok := s.byTs[snap.SignalTs]; !ok {
		s.order = append(s.order, snap.SignalTs)
	}
	s.byTs[snap.SignalTs] = snap
}

func (s *snapshotSet) list() []*domain.PositionSnapshot {
	out := make([]*domain.PositionSnapshot, 0, len(s.order))
	for _, ts := range s.order {
		out = append(out, s.byTs[ts])
	}
	return out
}

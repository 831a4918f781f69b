package lookup

import (
	"errors"
	"sort"

	"signal-leaderboard/internal/domain"
)

// Errors returned by lookup functions.
var (
	ErrNoPriceData = errors.New("no price data available")
)

// PriceAt returns the latest price at or before target.
// points must be sorted by Timestamp ASC.
// Returns ErrNoPriceData if slice is empty or no point precedes target.
func PriceAt(target int64, points []*domain.PricePoint) (float64, error) {
	if len(points) == 0 {
		return 0, ErrNoPriceData
	}

	// First index with Timestamp > target
	i := sort.Search(len(points), func(i int) bool {
		return points[i].Timestamp > target
	})
	if i == 0 {
		return 0, ErrNoPriceData
	}
	return points[i-1].PriceUSD, nil
}

// Series is an immutable, sorted price series of one asset.
type Series struct {
	ts []int64
	px []float64
}

// NewSeries builds a series from points in any order.
// Duplicate timestamps keep the last point given.
func NewSeries(points []*domain.PricePoint) *Series {
	sorted := make([]*domain.PricePoint, 0, len(points))
	for _, p := range points {
		if p != nil {
			sorted = append(sorted, p)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	s := &Series{
		ts: make([]int64, 0, len(sorted)),
		px: make([]float64, 0, len(sorted)),
	}
	for _, p := range sorted {
		if n := len(s.ts); n > 0 && s.ts[n-1] == p.Timestamp {
			s.px[n-1] = p.PriceUSD
			continue
		}
		s.ts = append(s.ts, p.Timestamp)
		s.px = append(s.px, p.PriceUSD)
	}
	return s
}

// Len returns the number of samples.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ts)
}

// At returns the latest price at or before target.
func (s *Series) At(target int64) (float64, bool) {
	if s.Len() == 0 {
		return 0, false
	}
	i := sort.Search(len(s.ts), func(i int) bool {
		return s.ts[i] > target
	})
	if i == 0 {
		return 0, false
	}
	return s.px[i-1], true
}

// Prices answers at-or-before price queries across assets.
type Prices interface {
	PriceAt(asset string, ts int64) (float64, bool)
}

// Book is a set of per-asset series keyed by normalized symbol.
type Book map[string]*Series

// Compile-time interface check.
var _ Prices = Book(nil)

// NewBook groups points by asset.
func NewBook(points []*domain.PricePoint) Book {
	grouped := make(map[string][]*domain.PricePoint)
	for _, p := range points {
		if p == nil {
			continue
		}
		asset := domain.NormalizeAsset(p.Asset)
		grouped[asset] = append(grouped[asset], p)
	}

	b := make(Book, len(grouped))
	for asset, pts := range grouped {
		b[asset] = NewSeries(pts)
	}
	return b
}

// PriceAt returns the latest known price of asset at or before ts.
func (b Book) PriceAt(asset string, ts int64) (float64, bool) {
	s, ok := b[domain.NormalizeAsset(asset)]
	if !ok {
		return 0, false
	}
	return s.At(ts)
}

// HourlyGrid returns the distinct hour-boundary timestamps across all series, ASC.
func (b Book) HourlyGrid() []int64 {
	seen := make(map[int64]struct{})
	for _, s := range b {
		for _, ts := range s.ts {
			if domain.IsHourBoundary(ts) {
				seen[ts] = struct{}{}
			}
		}
	}
	return sortedKeys(seen)
}

// HourlyGrid returns the distinct hour-boundary timestamps of points, ASC.
func HourlyGrid(points []*domain.PricePoint) []int64 {
	seen := make(map[int64]struct{})
	for _, p := range points {
		if p != nil && domain.IsHourBoundary(p.Timestamp) {
			seen[p.Timestamp] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(m map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(m))
	for ts := range m {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FirstAtOrAfter returns the index of the first grid entry >= ts, or len(grid).
func FirstAtOrAfter(grid []int64, ts int64) int {
	return sort.Search(len(grid), func(i int) bool {
		return grid[i] >= ts
	})
}

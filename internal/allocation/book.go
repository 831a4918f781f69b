package allocation

import (
	"sort"

	"signal-leaderboard/internal/domain"
)

// Bucket is the capital held in one asset.
type Bucket struct {
	Value     float64
	Direction domain.Direction
	Leverage  int
}

// Book is a bucketed portfolio keyed by asset symbol.
// Values are equity units on the replay path and percent units on the
// ingestion path; Apply treats both the same way.
type Book map[string]Bucket

// NewCashBook returns a book holding value in USD cash.
func NewCashBook(value float64) Book {
	return Book{domain.CashAsset: cashBucket(value)}
}

func cashBucket(value float64) Bucket {
	return Bucket{Value: value, Direction: domain.DirectionCash, Leverage: 1}
}

// Total returns the sum of all bucket values.
func (b Book) Total() float64 {
	var total float64
	for _, bucket := range b {
		total += bucket.Value
	}
	return total
}

// Clone returns an independent copy.
func (b Book) Clone() Book {
	out := make(Book, len(b))
	for asset, bucket := range b {
		out[asset] = bucket
	}
	return out
}

// Assets returns bucket symbols in ascending order.
func (b Book) Assets() []string {
	out := make([]string, 0, len(b))
	for asset := range b {
		out = append(out, asset)
	}
	sort.Strings(out)
	return out
}

// Apply rebalances the book in place toward t and returns the opened flag
// after the signal. Unsupported targets leave the book untouched.
//
// The first position of a strategy ignores the percentage and moves all
// equity into the signaled asset. Afterwards the target asset is set to
// Percent of total equity and every other bucket is scaled to fill the rest;
// total equity is unchanged.
func (b Book) Apply(t Target, opened bool) bool {
	if !t.Supported {
		return opened
	}

	total := b.Total()

	if !opened {
		for asset := range b {
			delete(b, asset)
		}
		b[t.Asset] = Bucket{Value: total, Direction: t.Direction, Leverage: t.Leverage}
		return true
	}

	current := b[t.Asset].Value
	other := total - current
	desired := t.Fraction() * total
	desiredOther := total - desired

	if other <= 0 && t.IsCash() {
		// Only cash is held; there is nothing to move it into.
		return opened
	}

	switch {
	case other > 0:
		scale := desiredOther / other
		for asset, bucket := range b {
			if asset == t.Asset {
				continue
			}
			bucket.Value *= scale
			b[asset] = bucket
		}
	case desiredOther > 0:
		cash := b[domain.CashAsset]
		b[domain.CashAsset] = cashBucket(cash.Value + desiredOther)
	}

	if desired <= 0 {
		delete(b, t.Asset)
		return opened
	}
	b[t.Asset] = Bucket{Value: desired, Direction: t.Direction, Leverage: t.Leverage}
	return opened
}

// Positions converts the book into display percentages summing to 100,
// sorted by percent descending then asset. Empty or zero-equity books have
// no positions.
func (b Book) Positions() []domain.Position {
	total := b.Total()
	if total <= 0 {
		return []domain.Position{}
	}

	out := make([]domain.Position, 0, len(b))
	for asset, bucket := range b {
		if bucket.Value <= 0 {
			continue
		}
		out = append(out, domain.Position{
			Asset:     asset,
			Percent:   bucket.Value / total * 100,
			Direction: bucket.Direction,
			Leverage:  bucket.Leverage,
		})
	}
	SortPositions(out)
	return out
}

// SortPositions orders positions by percent descending, ties by asset.
func SortPositions(positions []domain.Position) {
	sort.Slice(positions, func(i, j int) bool {
		if positions[i].Percent != positions[j].Percent {
			return positions[i].Percent > positions[j].Percent
		}
		return positions[i].Asset < positions[j].Asset
	})
}

// FromHoldings rebuilds a book from persisted holdings.
func FromHoldings(holdings []*domain.Holding) Book {
	b := make(Book, len(holdings))
	for _, h := range holdings {
		asset := domain.NormalizeAsset(h.Asset)
		if h.IsUSD || domain.IsCash(asset) {
			b[asset] = cashBucket(b[asset].Value + h.Value)
			continue
		}
		b[asset] = Bucket{Value: h.Value, Direction: h.Direction, Leverage: clampLeverage(h.Leverage)}
	}
	return b
}

// FromPositions builds a percent-unit book from a snapshot's positions.
func FromPositions(positions []domain.Position) Book {
	b := make(Book, len(positions))
	for _, p := range positions {
		asset := domain.NormalizeAsset(p.Asset)
		if domain.IsCash(asset) {
			b[asset] = cashBucket(b[asset].Value + p.Percent)
			continue
		}
		b[asset] = Bucket{Value: p.Percent, Direction: p.Direction, Leverage: clampLeverage(p.Leverage)}
	}
	return b
}

// Holdings converts the book into holdings rows ordered by asset.
func (b Book) Holdings(strategyID string) []*domain.Holding {
	out := make([]*domain.Holding, 0, len(b))
	for _, asset := range b.Assets() {
		bucket := b[asset]
		out = append(out, &domain.Holding{
			StrategyID: strategyID,
			Asset:      asset,
			Value:      bucket.Value,
			Direction:  bucket.Direction,
			Leverage:   bucket.Leverage,
			IsUSD:      asset == domain.CashAsset,
		})
	}
	return out
}

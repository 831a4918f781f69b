package allocation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-leaderboard/internal/domain"
)

const eps = 1e-9

func target(asset string, dir domain.Direction, lev int, pct float64) Target {
	sig := &domain.Signal{Asset: asset, Direction: dir, Leverage: lev, WeightRaw: pct}
	return NewTarget(sig, domain.DefaultAssets)
}

func TestApply_FirstSignalTakesAllEquity(t *testing.T) {
	b := NewCashBook(1.0)

	opened := b.Apply(target("BTC", domain.DirectionLong, 1, 60), false)

	require.True(t, opened)
	require.Len(t, b, 1)
	assert.InDelta(t, 1.0, b["BTC"].Value, eps)
	assert.Equal(t, domain.DirectionLong, b["BTC"].Direction)
	assert.Equal(t, 1, b["BTC"].Leverage)
}

func TestApply_SecondSignalScalesOthers(t *testing.T) {
	b := Book{"BTC": {Value: 1.0, Direction: domain.DirectionLong, Leverage: 1}}

	opened := b.Apply(target("ETH", domain.DirectionLong, 2, 40), true)

	require.True(t, opened)
	assert.InDelta(t, 0.6, b["BTC"].Value, eps)
	assert.InDelta(t, 0.4, b["ETH"].Value, eps)
	assert.Equal(t, 2, b["ETH"].Leverage)
	assert.InDelta(t, 1.0, b.Total(), eps)
}

func TestApply_ReduceOnlyAssetMovesShortfallToCash(t *testing.T) {
	b := Book{"BTC": {Value: 2.0, Direction: domain.DirectionLong, Leverage: 1}}

	b.Apply(target("BTC", domain.DirectionLong, 1, 25), true)

	assert.InDelta(t, 0.5, b["BTC"].Value, eps)
	assert.InDelta(t, 1.5, b[domain.CashAsset].Value, eps)
	assert.Equal(t, domain.DirectionCash, b[domain.CashAsset].Direction)
	assert.InDelta(t, 2.0, b.Total(), eps)
}

func TestApply_ZeroPercentExits(t *testing.T) {
	b := Book{
		"BTC": {Value: 0.6, Direction: domain.DirectionLong, Leverage: 1},
		"ETH": {Value: 0.4, Direction: domain.DirectionShort, Leverage: 3},
	}

	b.Apply(target("ETH", domain.DirectionShort, 3, 0), true)

	_, ok := b["ETH"]
	assert.False(t, ok, "ETH bucket should be removed")
	assert.InDelta(t, 1.0, b["BTC"].Value, eps)
}

func TestApply_UnsupportedAssetIsIgnored(t *testing.T) {
	b := Book{"BTC": {Value: 1.0, Direction: domain.DirectionLong, Leverage: 1}}
	before := b.Clone()

	opened := b.Apply(target("PEPE", domain.DirectionLong, 1, 50), true)
	assert.True(t, opened)
	assert.Equal(t, before, b)

	fresh := NewCashBook(1.0)
	opened = fresh.Apply(target("PEPE", domain.DirectionLong, 1, 50), false)
	assert.False(t, opened, "unsupported signal must not open the strategy")
	assert.Equal(t, NewCashBook(1.0), fresh)
}

func TestApply_CashTargetOnCashOnlyBook(t *testing.T) {
	b := NewCashBook(1.0)

	b.Apply(target("USD", domain.DirectionLong, 1, 40), true)

	assert.InDelta(t, 1.0, b.Total(), eps)
	assert.InDelta(t, 1.0, b[domain.CashAsset].Value, eps)
}

func TestApply_Deterministic(t *testing.T) {
	base := Book{
		"BTC":            {Value: 0.3, Direction: domain.DirectionLong, Leverage: 2},
		"ETH":            {Value: 0.5, Direction: domain.DirectionShort, Leverage: 1},
		domain.CashAsset: cashBucket(0.2),
	}
	tg := target("SOL", domain.DirectionLong, 1, 33)

	a := base.Clone()
	b := base.Clone()
	a.Apply(tg, true)
	b.Apply(tg, true)

	assert.Equal(t, a, b)
}

func TestApply_Closure(t *testing.T) {
	assets := []string{"BTC", "ETH", "SOL", "USD"}
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		b := Book{}
		for _, a := range assets {
			if rng.Intn(2) == 0 {
				continue
			}
			if a == domain.CashAsset {
				b[a] = cashBucket(rng.Float64() * 3)
				continue
			}
			b[a] = Bucket{Value: rng.Float64() * 3, Direction: domain.DirectionLong, Leverage: 1}
		}
		before := b.Total()

		tg := target(assets[rng.Intn(len(assets))], domain.DirectionShort, 1+rng.Intn(5), rng.Float64()*120-10)
		b.Apply(tg, true)

		assert.InDelta(t, before, b.Total(), 1e-9, "iteration %d", i)
		for asset, bucket := range b {
			assert.GreaterOrEqual(t, bucket.Value, 0.0, "asset %s", asset)
		}
	}
}

func TestPositions_NormalizedAndSorted(t *testing.T) {
	b := Book{
		"BTC":            {Value: 0.3, Direction: domain.DirectionLong, Leverage: 1},
		"ETH":            {Value: 0.6, Direction: domain.DirectionShort, Leverage: 2},
		domain.CashAsset: cashBucket(0.3),
	}

	positions := b.Positions()

	require.Len(t, positions, 3)
	assert.Equal(t, "ETH", positions[0].Asset)
	assert.Equal(t, "BTC", positions[1].Asset, "ties broken by asset")
	assert.Equal(t, domain.CashAsset, positions[2].Asset)

	var sum float64
	for _, p := range positions {
		sum += p.Percent
	}
	assert.InDelta(t, 100, sum, 1e-9)
	assert.InDelta(t, 50, positions[0].Percent, 1e-9)
}

func TestPositions_ZeroEquity(t *testing.T) {
	assert.Empty(t, Book{}.Positions())
	assert.Empty(t, Book{"BTC": {Value: 0, Direction: domain.DirectionLong, Leverage: 5}}.Positions())
}

func TestHoldingsRoundTrip(t *testing.T) {
	b := Book{
		"BTC":            {Value: 0.6, Direction: domain.DirectionLong, Leverage: 1},
		"ETH":            {Value: 0.3, Direction: domain.DirectionShort, Leverage: 2},
		domain.CashAsset: cashBucket(0.1),
	}

	holdings := b.Holdings("s1")
	require.Len(t, holdings, 3)
	assert.Equal(t, "BTC", holdings[0].Asset)
	assert.True(t, holdings[2].IsUSD)
	assert.Equal(t, "s1", holdings[1].StrategyID)

	assert.Equal(t, b, FromHoldings(holdings))
}

func TestFromPositions_PercentSpaceApply(t *testing.T) {
	base := FromPositions([]domain.Position{
		{Asset: "BTC", Percent: 100, Direction: domain.DirectionLong, Leverage: 1},
	})

	base.Apply(target("ETH", domain.DirectionLong, 2, 40), true)

	positions := base.Positions()
	require.Len(t, positions, 2)
	assert.Equal(t, "BTC", positions[0].Asset)
	assert.InDelta(t, 60, positions[0].Percent, eps)
	assert.InDelta(t, 40, positions[1].Percent, eps)
}

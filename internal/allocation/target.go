package allocation

import (
	"math"

	"signal-leaderboard/internal/domain"
)

// Leverage bounds applied to every signal.
const (
	MinLeverage = 1
	MaxLeverage = 5
)

// Target is the validated form of a signal: the only input the rebalance
// math accepts. Both the replay and ingestion paths build it with NewTarget.
type Target struct {
	Asset     string
	Direction domain.Direction
	Leverage  int
	Percent   float64 // truncated, within [0,100]
	Supported bool    // false: the signal has no effect
}

// NewTarget validates a signal against the asset registry.
func NewTarget(sig *domain.Signal, registry domain.AssetRegistry) Target {
	asset := domain.NormalizeAsset(sig.Asset)

	t := Target{
		Asset:     asset,
		Direction: sig.Direction,
		Leverage:  clampLeverage(sig.Leverage),
		Percent:   clampPercent(sig.WeightRaw),
		Supported: registry.Supports(asset),
	}

	if domain.IsCash(asset) {
		t.Direction = domain.DirectionCash
		t.Leverage = 1
	} else if t.Direction == domain.DirectionCash {
		t.Direction = domain.DirectionLong
	}
	return t
}

// IsCash reports whether the target is the USD cash bucket.
func (t Target) IsCash() bool {
	return t.Asset == domain.CashAsset
}

// Fraction returns Percent as a fraction of equity.
func (t Target) Fraction() float64 {
	return t.Percent / 100
}

func clampPercent(p float64) float64 {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0
	}
	p = math.Trunc(p)
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func clampLeverage(l int) int {
	if l < MinLeverage {
		return MinLeverage
	}
	if l > MaxLeverage {
		return MaxLeverage
	}
	return l
}

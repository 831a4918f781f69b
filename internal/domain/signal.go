package domain

import (
	"fmt"
	"strings"
)

// Signal is one entry of the on-chain signal ledger.
// Corresponds to signals table in PostgreSQL. Never mutated once ingested.
type Signal struct {
	ID           int64     // on-chain index, strictly increasing
	StrategyID   string    // deterministic hash of (trader, strategy name)
	Trader       string    // lower-case hex address
	StrategyName string    // trader-chosen strategy name
	Asset        string    // asset symbol as posted (normalized upper-case)
	Direction    Direction // Long or Short
	Leverage     int       // 1..5 as posted; clamped again on use
	WeightRaw    float64   // target allocation percent as posted
	Message      string    // free-form trader note
	Timestamp    int64     // block timestamp (unix seconds)
}

// Direction is the exposure sign of a position.
type Direction int

// Direction values. Cash buckets carry no exposure.
const (
	DirectionShort Direction = -1
	DirectionCash  Direction = 0
	DirectionLong  Direction = 1
)

// contractDirectionLong is the contract enum value for Long.
const contractDirectionLong = 0

// DirectionFromContract maps the contract enum to a Direction.
// The contract defines Long=0 and Short=1. Any value other than Long is
// read as Short; the enum has no third member.
func DirectionFromContract(v uint8) Direction {
	if v == contractDirectionLong {
		return DirectionLong
	}
	return DirectionShort
}

// Sign returns the multiplier applied to asset returns.
func (d Direction) Sign() float64 {
	return float64(d)
}

// String returns the string representation of Direction.
func (d Direction) String() string {
	switch d {
	case DirectionShort:
		return "SHORT"
	case DirectionLong:
		return "LONG"
	default:
		return "CASH"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(text []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(text))) {
	case "SHORT":
		*d = DirectionShort
	case "LONG":
		*d = DirectionLong
	case "CASH", "":
		*d = DirectionCash
	default:
		return fmt.Errorf("unknown direction %q", string(text))
	}
	return nil
}

// NormalizeTrader lower-cases and trims a trader address.
func NormalizeTrader(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// NoSignalID precedes every ledger index; ledger ids start at 0.
const NoSignalID int64 = -1

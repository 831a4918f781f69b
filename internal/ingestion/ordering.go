package ingestion

import (
	"errors"
	"sort"

	"signal-leaderboard/internal/domain"
)

// ErrInvalidOrdering is returned when a ledger page is not a contiguous id run.
var ErrInvalidOrdering = errors.New("signals are not a contiguous id range")

// SortSignals orders signals by ledger id ASC.
func SortSignals(signals []*domain.Signal) {
	sort.Slice(signals, func(i, j int) bool {
		return signals[i].ID < signals[j].ID
	})
}

// ValidateSignalRange checks that signals hold exactly ids [from, to) in order.
func ValidateSignalRange(signals []*domain.Signal, from, to int64) error {
	if int64(len(signals)) != to-from {
		return ErrInvalidOrdering
	}
	for i, sig := range signals {
		if sig.ID != from+int64(i) {
			return ErrInvalidOrdering
		}
	}
	return nil
}

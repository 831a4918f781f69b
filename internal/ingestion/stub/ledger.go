package stub

import (
	"context"
	"fmt"
	"sync"

	"signal-leaderboard/internal/domain"
)

// Ledger is a fixed in-memory signal ledger for testing.
// Implements chain.SignalReader.
type Ledger struct {
	mu      sync.RWMutex
	signals []*domain.Signal
	err     error
}

// NewLedger creates a ledger holding signals; their IDs are reassigned to
// their positions.
func NewLedger(signals ...*domain.Signal) *Ledger {
	l := &Ledger{}
	l.Append(signals...)
	return l
}

// Append posts signals at the end of the ledger.
func (l *Ledger) Append(signals ...*domain.Signal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, sig := range signals {
		c := *sig
		c.ID = int64(len(l.signals))
		c.StrategyID = ""
		l.signals = append(l.signals, &c)
	}
}

// FailWith makes every subsequent read return err. Nil clears it.
func (l *Ledger) FailWith(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

// SignalsCount returns the number of posted signals.
func (l *Ledger) SignalsCount(_ context.Context) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.err != nil {
		return 0, l.err
	}
	return int64(len(l.signals)), nil
}

// SignalsRange returns copies of signals with index in [from, to).
func (l *Ledger) SignalsRange(_ context.Context, from, to int64) ([]*domain.Signal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.err != nil {
		return nil, l.err
	}
	if from < 0 || to < from || to > int64(len(l.signals)) {
		return nil, fmt.Errorf("invalid range [%d, %d) of %d", from, to, len(l.signals))
	}
	out := make([]*domain.Signal, 0, to-from)
	for _, sig := range l.signals[from:to] {
		c := *sig
		out = append(out, &c)
	}
	return out, nil
}

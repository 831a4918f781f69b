package verification

import (
	"context"
	"errors"
	"fmt"

	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/lookup"
	"signal-leaderboard/internal/replay"
	"signal-leaderboard/internal/storage"
)

// ErrStrategyNotFound is returned when the strategy ID doesn't exist.
var ErrStrategyNotFound = errors.New("strategy not found")

// ReplayVerifier implements Verifier over the stores.
type ReplayVerifier struct {
	strategies storage.StrategyStore
	signals    storage.SignalStore
	segments   storage.SegmentStore
	prices     storage.PriceStore
	registry   domain.AssetRegistry
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(stores *storage.Stores, registry domain.AssetRegistry) *ReplayVerifier {
	if registry == nil {
		registry = domain.DefaultAssets
	}
	return &ReplayVerifier{
		strategies: stores.Strategies,
		signals:    stores.Signals,
		segments:   stores.Segments,
		prices:     stores.Prices,
		registry:   registry,
	}
}

var _ Verifier = (*ReplayVerifier)(nil)

// VerifyStrategy verifies one strategy.
func (v *ReplayVerifier) VerifyStrategy(ctx context.Context, strategyID string) (*VerificationResult, error) {
	s, err := v.strategies.GetByID(ctx, strategyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrStrategyNotFound
		}
		return nil, err
	}

	book, err := v.loadBook(ctx)
	if err != nil {
		return nil, err
	}
	return v.verify(ctx, s, book, book.HourlyGrid())
}

// VerifyAll verifies every strategy against one price snapshot.
func (v *ReplayVerifier) VerifyAll(ctx context.Context) (*VerificationReport, error) {
	strategies, err := v.strategies.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	book, err := v.loadBook(ctx)
	if err != nil {
		return nil, err
	}
	grid := book.HourlyGrid()

	report := &VerificationReport{
		TotalStrategies: len(strategies),
		Results:         make([]VerificationResult, 0, len(strategies)),
	}

	for _, s := range strategies {
		result, err := v.verify(ctx, s, book, grid)
		if err != nil {
			// Record error as divergence
			report.Results = append(report.Results, VerificationResult{
				StrategyID:  s.ID,
				StoredValue: s.LastValueIndex,
				Divergences: []FieldDivergence{
					{Field: "Error", Expected: nil, Actual: err.Error()},
				},
			})
			report.DivergentStrategies++
			continue
		}

		report.Results = append(report.Results, *result)
		if result.Match {
			report.MatchedStrategies++
		} else {
			report.DivergentStrategies++
		}
	}

	return report, nil
}

func (v *ReplayVerifier) loadBook(ctx context.Context) (lookup.Book, error) {
	points, err := v.prices.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}
	return lookup.NewBook(points), nil
}

// verify replays s from its first signal up to the stored watermark.
func (v *ReplayVerifier) verify(ctx context.Context, s *domain.Strategy, book lookup.Book, grid []int64) (*VerificationResult, error) {
	stored, err := v.segments.GetByStrategy(ctx, s.ID)
	if err != nil {
		return nil, fmt.Errorf("load segments: %w", err)
	}

	result := &VerificationResult{
		StrategyID:     s.ID,
		StoredSegments: len(stored),
		StoredValue:    s.LastValueIndex,
		ReplayedValue:  replay.InitialValueIndex,
	}
	if s.LastSegmentEndTs == nil {
		result.StoredValue = replay.InitialValueIndex
		result.Match = len(stored) == 0
		return result, nil
	}

	signals, err := v.signals.GetByStrategy(ctx, s.ID, domain.NoSignalID)
	if err != nil {
		return nil, fmt.Errorf("load signals: %w", err)
	}

	out := replay.Extend(replay.State{LastAppliedSignalID: domain.NoSignalID}, replay.Input{
		StrategyID:    s.ID,
		FirstSignalTs: s.FirstSignalTs,
		Signals:       signals,
		Grid:          grid,
		Prices:        book,
		Registry:      v.registry,
		Now:           *s.LastSegmentEndTs,
	})

	result.ReplayedSegments = len(out.Segments)
	if out.Changed() {
		result.ReplayedValue = out.State.ValueIndex
	}
	result.Divergences = CompareSegments(stored, out.Segments)
	if !floatEquals(result.StoredValue, result.ReplayedValue) {
		result.Divergences = append(result.Divergences, FieldDivergence{
			StartTs: *s.LastSegmentEndTs, Field: "ValueIndex", Expected: result.StoredValue, Actual: result.ReplayedValue,
		})
	}
	result.Match = len(result.Divergences) == 0
	return result, nil
}

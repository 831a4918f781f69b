package orchestrator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// NextRun returns the first hour boundary plus offset strictly after now.
func NextRun(now time.Time, offset time.Duration) time.Time {
	next := now.Truncate(time.Hour).Add(offset)
	for !next.After(now) {
		next = next.Add(time.Hour)
	}
	return next
}

// RunScheduled runs a pass at every hour plus offset until ctx is cancelled.
// A failed pass is logged; the next tick resumes from stored state.
func (o *Orchestrator) RunScheduled(ctx context.Context, offset time.Duration) error {
	for {
		next := NextRun(o.nowFunc(), offset)
		o.logger.Info("next hourly pass scheduled", zap.Time("at", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if _, err := o.Run(ctx); err != nil {
			if errors.Is(err, ErrPassRunning) {
				o.logger.Warn("previous hourly pass still running, skipping")
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.logger.Error("hourly pass failed", zap.Error(err))
		}
	}
}

package ingestion

import (
	"context"

	"go.uber.org/zap"

	"signal-leaderboard/internal/chain"
	"signal-leaderboard/internal/observability"
)

// Watch subscribes to ledger logs and turns each notification into a
// coalesced nudge for Runner.Run. Logs carry no signal data; the runner
// re-reads the ledger. The returned channel closes when the subscription ends.
func Watch(ctx context.Context, ws chain.WSClient, filter chain.LogsFilter, logger *zap.Logger) (<-chan struct{}, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	logs, err := ws.SubscribeLogs(ctx, filter)
	if err != nil {
		return nil, err
	}

	nudge := make(chan struct{}, 1)
	go func() {
		defer close(nudge)
		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-logs:
				if !ok {
					logger.Info("ledger log subscription closed")
					return
				}
				if n.Removed {
					continue
				}
				observability.RecordLogNotification()
				select {
				case nudge <- struct{}{}:
				default:
				}
			}
		}
	}()
	return nudge, nil
}

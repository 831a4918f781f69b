// Package notify publishes hourly pass results over NATS.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"signal-leaderboard/internal/orchestrator"
)

// Subjects published by Notifier.
const (
	SubjectStrategyUpdated = "leaderboard.strategy.updated"
	SubjectPassCompleted   = "leaderboard.pass.completed"
)

// Publisher is the subset of *nats.Conn used here.
type Publisher interface {
	Publish(subj string, data []byte) error
}

// Connect dials NATS with reconnects enabled.
func Connect(url string, logger *zap.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("signal-leaderboard"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return nc, nil
}

// StrategyUpdated is the payload of SubjectStrategyUpdated.
type StrategyUpdated struct {
	StrategyID string `json:"strategy_id"`
	RunID      string `json:"run_id"`
	At         int64  `json:"at"`
}

// PassCompleted is the payload of SubjectPassCompleted.
type PassCompleted struct {
	RunID    string   `json:"run_id"`
	At       int64    `json:"at"`
	Extended []string `json:"extended"`
	Computed int      `json:"computed"`
}

// Notifier implements orchestrator.Notifier over a NATS publisher.
type Notifier struct {
	pub    Publisher
	logger *zap.Logger
}

// NewNotifier creates a notifier over pub.
func NewNotifier(pub Publisher, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{pub: pub, logger: logger}
}

// PassCompleted publishes one update per extended strategy, then a summary.
// It stops at the first publish error.
func (n *Notifier) PassCompleted(ctx context.Context, ev *orchestrator.PassEvent) error {
	for _, id := range ev.Extended {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := n.publish(SubjectStrategyUpdated, StrategyUpdated{
			StrategyID: id,
			RunID:      ev.RunID,
			At:         ev.FinishedAt,
		}); err != nil {
			return err
		}
	}

	extended := ev.Extended
	if extended == nil {
		extended = []string{}
	}
	return n.publish(SubjectPassCompleted, PassCompleted{
		RunID:    ev.RunID,
		At:       ev.FinishedAt,
		Extended: extended,
		Computed: len(ev.Computed),
	})
}

func (n *Notifier) publish(subject string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", subject, err)
	}
	if err := n.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	n.logger.Debug("published", zap.String("subject", subject))
	return nil
}

// Noop discards pass events.
type Noop struct{}

// PassCompleted implements orchestrator.Notifier.
func (Noop) PassCompleted(context.Context, *orchestrator.PassEvent) error {
	return nil
}

var (
	_ orchestrator.Notifier = (*Notifier)(nil)
	_ orchestrator.Notifier = Noop{}
	_ Publisher             = (*nats.Conn)(nil)
)

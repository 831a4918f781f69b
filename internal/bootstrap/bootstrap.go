// Package bootstrap builds the shared components of every binary from the
// resolved configuration.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"signal-leaderboard/internal/chain"
	"signal-leaderboard/internal/config"
	"signal-leaderboard/internal/notify"
	"signal-leaderboard/internal/orchestrator"
	"signal-leaderboard/internal/pricefeed"
	"signal-leaderboard/internal/storage"
	chstore "signal-leaderboard/internal/storage/clickhouse"
	"signal-leaderboard/internal/storage/memory"
	"signal-leaderboard/internal/storage/migrations"
	pgstore "signal-leaderboard/internal/storage/postgres"
)

// OpenStores opens the configured storage backend and applies migrations.
// The returned cleanup closes every connection.
func OpenStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage.Stores, func(), error) {
	if cfg.UseMemory {
		logger.Info("using in-memory storage")
		return memory.NewStores(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	applied, err := migrations.RunPostgresMigrations(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}
	logger.Info("postgres ready", zap.Strings("migrations", applied))

	cleanup := pool.Close
	var prices storage.PriceStore
	if cfg.PriceStore == config.PriceStoreClickHouse {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		logger.Info("clickhouse price store ready")
		prices = chstore.NewPriceStore(conn)
		cleanup = func() {
			if err := conn.Close(); err != nil {
				logger.Warn("close clickhouse", zap.Error(err))
			}
			pool.Close()
		}
	}

	return pgstore.NewStores(pool, prices), cleanup, nil
}

// NewBackfiller wires the price API client to the stores.
func NewBackfiller(cfg *config.Config, stores *storage.Stores, logger *zap.Logger) *pricefeed.Backfiller {
	opts := []pricefeed.Option{
		pricefeed.WithBaseURL(cfg.PriceAPI.BaseURL),
		pricefeed.WithTimeout(cfg.PriceAPI.Timeout),
		pricefeed.WithRequestInterval(cfg.PriceAPI.RequestInterval),
		pricefeed.WithMaxRetries(cfg.PriceAPI.MaxRetries),
	}
	if cfg.PriceAPI.APIKey != "" {
		opts = append(opts, pricefeed.WithAPIKey(cfg.PriceAPI.APIKeyHeader, cfg.PriceAPI.APIKey))
	}

	return pricefeed.NewBackfiller(pricefeed.BackfillerOptions{
		Source:     pricefeed.NewClient(opts...),
		Prices:     stores.Prices,
		Strategies: stores.Strategies,
		Signals:    stores.Signals,
		Registry:   cfg.Assets,
		Lookback:   cfg.PriceAPI.Lookback,
		Logger:     logger.Named("pricefeed"),
	})
}

// NewNotifier connects to NATS when configured, else returns a no-op.
func NewNotifier(cfg *config.Config, logger *zap.Logger) (orchestrator.Notifier, func(), error) {
	if cfg.NATSURL == "" {
		return notify.Noop{}, func() {}, nil
	}
	nc, err := notify.Connect(cfg.NATSURL, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("nats connected", zap.String("url", nc.ConnectedUrl()))
	return notify.NewNotifier(nc, logger.Named("notify")), func() {
		if err := nc.Drain(); err != nil {
			logger.Warn("drain nats", zap.Error(err))
		}
	}, nil
}

// NewSignalReader builds the ledger contract reader over JSON-RPC.
func NewSignalReader(cfg *config.Config) (*chain.ContractReader, error) {
	reader, err := chain.NewContractReader(chain.NewHTTPClient(cfg.RPCEndpoint), cfg.ContractAddress)
	if err != nil {
		return nil, fmt.Errorf("contract reader: %w", err)
	}
	return reader, nil
}

// NewOrchestrator builds the hourly pass over the given collaborators.
func NewOrchestrator(cfg *config.Config, stores *storage.Stores, backfiller orchestrator.PriceBackfiller, notifier orchestrator.Notifier, logger *zap.Logger) *orchestrator.Orchestrator {
	return orchestrator.New(orchestrator.Options{
		Stores:     stores,
		Registry:   cfg.Assets,
		Policy:     cfg.Policy,
		Backfiller: backfiller,
		Notifier:   notifier,
		Logger:     logger.Named("orchestrator"),
	})
}

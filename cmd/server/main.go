// Package main provides the unified service that runs every component together:
// - Ingestion (continuous): ledger polling, nudged by the log subscription
// - Hourly pass (scheduled): price backfill → replay → statistics → notify
// - Query API: read-only leaderboard and strategy views, /metrics
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"signal-leaderboard/internal/api"
	"signal-leaderboard/internal/bootstrap"
	"signal-leaderboard/internal/chain"
	"signal-leaderboard/internal/config"
	"signal-leaderboard/internal/ingestion"
	"signal-leaderboard/internal/logging"
	"signal-leaderboard/internal/observability"
	"signal-leaderboard/internal/orchestrator"
	"signal-leaderboard/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// Server holds all components of the unified service.
type Server struct {
	cfg    *config.Config
	stores *storage.Stores
	reader *chain.ContractReader
	runner *ingestion.Runner
	orch   *orchestrator.Orchestrator
	logger *zap.Logger

	startedAt time.Time
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	if err := cfg.Validate(true); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog, err := logging.New("server", cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server failed", zap.Error(err))
		_ = closeLog()
		os.Exit(1)
	}
	logger.Info("shutdown complete")
	_ = closeLog()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting server",
		zap.String("phase", cfg.Phase),
		zap.String("config_file", cfg.Path),
		zap.String("contract", cfg.ContractAddress),
		zap.String("price_store", cfg.PriceStore),
		zap.Bool("use_memory", cfg.UseMemory),
		zap.Strings("assets", cfg.AssetList()))

	stores, closeStores, err := bootstrap.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStores()

	reader, err := bootstrap.NewSignalReader(cfg)
	if err != nil {
		return err
	}
	head, err := reader.Head(ctx)
	if err != nil {
		return fmt.Errorf("rpc endpoint %s: %w", cfg.RPCEndpoint, err)
	}
	logger.Info("connected to chain", zap.Uint64("head_block", head))

	notifier, closeNotifier, err := bootstrap.NewNotifier(cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	s := &Server{
		cfg:    cfg,
		stores: stores,
		reader: reader,
		runner: ingestion.NewRunner(ingestion.RunnerOptions{
			Reader:     reader,
			Signals:    stores.Signals,
			Strategies: stores.Strategies,
			Holdings:   stores.Holdings,
			Snapshots:  stores.Snapshots,
			Committer:  stores.Ingestion,
			Registry:   cfg.Assets,
			BatchSize:  cfg.IngestBatchSize,
			Interval:   cfg.IngestInterval,
			Logger:     logger.Named("ingestion"),
		}),
		orch:      bootstrap.NewOrchestrator(cfg, stores, bootstrap.NewBackfiller(cfg, stores, logger), notifier, logger),
		logger:    logger,
		startedAt: time.Now(),
	}
	return s.Run(ctx)
}

// Run starts every component and blocks until ctx is cancelled or one fails.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.runIngestion(gctx) })
	g.Go(func() error { return s.runHourly(gctx) })

	if s.cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.RouterOptions{
		Stores: s.stores,
		Status: s.status,
		Logger: s.logger.Named("api"),
	})
	g.Go(func() error { return serveHTTP(gctx, "api", s.cfg.HTTPAddr, router, s.logger) })

	if s.cfg.MetricsAddr != "" && s.cfg.MetricsAddr != s.cfg.HTTPAddr {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		g.Go(func() error { return serveHTTP(gctx, "metrics", s.cfg.MetricsAddr, mux, s.logger) })
	}

	return g.Wait()
}

// runIngestion polls the ledger; the log subscription, when configured,
// triggers extra runs between ticks.
func (s *Server) runIngestion(ctx context.Context) error {
	var nudge <-chan struct{}
	if s.cfg.WSEndpoint != "" {
		wsCfg := chain.DefaultWSConfig()
		ws, err := chain.NewWSClient(ctx, s.cfg.WSEndpoint, &wsCfg, s.logger.Named("ws"))
		if err != nil {
			s.logger.Warn("log subscription unavailable, polling only", zap.Error(err))
		} else {
			defer ws.Close()
			filter := chain.LogsFilter{
				Addresses: []common.Address{s.reader.Address()},
				EventIDs:  []common.Hash{s.reader.SignalPostedID()},
			}
			nudge, err = ingestion.Watch(ctx, ws, filter, s.logger.Named("watch"))
			if err != nil {
				s.logger.Warn("subscribe ledger logs failed, polling only", zap.Error(err))
				nudge = nil
			}
		}
	}
	return s.runner.Run(ctx, nudge)
}

// runHourly runs one pass immediately, then on the hourly schedule.
func (s *Server) runHourly(ctx context.Context) error {
	if _, err := s.orch.Run(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("startup pass failed", zap.Error(err))
	}
	return s.orch.RunScheduled(ctx, s.cfg.HourlyOffset)
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status      string                  `json:"status"`
	StartedAt   time.Time               `json:"started_at"`
	Uptime      string                  `json:"uptime"`
	Backend     string                  `json:"backend"`
	PriceStore  string                  `json:"price_store"`
	PassRunning bool                    `json:"pass_running"`
	NextPassAt  time.Time               `json:"next_pass_at"`
	LastPass    *orchestrator.RunResult `json:"last_pass,omitempty"`
}

func (s *Server) status() interface{} {
	backend := "postgres"
	if s.cfg.UseMemory {
		backend = "memory"
	}
	now := time.Now()
	return StatusResponse{
		Status:      "running",
		StartedAt:   s.startedAt,
		Uptime:      now.Sub(s.startedAt).Round(time.Second).String(),
		Backend:     backend,
		PriceStore:  s.cfg.PriceStore,
		PassRunning: s.orch.Running(),
		NextPassAt:  orchestrator.NextRun(now, s.cfg.HourlyOffset),
		LastPass:    s.orch.LastResult(),
	}
}

// serveHTTP runs srv until ctx is cancelled, then shuts it down gracefully.
func serveHTTP(ctx context.Context, name, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("server", name), zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s server: %w", name, err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.String("server", name), zap.Error(err))
	}
	return ctx.Err()
}

// Command backfill extends the stored price series of every supported asset
// up to the last completed hour.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"signal-leaderboard/internal/bootstrap"
	"signal-leaderboard/internal/config"
	"signal-leaderboard/internal/logging"
	"signal-leaderboard/internal/pricefeed"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	cfg.RegisterFlags(flag.CommandLine)
	asOf := flag.String("as-of", "", "Backfill as if now were this time (RFC3339); default now")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	if err := cfg.Validate(false); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	now := time.Now()
	if *asOf != "" {
		t, err := time.Parse(time.RFC3339, *asOf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parse --as-of: %v\n", err)
			os.Exit(1)
		}
		now = t
	}

	logger, closeLog, err := logging.New("backfill", cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := run(ctx, cfg, logger, now.Unix())
	if err != nil {
		logger.Error("backfill failed", zap.Error(err))
		_ = closeLog()
		os.Exit(1)
	}

	if *outputJSON {
		out, _ := json.MarshalIndent(toReport(result), "", "  ")
		fmt.Println(string(out))
	} else {
		printResult(result)
	}

	if result.Failed > 0 {
		_ = closeLog()
		os.Exit(2)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, now int64) (*pricefeed.Result, error) {
	stores, closeStores, err := bootstrap.OpenStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer closeStores()

	return bootstrap.NewBackfiller(cfg, stores, logger).BackfillAll(ctx, now)
}

// Report is the JSON output of one backfill.
type Report struct {
	PointsStored int           `json:"points_stored"`
	Failed       int           `json:"failed"`
	DurationMs   int64         `json:"duration_ms"`
	Assets       []AssetReport `json:"assets"`
}

// AssetReport is the outcome of one asset.
type AssetReport struct {
	Asset  string `json:"asset"`
	Points int    `json:"points"`
	Error  string `json:"error,omitempty"`
}

func toReport(r *pricefeed.Result) Report {
	rep := Report{
		PointsStored: r.PointsStored,
		Failed:       r.Failed,
		DurationMs:   r.Duration.Milliseconds(),
	}
	for _, a := range r.Assets {
		ar := AssetReport{Asset: a.Asset, Points: a.Points}
		if a.Err != nil {
			ar.Error = a.Err.Error()
		}
		rep.Assets = append(rep.Assets, ar)
	}
	return rep
}

func printResult(r *pricefeed.Result) {
	fmt.Printf("\n=== Backfill Summary ===\n")
	for _, a := range r.Assets {
		if a.Err != nil {
			fmt.Printf("%-6s FAILED: %v\n", a.Asset, a.Err)
			continue
		}
		fmt.Printf("%-6s %d points\n", a.Asset, a.Points)
	}
	fmt.Printf("Points Stored: %d\n", r.PointsStored)
	fmt.Printf("Failed Assets: %d\n", r.Failed)
	fmt.Printf("Duration:      %v\n", r.Duration)
}

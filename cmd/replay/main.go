// Command replay runs one extension and statistics pass over stored signals
// and prices, then prints a summary.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"signal-leaderboard/internal/bootstrap"
	"signal-leaderboard/internal/config"
	"signal-leaderboard/internal/logging"
	"signal-leaderboard/internal/metrics"
	"signal-leaderboard/internal/orchestrator"
	"signal-leaderboard/internal/reporting"
	"signal-leaderboard/internal/storage"
	"signal-leaderboard/internal/verification"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	cfg.RegisterFlags(flag.CommandLine)
	withBackfill := flag.Bool("backfill", false, "Backfill prices before replaying")
	strategyID := flag.String("strategy-id", "", "Print the window stats of this strategy after the pass")
	verify := flag.Bool("verify", false, "Compare stored segments with a full replay after the pass")
	reportDir := flag.String("report-dir", "", "Write LEADERBOARD.md and per-window CSV files to this directory")
	reportSort := flag.String("report-sort", "sharpe", "Leaderboard order in the report: sharpe, return, drawdown")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	if err := cfg.Validate(false); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog, err := logging.New("replay", cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, options{
		backfill:   *withBackfill,
		verify:     *verify,
		strategyID: *strategyID,
		reportDir:  *reportDir,
		reportSort: *reportSort,
		outputJSON: *outputJSON,
	}); err != nil {
		logger.Error("replay failed", zap.Error(err))
		_ = closeLog()
		os.Exit(1)
	}
}

type options struct {
	backfill   bool
	verify     bool
	strategyID string
	reportDir  string
	reportSort string
	outputJSON bool
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts options) error {
	sortKey, err := metrics.ParseSortKey(opts.reportSort)
	if err != nil {
		return err
	}

	stores, closeStores, err := bootstrap.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStores()

	var backfiller orchestrator.PriceBackfiller
	if opts.backfill {
		backfiller = bootstrap.NewBackfiller(cfg, stores, logger)
	}

	orch := bootstrap.NewOrchestrator(cfg, stores, backfiller, nil, logger)
	result, err := orch.Run(ctx)
	if err != nil {
		return err
	}

	summary := Summary{Pass: result}
	if opts.strategyID != "" {
		summary.Strategy, err = loadStrategy(ctx, stores, opts.strategyID)
		if err != nil {
			return err
		}
	}
	if opts.verify {
		summary.Verification, err = verification.NewReplayVerifier(stores, cfg.Assets).VerifyAll(ctx)
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}
	}

	if opts.reportDir != "" {
		summary.ReportFiles, err = writeReport(ctx, stores, sortKey, opts.reportDir)
		if err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	if opts.outputJSON {
		out, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}
	printSummary(summary)
	return nil
}

// Summary is the JSON output of one replay invocation.
type Summary struct {
	Pass     *orchestrator.RunResult `json:"pass"`
	Strategy *StrategySummary        `json:"strategy,omitempty"`

	Verification *verification.VerificationReport `json:"verification,omitempty"`
	ReportFiles  []string                         `json:"report_files,omitempty"`
}

// StrategySummary shows one strategy after the pass.
type StrategySummary struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	ValueIndex       float64       `json:"value_index"`
	LastSegmentEndTs *int64        `json:"last_segment_end_ts"`
	Windows          []WindowStats `json:"windows"`
}

// WindowStats is one window row of a strategy.
type WindowStats struct {
	Window       string   `json:"window"`
	TotalReturn  float64  `json:"total_return"`
	MaxDrawdown  float64  `json:"max_drawdown"`
	SharpeAnnual *float64 `json:"sharpe_annual"`
}

func loadStrategy(ctx context.Context, stores *storage.Stores, id string) (*StrategySummary, error) {
	s, err := stores.Strategies.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("strategy %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	stats, err := stores.Stats.GetByStrategy(ctx, id)
	if err != nil {
		return nil, err
	}

	out := &StrategySummary{
		ID:               s.ID,
		Name:             s.Name,
		ValueIndex:       s.LastValueIndex,
		LastSegmentEndTs: s.LastSegmentEndTs,
	}
	for _, st := range stats {
		out.Windows = append(out.Windows, WindowStats{
			Window:       string(st.Window),
			TotalReturn:  st.TotalReturn,
			MaxDrawdown:  st.MaxDrawdown,
			SharpeAnnual: st.SharpeAnnual,
		})
	}
	return out, nil
}

// writeReport renders the leaderboard into dir and returns the written paths.
func writeReport(ctx context.Context, stores *storage.Stores, sortKey metrics.SortKey, dir string) ([]string, error) {
	report, err := reporting.NewGenerator(stores.Strategies, stores.Stats).WithSort(sortKey).Generate(ctx)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	files := map[string]string{"LEADERBOARD.md": reporting.RenderMarkdown(report)}
	names := []string{"LEADERBOARD.md"}
	for i := range report.Windows {
		board := &report.Windows[i]
		name := fmt.Sprintf("leaderboard_%s.csv", strings.ToLower(string(board.Window)))
		files[name] = reporting.RenderCSV(board)
		names = append(names, name)
	}

	written := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(files[name]), 0o644); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func printSummary(s Summary) {
	r := s.Pass
	fmt.Printf("\n=== Replay Summary ===\n")
	fmt.Printf("Run ID:              %s\n", r.RunID)
	if r.LatestPricedHour > 0 {
		fmt.Printf("Latest Priced Hour:  %s\n", time.Unix(r.LatestPricedHour, 0).UTC().Format(time.RFC3339))
	} else {
		fmt.Printf("Latest Priced Hour:  N/A\n")
	}
	fmt.Printf("Price Points Stored: %d\n", r.PricePointsStored)
	fmt.Printf("Strategies Checked:  %d\n", r.StrategiesChecked)
	fmt.Printf("Strategies Extended: %d\n", r.StrategiesExtended)
	fmt.Printf("Segments Written:    %d\n", r.SegmentsWritten)
	fmt.Printf("Stats Computed:      %d\n", r.StatsComputed)
	fmt.Printf("Duration:            %v\n", r.Duration)
	for _, e := range r.Errors {
		fmt.Printf("Error:               %s\n", e)
	}

	if st := s.Strategy; st != nil {
		fmt.Printf("\n=== Strategy %s (%s) ===\n", st.ID, st.Name)
		fmt.Printf("Value Index:         %.6f\n", st.ValueIndex)
		for _, w := range st.Windows {
			sharpe := "N/A"
			if w.SharpeAnnual != nil {
				sharpe = fmt.Sprintf("%.4f", *w.SharpeAnnual)
			}
			fmt.Printf("%-4s return=%+.4f%% drawdown=%.4f%% sharpe=%s\n",
				w.Window, w.TotalReturn*100, w.MaxDrawdown*100, sharpe)
		}
	}

	if v := s.Verification; v != nil {
		fmt.Printf("\n=== Verification ===\n")
		fmt.Printf("Strategies:          %d\n", v.TotalStrategies)
		fmt.Printf("Matched:             %d\n", v.MatchedStrategies)
		fmt.Printf("Divergent:           %d\n", v.DivergentStrategies)
		for _, r := range v.Results {
			if r.Match {
				continue
			}
			fmt.Printf("%s: %d divergences (stored %.6f, replayed %.6f)\n",
				r.StrategyID, len(r.Divergences), r.StoredValue, r.ReplayedValue)
		}
	}

	if len(s.ReportFiles) > 0 {
		fmt.Printf("\n=== Report ===\n")
		for _, path := range s.ReportFiles {
			fmt.Printf("Wrote:               %s\n", path)
		}
	}
}

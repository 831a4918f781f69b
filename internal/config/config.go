// Package config resolves service configuration from an optional YAML file,
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"

	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/metrics"
)

// Price store backends.
const (
	PriceStorePostgres   = "postgres"
	PriceStoreClickHouse = "clickhouse"
)

// LogConfig controls logger construction.
type LogConfig struct {
	Level    string
	Format   string
	Output   string
	FilePath string
}

// PriceAPIConfig configures the market-data HTTP client.
type PriceAPIConfig struct {
	BaseURL         string
	APIKey          string
	APIKeyHeader    string
	Timeout         time.Duration
	RequestInterval time.Duration
	MaxRetries      int
	Lookback        time.Duration
}

// Config is the resolved configuration of every binary.
type Config struct {
	Phase string
	Path  string // YAML file actually loaded, empty when none

	RPCEndpoint     string
	WSEndpoint      string
	ContractAddress string

	PostgresDSN   string
	ClickHouseDSN string
	PriceStore    string
	UseMemory     bool

	IngestInterval  time.Duration
	IngestBatchSize int
	HourlyOffset    time.Duration

	PriceAPI PriceAPIConfig
	Assets   domain.AssetRegistry
	Policy   metrics.Policy

	NATSURL     string
	HTTPAddr    string
	MetricsAddr string

	Log LogConfig
}

// Load resolves configuration from the YAML file and the environment.
//
// The file is CONFIG_FILE when set, else config/config-<CONFIG_PHASE>.yaml
// (phase defaults to "local"). A missing default file is not an error.
// Nested YAML keys are flattened to upper-case env names: rpc.endpoint
// becomes RPC_ENDPOINT. Environment variables win over the file.
func Load() (*Config, error) {
	src, err := loadSource()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Phase:           src.phase,
		Path:            src.path,
		RPCEndpoint:     src.str("RPC_ENDPOINT", ""),
		WSEndpoint:      src.str("WS_ENDPOINT", ""),
		ContractAddress: src.str("CONTRACT_ADDRESS", ""),
		PostgresDSN:     src.str("POSTGRES_DSN", ""),
		ClickHouseDSN:   src.str("CLICKHOUSE_DSN", ""),
		PriceStore:      strings.ToLower(src.str("PRICE_STORE", PriceStorePostgres)),
		NATSURL:         src.str("NATS_URL", ""),
		HTTPAddr:        src.str("HTTP_ADDR", ":8080"),
		MetricsAddr:     src.str("METRICS_ADDR", ":9090"),
		Log: LogConfig{
			Level:    src.str("LOG_LEVEL", "info"),
			Format:   src.str("LOG_FORMAT", "console"),
			Output:   src.str("LOG_OUTPUT", "console"),
			FilePath: src.str("LOG_FILE_PATH", ""),
		},
		PriceAPI: PriceAPIConfig{
			BaseURL:      src.str("PRICE_API_BASE_URL", "https://api.coingecko.com/api/v3"),
			APIKey:       src.str("PRICE_API_KEY", ""),
			APIKeyHeader: src.str("PRICE_API_KEY_HEADER", "x-cg-demo-api-key"),
		},
	}

	if cfg.UseMemory, err = src.boolean("USE_MEMORY", false); err != nil {
		return nil, err
	}
	if cfg.IngestInterval, err = src.duration("INGEST_INTERVAL", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.IngestBatchSize, err = src.integer("INGEST_BATCH_SIZE", 200); err != nil {
		return nil, err
	}
	if cfg.HourlyOffset, err = src.duration("HOURLY_OFFSET", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.PriceAPI.Timeout, err = src.duration("PRICE_API_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.PriceAPI.RequestInterval, err = src.duration("PRICE_API_REQUEST_INTERVAL", 2500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.PriceAPI.MaxRetries, err = src.integer("PRICE_API_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.PriceAPI.Lookback, err = src.duration("PRICE_BACKFILL_LOOKBACK", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Policy.MinSharpeObservations, err = src.integer("METRICS_MIN_SHARPE_OBSERVATIONS", metrics.DefaultPolicy.MinSharpeObservations); err != nil {
		return nil, err
	}
	if cfg.Policy.MaturityRampHours, err = src.float("METRICS_MATURITY_RAMP_HOURS", metrics.DefaultPolicy.MaturityRampHours); err != nil {
		return nil, err
	}
	if cfg.Assets, err = parseAssets(src.str("ASSETS", "")); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RegisterFlags binds command-line overrides for the common settings.
// Flag defaults are the values already resolved in cfg.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.RPCEndpoint, "rpc-endpoint", c.RPCEndpoint, "EVM JSON-RPC HTTP endpoint")
	fs.StringVar(&c.WSEndpoint, "ws-endpoint", c.WSEndpoint, "EVM JSON-RPC WebSocket endpoint (optional)")
	fs.StringVar(&c.ContractAddress, "contract", c.ContractAddress, "Signal ledger contract address")
	fs.StringVar(&c.PostgresDSN, "postgres-dsn", c.PostgresDSN, "PostgreSQL connection string")
	fs.StringVar(&c.ClickHouseDSN, "clickhouse-dsn", c.ClickHouseDSN, "ClickHouse connection string")
	fs.StringVar(&c.PriceStore, "price-store", c.PriceStore, "Price series backend (postgres|clickhouse)")
	fs.BoolVar(&c.UseMemory, "use-memory", c.UseMemory, "Use in-memory storage instead of PostgreSQL")
	fs.DurationVar(&c.IngestInterval, "ingest-interval", c.IngestInterval, "Signal ingestion interval")
	fs.IntVar(&c.IngestBatchSize, "batch-size", c.IngestBatchSize, "Signals read per contract call")
	fs.DurationVar(&c.HourlyOffset, "hourly-offset", c.HourlyOffset, "Delay after the hour before the hourly pass")
	fs.StringVar(&c.NATSURL, "nats-url", c.NATSURL, "NATS server URL (optional)")
	fs.StringVar(&c.HTTPAddr, "http-addr", c.HTTPAddr, "Query API listen address")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "Prometheus metrics listen address")
	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "Log level (debug|info|warn|error)")
}

// Validate checks the conditions that abort startup.
func (c *Config) Validate(needChain bool) error {
	var problems []string
	if needChain {
		if c.RPCEndpoint == "" {
			problems = append(problems, "rpc endpoint is required (RPC_ENDPOINT or --rpc-endpoint)")
		}
		if c.ContractAddress == "" {
			problems = append(problems, "contract address is required (CONTRACT_ADDRESS or --contract)")
		}
	}
	if !c.UseMemory && c.PostgresDSN == "" {
		problems = append(problems, "postgres dsn is required (POSTGRES_DSN or --postgres-dsn), or use --use-memory")
	}
	switch c.PriceStore {
	case PriceStorePostgres:
	case PriceStoreClickHouse:
		if !c.UseMemory && c.ClickHouseDSN == "" {
			problems = append(problems, "clickhouse dsn is required when price store is clickhouse")
		}
	default:
		problems = append(problems, fmt.Sprintf("invalid price store %q (expected postgres|clickhouse)", c.PriceStore))
	}
	if c.IngestBatchSize <= 0 {
		problems = append(problems, "batch size must be > 0")
	}
	if c.HourlyOffset < 0 || c.HourlyOffset >= time.Hour {
		problems = append(problems, "hourly offset must be within [0, 1h)")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// parseAssets reads "BTC=bitcoin,ETH=ethereum". Empty input yields the
// default registry. The cash asset is always present.
func parseAssets(raw string) (domain.AssetRegistry, error) {
	if strings.TrimSpace(raw) == "" {
		out := make(domain.AssetRegistry, len(domain.DefaultAssets))
		for k, v := range domain.DefaultAssets {
			out[k] = v
		}
		return out, nil
	}

	out := domain.AssetRegistry{domain.CashAsset: ""}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		symbol, coinID, ok := strings.Cut(part, "=")
		symbol = domain.NormalizeAsset(symbol)
		coinID = strings.TrimSpace(coinID)
		if !ok || symbol == "" || coinID == "" {
			return nil, fmt.Errorf("invalid ASSETS entry %q (expected SYMBOL=coin-id)", part)
		}
		if symbol == domain.CashAsset {
			continue
		}
		out[symbol] = coinID
	}
	return out, nil
}

// AssetList returns the priced symbols in sorted order, for logs.
func (c *Config) AssetList() []string {
	out := c.Assets.PricedAssets()
	sort.Strings(out)
	return out
}

type source struct {
	phase  string
	path   string
	values map[string]string
}

func loadSource() (*source, error) {
	src := &source{values: map[string]string{}}

	src.phase = strings.TrimSpace(os.Getenv("CONFIG_PHASE"))
	if src.phase == "" {
		src.phase = "local"
	}

	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	explicit := path != ""
	if path == "" {
		path = filepath.Join("config", "config-"+src.phase+".yaml")
	}

	body, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return src, nil
		}
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	raw := make(map[string]any)
	if err := yaml.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}
	for key, value := range raw {
		segment := normalizeKeySegment(key)
		if segment == "" {
			continue
		}
		if err := flatten(segment, value, src.values); err != nil {
			return nil, fmt.Errorf("flatten config file %q: %w", path, err)
		}
	}

	if abs, err := filepath.Abs(path); err == nil {
		src.path = abs
	} else {
		src.path = path
	}
	return src, nil
}

func flatten(prefix string, value any, out map[string]string) error {
	switch typed := value.(type) {
	case map[string]any:
		for key, child := range typed {
			segment := normalizeKeySegment(key)
			if segment == "" {
				continue
			}
			if err := flatten(prefix+"_"+segment, child, out); err != nil {
				return err
			}
		}
	case []any:
		parts := make([]string, 0, len(typed))
		for _, item := range typed {
			switch scalar := item.(type) {
			case map[string]any, []any:
				return fmt.Errorf("unsupported list item type %T under %q", item, prefix)
			default:
				s := strings.TrimSpace(fmt.Sprint(scalar))
				if s != "" {
					parts = append(parts, s)
				}
			}
		}
		out[prefix] = strings.Join(parts, ",")
	case nil:
	default:
		out[prefix] = fmt.Sprint(typed)
	}
	return nil
}

func normalizeKeySegment(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	lastUnderscore := false
	for _, r := range strings.TrimSpace(raw) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
			lastUnderscore = false
			continue
		}
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}

func (s *source) value(key string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return strings.TrimSpace(s.values[key])
}

func (s *source) str(key, fallback string) string {
	if v := s.value(key); v != "" {
		return v
	}
	return fallback
}

func (s *source) duration(key string, fallback time.Duration) (time.Duration, error) {
	raw := s.value(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must be >= 0", key)
	}
	return d, nil
}

func (s *source) integer(key string, fallback int) (int, error) {
	raw := s.value(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("invalid %s: must be >= 0", key)
	}
	return v, nil
}

func (s *source) float(key string, fallback float64) (float64, error) {
	raw := s.value(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("invalid %s: must be >= 0", key)
	}
	return v, nil
}

func (s *source) boolean(key string, fallback bool) (bool, error) {
	raw := s.value(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

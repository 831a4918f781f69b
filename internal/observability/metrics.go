// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	SignalsIngested      prometheus.Counter
	ApproxSnapshots      prometheus.Counter
	LedgerHead           prometheus.Gauge
	IngestionErrors      *prometheus.CounterVec
	LogNotifications     prometheus.Counter
	IngestionBatchLength prometheus.Histogram

	// Price feed metrics
	PricePointsStored  *prometheus.CounterVec
	PriceFetchFailures *prometheus.CounterVec

	// Replay metrics
	StrategiesReplayed prometheus.Counter
	StrategiesFailed   *prometheus.CounterVec
	SegmentsWritten    prometheus.Counter
	ReplayConflicts    prometheus.Counter

	// Stats metrics
	StatsComputed prometheus.Counter

	// Latency metrics
	RPCCallLatency *prometheus.HistogramVec

	// Pass metrics
	PassRunsTotal *prometheus.CounterVec
	PassDuration  *prometheus.HistogramVec

	// Health metrics
	LastSuccessfulIngestion prometheus.Gauge
	LastSuccessfulPass      prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "signal_leaderboard"
	}

	return &Metrics{
		// Ingestion metrics
		SignalsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "signals_ingested_total",
			Help:      "Total number of ledger signals stored",
		}),
		ApproxSnapshots: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "approximate_snapshots_total",
			Help:      "Total number of approximate position snapshots written",
		}),
		LedgerHead: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "ledger_signal_count",
			Help:      "Signal count last reported by the ledger contract",
		}),
		IngestionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "errors_total",
			Help:      "Total number of ingestion errors by stage",
		}, []string{"stage"}),
		LogNotifications: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "log_notifications_total",
			Help:      "Total number of ledger log notifications received",
		}),
		IngestionBatchLength: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "batch_signals",
			Help:      "Number of signals per committed ingestion batch",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 200, 500},
		}),

		// Price feed metrics
		PricePointsStored: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricefeed",
			Name:      "points_stored_total",
			Help:      "Total number of price points stored by asset",
		}, []string{"asset"}),
		PriceFetchFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricefeed",
			Name:      "fetch_failures_total",
			Help:      "Total number of failed price fetches by asset",
		}, []string{"asset"}),

		// Replay metrics
		StrategiesReplayed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "strategies_replayed_total",
			Help:      "Total number of successful strategy extensions",
		}),
		StrategiesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "strategies_failed_total",
			Help:      "Total number of failed strategy extensions by phase",
		}, []string{"phase"}),
		SegmentsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "segments_written_total",
			Help:      "Total number of equity segments written",
		}),
		ReplayConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "watermark_conflicts_total",
			Help:      "Total number of replay commits rejected by a moved watermark",
		}),

		// Stats metrics
		StatsComputed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "strategies_computed_total",
			Help:      "Total number of strategies whose window stats were recomputed",
		}),

		// Latency metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_call_latency_seconds",
			Help:      "EVM RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		// Pass metrics
		PassRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pass",
			Name:      "runs_total",
			Help:      "Total number of scheduled passes by status",
		}, []string{"phase", "status"}),
		PassDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pass",
			Name:      "duration_seconds",
			Help:      "Scheduled pass duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"phase"}),

		// Health metrics
		LastSuccessfulIngestion: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingestion_timestamp",
			Help:      "Unix timestamp of last successful ingestion",
		}),
		LastSuccessfulPass: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_pass_timestamp",
			Help:      "Unix timestamp of last successful hourly pass",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSignalsIngested records one committed ingestion batch.
func RecordSignalsIngested(signals, snapshots int, unixNow int64) {
	DefaultMetrics.SignalsIngested.Add(float64(signals))
	DefaultMetrics.ApproxSnapshots.Add(float64(snapshots))
	DefaultMetrics.IngestionBatchLength.Observe(float64(signals))
	DefaultMetrics.LastSuccessfulIngestion.Set(float64(unixNow))
}

// UpdateLedgerHead updates the ledger signal count gauge.
func UpdateLedgerHead(count int64) {
	DefaultMetrics.LedgerHead.Set(float64(count))
}

// RecordIngestionError records an ingestion failure at stage.
func RecordIngestionError(stage string) {
	DefaultMetrics.IngestionErrors.WithLabelValues(stage).Inc()
}

// RecordLogNotification increments the ledger log notification counter.
func RecordLogNotification() {
	DefaultMetrics.LogNotifications.Inc()
}

// RecordPricePoints records stored price points of an asset.
func RecordPricePoints(asset string, n int) {
	DefaultMetrics.PricePointsStored.WithLabelValues(asset).Add(float64(n))
}

// RecordPriceFetchFailure records a failed price fetch of an asset.
func RecordPriceFetchFailure(asset string) {
	DefaultMetrics.PriceFetchFailures.WithLabelValues(asset).Inc()
}

// RecordStrategyReplayed records a successful extension.
func RecordStrategyReplayed(segments int) {
	DefaultMetrics.StrategiesReplayed.Inc()
	DefaultMetrics.SegmentsWritten.Add(float64(segments))
}

// RecordStrategyFailed records a failed extension or stats computation.
func RecordStrategyFailed(phase string) {
	DefaultMetrics.StrategiesFailed.WithLabelValues(phase).Inc()
}

// RecordReplayConflict records a commit rejected by ErrConflict.
func RecordReplayConflict() {
	DefaultMetrics.ReplayConflicts.Inc()
}

// RecordStatsComputed records recomputed window stats.
func RecordStatsComputed() {
	DefaultMetrics.StatsComputed.Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordPassRun records a scheduled pass.
func RecordPassRun(phase, status string, durationSeconds float64, unixNow int64) {
	DefaultMetrics.PassRunsTotal.WithLabelValues(phase, status).Inc()
	DefaultMetrics.PassDuration.WithLabelValues(phase).Observe(durationSeconds)
	if status == "success" {
		DefaultMetrics.LastSuccessfulPass.Set(float64(unixNow))
	}
}

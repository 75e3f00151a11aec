// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"breakout-lab/internal/domain"
)

// DefaultNamespace is used when no namespace is configured.
const DefaultNamespace = "breakout_lab"

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsTotal *prometheus.CounterVec
	BarsProcessed prometheus.Counter
	SignalsTotal  *prometheus.CounterVec
	TradesOpened  *prometheus.CounterVec
	OutcomesTotal *prometheus.CounterVec
	RealizedR     prometheus.Histogram

	// Backtest metrics
	BacktestRunsTotal *prometheus.CounterVec
	BacktestDuration  prometheus.Histogram

	// Feed metrics
	FeedMessages     *prometheus.CounterVec
	FeedErrors       *prometheus.CounterVec
	FeedReconnects   prometheus.Counter
	LastBarTimestamp prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance on its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		SessionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "completed_total",
			Help:      "Total number of sessions by final machine state",
		}, []string{"final_state"}),
		BarsProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "bars_processed_total",
			Help:      "Total number of completed bars delivered to the engine",
		}),
		SignalsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "signals_total",
			Help:      "Total number of signals by direction and type",
		}, []string{"direction", "type"}),
		TradesOpened: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "trades_opened_total",
			Help:      "Total number of trades opened by direction",
		}, []string{"direction"}),
		OutcomesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "outcomes_total",
			Help:      "Total number of trade outcomes by result",
		}, []string{"result"}),
		RealizedR: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "realized_r",
			Help:      "Realized R multiple of resolved trades",
			Buckets:   []float64{-1, -0.5, 0, 0.5, 1, 2, 3},
		}),

		BacktestRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		BacktestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "duration_seconds",
			Help:      "Backtest run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),

		FeedMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "messages_total",
			Help:      "Total number of feed messages by kind",
		}, []string{"kind"}),
		FeedErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "errors_total",
			Help:      "Total number of feed errors by type",
		}, []string{"error_type"}),
		FeedReconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of feed reconnect attempts",
		}),
		LastBarTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "last_bar_timestamp_ms",
			Help:      "Start timestamp of the last completed bar received",
		}),

		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// Init replaces DefaultMetrics with one using namespace.
// Call once at startup before any metric is recorded.
func Init(namespace string) {
	DefaultMetrics = NewMetrics(namespace)
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return DefaultMetrics.Handler()
}

// RecordSession records the result of one finished session.
func RecordSession(finalState string, bars int, signals []domain.Signal, trades []domain.Trade, outcomes []domain.TradeOutcome) {
	m := DefaultMetrics
	m.SessionsTotal.WithLabelValues(finalState).Inc()
	m.BarsProcessed.Add(float64(bars))
	for _, s := range signals {
		m.SignalsTotal.WithLabelValues(string(s.Direction), string(s.Type)).Inc()
	}
	for _, t := range trades {
		m.TradesOpened.WithLabelValues(string(t.Direction)).Inc()
	}
	for _, o := range outcomes {
		m.OutcomesTotal.WithLabelValues(string(o.Result)).Inc()
		m.RealizedR.Observe(o.RealizedR)
	}
}

// RecordBacktestRun records a finished backtest run.
func RecordBacktestRun(status string, durationSeconds float64) {
	DefaultMetrics.BacktestRunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.BacktestDuration.Observe(durationSeconds)
}

// RecordFeedMessage counts a feed message of the given kind.
func RecordFeedMessage(kind string) {
	DefaultMetrics.FeedMessages.WithLabelValues(kind).Inc()
}

// RecordFeedError counts a feed error.
func RecordFeedError(errorType string) {
	DefaultMetrics.FeedErrors.WithLabelValues(errorType).Inc()
}

// RecordFeedReconnect counts a reconnect attempt.
func RecordFeedReconnect() {
	DefaultMetrics.FeedReconnects.Inc()
}

// UpdateLastBar sets the last bar timestamp gauge.
func UpdateLastBar(timestampMs int64) {
	DefaultMetrics.LastBarTimestamp.Set(float64(timestampMs))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"breakout-lab/internal/config"
	"breakout-lab/internal/metrics"
	"breakout-lab/internal/reporting"
	"breakout-lab/internal/storage"
	chstore "breakout-lab/internal/storage/clickhouse"
	"breakout-lab/internal/storage/memory"
	pgstore "breakout-lab/internal/storage/postgres"
	"breakout-lab/internal/verification"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	symbol := flag.String("symbol", "", "Symbol to report on (required)")
	runID := flag.String("run-id", "", "Restrict the report to one backtest run")
	format := flag.String("format", "markdown", "Output format: markdown, csv")
	output := flag.String("output", "", "Write to this file instead of stdout")
	verifyRun := flag.String("verify-run", "", "Replay every session of this run against stored bars instead of reporting")
	flag.Parse()

	logger := log.New(os.Stderr, "[report] ", log.LstdFlags)

	if *symbol == "" && *verifyRun == "" {
		logger.Fatal("--symbol is required")
	}
	*format = strings.ToLower(*format)
	if *format != "markdown" && *format != "csv" {
		logger.Fatalf("Invalid format: %s. Must be markdown or csv", *format)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx := context.Background()

	var stores storage.Stores
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()
		stores = pgstore.NewStores(pool)
	default:
		logger.Println("WARNING: memory backend holds no stored results; the report will be empty")
		stores = memory.NewStores()
	}

	if *verifyRun != "" {
		verify(ctx, logger, cfg, stores, *verifyRun)
		return
	}

	report, err := reporting.NewGenerator(stores).Generate(ctx, *symbol, *runID)
	if err != nil {
		logger.Fatalf("generate report: %v", err)
	}
	if report.Aggregate.TotalTrades == 0 {
		logger.Printf("%v for %s", metrics.ErrNoTrades, *symbol)
	}

	var out string
	if *format == "csv" {
		out = reporting.RenderTradesCSV(report.Trades)
	} else {
		out = reporting.RenderMarkdown(report)
	}

	if *output == "" {
		fmt.Print(out)
		return
	}
	if err := os.WriteFile(*output, []byte(out), 0644); err != nil {
		logger.Fatalf("write %s: %v", *output, err)
	}
	logger.Printf("Wrote %s", *output)
}

// verify replays a stored run and exits non-zero on any divergence.
func verify(ctx context.Context, logger *log.Logger, cfg *config.Config, stores storage.Stores, runID string) {
	if cfg.Storage.ClickHouseDSN == "" {
		logger.Fatal("storage.clickhouse_dsn is required for --verify-run")
	}
	conn, err := chstore.NewConn(ctx, cfg.Storage.ClickHouseDSN)
	if err != nil {
		logger.Fatalf("connect to clickhouse: %v", err)
	}
	defer conn.Close()

	v := verification.NewReplayVerifier(stores, chstore.NewCandleStore(conn), cfg)
	report, err := v.VerifyRun(ctx, runID)
	if err != nil {
		logger.Fatalf("verify run: %v", err)
	}

	for _, r := range report.Results {
		if r.Match {
			continue
		}
		logger.Printf("DIVERGENCE %s (%s):", r.Date, r.SessionID)
		for _, d := range r.Divergences {
			logger.Printf("  %s: stored=%v replayed=%v", d.Field, d.Expected, d.Actual)
		}
	}
	logger.Printf("Verified %d sessions: %d matched, %d divergent, %d skipped (interrupted)",
		report.TotalSessions, report.MatchedSessions, report.DivergentSessions, report.SkippedSessions)
	if report.DivergentSessions > 0 {
		conn.Close()
		os.Exit(1)
	}
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"breakout-lab/internal/backtest"
	"breakout-lab/internal/config"
	"breakout-lab/internal/ingestion"
	"breakout-lab/internal/metrics"
	"breakout-lab/internal/observability"
	"breakout-lab/internal/replay"
	"breakout-lab/internal/reporting"
	"breakout-lab/internal/storage"
	chstore "breakout-lab/internal/storage/clickhouse"
	"breakout-lab/internal/storage/memory"
	"breakout-lab/internal/storage/migrations"
	pgstore "breakout-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config file")
	symbol := flag.String("symbol", "", "Symbol to backtest (required)")
	from := flag.String("from", "", "First session date YYYY-MM-DD (required)")
	to := flag.String("to", "", "Last session date YYYY-MM-DD (defaults to -from)")
	csvPath := flag.String("csv", "", "Load bars from CSV instead of ClickHouse")
	tradesCSV := flag.String("trades-csv", "", "Also write the trade list as CSV to this path")
	chartPath := flag.String("chart", "", "Also write an HTML equity chart to this path")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	persistResult := flag.Bool("persist", false, "Persist session results to PostgreSQL")
	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	if *symbol == "" {
		logger.Fatal("--symbol is required")
	}
	if *from == "" {
		logger.Fatal("--from is required")
	}
	if *to == "" {
		*to = *from
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	observability.Init(cfg.Metrics.Namespace)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Bars: CSV into memory, or ClickHouse
	var candleStore storage.CandleStore
	if *csvPath != "" {
		f, err := os.Open(*csvPath)
		if err != nil {
			logger.Fatalf("open csv: %v", err)
		}
		mem := memory.NewCandleStore()
		n, err := ingestion.ImportCSV(ctx, f, mem, *symbol, cfg.Session.BarSizeMinutes)
		f.Close()
		if err != nil {
			logger.Fatalf("import csv: %v", err)
		}
		logger.Printf("Loaded %d bars from %s", n, *csvPath)
		candleStore = mem
	} else {
		if cfg.Storage.ClickHouseDSN == "" {
			logger.Fatal("storage.clickhouse_dsn is required when --csv is not given")
		}
		conn, err := chstore.NewConn(ctx, cfg.Storage.ClickHouseDSN)
		if err != nil {
			logger.Fatalf("connect to clickhouse: %v", err)
		}
		defer conn.Close()
		candleStore = chstore.NewCandleStore(conn)
	}

	// Results
	var stores *storage.Stores
	if *persistResult {
		if cfg.Storage.Backend != config.BackendPostgres {
			logger.Fatalf("--persist requires storage.backend=%s", config.BackendPostgres)
		}
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("migrate postgres: %v", err)
		}
		s := pgstore.NewStores(pool)
		stores = &s
	}

	runner := backtest.NewRunner(replay.NewRunner(candleStore), cfg, stores)

	logger.Printf("Running backtest: symbol=%s from=%s to=%s", *symbol, *from, *to)
	run, err := runner.RunRange(ctx, *symbol, *from, *to)
	if err != nil {
		logger.Fatalf("backtest failed: %v", err)
	}

	report := reporting.Build(run.RunID, run.Symbol, run.Sessions, metrics.Compute(run.Outcomes()))
	report.GeneratedAt = time.Now().UTC()

	if *tradesCSV != "" {
		if err := os.WriteFile(*tradesCSV, []byte(reporting.RenderTradesCSV(report.Trades)), 0644); err != nil {
			logger.Fatalf("write trades csv: %v", err)
		}
		logger.Printf("Wrote %d trades to %s", len(report.Trades), *tradesCSV)
	}

	if *chartPath != "" {
		if err := writeChart(*chartPath, report); err != nil {
			logger.Printf("Skipping chart: %v", err)
		} else {
			logger.Printf("Wrote equity chart to %s", *chartPath)
		}
	}

	// Output result
	if *outputJSON {
		output, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Print(reporting.RenderMarkdown(report))
	}
}

func writeChart(path string, report *reporting.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := reporting.RenderEquityChart(report, f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

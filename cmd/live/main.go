package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"breakout-lab/internal/backtest"
	"breakout-lab/internal/config"
	"breakout-lab/internal/domain"
	"breakout-lab/internal/ingestion"
	"breakout-lab/internal/machine"
	"breakout-lab/internal/observability"
	"breakout-lab/internal/session"
	"breakout-lab/internal/storage"
	chstore "breakout-lab/internal/storage/clickhouse"
	"breakout-lab/internal/storage/migrations"
	pgstore "breakout-lab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	symbol := flag.String("symbol", "", "Symbol to trade (required)")
	date := flag.String("date", "", "Session date YYYY-MM-DD (defaults to today in session timezone)")
	wsURL := flag.String("ws-url", "", "Bar feed websocket URL (overrides feed.ws_url)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (overrides metrics.addr)")
	flag.Parse()

	logger := log.New(os.Stderr, "[live] ", log.LstdFlags)

	if *symbol == "" {
		logger.Fatal("--symbol is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *wsURL != "" {
		cfg.Feed.WSURL = *wsURL
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}
	if cfg.Feed.WSURL == "" {
		logger.Fatal("feed.ws_url or --ws-url is required")
	}
	observability.Init(cfg.Metrics.Namespace)

	if *date == "" {
		loc, err := time.LoadLocation(cfg.Session.Timezone)
		if err != nil {
			logger.Fatalf("load timezone: %v", err)
		}
		*date = time.Now().In(loc).Format(session.DateLayout)
	}
	w, err := session.Compute(*date, cfg.Session)
	if err != nil {
		logger.Fatalf("session window: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Optional stores
	var stores *storage.Stores
	if cfg.Storage.Backend == config.BackendPostgres {
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
	var candles storage.CandleStore
	if cfg.Storage.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickHouseDSN)
		if err != nil {
			logger.Fatalf("migrate clickhouse: %v", err)
		}
		defer conn.Close()
		candles = chstore.NewCandleStore(conn)
	}

	s := &liveSession{
		logger:  logger,
		window:  w,
		symbol:  *symbol,
		engine:  backtest.NewEngine(uuid.NewString(), cfg.MachineConfig()),
		source:  ingestion.NewWSBarSource(cfg.Feed.WSURL, *symbol, cfg.Session.BarSizeMinutes, nil),
		candles: candles,
	}

	server := &http.Server{Addr: cfg.Metrics.Addr, Handler: newMux()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Printf("HTTP server listening on %s", cfg.Metrics.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
		return s.run(gctx)
	})
	if err := g.Wait(); err != nil {
		logger.Printf("ERROR: %v", err)
	}

	res := s.engine.Result()
	if s.interrupted {
		res.Record.HostStatus = domain.HostStatusInterrupted
	}
	c := s.engine.Context()
	observability.RecordSession(string(c.State), len(c.AllBars), c.Signals, c.Trades, c.Outcomes)
	logger.Printf("Session %s %s %s: %s, %d bars, %d signals, %d trades",
		*symbol, *date, res.Record.HostStatus, res.Record.FinalState, res.Record.BarCount, res.Record.SignalCount, res.Record.TradeCount)
	for _, o := range res.Outcomes {
		logger.Printf("  %s %s %.2fR", o.TradeID, o.Result, o.RealizedR)
	}

	if stores != nil {
		if err := backtest.Persist(context.Background(), *stores, &res); err != nil {
			logger.Fatalf("persist session: %v", err)
		}
		logger.Printf("Persisted session %s", res.Record.SessionID)
	}
}

func newMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", observability.Handler())
	return mux
}

// liveSession drives one session from the feed and the host clock.
type liveSession struct {
	logger  *log.Logger
	window  session.Window
	symbol  string
	engine  *backtest.Engine
	source  *ingestion.WSBarSource
	candles storage.CandleStore // nil when bars are not archived

	interrupted bool
}

// run sends SESSION_START, then bars until the execution end instant,
// feed failure or shutdown. It returns nil once the machine is final or
// the session was interrupted.
func (s *liveSession) run(ctx context.Context) error {
	s.send(ctx, machine.SessionStart(s.window.Date, s.symbol, s.window.ZoneEndMs))

	feedCtx, stopFeed := context.WithCancel(ctx)
	defer stopFeed()
	bars, feedErrs := s.source.Subscribe(feedCtx)

	end := time.NewTimer(time.Until(time.UnixMilli(s.window.ExecutionEndMs)))
	defer end.Stop()

	for !s.engine.Context().State.IsFinal() {
		select {
		case c, ok := <-bars:
			if !ok {
				bars = nil
				continue
			}
			if !s.window.Contains(c.TimestampMs) {
				continue
			}
			s.archive(ctx, c)
			s.send(ctx, machine.NewBar(c))

		case err := <-feedErrs:
			s.send(ctx, machine.Error(err.Error()))
			return err

		case <-end.C:
			s.send(ctx, machine.SessionEnd())

		case <-ctx.Done():
			// Delivery stops here; the machine keeps its last state.
			s.interrupted = true
			return nil
		}
	}
	return nil
}

func (s *liveSession) send(ctx context.Context, ev machine.Event) {
	before := s.engine.Context().State
	_ = s.engine.OnEvent(ctx, ev)
	if after := s.engine.Context().State; after != before {
		s.logger.Printf("%s -> %s on %s", before, after, ev.Type)
	}
}

func (s *liveSession) archive(ctx context.Context, c *domain.Candle) {
	if s.candles == nil {
		return
	}
	if err := s.candles.InsertBulk(ctx, []*domain.Candle{c}); err != nil {
		s.logger.Printf("WARNING: archive bar %d: %v", c.TimestampMs, err)
	}
}

// Package main runs the trading bot: a fixed-interval decision loop that
// resolves tokens, gathers judge opinions, forms a consensus, validates it
// against risk limits, and routes approved trades across venues.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"dexpilot/internal/config"
	"dexpilot/internal/consensus"
	"dexpilot/internal/dex"
	"dexpilot/internal/domain"
	"dexpilot/internal/execution"
	"dexpilot/internal/judge"
	"dexpilot/internal/market"
	"dexpilot/internal/observability"
	"dexpilot/internal/pipeline"
	"dexpilot/internal/resolver"
	"dexpilot/internal/risk"
	"dexpilot/internal/safety"
	"dexpilot/internal/scheduler"
	"dexpilot/internal/storage"
	chstore "dexpilot/internal/storage/clickhouse"
	"dexpilot/internal/storage/memory"
	"dexpilot/internal/storage/migrations"
	pgstore "dexpilot/internal/storage/postgres"
)

// Bot holds the wired components of the running service.
type Bot struct {
	cfg       *config.Config
	riskMgr   *risk.Manager
	scheduler *scheduler.Scheduler
	logger    *log.Logger
	startedAt time.Time
}

type stores struct {
	riskLedger storage.RiskLedgerStore
	outcomes   storage.OutcomeStore
	cleanup    func()
}

func main() {
	// Load .env if present; real env vars win.
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "Path to YAML config")
	simulate := flag.Bool("simulate", false, "Use stub judges and a stub venue client")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	verbose := flag.Bool("verbose", false, "Verbose per-cycle logging")
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}
	if !*simulate && cfg.Execution.GatewayURL == "" {
		logger.Fatal("execution.gateway_url is required (use -simulate for the stub venue client)")
	}
	if len(cfg.Pipeline.Watchlist) == 0 {
		logger.Fatal("pipeline.watchlist must not be empty")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := createStores(ctx, cfg, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer st.cleanup()

	bot, feed, err := buildBot(ctx, cfg, st, *simulate, *verbose, logger)
	if err != nil {
		logger.Fatalf("Failed to wire components: %v", err)
	}
	if feed != nil {
		defer feed.Close()
	}

	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing exit", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	go bot.startHTTPServer(cfg.MetricsAddr)

	logger.Printf("Watchlist: %v, interval %ds, max trade $%.2f, daily loss limit $%.2f",
		cfg.Pipeline.Watchlist, cfg.Pipeline.IntervalSec,
		cfg.Risk.MaxTradeUSD, cfg.Risk.DailyLossLimitUSD)

	err = bot.scheduler.Run(ctx)
	done <- err

	if err != nil && err != context.Canceled {
		logger.Fatalf("Scheduler error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// createStores selects in-memory or PostgreSQL/ClickHouse storage and runs
// migrations for the latter.
func createStores(ctx context.Context, cfg *config.Config, useMemory bool) (*stores, error) {
	if useMemory || cfg.Database.PostgresDSN == "" {
		return &stores{
			riskLedger: memory.NewRiskLedgerStore(),
			outcomes:   memory.NewOutcomeStore(),
			cleanup:    func() {},
		}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Database.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}

	st := &stores{
		riskLedger: pgstore.NewRiskLedgerStore(pool),
	}

	if cfg.Database.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Database.ClickHouseDSN)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		st.outcomes = chstore.NewOutcomeStore(conn)
		st.cleanup = func() {
			conn.Close()
			pool.Close()
		}
		return st, nil
	}

	// No ClickHouse configured: keep the outcome archive in memory.
	st.outcomes = memory.NewOutcomeStore()
	st.cleanup = pool.Close
	return st, nil
}

// buildBot wires every component from config.
func buildBot(ctx context.Context, cfg *config.Config, st *stores, simulate, verbose bool, logger *log.Logger) (*Bot, *market.PriceFeed, error) {
	riskMgr := risk.NewManager(risk.ManagerOptions{
		Store:             st.riskLedger,
		MaxTradeUSD:       cfg.Risk.MaxTradeUSD,
		DailyLossLimitUSD: cfg.Risk.DailyLossLimitUSD,
		Logger:            logger,
		Verbose:           verbose,
	})
	if err := riskMgr.Load(ctx); err != nil {
		return nil, nil, fmt.Errorf("load risk state: %w", err)
	}

	metrics := observability.NewMetrics("")

	search := market.NewSearchClient(cfg.Market.SearchBaseURL)

	res := resolver.New(resolver.Options{
		Search:        search,
		Liquidity:     search,
		ChainPriority: cfg.Resolver.ChainPriority,
		Equivalence:   cfg.Resolver.EquivalenceMap,
		Venues:        cfg.Resolver.Venues,
		Logger:        logger,
		Verbose:       verbose,
	})

	var feed *market.PriceFeed
	var prices pipeline.PriceSource
	if cfg.Market.PriceFeedURL != "" {
		f, err := market.NewPriceFeed(ctx, cfg.Market.PriceFeedURL, cfg.Pipeline.Watchlist, nil, logger)
		if err != nil {
			// Price signals are best-effort; the scorer degrades without them.
			logger.Printf("Price feed unavailable: %v", err)
		} else {
			feed = f
			prices = f
		}
	}

	judges := buildJudges(cfg, simulate)
	gatherer := consensus.NewGatherer(consensus.GathererOptions{
		Judges:       judges,
		JudgeTimeout: time.Duration(cfg.Consensus.JudgeTimeoutSec) * time.Second,
		Metrics:      metrics,
		Logger:       logger,
		Verbose:      verbose,
	})

	engine := consensus.New(consensus.Options{
		TrustWeights:         cfg.Consensus.TrustWeights,
		MinOpinionConfidence: cfg.Consensus.MinOpinionConfidence,
	})

	guard := risk.NewGuard(risk.GuardOptions{
		ConfidenceFloor: cfg.Risk.ConfidenceFloor,
		SizingFraction:  cfg.Risk.SizingFraction,
	})

	var venueClient dex.Client
	if simulate {
		venueClient = dex.NewStubClient()
	} else {
		venueClient = dex.NewHTTPClient(cfg.Execution.GatewayURL)
	}

	router := execution.New(execution.Options{
		Client:      venueClient,
		MaxSlippage: cfg.Execution.MaxSlippage,
		MaxAttempts: cfg.Execution.MaxAttempts,
		Metrics:     metrics,
		Logger:      logger,
		Verbose:     verbose,
	})

	runner := pipeline.New(pipeline.Options{
		Resolver:     res,
		Scorer:       safety.NewScorer(),
		Gatherer:     gatherer,
		Engine:       engine,
		Guard:        guard,
		RiskManager:  riskMgr,
		Router:       router,
		Outcomes:     st.outcomes,
		Prices:       prices,
		Metadata:     search,
		CycleTimeout: time.Duration(cfg.Pipeline.CycleTimeoutSec) * time.Second,
		Metrics:      metrics,
		Logger:       logger,
		Verbose:      verbose,
	})

	sched := scheduler.New(scheduler.Options{
		Runner:    runner,
		Resetter:  riskMgr,
		Watchlist: cfg.Pipeline.Watchlist,
		Interval:  time.Duration(cfg.Pipeline.IntervalSec) * time.Second,
		ResetSpec: cfg.Pipeline.DailyResetCron,
		Logger:    logger,
		Verbose:   verbose,
	})

	return &Bot{
		cfg:       cfg,
		riskMgr:   riskMgr,
		scheduler: sched,
		logger:    logger,
		startedAt: time.Now(),
	}, feed, nil
}

// buildJudges creates HTTP judges from config, or fixed stub judges in
// simulate mode.
func buildJudges(cfg *config.Config, simulate bool) []judge.Judge {
	if simulate {
		return []judge.Judge{
			&judge.StubJudge{SourceID: "sim-momentum", Action: domain.ActionBuy, Confidence: 0.80, Rationale: "simulated momentum signal"},
			&judge.StubJudge{SourceID: "sim-contrarian", Action: domain.ActionHold, Confidence: 0.60, Rationale: "simulated contrarian signal"},
			&judge.StubJudge{SourceID: "sim-trend", Action: domain.ActionBuy, Confidence: 0.75, Rationale: "simulated trend signal"},
		}
	}

	judges := make([]judge.Judge, 0, len(cfg.Judges))
	for _, jc := range cfg.Judges {
		judges = append(judges, judge.NewHTTPJudge(jc.ID, jc.BaseURL))
	}
	return judges
}

// startHTTPServer serves health, metrics, and status.
func (b *Bot) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", b.handleStatus)

	b.logger.Printf("HTTP server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		b.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON body of /status.
type StatusResponse struct {
	Status       string     `json:"status"`
	Uptime       string     `json:"uptime"`
	SweepRunning bool       `json:"sweep_running"`
	LastSweep    *time.Time `json:"last_sweep,omitempty"`
	Sweeps       int        `json:"sweeps"`
	Risk         risk.Stats `json:"risk"`
}

func (b *Bot) handleStatus(w http.ResponseWriter, r *http.Request) {
	running, lastSweep, sweeps := b.scheduler.Status()

	resp := StatusResponse{
		Status:       "running",
		Uptime:       time.Since(b.startedAt).String(),
		SweepRunning: running,
		Sweeps:       sweeps,
		Risk:         b.riskMgr.Stats(),
	}
	if !lastSweep.IsZero() {
		resp.LastSweep = &lastSweep
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

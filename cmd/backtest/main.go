// Backtest Runner CLI
// Drives one wave-based backtest session against historical candles and
// signals stored in Postgres, printing the session's summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wavefront-labs/wavebt/internal/candlecache"
	"github.com/wavefront-labs/wavebt/internal/config"
	"github.com/wavefront-labs/wavebt/internal/resilience"
	"github.com/wavefront-labs/wavebt/internal/session"
	"github.com/wavefront-labs/wavebt/internal/simcore"
	"github.com/wavefront-labs/wavebt/internal/store"
)

var (
	configPath  = flag.String("config", "", "Path to config file (defaults to ./config.yaml or ./configs/config.yaml)")
	exchange    = flag.String("exchange", "", "Exchange ID to backtest (required)")
	startDate   = flag.String("start", "", "Window start date (YYYY-MM-DD, required)")
	endDate     = flag.String("end", "", "Window end date (YYYY-MM-DD, required)")
	overrides   = flag.String("overrides", "", "Path to a YAML file of StrategyParams overrides (optional)")
	liquidityOn = flag.Bool("liquidity-gate", false, "Enable the volume/open-interest liquidity gate")
	verbose     = flag.Bool("verbose", false, "Enable debug logging")
	showVersion = flag.Bool("version", false, "Print the version and exit")
	checkDeps   = flag.Bool("check-deps", false, "Verify database/Redis connectivity and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(config.GetVersion())
		return
	}

	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if *checkDeps {
		if err := checkDependencies(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("dependency check failed")
		}
		fmt.Println("ok")
		return
	}

	if *exchange == "" || *startDate == "" || *endDate == "" {
		fmt.Fprintln(os.Stderr, "Error: -exchange, -start, and -end are all required")
		flag.Usage()
		os.Exit(1)
	}

	start, err := time.Parse("2006-01-02", *startDate)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -start date")
	}
	end, err := time.Parse("2006-01-02", *endDate)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -end date")
	}

	ctx := context.Background()
	if err := run(ctx, start, end); err != nil {
		log.Fatal().Err(err).Msg("backtest failed")
	}
}

func run(ctx context.Context, start, end time.Time) error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logLevel := cfg.App.LogLevel
	if *verbose {
		logLevel = "debug"
	}
	config.InitLogger(logLevel, "console")

	if cfg.Monitoring.EnableMetrics {
		go serveMetrics(cfg.Monitoring.PrometheusPort)
	}

	db, err := store.Open(ctx, cfg.Database.GetDSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	breakers := resilience.NewManager()
	candles := breakers.WrapCandles(candlecache.New(redisClient, store.NewPostgresCandleStore(db), cfg.Redis.TTLDuration()))
	signals := breakers.WrapSignals(store.NewPostgresSignalSource(db))
	params := store.NewBacktestHistoryRepo(db)
	sink := store.NewPostgresResultSink(db)

	timeframe, err := cfg.Backtest.TimeframeDuration()
	if err != nil {
		return fmt.Errorf("parse backtest.timeframe: %w", err)
	}

	runner := session.NewRunner(candles, signals, params, sink, timeframe)

	var overrideBytes []byte
	if *overrides != "" {
		overrideBytes, err = os.ReadFile(*overrides)
		if err != nil {
			return fmt.Errorf("read overrides file: %w", err)
		}
	}

	in := session.Input{
		SessionID:  uuid.New(),
		ExchangeID: *exchange,
		Window:     session.Window{From: start, To: end},
		Filter: simcore.SignalFilter{
			LiquidityEnabled: *liquidityOn,
		},
		Overrides: overrideBytes,
	}

	summary, err := runner.RunSession(ctx, in)
	if err != nil {
		return fmt.Errorf("run session: %w", err)
	}

	printSummary(in.SessionID.String(), summary)
	return nil
}

func printSummary(sessionID string, s simcore.SessionSummary) {
	fmt.Printf("session:            %s\n", sessionID)
	fmt.Printf("initial_capital:    %.2f\n", s.InitialCapital)
	fmt.Printf("final_equity:       %.2f\n", s.FinalEquity)
	fmt.Printf("realized_pnl:       %.2f\n", s.RealizedPnL)
	fmt.Printf("commission_paid:    %.2f\n", s.CommissionPaid)
	fmt.Printf("min_equity:         %.2f\n", s.MinEquity)
	fmt.Printf("max_concurrent:     %d\n", s.MaxConcurrentPositions)
	fmt.Printf("total_trades:       %d\n", s.TotalTrades)
	fmt.Printf("wins/losses/be:     %d/%d/%d\n", s.Wins, s.Losses, s.Breakevens)
	fmt.Printf("win_rate:           %.2f%%\n", s.WinRate)
	fmt.Printf("max_drawdown:       %.2f (%.2f%%)\n", s.MaxDrawdownUSD, s.MaxDrawdownPct)
	if len(s.SkippedByReason) > 0 {
		reasons := make([]string, 0, len(s.SkippedByReason))
		for reason, count := range s.SkippedByReason {
			reasons = append(reasons, fmt.Sprintf("%s=%d", reason, count))
		}
		fmt.Printf("skipped:            %s\n", strings.Join(reasons, ", "))
	}
}

func serveMetrics(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	log.Info().Str("addr", addr).Msg("serving prometheus metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("metrics server stopped")
	}
}

// checkDependencies loads configuration and pings Postgres and Redis without
// running a session, for a quick operator preflight before scheduling a run.
func checkDependencies(ctx context.Context) error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	validator := config.NewValidator(cfg, config.DefaultValidatorOptions())
	return validator.ValidateStartup(ctx)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alpha_agent/internal/backtest"
	"alpha_agent/internal/broker"
	"alpha_agent/internal/config"
	"alpha_agent/internal/decision"
	"alpha_agent/internal/execution"
	"alpha_agent/internal/logger"
	"alpha_agent/internal/portfolio"
	"alpha_agent/internal/resilience"
	"alpha_agent/internal/telegram"
	"alpha_agent/internal/tradelog"
	"alpha_agent/internal/trader"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const LogFile = "agent.log"
const VersionFile = "version.latest"

func main() {
	backtestSymbol := flag.String("backtest", "", "replay this symbol's history instead of trading")
	flag.Parse()

	// 1. Initialization
	cfg := config.Load()
	cfg.Version = readVersion()
	logger.Setup(LogFile, cfg.MaxLogSizeMB, cfg.MaxLogBackups, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Broker stack: SDK adapter, serialized through the gateway, wrapped
	// with the breaker and retry policy. Everything above sees one client.
	gateway := broker.NewGateway(broker.NewAlpacaClient(), time.Duration(cfg.GatewayCallTimeoutSec)*time.Second)
	defer gateway.Close()

	client := resilience.Wrap(
		gateway,
		resilience.NewCircuitBreaker(cfg.BreakerFailureThreshold, time.Duration(cfg.BreakerRecoverySec)*time.Second),
		resilience.Retry{Attempts: cfg.RetryAttempts, Delay: time.Duration(cfg.RetryDelaySec) * time.Second},
	)

	// Connectivity and auth check before anything else runs.
	account, err := client.Profile()
	if err != nil {
		log.Fatal().Err(err).Msg("CRITICAL: Broker authentication failed")
	}
	log.Info().Str("account", account).Str("version", cfg.Version).Msg("Alpha Agent initialized")

	if *backtestSymbol != "" {
		runBacktest(cfg, client, *backtestSymbol)
		return
	}

	// 3. Portfolio state. Paper and live trading keep separate files; only a
	// live portfolio is reconciled against the broker at startup.
	stateFile := cfg.PortfolioFile
	startingCash := decimal.Zero
	if cfg.PaperTrading {
		stateFile = cfg.PaperPortfolioFile
		startingCash = decimal.NewFromFloat(cfg.VirtualCapital)
	}
	store, err := portfolio.Open(stateFile, startingCash)
	if err != nil {
		log.Fatal().Err(err).Msg("CRITICAL: Could not open portfolio")
	}
	if !cfg.PaperTrading {
		summary, err := store.Reconcile(client, portfolio.ReconcileDefaults{
			StopLossPct:   cfg.DefaultStopLossPct,
			TakeProfitPct: cfg.DefaultTakeProfitPct,
		}, time.Now())
		if err != nil {
			log.Fatal().Err(err).Msg("CRITICAL: Startup reconciliation failed")
		}
		log.Info().Msg(summary)
	}

	// 4. Core loop dependencies.
	engine := execution.NewEngine(client,
		time.Duration(cfg.OrderPollIntervalSec)*time.Second,
		time.Duration(cfg.OrderTimeoutSec)*time.Second)
	source := decision.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel)
	trades := tradelog.New(cfg.TradeLogFile)

	t := trader.New(cfg, store, client, engine, source, trades)

	// 5. Graceful shutdown on SIGINT/SIGTERM.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Warn().Msg("Shutdown signal received, stopping trading loop")
		cancel()
	}()

	mode := "LIVE"
	if cfg.PaperTrading {
		mode = "PAPER"
	}
	telegram.Notify(fmt.Sprintf("🤖 *Alpha Agent %s* started in %s mode", cfg.Version, mode))

	if err := t.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("Trading loop halted")
	}
	log.Info().Msg("Alpha Agent stopped")
}

func runBacktest(cfg *config.Config, client *resilience.Client, symbol string) {
	bars, err := client.Bars(symbol, 365)
	if err != nil {
		log.Fatal().Str("symbol", symbol).Err(err).Msg("Backtest history fetch failed")
	}
	res := backtest.Run(symbol, bars, cfg, 0.1)
	log.Info().Msg(res.String())
	fmt.Println(res)
}

func readVersion() string {
	version, err := os.ReadFile(VersionFile)
	if err != nil {
		return "v0.0.0-dev"
	}
	return string(version)
}

package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds every tunable the agent reads at startup. Values come from the
// environment (optionally seeded from a .env file) with sane defaults for
// everything that is not a credential.
type Config struct {
	Version string

	// Mode
	PaperTrading bool

	// Files
	PortfolioFile      string
	PaperPortfolioFile string
	TradeLogFile       string

	// Strategy
	RiskPerTradePct       float64 // % of total portfolio value risked per new trade
	MaxCapitalPerTradePct float64 // % of total portfolio value a single new trade may consume
	ATRMultiplier         float64 // stop distance in ATRs
	MinConfidence         int     // decision-source confidence gate (1-10)
	MinHoldingDays        int     // no sell before this many days
	TimeStopDays          int     // max holding period
	StagnationDays        int     // days without a new peak before exit
	WatchlistExpiryDays   int
	DefaultStopLossPct    float64 // applied to positions discovered during reconciliation
	DefaultTakeProfitPct  float64

	// Screener
	ScreenerTopN int
	MinPrice     float64
	MinAvgVolume int64
	Universe     []string

	// Execution
	OrderPollIntervalSec int
	OrderTimeoutSec      int

	// Resilience
	RetryAttempts           int
	RetryDelaySec           int
	BreakerFailureThreshold int
	BreakerRecoverySec      int
	GatewayCallTimeoutSec   int

	// Main loop
	CycleIntervalSec     int
	ReviewIntervalSec    int
	ErrorCooldownBaseSec int
	MaxConsecutiveErrors int
	VirtualCapital       float64

	// Decision source
	GeminiAPIKey string
	GeminiModel  string

	// Logging
	LogLevel      string
	MaxLogSizeMB  int64
	MaxLogBackups int
}

// defaultUniverse is the static screening list used when AGENT_UNIVERSE is
// not set. Large, liquid US names so the liquidity floor is meaningful.
var defaultUniverse = []string{
	"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "META", "TSLA", "AVGO", "JPM", "V",
	"UNH", "XOM", "LLY", "MA", "HD", "PG", "COST", "MRK", "ABBV", "CVX",
	"PEP", "KO", "ADBE", "WMT", "CRM", "BAC", "MCD", "CSCO", "ACN", "TMO",
	"NFLX", "AMD", "ABT", "ORCL", "DIS", "INTC", "QCOM", "TXN", "CAT", "GE",
}

// Load reads the environment, validates required credentials and returns the
// populated config. Missing required variables are fatal; everything else
// falls back to defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found, using system environment variables")
	}

	requiredSecretVars := []string{
		"APCA_API_KEY_ID",
		"APCA_API_SECRET_KEY",
		"APCA_API_BASE_URL",
	}

	var missing []string
	for _, key := range requiredSecretVars {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		log.Fatalf("CRITICAL: Missing required environment variables: %v", missing)
	}

	cfg := &Config{
		PaperTrading: getEnvBool("AGENT_PAPER_TRADING", true),

		PortfolioFile:      getEnvStr("AGENT_PORTFOLIO_FILE", "portfolio.json"),
		PaperPortfolioFile: getEnvStr("AGENT_PAPER_PORTFOLIO_FILE", "paper_portfolio.json"),
		TradeLogFile:       getEnvStr("AGENT_TRADE_LOG_FILE", "tradelog.csv"),

		RiskPerTradePct:       getEnvFloat("RISK_PER_TRADE_PCT", 2.5),
		MaxCapitalPerTradePct: getEnvFloat("MAX_CAPITAL_PER_TRADE_PCT", 8.0),
		ATRMultiplier:         getEnvFloat("ATR_MULTIPLIER", 2.0),
		MinConfidence:         getEnvInt("MIN_CONFIDENCE", 7),
		MinHoldingDays:        getEnvInt("MIN_HOLDING_DAYS", 3),
		TimeStopDays:          getEnvInt("TIME_STOP_DAYS", 20),
		StagnationDays:        getEnvInt("PRICE_STAGNATION_DAYS", 10),
		WatchlistExpiryDays:   getEnvInt("WATCHLIST_EXPIRY_DAYS", 3),
		DefaultStopLossPct:    getEnvFloat("DEFAULT_STOP_LOSS_PCT", 5.0),
		DefaultTakeProfitPct:  getEnvFloat("DEFAULT_TAKE_PROFIT_PCT", 15.0),

		ScreenerTopN: getEnvInt("SCREENER_TOP_N", 5),
		MinPrice:     getEnvFloat("SCREENER_MIN_PRICE", 10.0),
		MinAvgVolume: int64(getEnvInt("SCREENER_MIN_AVG_VOLUME", 100000)),

		OrderPollIntervalSec: getEnvInt("ORDER_POLL_INTERVAL_SEC", 5),
		OrderTimeoutSec:      getEnvInt("ORDER_TIMEOUT_SEC", 120),

		RetryAttempts:           getEnvInt("RETRY_ATTEMPTS", 3),
		RetryDelaySec:           getEnvInt("RETRY_DELAY_SEC", 5),
		BreakerFailureThreshold: getEnvInt("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerRecoverySec:      getEnvInt("BREAKER_RECOVERY_SEC", 300),
		GatewayCallTimeoutSec:   getEnvInt("GATEWAY_CALL_TIMEOUT_SEC", 30),

		CycleIntervalSec:     getEnvInt("CYCLE_INTERVAL_SEC", 300),
		ReviewIntervalSec:    getEnvInt("POSITION_REVIEW_INTERVAL_SEC", 900),
		ErrorCooldownBaseSec: getEnvInt("ERROR_COOLDOWN_BASE_SEC", 60),
		MaxConsecutiveErrors: getEnvInt("MAX_CONSECUTIVE_ERRORS", 5),
		VirtualCapital:       getEnvFloat("VIRTUAL_CAPITAL", 100000.0),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnvStr("GEMINI_MODEL", "gemini-2.5-flash"),

		LogLevel:      getEnvStr("AGENT_LOG_LEVEL", "INFO"),
		MaxLogSizeMB:  int64(getEnvInt("MAX_LOG_SIZE_MB", 10)),
		MaxLogBackups: getEnvInt("MAX_LOG_BACKUPS", 3),
	}

	if raw := os.Getenv("AGENT_UNIVERSE"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.Universe = append(cfg.Universe, strings.ToUpper(s))
			}
		}
	} else {
		cfg.Universe = defaultUniverse
	}

	if cfg.GeminiAPIKey == "" {
		log.Println("WARNING: GEMINI_API_KEY not set. Decision source will fail safe to HOLD.")
	}

	dumpEnv(requiredSecretVars)

	return cfg
}

// dumpEnv prints the .env file contents with secrets masked, so a startup log
// shows exactly which knobs were set.
func dumpEnv(secrets []string) {
	envMap, err := godotenv.Read()
	if err != nil {
		return
	}
	secretSet := make(map[string]bool, len(secrets))
	for _, k := range secrets {
		secretSet[k] = true
	}
	secretSet["GEMINI_API_KEY"] = true
	secretSet["TELEGRAM_BOT_TOKEN"] = true

	log.Println("--- .env File Variables ---")
	for key, val := range envMap {
		if secretSet[key] {
			masked := "***"
			if len(val) > 4 {
				masked = "***" + val[len(val)-4:]
			}
			log.Printf("%s=%s", key, masked)
		} else {
			log.Printf("%s=%s", key, val)
		}
	}
	log.Println("---------------------------")
}

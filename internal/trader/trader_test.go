package trader

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"alpha_agent/internal/config"
	"alpha_agent/internal/decision"
	"alpha_agent/internal/execution"
	"alpha_agent/internal/indicators"
	"alpha_agent/internal/models"
	"alpha_agent/internal/portfolio"
	"alpha_agent/internal/tradelog"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBroker serves canned prices and a flat candle series with a constant
// true range of 5, which makes ATR(14) exactly 5.00.
type fakeBroker struct {
	prices map[string]decimal.Decimal
	bars   map[string][]models.Bar
}

func (f *fakeBroker) LastPrice(symbol string) (decimal.Decimal, error) {
	return f.prices[symbol], nil
}

func (f *fakeBroker) Bars(symbol string, days int) ([]models.Bar, error) {
	return f.bars[symbol], nil
}

func (f *fakeBroker) PlaceMarketOrder(string, int64, string) (*models.Order, error) {
	return &models.Order{ID: "live-1", Status: "new"}, nil
}
func (f *fakeBroker) GetOrder(string) (*models.Order, error)             { return nil, nil }
func (f *fakeBroker) ListHoldings() ([]models.BrokerPosition, error)     { return nil, nil }
func (f *fakeBroker) Account() (*models.Account, error)                  { return &models.Account{}, nil }
func (f *fakeBroker) ListAssets() ([]models.Asset, error)                { return nil, nil }
func (f *fakeBroker) Profile() (string, error)                           { return "test", nil }
func (f *fakeBroker) Clock() (*models.Clock, error)                      { return &models.Clock{IsOpen: true}, nil }

// flatBars builds n candles closing at the given price with high-low exactly
// 5, so every true range is 5.
func flatBars(n int, close float64) []models.Bar {
	day := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, n)
	for i := 0; i < n; i++ {
		bars[i] = models.Bar{
			Date:   day.AddDate(0, 0, i),
			Open:   decimal.NewFromFloat(close),
			High:   decimal.NewFromFloat(close + 2.5),
			Low:    decimal.NewFromFloat(close - 2.5),
			Close:  decimal.NewFromFloat(close),
			Volume: 500000,
		}
	}
	return bars
}

// scriptedSource replays one fixed verdict.
type scriptedSource struct {
	verdict decision.Decision
	calls   int
}

func (s *scriptedSource) GetDecision(context.Context, string) decision.Decision {
	s.calls++
	return s.verdict
}

func testConfig() *config.Config {
	return &config.Config{
		PaperTrading:          true,
		RiskPerTradePct:       2.5,
		MaxCapitalPerTradePct: 8.0,
		ATRMultiplier:         2.0,
		MinConfidence:         7,
		MinHoldingDays:        3,
		TimeStopDays:          20,
		StagnationDays:        10,
		WatchlistExpiryDays:   3,
		DefaultStopLossPct:    5.0,
		DefaultTakeProfitPct:  15.0,
		ScreenerTopN:          5,
		MinPrice:              10.0,
		MinAvgVolume:          100000,
	}
}

func newTestTrader(t *testing.T, cfg *config.Config, b *fakeBroker, src decision.Source) (*Trader, *portfolio.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := portfolio.Open(filepath.Join(dir, "portfolio.json"), decimal.NewFromInt(100000))
	require.NoError(t, err)

	tr := New(cfg, store, b, execution.NewEngine(b, time.Millisecond, time.Millisecond), src, tradelog.New(filepath.Join(dir, "trades.csv")))
	tr.notify = func(string) {}
	tr.now = func() time.Time { return time.Date(2026, 3, 12, 12, 0, 0, 0, time.UTC) }
	return tr, store
}

func seedHolding(t *testing.T, store *portfolio.Store, symbol string, pos models.Position) {
	t.Helper()
	require.NoError(t, store.WithTransaction(true, func(p *models.Portfolio) error {
		cp := pos
		p.Holdings[symbol] = &cp
		p.Cash = p.Cash.Sub(pos.EntryPrice.Mul(decimal.NewFromInt(pos.Quantity)))
		return nil
	}))
}

func TestMinHoldingPeriodBlocksEverySell(t *testing.T) {
	b := &fakeBroker{
		prices: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(80)},
		bars:   map[string][]models.Bar{"AAPL": flatBars(90, 80)},
	}
	src := &scriptedSource{verdict: decision.Decision{Action: decision.ActionSell, Confidence: 10, Reasoning: "Breakdown below every support level."}}
	tr, store := newTestTrader(t, testConfig(), b, src)

	// Bought yesterday, price already through the hard stop at 95.
	seedHolding(t, store, "AAPL", models.Position{
		Quantity:     10,
		EntryPrice:   decimal.NewFromInt(100),
		PurchaseDate: "2026-03-11",
		PeakPrice:    decimal.NewFromInt(100),
		LastPeakDate: "2026-03-11",
		StopLoss:     decimal.NewFromInt(95),
		TakeProfit:   decimal.NewFromInt(150),
	})

	require.NoError(t, tr.evaluateHoldings(context.Background(), true))

	p := store.Snapshot()
	assert.Contains(t, p.Holdings, "AAPL", "minimum holding period must veto all sell rules")
	assert.Equal(t, 0, src.calls, "advisory source must not be consulted inside the holding window")
}

func TestTrailingStopTriggersAtPeakMinusATRMultiple(t *testing.T) {
	// Peak 120, ATR 5, multiplier 2: trigger at 110. Price 105 is below it.
	b := &fakeBroker{
		prices: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(105)},
		bars:   map[string][]models.Bar{"AAPL": flatBars(90, 105)},
	}
	src := &scriptedSource{verdict: decision.FailSafe()}
	tr, store := newTestTrader(t, testConfig(), b, src)

	seedHolding(t, store, "AAPL", models.Position{
		Quantity:     10,
		EntryPrice:   decimal.NewFromInt(100),
		PurchaseDate: "2026-03-02",
		PeakPrice:    decimal.NewFromInt(120),
		LastPeakDate: "2026-03-08",
		StopLoss:     decimal.NewFromInt(90),
		TakeProfit:   decimal.NewFromInt(200),
	})

	var exitReason string
	tr.notify = func(msg string) { exitReason = msg }

	require.NoError(t, tr.evaluateHoldings(context.Background(), false))

	p := store.Snapshot()
	assert.NotContains(t, p.Holdings, "AAPL", "trailing stop must liquidate the position")
	assert.Contains(t, exitReason, "trailing stop-loss triggered at 110.00")
	assert.Equal(t, 0, src.calls, "rule-based exits must not consult the advisory source")
}

func TestPeakRatchetsUpwardOnly(t *testing.T) {
	b := &fakeBroker{
		prices: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(125)},
		bars:   map[string][]models.Bar{"AAPL": flatBars(90, 125)},
	}
	src := &scriptedSource{verdict: decision.Decision{Action: decision.ActionHold, Confidence: 8, Reasoning: "Uptrend intact, no exit signal present."}}
	tr, store := newTestTrader(t, testConfig(), b, src)

	seedHolding(t, store, "AAPL", models.Position{
		Quantity:     10,
		EntryPrice:   decimal.NewFromInt(100),
		PurchaseDate: "2026-03-02",
		PeakPrice:    decimal.NewFromInt(120),
		LastPeakDate: "2026-03-08",
		StopLoss:     decimal.NewFromInt(90),
		TakeProfit:   decimal.NewFromInt(200),
	})

	require.NoError(t, tr.evaluateHoldings(context.Background(), false))

	pos := store.Snapshot().Holdings["AAPL"]
	require.NotNil(t, pos)
	assert.True(t, pos.PeakPrice.Equal(decimal.NewFromInt(125)), "new high must raise the peak")
	assert.Equal(t, "2026-03-12", pos.LastPeakDate)
}

func TestFailSafeVerdictNeverTrades(t *testing.T) {
	b := &fakeBroker{
		prices: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(118)},
		bars:   map[string][]models.Bar{"AAPL": flatBars(90, 118)},
	}
	src := &scriptedSource{verdict: decision.FailSafe()}
	tr, store := newTestTrader(t, testConfig(), b, src)

	seedHolding(t, store, "AAPL", models.Position{
		Quantity:     10,
		EntryPrice:   decimal.NewFromInt(100),
		PurchaseDate: "2026-03-02",
		PeakPrice:    decimal.NewFromInt(120),
		LastPeakDate: "2026-03-10",
		StopLoss:     decimal.NewFromInt(90),
		TakeProfit:   decimal.NewFromInt(200),
	})

	require.NoError(t, tr.evaluateHoldings(context.Background(), false))

	assert.Contains(t, store.Snapshot().Holdings, "AAPL",
		"a fail-safe verdict reports confidence 10 but must never cause a trade")
	assert.Equal(t, 1, src.calls)
}

func TestLowConfidenceSellIsIgnored(t *testing.T) {
	b := &fakeBroker{
		prices: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(118)},
		bars:   map[string][]models.Bar{"AAPL": flatBars(90, 118)},
	}
	src := &scriptedSource{verdict: decision.Decision{Action: decision.ActionSell, Confidence: 5, Reasoning: "Momentum looks slightly tired here."}}
	tr, store := newTestTrader(t, testConfig(), b, src)

	seedHolding(t, store, "AAPL", models.Position{
		Quantity:     10,
		EntryPrice:   decimal.NewFromInt(100),
		PurchaseDate: "2026-03-02",
		PeakPrice:    decimal.NewFromInt(120),
		LastPeakDate: "2026-03-10",
		StopLoss:     decimal.NewFromInt(90),
		TakeProfit:   decimal.NewFromInt(200),
	})

	require.NoError(t, tr.evaluateHoldings(context.Background(), false))

	assert.Contains(t, store.Snapshot().Holdings, "AAPL")
}

func TestConfidentSellExecutes(t *testing.T) {
	b := &fakeBroker{
		prices: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(118)},
		bars:   map[string][]models.Bar{"AAPL": flatBars(90, 118)},
	}
	src := &scriptedSource{verdict: decision.Decision{Action: decision.ActionSell, Confidence: 9, Reasoning: "Clear distribution pattern with a failed retest."}}
	tr, store := newTestTrader(t, testConfig(), b, src)

	seedHolding(t, store, "AAPL", models.Position{
		Quantity:     10,
		EntryPrice:   decimal.NewFromInt(100),
		PurchaseDate: "2026-03-02",
		PeakPrice:    decimal.NewFromInt(120),
		LastPeakDate: "2026-03-10",
		StopLoss:     decimal.NewFromInt(90),
		TakeProfit:   decimal.NewFromInt(200),
	})

	require.NoError(t, tr.evaluateHoldings(context.Background(), false))

	p := store.Snapshot()
	assert.NotContains(t, p.Holdings, "AAPL")
	// 100000 - 1000 entry + 1180 exit
	assert.True(t, p.Cash.Equal(decimal.NewFromInt(100180)), "got %s", p.Cash)
}

func TestWatchlistExpiry(t *testing.T) {
	b := &fakeBroker{prices: map[string]decimal.Decimal{}, bars: map[string][]models.Bar{}}
	tr, store := newTestTrader(t, testConfig(), b, &scriptedSource{verdict: decision.FailSafe()})

	require.NoError(t, store.WithTransaction(true, func(p *models.Portfolio) error {
		p.Watchlist["STALE"] = &models.WatchlistEntry{ConfirmationPrice: decimal.NewFromInt(50), AddedDate: "2026-03-08"}
		p.Watchlist["FRESH"] = &models.WatchlistEntry{ConfirmationPrice: decimal.NewFromInt(999), AddedDate: "2026-03-11"}
		return nil
	}))
	b.prices["FRESH"] = decimal.NewFromInt(10)

	require.NoError(t, tr.manageWatchlist(context.Background()))

	p := store.Snapshot()
	assert.NotContains(t, p.Watchlist, "STALE", "entries past expiry must be dropped")
	assert.Contains(t, p.Watchlist, "FRESH")
}

func TestWatchlistConfirmationBuys(t *testing.T) {
	b := &fakeBroker{
		prices: map[string]decimal.Decimal{"NVDA": decimal.NewFromInt(101)},
		bars:   map[string][]models.Bar{"NVDA": flatBars(90, 101)},
	}
	tr, store := newTestTrader(t, testConfig(), b, &scriptedSource{verdict: decision.FailSafe()})

	require.NoError(t, store.WithTransaction(true, func(p *models.Portfolio) error {
		p.Watchlist["NVDA"] = &models.WatchlistEntry{ConfirmationPrice: decimal.NewFromInt(100), AddedDate: "2026-03-11"}
		return nil
	}))

	require.NoError(t, tr.manageWatchlist(context.Background()))

	p := store.Snapshot()
	pos := p.Holdings["NVDA"]
	require.NotNil(t, pos, "confirmed breakout must convert to a position")
	assert.NotContains(t, p.Watchlist, "NVDA")

	// ATR 5 * multiplier 2 = 10 per-share risk. Risk budget 2500 allows 250
	// shares; the 8% capital cap (8000 / 101) allows 79. The cap wins.
	assert.EqualValues(t, 79, pos.Quantity)
	assert.True(t, pos.StopLoss.Equal(decimal.NewFromInt(91)), "stop at entry minus ATR stop distance, got %s", pos.StopLoss)
}

func TestPositionSize(t *testing.T) {
	total := decimal.NewFromInt(100000)
	cash := decimal.NewFromInt(100000)

	qty, reject := positionSize(total, cash, decimal.NewFromInt(100), decimal.NewFromInt(10), 2.5, 8.0)
	require.Empty(t, reject)
	// Risk path: 2500 / 10 = 250. Capital path: 8000 / 100 = 80.
	assert.EqualValues(t, 80, qty)

	qty, reject = positionSize(total, cash, decimal.NewFromInt(100), decimal.NewFromInt(50), 2.5, 8.0)
	require.Empty(t, reject)
	// Risk path: 2500 / 50 = 50 now binds.
	assert.EqualValues(t, 50, qty)

	_, reject = positionSize(total, cash, decimal.NewFromInt(100), decimal.Zero, 2.5, 8.0)
	assert.NotEmpty(t, reject, "zero per-share risk must reject")

	_, reject = positionSize(total, decimal.NewFromInt(100), decimal.NewFromInt(100), decimal.NewFromInt(10), 2.5, 8.0)
	assert.NotEmpty(t, reject, "cost above available cash must reject")

	_, reject = positionSize(decimal.NewFromInt(50), cash, decimal.NewFromInt(100), decimal.NewFromInt(10), 2.5, 8.0)
	assert.NotEmpty(t, reject, "tiny portfolios that size to zero shares must reject")
}

func TestReviewFindings(t *testing.T) {
	cfg := testConfig()
	now := time.Date(2026, 3, 12, 12, 0, 0, 0, time.UTC)

	macdLow, macdSig, rsiWeak := -1.5, -0.5, 42.0
	macdHigh := 0.5

	t.Run("time stop fires first", func(t *testing.T) {
		pos := &models.Position{PurchaseDate: "2026-02-10", LastPeakDate: "2026-02-15"}
		reason := reviewFindings(pos, indicatorSet(macdLow, macdSig, rsiWeak), now, cfg)
		assert.Contains(t, reason, "TIME_STOP")
	})

	t.Run("stagnation", func(t *testing.T) {
		pos := &models.Position{PurchaseDate: "2026-03-01", LastPeakDate: "2026-02-25"}
		reason := reviewFindings(pos, indicatorSet(macdHigh, macdSig, rsiWeak), now, cfg)
		assert.Contains(t, reason, "PRICE_STAGNATION")
	})

	t.Run("technical reversal", func(t *testing.T) {
		pos := &models.Position{PurchaseDate: "2026-03-01", LastPeakDate: "2026-03-10"}
		reason := reviewFindings(pos, indicatorSet(macdLow, macdSig, rsiWeak), now, cfg)
		assert.Contains(t, reason, "TECHNICAL_REVERSAL")
	})

	t.Run("healthy position survives", func(t *testing.T) {
		pos := &models.Position{PurchaseDate: "2026-03-01", LastPeakDate: "2026-03-10"}
		reason := reviewFindings(pos, indicatorSet(macdHigh, macdSig, rsiWeak), now, cfg)
		assert.Empty(t, reason)
	})
}

func indicatorSet(macd, signal, rsi float64) indicators.Set {
	return indicators.Set{MACDLine: &macd, MACDSignal: &signal, RSI14: &rsi}
}

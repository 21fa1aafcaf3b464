package trader

import (
	"context"
	"fmt"

	"alpha_agent/internal/decision"
	"alpha_agent/internal/execution"
	"alpha_agent/internal/indicators"
	"alpha_agent/internal/models"
	"alpha_agent/internal/portfolio"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// historyDays is how many daily candles are fetched for indicator work.
const historyDays = 90

// evaluateHoldings runs the exit-rule chain over every open position.
// Failures on one symbol are logged and do not stop the others.
func (t *Trader) evaluateHoldings(ctx context.Context, deep bool) error {
	snapshot := t.store.Snapshot()
	for symbol := range snapshot.Holdings {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := t.evaluateHolding(ctx, symbol, deep); err != nil {
			log.Error().Str("symbol", symbol).Err(err).Msg("Holding evaluation failed")
		}
	}
	return nil
}

// evaluateHolding applies the exit rules to one position, in strict priority
// order:
//
//  1. minimum holding period: inside the window no sell rule may fire at all
//  2. hard stop-loss / take-profit levels
//  3. ATR trailing stop below the peak
//  4. deep-review rules (time stop, stagnation, technical reversal)
//  5. advisory verdict, gated on confidence
//
// The first rule that fires decides the action; later rules are not consulted.
func (t *Trader) evaluateHolding(ctx context.Context, symbol string, deep bool) error {
	price, err := t.broker.LastPrice(symbol)
	if err != nil {
		return fmt.Errorf("price fetch failed: %w", err)
	}

	// Ratchet the peak before any rule runs so the trailing stop always works
	// from the freshest high-water mark.
	var pos models.Position
	err = t.store.WithTransaction(true, func(p *models.Portfolio) error {
		held, ok := p.Holdings[symbol]
		if !ok {
			return fmt.Errorf("position disappeared mid-evaluation")
		}
		if price.GreaterThan(held.PeakPrice) {
			held.PeakPrice = price
			held.LastPeakDate = t.now().Format(models.DateLayout)
		}
		pos = *held
		return nil
	})
	if err != nil {
		return err
	}

	daysHeld, haveDate := models.DaysSince(pos.PurchaseDate, t.now())

	// Rule 1. The minimum holding period gates every sell path, including
	// stop-losses. Volatility right after entry is expected, not a signal.
	if haveDate && daysHeld < t.cfg.MinHoldingDays {
		log.Info().
			Str("symbol", symbol).
			Int("days_held", daysHeld).
			Msgf("Holding for %d days (min %d)", daysHeld, t.cfg.MinHoldingDays)
		return nil
	}

	// Rule 2. Hard protective levels.
	if pos.StopLoss.GreaterThan(decimal.Zero) && price.LessThanOrEqual(pos.StopLoss) {
		slf, _ := pos.StopLoss.Float64()
		return t.executeSell(ctx, symbol, pos, price, fmt.Sprintf("stop-loss triggered at %.2f", slf))
	}
	if pos.TakeProfit.GreaterThan(decimal.Zero) && price.GreaterThanOrEqual(pos.TakeProfit) {
		tpf, _ := pos.TakeProfit.Float64()
		return t.executeSell(ctx, symbol, pos, price, fmt.Sprintf("take-profit triggered at %.2f", tpf))
	}

	bars, err := t.bars.get(t.broker, symbol, historyDays, t.now())
	if err != nil {
		return fmt.Errorf("historical data fetch failed: %w", err)
	}
	set := indicators.Compute(bars)

	// Rule 3. ATR trailing stop: exit when price falls more than the ATR
	// multiple below the peak since entry.
	if set.ATR14 != nil {
		atrStop := decimal.NewFromFloat(*set.ATR14 * t.cfg.ATRMultiplier)
		trigger := pos.PeakPrice.Sub(atrStop)
		if price.LessThan(trigger) {
			tf, _ := trigger.Float64()
			return t.executeSell(ctx, symbol, pos, price, fmt.Sprintf("trailing stop-loss triggered at %.2f", tf))
		}
	}

	// Rule 4. Slow structural rules, only during a deep review pass.
	if deep {
		if reason := reviewFindings(&pos, set, t.now(), t.cfg); reason != "" {
			return t.executeSell(ctx, symbol, pos, price, reason)
		}
	}

	// Rule 5. Ask the advisory source. A fail-safe verdict carries no signal
	// and must never trade.
	d := t.source.GetDecision(ctx, holdingPrompt(symbol, price, pos, set, daysHeld))
	if d.FailSafe {
		log.Warn().Str("symbol", symbol).Msg("Advisory verdict unavailable, holding position")
		return nil
	}
	if d.Action == decision.ActionSell {
		if d.Confidence < t.cfg.MinConfidence {
			log.Info().
				Str("symbol", symbol).
				Int("confidence", d.Confidence).
				Msgf("Low AI confidence (%d), ignoring SELL", d.Confidence)
			return nil
		}
		return t.executeSell(ctx, symbol, pos, price, "AI exit: "+d.Reasoning)
	}

	log.Debug().
		Str("symbol", symbol).
		Str("action", d.Action).
		Int("confidence", d.Confidence).
		Msg("No exit rule fired")
	return nil
}

// executeSell liquidates the full position. Paper mode fills synchronously
// inside the transaction; live mode runs the confirmation loop first and then
// reconciles so local state reflects what actually filled.
func (t *Trader) executeSell(ctx context.Context, symbol string, pos models.Position, price decimal.Decimal, reason string) error {
	log.Info().
		Str("symbol", symbol).
		Int64("qty", pos.Quantity).
		Str("reason", reason).
		Msg("SELL signal")

	if t.cfg.PaperTrading {
		var res execution.Result
		err := t.store.WithTransaction(true, func(p *models.Portfolio) error {
			res = execution.PlacePaperOrder(p, symbol, "sell", pos.Quantity, price, pos.InstrumentToken, pos.Exchange, t.now().Format(models.DateLayout))
			if res.Status != execution.StatusComplete {
				return fmt.Errorf("paper sell rejected: %s", res.Reason)
			}
			return nil
		})
		if err != nil {
			return err
		}
		t.recordExit(symbol, pos, price, pos.Quantity, reason)
		return nil
	}

	res := t.engine.PlaceAndConfirm(ctx, symbol, "sell", pos.Quantity)
	if !res.Filled() {
		log.Error().
			Str("symbol", symbol).
			Str("status", res.Status).
			Str("detail", res.Reason).
			Msg("Sell order did not fill")
		return fmt.Errorf("sell %s failed: %s", symbol, res.Status)
	}
	if summary, err := t.store.Reconcile(t.broker, t.reconcileDefaults(), t.now()); err != nil {
		return err
	} else {
		log.Info().Msg(summary)
	}
	t.recordExit(symbol, pos, res.AveragePrice, res.FilledQuantity, reason)
	return nil
}

// executeBuy opens a new position sized off the current portfolio value and
// the ATR stop distance, then arms its protective levels.
func (t *Trader) executeBuy(ctx context.Context, symbol, token string, price decimal.Decimal, set indicators.Set, reason string) error {
	snapshot := t.store.Snapshot()
	totalValue := t.portfolioValue(snapshot)

	riskPerShare := price.Mul(decimal.NewFromFloat(t.cfg.DefaultStopLossPct / 100))
	if set.ATR14 != nil {
		riskPerShare = decimal.NewFromFloat(*set.ATR14 * t.cfg.ATRMultiplier)
	}

	qty, reject := positionSize(totalValue, snapshot.Cash, price, riskPerShare, t.cfg.RiskPerTradePct, t.cfg.MaxCapitalPerTradePct)
	if reject != "" {
		log.Info().Str("symbol", symbol).Str("reason", reject).Msg("Entry skipped by position sizing")
		return nil
	}

	stopLoss := price.Sub(riskPerShare)
	takeProfit := price.Mul(decimal.NewFromFloat(1 + t.cfg.DefaultTakeProfitPct/100))

	log.Info().
		Str("symbol", symbol).
		Int64("qty", qty).
		Str("price", price.StringFixed(2)).
		Str("reason", reason).
		Msg("BUY signal")

	if t.cfg.PaperTrading {
		err := t.store.WithTransaction(true, func(p *models.Portfolio) error {
			res := execution.PlacePaperOrder(p, symbol, "buy", qty, price, token, "", t.now().Format(models.DateLayout))
			if res.Status != execution.StatusComplete {
				return fmt.Errorf("paper buy rejected: %s", res.Reason)
			}
			pos := p.Holdings[symbol]
			pos.StopLoss = stopLoss
			pos.TakeProfit = takeProfit
			delete(p.Watchlist, symbol)
			return nil
		})
		if err != nil {
			return err
		}
		t.recordEntry(symbol, price, qty, reason)
		return nil
	}

	res := t.engine.PlaceAndConfirm(ctx, symbol, "buy", qty)
	if !res.Filled() {
		log.Error().
			Str("symbol", symbol).
			Str("status", res.Status).
			Str("detail", res.Reason).
			Msg("Buy order did not fill")
		return fmt.Errorf("buy %s failed: %s", symbol, res.Status)
	}
	if summary, err := t.store.Reconcile(t.broker, t.reconcileDefaults(), t.now()); err != nil {
		return err
	} else {
		log.Info().Msg(summary)
	}
	// Reconciliation restores the position from the broker; arm the levels
	// computed from the actual fill price.
	err := t.store.WithTransaction(true, func(p *models.Portfolio) error {
		if pos, ok := p.Holdings[symbol]; ok {
			pos.StopLoss = res.AveragePrice.Sub(riskPerShare)
			pos.TakeProfit = res.AveragePrice.Mul(decimal.NewFromFloat(1 + t.cfg.DefaultTakeProfitPct/100))
		}
		delete(p.Watchlist, symbol)
		return nil
	})
	if err != nil {
		return err
	}
	t.recordEntry(symbol, res.AveragePrice, res.FilledQuantity, reason)
	return nil
}

func (t *Trader) recordEntry(symbol string, price decimal.Decimal, qty int64, reason string) {
	if err := t.trades.Record(symbol, "BUY", qty, price, nil, reason); err != nil {
		log.Error().Err(err).Msg("Failed to append trade log")
	}
	t.notify(fmt.Sprintf("🟢 *BUY* %s: %d @ %s\n_%s_", symbol, qty, price.StringFixed(2), reason))
}

func (t *Trader) recordExit(symbol string, pos models.Position, price decimal.Decimal, qty int64, reason string) {
	pnl := price.Sub(pos.EntryPrice).Mul(decimal.NewFromInt(qty))
	if err := t.trades.Record(symbol, "SELL", qty, price, &pnl, reason); err != nil {
		log.Error().Err(err).Msg("Failed to append trade log")
	}
	t.cooldown[symbol] = t.now().Format(models.DateLayout)

	emoji := "🔴"
	if pnl.GreaterThan(decimal.Zero) {
		emoji = "💰"
	}
	t.notify(fmt.Sprintf("%s *SELL* %s: %d @ %s, P&L %s\n_%s_", emoji, symbol, qty, price.StringFixed(2), pnl.StringFixed(2), reason))
}

func (t *Trader) reconcileDefaults() portfolio.ReconcileDefaults {
	return portfolio.ReconcileDefaults{
		StopLossPct:   t.cfg.DefaultStopLossPct,
		TakeProfitPct: t.cfg.DefaultTakeProfitPct,
	}
}

// portfolioValue is cash plus holdings at entry prices. Entry price is used
// instead of live quotes so sizing does not need one broker call per holding.
func (t *Trader) portfolioValue(p *models.Portfolio) decimal.Decimal {
	total := p.Cash
	for _, pos := range p.Holdings {
		total = total.Add(pos.EntryPrice.Mul(decimal.NewFromInt(pos.Quantity)))
	}
	return total
}

// holdingPrompt summarizes a position for the advisory source.
func holdingPrompt(symbol string, price decimal.Decimal, pos models.Position, set indicators.Set, daysHeld int) string {
	return fmt.Sprintf(
		"Position review for %s: current price %s, entry %s, peak %s, held %d days, stop-loss %s, take-profit %s.\nIndicators: %s\nShould this position be held or sold?",
		symbol,
		price.StringFixed(2),
		pos.EntryPrice.StringFixed(2),
		pos.PeakPrice.StringFixed(2),
		daysHeld,
		pos.StopLoss.StringFixed(2),
		pos.TakeProfit.StringFixed(2),
		describeIndicators(set),
	)
}

func describeIndicators(set indicators.Set) string {
	part := func(name string, v *float64) string {
		if v == nil {
			return name + "=n/a"
		}
		return fmt.Sprintf("%s=%.2f", name, *v)
	}
	return fmt.Sprintf("%s %s %s %s %s %s",
		part("RSI14", set.RSI14),
		part("SMA20", set.SMA20),
		part("SMA50", set.SMA50),
		part("MACD", set.MACDLine),
		part("MACD_signal", set.MACDSignal),
		part("ATR14", set.ATR14),
	)
}

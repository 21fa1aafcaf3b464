// Package backtest replays a daily candle series through the same entry and
// exit rules the live loop uses, with paper fills and a flat slippage cost.
// It is a sanity harness for rule changes, not a research engine.
package backtest

import (
	"fmt"

	"alpha_agent/internal/config"
	"alpha_agent/internal/execution"
	"alpha_agent/internal/indicators"
	"alpha_agent/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// warmup candles before the first tradable day, enough for every indicator.
const warmup = 50

// Result summarizes one replay.
type Result struct {
	Symbol      string
	FinalEquity decimal.Decimal
	Trades      int
	Wins        int
}

func (r Result) String() string {
	return fmt.Sprintf("%s: final equity %s over %d trades (%d wins)",
		r.Symbol, r.FinalEquity.StringFixed(2), r.Trades, r.Wins)
}

// Run replays one symbol's candles. Entries follow the screener rule (close
// above the 50-day average with RSI below 55); exits follow the hard stop,
// the take-profit and the ATR trailing stop. slippagePct is charged on every
// fill, against the trader.
func Run(symbol string, bars []models.Bar, cfg *config.Config, slippagePct float64) Result {
	p := models.NewPortfolio(decimal.NewFromFloat(cfg.VirtualCapital))
	res := Result{Symbol: symbol}
	slipUp := decimal.NewFromFloat(1 + slippagePct/100)
	slipDown := decimal.NewFromFloat(1 - slippagePct/100)

	var entry decimal.Decimal
	for i := warmup; i < len(bars); i++ {
		day := bars[i]
		date := day.Date.Format(models.DateLayout)
		set := indicators.Compute(bars[:i+1])

		pos, held := p.Holdings[symbol]
		if held {
			if day.Close.GreaterThan(pos.PeakPrice) {
				pos.PeakPrice = day.Close
				pos.LastPeakDate = date
			}

			exit := ""
			switch {
			case pos.StopLoss.GreaterThan(decimal.Zero) && day.Close.LessThanOrEqual(pos.StopLoss):
				exit = "stop-loss"
			case pos.TakeProfit.GreaterThan(decimal.Zero) && day.Close.GreaterThanOrEqual(pos.TakeProfit):
				exit = "take-profit"
			case set.ATR14 != nil && day.Close.LessThan(pos.PeakPrice.Sub(decimal.NewFromFloat(*set.ATR14*cfg.ATRMultiplier))):
				exit = "trailing stop"
			}
			if exit == "" {
				continue
			}

			fill := day.Close.Mul(slipDown)
			out := execution.PlacePaperOrder(p, symbol, "sell", pos.Quantity, fill, "", "", date)
			if out.Status != execution.StatusComplete {
				continue
			}
			res.Trades++
			if fill.GreaterThan(entry) {
				res.Wins++
			}
			log.Debug().Str("symbol", symbol).Str("date", date).Str("rule", exit).Msg("Backtest exit")
			continue
		}

		if set.SMA50 == nil || set.RSI14 == nil || set.ATR14 == nil {
			continue
		}
		closeF, _ := day.Close.Float64()
		if closeF <= *set.SMA50 || *set.RSI14 >= 55 {
			continue
		}

		fill := day.Close.Mul(slipUp)
		riskPerShare := decimal.NewFromFloat(*set.ATR14 * cfg.ATRMultiplier)
		qty := sizeEntry(p.Cash, fill, riskPerShare, cfg)
		if qty <= 0 {
			continue
		}
		out := execution.PlacePaperOrder(p, symbol, "buy", qty, fill, "", "", date)
		if out.Status != execution.StatusComplete {
			continue
		}
		entry = fill
		pos = p.Holdings[symbol]
		pos.StopLoss = fill.Sub(riskPerShare)
		pos.TakeProfit = fill.Mul(decimal.NewFromFloat(1 + cfg.DefaultTakeProfitPct/100))
	}

	equity := p.Cash
	if pos, held := p.Holdings[symbol]; held {
		equity = equity.Add(bars[len(bars)-1].Close.Mul(decimal.NewFromInt(pos.Quantity)))
	}
	res.FinalEquity = equity
	return res
}

func sizeEntry(cash, price, riskPerShare decimal.Decimal, cfg *config.Config) int64 {
	if riskPerShare.LessThanOrEqual(decimal.Zero) || price.LessThanOrEqual(decimal.Zero) {
		return 0
	}
	riskQty := cash.Mul(decimal.NewFromFloat(cfg.RiskPerTradePct / 100)).Div(riskPerShare).IntPart()
	capQty := cash.Mul(decimal.NewFromFloat(cfg.MaxCapitalPerTradePct / 100)).Div(price).IntPart()
	qty := riskQty
	if capQty < qty {
		qty = capQty
	}
	if price.Mul(decimal.NewFromInt(qty)).GreaterThan(cash) {
		return 0
	}
	return qty
}

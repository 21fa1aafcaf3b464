package trader

import (
	"fmt"
	"sort"
	"strings"

	"alpha_agent/internal/resilience"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// logCycleReport summarizes portfolio state at the end of a cycle: cash,
// per-holding unrealized P&L at live prices and the total account value.
// Quote failures fall back to entry price so the report always prints.
func (t *Trader) logCycleReport() {
	p := t.store.Snapshot()

	symbols := make([]string, 0, len(p.Holdings))
	for s := range p.Holdings {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	var sb strings.Builder
	sb.WriteString("--- Cycle Report ---\n")
	sb.WriteString(fmt.Sprintf("Cash: %s\n", p.Cash.StringFixed(2)))

	holdingsValue := decimal.Zero
	unrealized := decimal.Zero
	for _, symbol := range symbols {
		pos := p.Holdings[symbol]
		price, err := t.broker.LastPrice(symbol)
		if err != nil {
			price = pos.EntryPrice
		}
		qty := decimal.NewFromInt(pos.Quantity)
		value := price.Mul(qty)
		pnl := price.Sub(pos.EntryPrice).Mul(qty)
		holdingsValue = holdingsValue.Add(value)
		unrealized = unrealized.Add(pnl)
		sb.WriteString(fmt.Sprintf("  %s: %d @ %s (entry %s, P&L %s)\n",
			symbol, pos.Quantity, price.StringFixed(2), pos.EntryPrice.StringFixed(2), pnl.StringFixed(2)))
	}

	sb.WriteString(fmt.Sprintf("Holdings value: %s, unrealized P&L: %s\n", holdingsValue.StringFixed(2), unrealized.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("Total value: %s, watchlist: %d", p.Cash.Add(holdingsValue).StringFixed(2), len(p.Watchlist)))

	if rc, ok := t.broker.(*resilience.Client); ok {
		sb.WriteString(fmt.Sprintf(", breaker: %s", rc.Breaker().CurrentState()))
	}

	log.Info().Msg(sb.String())
}

package portfolio

import (
	"fmt"
	"strings"
	"time"

	"alpha_agent/internal/broker"
	"alpha_agent/internal/errs"
	"alpha_agent/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ReconcileDefaults derives stop-loss/take-profit levels for positions that
// appear at the broker without local bookkeeping (bought externally, or local
// state lost).
type ReconcileDefaults struct {
	StopLossPct   float64
	TakeProfitPct float64
}

// Reconcile rewrites the local portfolio to match the broker's authoritative
// holdings and cash balance, and returns a human-readable diff summary. It is
// the system's authority for resolving drift and runs at startup and after
// every live fill. Running it twice with no broker-side change yields "no
// changes" the second time.
func (s *Store) Reconcile(b broker.Client, defaults ReconcileDefaults, now time.Time) (string, error) {
	log.Info().Msg("--- Starting Portfolio Reconciliation ---")

	// Broker calls happen outside the transaction so the lock is never held
	// across network I/O.
	brokerHoldings, err := b.ListHoldings()
	if err != nil {
		return "", errs.WrapCritical(err, "reconciliation failed fetching holdings")
	}
	account, err := b.Account()
	if err != nil {
		return "", errs.WrapCritical(err, "reconciliation failed fetching account")
	}

	var summary []string
	err = s.WithTransaction(true, func(p *models.Portfolio) error {
		if !p.Cash.Equal(account.Cash) {
			summary = append(summary, fmt.Sprintf("~ Cash updated to %s", account.Cash.StringFixed(2)))
			p.Cash = account.Cash
		}

		brokerSymbols := make(map[string]bool, len(brokerHoldings))
		for _, h := range brokerHoldings {
			brokerSymbols[h.Symbol] = true
		}

		// Anything local but absent at the broker was sold or exited
		// externally.
		for symbol := range p.Holdings {
			if !brokerSymbols[symbol] {
				summary = append(summary, fmt.Sprintf("- Removed sold holding: %s", symbol))
				delete(p.Holdings, symbol)
			}
		}

		for _, h := range brokerHoldings {
			pos, exists := p.Holdings[h.Symbol]
			if !exists {
				pos = &models.Position{
					PurchaseDate: now.Format(models.DateLayout),
					PeakPrice:    maxDecimal(h.AvgEntryPrice, h.CurrentPrice),
					LastPeakDate: now.Format(models.DateLayout),
					StopLoss:     pctBelow(h.AvgEntryPrice, defaults.StopLossPct),
					TakeProfit:   pctAbove(h.AvgEntryPrice, defaults.TakeProfitPct),
				}
				p.Holdings[h.Symbol] = pos
				summary = append(summary, fmt.Sprintf("+ Added new holding: %s", h.Symbol))
			} else {
				if pos.Quantity != h.Qty {
					summary = append(summary, fmt.Sprintf("~ %s quantity corrected %d -> %d", h.Symbol, pos.Quantity, h.Qty))
				} else if !pos.EntryPrice.Equal(h.AvgEntryPrice) {
					summary = append(summary, fmt.Sprintf("~ %s entry price corrected to %s", h.Symbol, h.AvgEntryPrice.StringFixed(2)))
				}
			}
			pos.Quantity = h.Qty
			pos.EntryPrice = h.AvgEntryPrice
			pos.InstrumentToken = h.AssetID
			pos.Exchange = h.Exchange
			pos.Product = "delivery"
		}
		return nil
	})
	if err != nil {
		return "", errs.WrapCritical(err, "reconciliation failed persisting state")
	}

	if len(summary) == 0 {
		return "✅ Reconciliation Complete:\n  - No changes detected.", nil
	}
	var sb strings.Builder
	sb.WriteString("✅ Reconciliation Complete:\n")
	for _, line := range summary {
		sb.WriteString("  " + line + "\n")
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func maxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if b.GreaterThan(a) {
		return b
	}
	return a
}

func pctBelow(price decimal.Decimal, pct float64) decimal.Decimal {
	return price.Mul(decimal.NewFromFloat(1 - pct/100))
}

func pctAbove(price decimal.Decimal, pct float64) decimal.Decimal {
	return price.Mul(decimal.NewFromFloat(1 + pct/100))
}

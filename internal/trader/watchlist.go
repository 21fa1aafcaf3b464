package trader

import (
	"context"
	"fmt"

	"alpha_agent/internal/indicators"
	"alpha_agent/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// manageWatchlist expires stale entries and promotes entries whose price has
// confirmed above the breakout trigger into real positions.
func (t *Trader) manageWatchlist(ctx context.Context) error {
	// Expiry first, inside one transaction.
	var expired []string
	err := t.store.WithTransaction(true, func(p *models.Portfolio) error {
		for symbol, entry := range p.Watchlist {
			if days, ok := models.DaysSince(entry.AddedDate, t.now()); !ok || days >= t.cfg.WatchlistExpiryDays {
				expired = append(expired, symbol)
				delete(p.Watchlist, symbol)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, symbol := range expired {
		log.Info().Str("symbol", symbol).Msg("Watchlist entry expired without confirmation")
	}

	for symbol, entry := range t.store.Snapshot().Watchlist {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		price, err := t.broker.LastPrice(symbol)
		if err != nil {
			log.Warn().Str("symbol", symbol).Err(err).Msg("Watchlist price check failed")
			continue
		}
		if price.LessThan(entry.ConfirmationPrice) {
			log.Debug().
				Str("symbol", symbol).
				Str("price", price.StringFixed(2)).
				Str("trigger", entry.ConfirmationPrice.StringFixed(2)).
				Msg("Watchlist entry not yet confirmed")
			continue
		}

		bars, err := t.bars.get(t.broker, symbol, historyDays, t.now())
		if err != nil {
			log.Warn().Str("symbol", symbol).Err(err).Msg("Watchlist history fetch failed")
			continue
		}
		reason := fmt.Sprintf("breakout confirmed above %s", entry.ConfirmationPrice.StringFixed(2))
		if err := t.executeBuy(ctx, symbol, entry.InstrumentToken, price, indicators.Compute(bars), reason); err != nil {
			log.Error().Str("symbol", symbol).Err(err).Msg("Watchlist entry failed")
		}
	}
	return nil
}

// addToWatchlist records an approved candidate with its breakout trigger. The
// trigger is the highest high of the last confirmationLookback sessions, so
// entry waits for the price to prove the move.
const confirmationLookback = 5

func (t *Trader) addToWatchlist(symbol, token string, bars []models.Bar) error {
	trigger := decimal.Zero
	start := len(bars) - confirmationLookback
	if start < 0 {
		start = 0
	}
	for _, b := range bars[start:] {
		if b.High.GreaterThan(trigger) {
			trigger = b.High
		}
	}
	if trigger.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("no usable confirmation price for %s", symbol)
	}

	err := t.store.WithTransaction(true, func(p *models.Portfolio) error {
		p.Watchlist[symbol] = &models.WatchlistEntry{
			InstrumentToken:   token,
			ConfirmationPrice: trigger,
			AddedDate:         t.now().Format(models.DateLayout),
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Info().
		Str("symbol", symbol).
		Str("trigger", trigger.StringFixed(2)).
		Msg("Added to watchlist, awaiting breakout confirmation")
	return nil
}

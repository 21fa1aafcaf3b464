package trader

import (
	"context"
	"fmt"
	"sort"

	"alpha_agent/internal/decision"
	"alpha_agent/internal/indicators"
	"alpha_agent/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// candidate is a screened symbol that passed every filter.
type candidate struct {
	Symbol string
	Score  float64
	Close  decimal.Decimal
	Set    indicators.Set
	Bars   []models.Bar
}

// scanForCandidates screens the universe for momentum setups, asks the
// advisory source about the best ones and puts approved names on the
// watchlist.
func (t *Trader) scanForCandidates(ctx context.Context) error {
	snapshot := t.store.Snapshot()
	today := t.now().Format(models.DateLayout)

	var candidates []candidate
	for _, symbol := range t.cfg.Universe {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, held := snapshot.Holdings[symbol]; held {
			continue
		}
		if _, watched := snapshot.Watchlist[symbol]; watched {
			continue
		}
		// No re-entry on the same day a position was exited.
		if t.cooldown[symbol] == today {
			continue
		}

		c, ok := t.screenSymbol(symbol)
		if !ok {
			continue
		}
		candidates = append(candidates, c)
	}

	if len(candidates) == 0 {
		log.Info().Msg("Screener found no candidates this cycle")
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	if len(candidates) > t.cfg.ScreenerTopN {
		candidates = candidates[:t.cfg.ScreenerTopN]
	}
	log.Info().Int("count", len(candidates)).Msg("Screener candidates selected")

	for _, c := range candidates {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d := t.source.GetDecision(ctx, candidatePrompt(c))
		if d.FailSafe {
			log.Warn().Str("symbol", c.Symbol).Msg("Advisory verdict unavailable, skipping candidate")
			continue
		}
		if d.Action != decision.ActionBuy {
			log.Info().Str("symbol", c.Symbol).Str("action", d.Action).Msg("Candidate not approved")
			continue
		}
		if d.Confidence < t.cfg.MinConfidence {
			log.Info().
				Str("symbol", c.Symbol).
				Int("confidence", d.Confidence).
				Msgf("Low AI confidence (%d), skipping candidate", d.Confidence)
			continue
		}
		if err := t.addToWatchlist(c.Symbol, "", c.Bars); err != nil {
			log.Error().Str("symbol", c.Symbol).Err(err).Msg("Failed to add candidate to watchlist")
		}
	}
	return nil
}

// screenSymbol applies the mechanical filters: enough history, a liquidity
// floor on 20-day average volume, a minimum price, close above the 50-day
// average and RSI still below the overbought band. Score rewards the most
// room left to run.
func (t *Trader) screenSymbol(symbol string) (candidate, bool) {
	bars, err := t.bars.get(t.broker, symbol, historyDays, t.now())
	if err != nil {
		log.Warn().Str("symbol", symbol).Err(err).Msg("Screener history fetch failed")
		return candidate{}, false
	}
	if len(bars) < 50 {
		return candidate{}, false
	}

	var volSum int64
	for _, b := range bars[len(bars)-20:] {
		volSum += b.Volume
	}
	if volSum/20 < t.cfg.MinAvgVolume {
		return candidate{}, false
	}

	last := bars[len(bars)-1]
	closeF, _ := last.Close.Float64()
	if closeF < t.cfg.MinPrice {
		return candidate{}, false
	}

	set := indicators.Compute(bars)
	if set.SMA50 == nil || set.RSI14 == nil {
		return candidate{}, false
	}
	if closeF <= *set.SMA50 {
		return candidate{}, false
	}
	if *set.RSI14 >= 55 {
		return candidate{}, false
	}

	return candidate{
		Symbol: symbol,
		Score:  100 - *set.RSI14,
		Close:  last.Close,
		Set:    set,
		Bars:   bars,
	}, true
}

func candidatePrompt(c candidate) string {
	return fmt.Sprintf(
		"Entry candidate %s at %s, momentum score %.1f.\nIndicators: %s\nIs this a good swing-trade entry right now?",
		c.Symbol,
		c.Close.StringFixed(2),
		c.Score,
		describeIndicators(c.Set),
	)
}

package trader

import (
	"time"

	"alpha_agent/internal/broker"
	"alpha_agent/internal/models"
)

// barsCache holds one daily-candle series per symbol and drops the whole
// cache when the calendar date changes, since daily candles only move once a
// day.
type barsCache struct {
	date    string
	entries map[string][]models.Bar
}

func newBarsCache() *barsCache {
	return &barsCache{entries: make(map[string][]models.Bar)}
}

func (c *barsCache) get(b broker.Client, symbol string, days int, now time.Time) ([]models.Bar, error) {
	today := now.Format(models.DateLayout)
	if c.date != today {
		c.date = today
		c.entries = make(map[string][]models.Bar)
	}
	if bars, ok := c.entries[symbol]; ok {
		return bars, nil
	}
	bars, err := b.Bars(symbol, days)
	if err != nil {
		return nil, err
	}
	c.entries[symbol] = bars
	return bars, nil
}

// Package indicators computes the technical indicator set consumed by the
// screener and the position rules. Missing or insufficient input yields an
// all-empty set, never an error.
package indicators

import (
	"math"

	"alpha_agent/internal/models"

	talib "github.com/markcheno/go-talib"
	"github.com/rs/zerolog/log"
)

// minBars is the minimum series length needed for the slowest indicator
// (50-day SMA).
const minBars = 50

// Set carries the computed indicator values. Fields are pointers: nil means
// the indicator could not be computed from the available data.
type Set struct {
	RSI14      *float64
	SMA20      *float64
	SMA50      *float64
	EMA5       *float64
	MACDLine   *float64
	MACDSignal *float64
	BBUpper    *float64
	BBLower    *float64
	ATR14      *float64
}

// Compute derives the indicator set from a daily candle series (oldest
// first). Fewer than minBars candles returns an empty Set.
func Compute(bars []models.Bar) Set {
	if len(bars) < minBars {
		log.Warn().Int("bars", len(bars)).Msg("Not enough historical data to calculate all indicators")
		return Set{}
	}

	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, b := range bars {
		closes[i], _ = b.Close.Float64()
		highs[i], _ = b.High.Float64()
		lows[i], _ = b.Low.Float64()
	}

	macd, signal, _ := talib.Macd(closes, 12, 26, 9)
	upper, _, lower := talib.BBands(closes, 20, 2.0, 2.0, talib.SMA)

	return Set{
		RSI14:      last(talib.Rsi(closes, 14)),
		SMA20:      last(talib.Sma(closes, 20)),
		SMA50:      last(talib.Sma(closes, 50)),
		EMA5:       last(talib.Ema(closes, 5)),
		MACDLine:   last(macd),
		MACDSignal: last(signal),
		BBUpper:    last(upper),
		BBLower:    last(lower),
		ATR14:      last(talib.Atr(highs, lows, closes, 14)),
	}
}

// last returns the final value of a talib output series, rounded to two
// decimals, or nil when the series is empty or still NaN.
func last(vals []float64) *float64 {
	if len(vals) == 0 {
		return nil
	}
	v := vals[len(vals)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	v = math.Round(v*100) / 100
	return &v
}

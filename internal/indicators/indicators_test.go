package indicators

import (
	"testing"
	"time"

	"alpha_agent/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticBars(n int) []models.Bar {
	bars := make([]models.Bar, n)
	day := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := 0; i < n; i++ {
		// Gentle uptrend with a small oscillation so RSI/MACD have texture.
		price += 0.5
		if i%7 == 0 {
			price -= 1.5
		}
		bars[i] = models.Bar{
			Date:   day.AddDate(0, 0, i),
			Open:   decimal.NewFromFloat(price - 0.5),
			High:   decimal.NewFromFloat(price + 1.0),
			Low:    decimal.NewFromFloat(price - 1.0),
			Close:  decimal.NewFromFloat(price),
			Volume: 500000,
		}
	}
	return bars
}

func TestCompute_InsufficientDataIsEmpty(t *testing.T) {
	set := Compute(syntheticBars(20))

	assert.Nil(t, set.RSI14)
	assert.Nil(t, set.SMA50)
	assert.Nil(t, set.ATR14)
	assert.Nil(t, set.MACDLine)
}

func TestCompute_FullSeriesPopulatesAllFields(t *testing.T) {
	set := Compute(syntheticBars(90))

	require.NotNil(t, set.RSI14)
	require.NotNil(t, set.SMA20)
	require.NotNil(t, set.SMA50)
	require.NotNil(t, set.EMA5)
	require.NotNil(t, set.MACDLine)
	require.NotNil(t, set.MACDSignal)
	require.NotNil(t, set.BBUpper)
	require.NotNil(t, set.BBLower)
	require.NotNil(t, set.ATR14)

	assert.Greater(t, *set.RSI14, 0.0)
	assert.Less(t, *set.RSI14, 100.0)
	// Uptrend: short average sits above the long one and the bands straddle
	// the close.
	assert.Greater(t, *set.SMA20, *set.SMA50)
	assert.Greater(t, *set.BBUpper, *set.BBLower)
	assert.Greater(t, *set.ATR14, 0.0)
}

package decision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse_ValidVerdict(t *testing.T) {
	d := Parse(`{"action": "BUY", "confidence": 8, "reasoning": "Strong momentum with RSI headroom and a fresh MACD cross."}`)

	assert.Equal(t, ActionBuy, d.Action)
	assert.Equal(t, 8, d.Confidence)
	assert.False(t, d.FailSafe)
}

func TestParse_LowercaseActionIsNormalized(t *testing.T) {
	d := Parse(`{"action": "sell", "confidence": 7, "reasoning": "Momentum broke down below the 50-day average."}`)

	assert.Equal(t, ActionSell, d.Action)
	assert.False(t, d.FailSafe)
}

func TestParse_FailsSafe(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"malformed json", `not json at all`},
		{"unknown action", `{"action": "SHORT", "confidence": 5, "reasoning": "Bearish breakdown on heavy volume."}`},
		{"confidence too low", `{"action": "BUY", "confidence": 0, "reasoning": "Strong momentum with volume confirmation."}`},
		{"confidence too high", `{"action": "BUY", "confidence": 11, "reasoning": "Strong momentum with volume confirmation."}`},
		{"reasoning too short", `{"action": "HOLD", "confidence": 5, "reasoning": "ok"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Parse(tc.raw)

			assert.True(t, d.FailSafe)
			assert.Equal(t, ActionHold, d.Action)
			assert.Equal(t, 10, d.Confidence)
			assert.Equal(t, "Failsafe triggered due to an internal error.", d.Reasoning)
		})
	}
}

func TestGemini_MissingKeyFailsSafe(t *testing.T) {
	c := NewGeminiClient("", "gemini-2.5-flash")

	d := c.GetDecision(context.Background(), "anything")

	assert.True(t, d.FailSafe)
	assert.Equal(t, ActionHold, d.Action)
}

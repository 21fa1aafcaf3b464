// Package decision is the advisory layer: it asks an external model what to
// do with a position and always answers with a usable verdict. Any failure
// on the way degrades to a fail-safe HOLD rather than an error.
package decision

import (
	"context"
	"strings"
)

// Actions a decision can recommend.
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
	ActionHold = "HOLD"
)

// Decision is a validated verdict from the advisory model.
type Decision struct {
	Action     string `json:"action"`
	Confidence int    `json:"confidence"`
	Reasoning  string `json:"reasoning"`

	// FailSafe marks a synthetic verdict produced because the real one
	// could not be obtained or did not validate. Callers must not treat
	// its confidence as a real signal.
	FailSafe bool `json:"-"`
}

// FailSafe is the canned verdict used whenever the advisory layer cannot
// produce a trustworthy answer.
func FailSafe() Decision {
	return Decision{
		Action:     ActionHold,
		Confidence: 10,
		Reasoning:  "Failsafe triggered due to an internal error.",
		FailSafe:   true,
	}
}

// Source produces a decision for a prompt. Implementations never return an
// error; anything that goes wrong becomes the fail-safe verdict.
type Source interface {
	GetDecision(ctx context.Context, prompt string) Decision
}

// validate checks the raw model output against the schema the trading loop
// relies on. Returns the reason the verdict is unusable, or "".
func validate(d Decision) string {
	switch strings.ToUpper(strings.TrimSpace(d.Action)) {
	case ActionBuy, ActionSell, ActionHold:
	default:
		return "unknown action '" + d.Action + "'"
	}
	if d.Confidence < 1 || d.Confidence > 10 {
		return "confidence out of range"
	}
	if len(strings.TrimSpace(d.Reasoning)) < 10 {
		return "reasoning too short"
	}
	return ""
}

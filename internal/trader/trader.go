// Package trader drives the whole agent: the periodic trading cycle, the
// position lifecycle rules, the screener and the advisory consultations. One
// Trader instance owns the loop; everything it touches is injected.
package trader

import (
	"context"
	"fmt"
	"math"
	"time"

	"alpha_agent/internal/broker"
	"alpha_agent/internal/config"
	"alpha_agent/internal/decision"
	"alpha_agent/internal/errs"
	"alpha_agent/internal/execution"
	"alpha_agent/internal/portfolio"
	"alpha_agent/internal/telegram"
	"alpha_agent/internal/tradelog"

	"github.com/rs/zerolog/log"
)

// Trader wires the portfolio store, the resilient broker client, the order
// engine and the advisory source into the periodic trading loop.
type Trader struct {
	cfg    *config.Config
	store  *portfolio.Store
	broker broker.Client
	engine *execution.Engine
	source decision.Source
	trades *tradelog.Logger
	notify func(string)
	now    func() time.Time

	bars     *barsCache
	cooldown map[string]string // symbol -> date of last exit, no same-day re-entry

	consecutiveErrors int
	lastDeepReview    time.Time
}

func New(cfg *config.Config, store *portfolio.Store, b broker.Client, engine *execution.Engine, source decision.Source, trades *tradelog.Logger) *Trader {
	return &Trader{
		cfg:      cfg,
		store:    store,
		broker:   b,
		engine:   engine,
		source:   source,
		trades:   trades,
		notify:   telegram.Notify,
		now:      time.Now,
		bars:     newBarsCache(),
		cooldown: make(map[string]string),
	}
}

// Run executes trading cycles until the context is cancelled. A critical
// error halts the loop and is returned; transient cycle errors back off
// exponentially and, past the consecutive-error limit, trigger a maintenance
// pause before the counter resets.
func (t *Trader) Run(ctx context.Context) error {
	log.Info().
		Bool("paper", t.cfg.PaperTrading).
		Int("universe", len(t.cfg.Universe)).
		Msg("Trading loop starting")

	for {
		if err := t.runCycle(ctx); err != nil {
			if errs.IsCritical(err) {
				log.Error().Err(err).Msg("CRITICAL error, halting trading loop")
				t.notify(fmt.Sprintf("🚨 *Agent halted*: %v", err))
				return err
			}
			t.consecutiveErrors++
			if t.consecutiveErrors >= t.cfg.MaxConsecutiveErrors {
				log.Error().
					Int("consecutive_errors", t.consecutiveErrors).
					Err(err).
					Msg("Too many consecutive failures, entering maintenance pause")
				t.notify(fmt.Sprintf("⚠️ *Maintenance pause* after %d consecutive errors: %v", t.consecutiveErrors, err))
				if !t.sleep(ctx, t.errorCooldown()) {
					return ctx.Err()
				}
				t.consecutiveErrors = 0
				continue
			}
			cooldown := t.errorCooldown()
			log.Warn().
				Int("consecutive_errors", t.consecutiveErrors).
				Dur("cooldown", cooldown).
				Err(err).
				Msg("Cycle failed, backing off")
			if !t.sleep(ctx, cooldown) {
				return ctx.Err()
			}
			continue
		}

		t.consecutiveErrors = 0
		if !t.sleep(ctx, time.Duration(t.cfg.CycleIntervalSec)*time.Second) {
			return ctx.Err()
		}
	}
}

// errorCooldown doubles per consecutive error, capped at 15 minutes.
func (t *Trader) errorCooldown() time.Duration {
	base := time.Duration(t.cfg.ErrorCooldownBaseSec) * time.Second
	n := t.consecutiveErrors
	if n < 1 {
		n = 1
	}
	d := base * time.Duration(math.Pow(2, float64(n-1)))
	if max := 15 * time.Minute; d > max {
		d = max
	}
	return d
}

func (t *Trader) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// runCycle is one full pass: market gate, watchlist management, holding
// evaluation, screening for new candidates, then the cycle report.
func (t *Trader) runCycle(ctx context.Context) error {
	clock, err := t.broker.Clock()
	if err != nil {
		return fmt.Errorf("market clock unavailable: %w", err)
	}
	if !clock.IsOpen {
		log.Info().
			Time("next_open", clock.NextOpen).
			Msg("Market closed, skipping cycle")
		return nil
	}

	deep := t.now().Sub(t.lastDeepReview) >= time.Duration(t.cfg.ReviewIntervalSec)*time.Second
	if deep {
		t.lastDeepReview = t.now()
	}

	log.Info().Bool("deep_review", deep).Msg("--- Cycle start ---")

	if err := t.manageWatchlist(ctx); err != nil {
		return err
	}
	if err := t.evaluateHoldings(ctx, deep); err != nil {
		return err
	}
	if err := t.scanForCandidates(ctx); err != nil {
		return err
	}

	t.logCycleReport()
	return nil
}

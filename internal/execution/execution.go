// Package execution places orders and drives them to a terminal state. The
// live path polls the broker until the order fills, rejects or times out;
// the paper path fills synchronously against the in-memory portfolio.
package execution

import (
	"context"
	"time"

	"alpha_agent/internal/broker"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Terminal statuses of an order execution attempt.
const (
	StatusComplete = "COMPLETE"
	StatusPartial  = "PARTIAL"
	StatusRejected = "REJECTED"
	StatusFailed   = "FAILED"
	StatusTimeout  = "TIMEOUT"
)

// Result is the uniform outcome of both execution paths.
type Result struct {
	Status         string
	OrderID        string
	FilledQuantity int64
	AveragePrice   decimal.Decimal
	Reason         string
}

// Terminal reports whether any shares actually changed hands.
func (r Result) Filled() bool {
	return r.Status == StatusComplete || r.Status == StatusPartial
}

// Engine runs the live order lifecycle.
type Engine struct {
	broker       broker.Client
	pollInterval time.Duration
	timeout      time.Duration
}

func NewEngine(b broker.Client, pollInterval, timeout time.Duration) *Engine {
	return &Engine{broker: b, pollInterval: pollInterval, timeout: timeout}
}

// PlaceAndConfirm submits a market order and polls its status until it
// reaches a terminal state or the timeout window closes. Orders are plain
// delivery-style day orders; nothing intraday-margin can be placed here.
//
// Partial fills observed mid-poll are logged but polling continues; only a
// terminal broker status or the timeout ends the loop. At timeout one final
// status check decides between PARTIAL (some shares filled) and TIMEOUT.
func (e *Engine) PlaceAndConfirm(ctx context.Context, symbol, side string, qty int64) Result {
	order, err := e.broker.PlaceMarketOrder(symbol, qty, side)
	if err != nil {
		log.Error().Str("symbol", symbol).Str("side", side).Err(err).Msg("Order placement failed")
		return Result{Status: StatusFailed, Reason: err.Error()}
	}
	log.Info().
		Str("symbol", symbol).
		Str("side", side).
		Int64("qty", qty).
		Str("order_id", order.ID).
		Msg("Order placed, awaiting confirmation")

	deadline := time.Now().Add(e.timeout)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			// A cancelled context mid-poll leaves the order live at the
			// broker; the next reconciliation repairs the bookkeeping.
			return e.finalCheck(order.ID, "context cancelled during confirmation")
		case <-time.After(e.pollInterval):
		}

		current, err := e.broker.GetOrder(order.ID)
		if err != nil {
			log.Warn().Str("order_id", order.ID).Err(err).Msg("Order status poll failed")
			continue
		}

		switch current.Status {
		case "filled":
			log.Info().
				Str("order_id", order.ID).
				Int64("filled", current.FilledQty).
				Str("avg_price", current.FilledAvgPrice.StringFixed(2)).
				Msg("Order complete")
			return Result{
				Status:         StatusComplete,
				OrderID:        order.ID,
				FilledQuantity: current.FilledQty,
				AveragePrice:   current.FilledAvgPrice,
			}
		case "rejected", "canceled", "expired":
			log.Error().
				Str("order_id", order.ID).
				Str("status", current.Status).
				Msg("Order terminated without filling")
			return Result{Status: StatusRejected, OrderID: order.ID, Reason: current.FailReason}
		default:
			if current.FilledQty > 0 {
				log.Info().
					Str("order_id", order.ID).
					Int64("filled", current.FilledQty).
					Int64("total", qty).
					Msg("Partial fill observed, continuing to poll")
			}
		}
	}

	return e.finalCheck(order.ID, "confirmation window elapsed")
}

// finalCheck performs one last status fetch after the timeout window. A
// partial fill at this point is surfaced as PARTIAL so the caller can
// reconcile the filled shares; otherwise the attempt is a TIMEOUT and no
// local state may change.
func (e *Engine) finalCheck(orderID, why string) Result {
	current, err := e.broker.GetOrder(orderID)
	if err != nil {
		return Result{Status: StatusTimeout, OrderID: orderID, Reason: why}
	}
	switch {
	case current.Status == "filled":
		return Result{
			Status:         StatusComplete,
			OrderID:        orderID,
			FilledQuantity: current.FilledQty,
			AveragePrice:   current.FilledAvgPrice,
		}
	case current.FilledQty > 0:
		log.Warn().
			Str("order_id", orderID).
			Int64("filled", current.FilledQty).
			Msg("Order timed out partially filled")
		return Result{
			Status:         StatusPartial,
			OrderID:        orderID,
			FilledQuantity: current.FilledQty,
			AveragePrice:   current.FilledAvgPrice,
			Reason:         why,
		}
	default:
		return Result{Status: StatusTimeout, OrderID: orderID, Reason: why}
	}
}

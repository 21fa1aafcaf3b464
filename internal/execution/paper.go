package execution

import (
	"fmt"

	"alpha_agent/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// PlacePaperOrder simulates an immediate full fill at the supplied reference
// price against the portfolio state the caller already holds inside a
// transaction. There is no partial-fill concept in paper mode.
//
// BUY debits cash and creates a position or re-averages the existing one
// (volume-weighted); SELL credits cash and decrements, deleting the position
// when quantity reaches zero. Insufficient cash or quantity rejects the order
// without mutating anything.
func PlacePaperOrder(p *models.Portfolio, symbol, side string, qty int64, price decimal.Decimal, token, exchange, date string) Result {
	orderID := "sim-" + uuid.NewString()[:12]
	qtyDec := decimal.NewFromInt(qty)
	value := price.Mul(qtyDec)

	switch side {
	case "buy":
		if value.GreaterThan(p.Cash) {
			return Result{
				Status:  StatusRejected,
				OrderID: orderID,
				Reason:  fmt.Sprintf("insufficient cash: need %s, have %s", value.StringFixed(2), p.Cash.StringFixed(2)),
			}
		}
		p.Cash = p.Cash.Sub(value)

		pos, exists := p.Holdings[symbol]
		if !exists {
			p.Holdings[symbol] = &models.Position{
				Quantity:        qty,
				EntryPrice:      price,
				InstrumentToken: token,
				Exchange:        exchange,
				Product:         "delivery",
				PurchaseDate:    date,
				PeakPrice:       price,
				LastPeakDate:    date,
			}
		} else {
			// new_avg = (old_qty*old_price + fill_qty*fill_price) / (old_qty+fill_qty)
			oldQty := decimal.NewFromInt(pos.Quantity)
			totalQty := oldQty.Add(qtyDec)
			pos.EntryPrice = oldQty.Mul(pos.EntryPrice).Add(value).Div(totalQty)
			pos.Quantity += qty
			// Averaging in at a lower price must not drag the peak down.
			if price.GreaterThan(pos.PeakPrice) {
				pos.PeakPrice = price
				pos.LastPeakDate = date
			}
		}

	case "sell":
		pos, exists := p.Holdings[symbol]
		if !exists || pos.Quantity < qty {
			held := int64(0)
			if exists {
				held = pos.Quantity
			}
			return Result{
				Status:  StatusRejected,
				OrderID: orderID,
				Reason:  fmt.Sprintf("insufficient quantity: selling %d, holding %d", qty, held),
			}
		}
		p.Cash = p.Cash.Add(value)
		pos.Quantity -= qty
		if pos.Quantity == 0 {
			delete(p.Holdings, symbol)
		}

	default:
		return Result{Status: StatusRejected, OrderID: orderID, Reason: "unknown side: " + side}
	}

	log.Info().
		Str("symbol", symbol).
		Str("side", side).
		Int64("qty", qty).
		Str("price", price.StringFixed(2)).
		Str("order_id", orderID).
		Msg("(PAPER) Simulated fill")

	return Result{
		Status:         StatusComplete,
		OrderID:        orderID,
		FilledQuantity: qty,
		AveragePrice:   price,
	}
}

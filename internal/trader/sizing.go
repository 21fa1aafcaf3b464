package trader

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// positionSize returns the share count for a new entry: the smaller of the
// risk-based size (risk budget divided by per-share risk) and the capital cap
// (max fraction of portfolio value in one name). A non-empty reject reason
// means no trade.
func positionSize(totalValue, cash, price, riskPerShare decimal.Decimal, riskPct, capPct float64) (int64, string) {
	if riskPerShare.LessThanOrEqual(decimal.Zero) {
		return 0, "per-share risk is zero or negative"
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return 0, "price is zero or negative"
	}

	riskBudget := totalValue.Mul(decimal.NewFromFloat(riskPct / 100))
	capitalCap := totalValue.Mul(decimal.NewFromFloat(capPct / 100))

	riskQty := riskBudget.Div(riskPerShare).IntPart()
	capQty := capitalCap.Div(price).IntPart()

	qty := riskQty
	if capQty < qty {
		qty = capQty
	}
	if qty <= 0 {
		return 0, "computed quantity is zero"
	}

	cost := price.Mul(decimal.NewFromInt(qty))
	if cost.GreaterThan(cash) {
		return 0, fmt.Sprintf("insufficient cash: need %s, have %s", cost.StringFixed(2), cash.StringFixed(2))
	}
	return qty, ""
}

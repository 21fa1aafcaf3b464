package trader

import (
	"fmt"
	"time"

	"alpha_agent/internal/config"
	"alpha_agent/internal/indicators"
	"alpha_agent/internal/models"
)

// reviewFindings applies the slow structural exit rules checked during deep
// review passes. Returns the exit reason for the first rule that fires, or ""
// when the position survives review. Order matters: the time stop outranks
// stagnation, which outranks the reversal check.
func reviewFindings(pos *models.Position, set indicators.Set, now time.Time, cfg *config.Config) string {
	if days, ok := models.DaysSince(pos.PurchaseDate, now); ok && days >= cfg.TimeStopDays {
		return fmt.Sprintf("TIME_STOP: held %d days (max %d)", days, cfg.TimeStopDays)
	}

	if days, ok := models.DaysSince(pos.LastPeakDate, now); ok && days >= cfg.StagnationDays {
		return fmt.Sprintf("PRICE_STAGNATION: no new peak in %d days", days)
	}

	if set.MACDLine != nil && set.MACDSignal != nil && set.RSI14 != nil {
		if *set.MACDLine < *set.MACDSignal && *set.RSI14 < 50 {
			return fmt.Sprintf("TECHNICAL_REVERSAL: MACD below signal with RSI %.1f", *set.RSI14)
		}
	}

	return ""
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the format used for calendar-date fields persisted in the
// portfolio file (purchase dates, peak dates, watchlist entries).
const DateLayout = "2006-01-02"

// Position represents a single held position.
//
// Quantity is a whole share count; all money values use decimal to avoid
// float drift in cash accounting.
type Position struct {
	Quantity        int64           `json:"quantity"`
	EntryPrice      decimal.Decimal `json:"entry_price"` // volume-weighted average cost
	InstrumentToken string          `json:"instrument_token"`
	Exchange        string          `json:"exchange"`
	Product         string          `json:"product"`
	PurchaseDate    string          `json:"purchase_date,omitempty"` // date of first entry
	PeakPrice       decimal.Decimal `json:"peak_price"`              // highest price seen since entry
	LastPeakDate    string          `json:"last_peak_date,omitempty"`
	StopLoss        decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit      decimal.Decimal `json:"take_profit,omitempty"`
}

// WatchlistEntry is a candidate approved for entry, waiting for the price to
// confirm above its breakout trigger.
type WatchlistEntry struct {
	InstrumentToken   string          `json:"instrument_token"`
	ConfirmationPrice decimal.Decimal `json:"confirmation_price"`
	AddedDate         string          `json:"added_date"`
}

// Portfolio is the authoritative local state: cash, open positions and the
// watchlist. It matches the structure of the JSON state file.
//
// Cash may go negative; reconciliation against the broker can surface margin
// or overdraft states and we record them as-is.
type Portfolio struct {
	Cash      decimal.Decimal            `json:"cash"`
	Holdings  map[string]*Position       `json:"holdings"`
	Watchlist map[string]*WatchlistEntry `json:"watchlist"`
}

// NewPortfolio returns an empty portfolio with the given starting cash.
func NewPortfolio(cash decimal.Decimal) *Portfolio {
	return &Portfolio{
		Cash:      cash,
		Holdings:  make(map[string]*Position),
		Watchlist: make(map[string]*WatchlistEntry),
	}
}

// DaysSince returns the number of whole calendar days between a stored date
// string and now. Malformed or empty dates report ok=false so callers can
// skip date-driven rules instead of acting on garbage.
func DaysSince(dateStr string, now time.Time) (days int, ok bool) {
	if dateStr == "" {
		return 0, false
	}
	d, err := time.Parse(DateLayout, dateStr)
	if err != nil {
		return 0, false
	}
	return int(now.Sub(d).Hours() / 24), true
}

// Package broker defines the explicit set of broker operations the agent
// needs and the adapters that provide them. Nothing outside this package
// talks to the broker SDK directly.
package broker

import (
	"alpha_agent/internal/models"

	"github.com/shopspring/decimal"
)

// Client lists every broker operation consumed by the core. Keeping this
// explicit (instead of forwarding arbitrary method names) means a missing
// operation is a compile error, not a runtime surprise.
//
// Implementations may block and are not required to be safe for concurrent
// use; the Gateway serializes access.
type Client interface {
	// LastPrice returns the latest traded price for a symbol.
	LastPrice(symbol string) (decimal.Decimal, error)

	// Bars returns up to `days` most recent daily candles, oldest first.
	Bars(symbol string, days int) ([]models.Bar, error)

	// PlaceMarketOrder submits a day-validity market order. Side is "buy" or
	// "sell". Orders are always plain delivery-style equity orders; nothing
	// here can open a margin/intraday product.
	PlaceMarketOrder(symbol string, qty int64, side string) (*models.Order, error)

	// GetOrder fetches the current state of an order by id.
	GetOrder(orderID string) (*models.Order, error)

	// ListHoldings returns the broker's view of open positions.
	ListHoldings() ([]models.BrokerPosition, error)

	// Account returns cash and margin figures.
	Account() (*models.Account, error)

	// ListAssets returns the tradable instruments.
	ListAssets() ([]models.Asset, error)

	// Profile returns an account identifier, used as a connectivity and
	// authentication check at startup.
	Profile() (string, error)

	// Clock returns the market session status.
	Clock() (*models.Clock, error)
}

package resilience

import (
	"alpha_agent/internal/broker"
	"alpha_agent/internal/models"

	"github.com/shopspring/decimal"
)

// Client decorates a broker.Client with the shared circuit breaker and the
// retry policy. Composition order per call attempt: breaker check, then the
// wrapped operation, then success/failure bookkeeping; retry sits outside and
// never re-dials an open breaker.
type Client struct {
	inner   broker.Client
	breaker *CircuitBreaker
	retry   Retry
}

func Wrap(inner broker.Client, breaker *CircuitBreaker, retry Retry) *Client {
	return &Client{inner: inner, breaker: breaker, retry: retry}
}

// Breaker exposes the shared breaker for health reporting.
func (c *Client) Breaker() *CircuitBreaker { return c.breaker }

func exec[T any](c *Client, name string, fn func() (T, error)) (T, error) {
	var out T
	err := c.retry.Do(name, func() error {
		if err := c.breaker.Allow(); err != nil {
			return err
		}
		v, err := fn()
		if err != nil {
			c.breaker.RecordFailure()
			return err
		}
		c.breaker.RecordSuccess()
		out = v
		return nil
	})
	return out, err
}

func (c *Client) LastPrice(symbol string) (decimal.Decimal, error) {
	return exec(c, "last_price", func() (decimal.Decimal, error) { return c.inner.LastPrice(symbol) })
}

func (c *Client) Bars(symbol string, days int) ([]models.Bar, error) {
	return exec(c, "bars", func() ([]models.Bar, error) { return c.inner.Bars(symbol, days) })
}

func (c *Client) PlaceMarketOrder(symbol string, qty int64, side string) (*models.Order, error) {
	return exec(c, "place_order", func() (*models.Order, error) { return c.inner.PlaceMarketOrder(symbol, qty, side) })
}

func (c *Client) GetOrder(orderID string) (*models.Order, error) {
	return exec(c, "get_order", func() (*models.Order, error) { return c.inner.GetOrder(orderID) })
}

func (c *Client) ListHoldings() ([]models.BrokerPosition, error) {
	return exec(c, "holdings", func() ([]models.BrokerPosition, error) { return c.inner.ListHoldings() })
}

func (c *Client) Account() (*models.Account, error) {
	return exec(c, "account", func() (*models.Account, error) { return c.inner.Account() })
}

func (c *Client) ListAssets() ([]models.Asset, error) {
	return exec(c, "assets", func() ([]models.Asset, error) { return c.inner.ListAssets() })
}

func (c *Client) Profile() (string, error) {
	return exec(c, "profile", func() (string, error) { return c.inner.Profile() })
}

func (c *Client) Clock() (*models.Clock, error) {
	return exec(c, "clock", func() (*models.Clock, error) { return c.inner.Clock() })
}

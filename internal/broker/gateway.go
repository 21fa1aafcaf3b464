package broker

import (
	"errors"
	"fmt"
	"time"

	"alpha_agent/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var (
	// ErrGatewayClosed is returned for calls made after (or interrupted by)
	// Close. Requests already queued but not yet started never complete.
	ErrGatewayClosed = errors.New("broker gateway closed")

	// ErrCallTimeout is returned when a call waits longer than the gateway
	// timeout for the worker to produce a result.
	ErrCallTimeout = errors.New("broker call timed out waiting for worker")
)

type request struct {
	id    string
	op    string
	fn    func() (interface{}, error)
	reply chan result
}

type result struct {
	value interface{}
	err   error
}

// Gateway serializes every broker call through a single worker goroutine, so
// the underlying client is never invoked concurrently no matter how many
// goroutines call in. Call order matches submission order.
//
// Gateway itself implements Client, which lets the resilience middleware and
// callers treat it like any other broker.
type Gateway struct {
	inner    Client
	requests chan request
	done     chan struct{}
	timeout  time.Duration
}

// NewGateway wraps a blocking client and starts the worker. timeout bounds
// how long any single call may wait end to end.
func NewGateway(inner Client, timeout time.Duration) *Gateway {
	g := &Gateway{
		inner:    inner,
		requests: make(chan request),
		done:     make(chan struct{}),
		timeout:  timeout,
	}
	go g.run()
	return g
}

// Close stops the worker. In-flight operations finish; queued-but-unstarted
// requests fail with ErrGatewayClosed on the caller side.
func (g *Gateway) Close() {
	select {
	case <-g.done:
	default:
		close(g.done)
	}
}

func (g *Gateway) run() {
	for {
		select {
		case <-g.done:
			return
		case req := <-g.requests:
			req.reply <- g.invoke(req)
		}
	}
}

// invoke executes one operation, converting a panic in the underlying client
// into an error so the worker survives any single failure.
func (g *Gateway) invoke(req request) (res result) {
	defer func() {
		if r := recover(); r != nil {
			res = result{err: fmt.Errorf("broker op %s panicked: %v", req.op, r)}
		}
	}()

	start := time.Now()
	v, err := req.fn()
	log.Debug().
		Str("component", "gateway").
		Str("call_id", req.id).
		Str("op", req.op).
		Dur("elapsed", time.Since(start)).
		Err(err).
		Msg("broker call complete")
	return result{value: v, err: err}
}

// call enqueues one operation and waits for its result.
func call[T any](g *Gateway, op string, fn func() (T, error)) (T, error) {
	var zero T

	req := request{
		id: uuid.NewString(),
		op: op,
		fn: func() (interface{}, error) { return fn() },
		// Buffered so the worker never blocks on a caller that gave up.
		reply: make(chan result, 1),
	}

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case g.requests <- req:
	case <-g.done:
		return zero, ErrGatewayClosed
	case <-timer.C:
		return zero, ErrCallTimeout
	}

	select {
	case res := <-req.reply:
		if res.err != nil {
			return zero, res.err
		}
		return res.value.(T), nil
	case <-g.done:
		return zero, ErrGatewayClosed
	case <-timer.C:
		return zero, ErrCallTimeout
	}
}

func (g *Gateway) LastPrice(symbol string) (decimal.Decimal, error) {
	return call(g, "last_price", func() (decimal.Decimal, error) { return g.inner.LastPrice(symbol) })
}

func (g *Gateway) Bars(symbol string, days int) ([]models.Bar, error) {
	return call(g, "bars", func() ([]models.Bar, error) { return g.inner.Bars(symbol, days) })
}

func (g *Gateway) PlaceMarketOrder(symbol string, qty int64, side string) (*models.Order, error) {
	return call(g, "place_order", func() (*models.Order, error) { return g.inner.PlaceMarketOrder(symbol, qty, side) })
}

func (g *Gateway) GetOrder(orderID string) (*models.Order, error) {
	return call(g, "get_order", func() (*models.Order, error) { return g.inner.GetOrder(orderID) })
}

func (g *Gateway) ListHoldings() ([]models.BrokerPosition, error) {
	return call(g, "holdings", func() ([]models.BrokerPosition, error) { return g.inner.ListHoldings() })
}

func (g *Gateway) Account() (*models.Account, error) {
	return call(g, "account", func() (*models.Account, error) { return g.inner.Account() })
}

func (g *Gateway) ListAssets() ([]models.Asset, error) {
	return call(g, "assets", func() ([]models.Asset, error) { return g.inner.ListAssets() })
}

func (g *Gateway) Profile() (string, error) {
	return call(g, "profile", func() (string, error) { return g.inner.Profile() })
}

func (g *Gateway) Clock() (*models.Clock, error) {
	return call(g, "clock", func() (*models.Clock, error) { return g.inner.Clock() })
}

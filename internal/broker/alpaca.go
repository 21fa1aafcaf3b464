package broker

import (
	"fmt"
	"time"

	"alpha_agent/internal/models"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
)

// AlpacaClient is the live implementation of Client on top of the Alpaca API.
// The underlying SDK clients read their credentials from the APCA_* env vars.
type AlpacaClient struct {
	mdClient    *marketdata.Client
	tradeClient *alpaca.Client
}

func NewAlpacaClient() *AlpacaClient {
	return &AlpacaClient{
		mdClient:    marketdata.NewClient(marketdata.ClientOpts{}),
		tradeClient: alpaca.NewClient(alpaca.ClientOpts{}),
	}
}

func (a *AlpacaClient) LastPrice(symbol string) (decimal.Decimal, error) {
	trade, err := a.mdClient.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
	if err != nil {
		return decimal.Zero, err
	}
	if trade == nil {
		return decimal.Zero, fmt.Errorf("no trade data for %s", symbol)
	}
	return decimal.NewFromFloat(trade.Price), nil
}

func (a *AlpacaClient) Bars(symbol string, days int) ([]models.Bar, error) {
	start := time.Now().AddDate(0, 0, -days)
	raw, err := a.mdClient.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
	})
	if err != nil {
		return nil, err
	}

	bars := make([]models.Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, models.Bar{
			Date:   b.Timestamp,
			Open:   decimal.NewFromFloat(b.Open),
			High:   decimal.NewFromFloat(b.High),
			Low:    decimal.NewFromFloat(b.Low),
			Close:  decimal.NewFromFloat(b.Close),
			Volume: int64(b.Volume),
		})
	}
	return bars, nil
}

func (a *AlpacaClient) PlaceMarketOrder(symbol string, qty int64, side string) (*models.Order, error) {
	q := decimal.NewFromInt(qty)
	order, err := a.tradeClient.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:      symbol,
		Qty:         &q,
		Side:        alpaca.Side(side),
		Type:        alpaca.Market,
		TimeInForce: alpaca.Day,
	})
	if err != nil {
		return nil, err
	}
	return convertOrder(order), nil
}

func (a *AlpacaClient) GetOrder(orderID string) (*models.Order, error) {
	order, err := a.tradeClient.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	return convertOrder(order), nil
}

func (a *AlpacaClient) ListHoldings() ([]models.BrokerPosition, error) {
	positions, err := a.tradeClient.GetPositions()
	if err != nil {
		return nil, err
	}

	out := make([]models.BrokerPosition, 0, len(positions))
	for _, p := range positions {
		bp := models.BrokerPosition{
			Symbol:        p.Symbol,
			AssetID:       p.AssetID,
			Exchange:      p.Exchange,
			Qty:           p.Qty.IntPart(),
			AvgEntryPrice: p.AvgEntryPrice,
		}
		if p.CurrentPrice != nil {
			bp.CurrentPrice = *p.CurrentPrice
		}
		out = append(out, bp)
	}
	return out, nil
}

func (a *AlpacaClient) Account() (*models.Account, error) {
	acct, err := a.tradeClient.GetAccount()
	if err != nil {
		return nil, err
	}
	return &models.Account{
		ID:          acct.ID,
		Cash:        acct.Cash,
		Equity:      acct.Equity,
		BuyingPower: acct.BuyingPower,
	}, nil
}

func (a *AlpacaClient) ListAssets() ([]models.Asset, error) {
	status := "active"
	assets, err := a.tradeClient.GetAssets(alpaca.GetAssetsRequest{
		Status:     status,
		AssetClass: "us_equity",
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.Asset, 0, len(assets))
	for _, asset := range assets {
		out = append(out, models.Asset{
			ID:       asset.ID,
			Symbol:   asset.Symbol,
			Name:     asset.Name,
			Exchange: asset.Exchange,
			Tradable: asset.Tradable,
		})
	}
	return out, nil
}

func (a *AlpacaClient) Profile() (string, error) {
	acct, err := a.tradeClient.GetAccount()
	if err != nil {
		return "", err
	}
	return acct.AccountNumber, nil
}

func (a *AlpacaClient) Clock() (*models.Clock, error) {
	clock, err := a.tradeClient.GetClock()
	if err != nil {
		return nil, err
	}
	return &models.Clock{
		Timestamp: clock.Timestamp,
		IsOpen:    clock.IsOpen,
		NextOpen:  clock.NextOpen,
		NextClose: clock.NextClose,
	}, nil
}

func convertOrder(o *alpaca.Order) *models.Order {
	out := &models.Order{
		ID:        o.ID,
		Symbol:    o.Symbol,
		Side:      string(o.Side),
		Status:    o.Status,
		CreatedAt: o.CreatedAt,
		FilledQty: o.FilledQty.IntPart(),
	}
	if o.Qty != nil {
		out.Qty = o.Qty.IntPart()
	}
	if o.FilledAvgPrice != nil {
		out.FilledAvgPrice = *o.FilledAvgPrice
	}
	switch o.Status {
	case "rejected", "canceled", "expired":
		out.FailReason = o.Status
	}
	return out
}

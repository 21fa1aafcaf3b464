package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order represents a generic order as reported by the broker.
type Order struct {
	ID             string          `json:"id"`
	Symbol         string          `json:"symbol"`
	Qty            int64           `json:"qty"`
	FilledQty      int64           `json:"filled_qty"`
	Side           string          `json:"side"`   // buy, sell
	Status         string          `json:"status"` // new, partially_filled, filled, canceled, expired, rejected
	FilledAvgPrice decimal.Decimal `json:"filled_avg_price"`
	CreatedAt      time.Time       `json:"created_at"`
	FailReason     string          `json:"fail_reason,omitempty"`
}

// BrokerPosition is a holding as reported by the broker, the source of truth
// during reconciliation.
type BrokerPosition struct {
	Symbol        string
	AssetID       string
	Exchange      string
	Qty           int64
	AvgEntryPrice decimal.Decimal
	CurrentPrice  decimal.Decimal
}

// Account carries the broker-side cash and margin figures.
type Account struct {
	ID          string
	Cash        decimal.Decimal
	Equity      decimal.Decimal
	BuyingPower decimal.Decimal
}

// Clock represents the market session status.
type Clock struct {
	Timestamp time.Time
	IsOpen    bool
	NextOpen  time.Time
	NextClose time.Time
}

// Asset represents a tradable instrument.
type Asset struct {
	ID       string
	Symbol   string
	Name     string
	Exchange string
	Tradable bool
}

// Bar is a daily candlestick.
type Bar struct {
	Date   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

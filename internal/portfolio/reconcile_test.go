package portfolio

import (
	"path/filepath"
	"testing"
	"time"

	"alpha_agent/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBroker implements broker.Client for reconciliation tests.
type fakeBroker struct {
	holdings []models.BrokerPosition
	cash     decimal.Decimal
}

func (f *fakeBroker) ListHoldings() ([]models.BrokerPosition, error) { return f.holdings, nil }
func (f *fakeBroker) Account() (*models.Account, error) {
	return &models.Account{Cash: f.cash, Equity: f.cash, BuyingPower: f.cash}, nil
}
func (f *fakeBroker) LastPrice(string) (decimal.Decimal, error)              { return decimal.Zero, nil }
func (f *fakeBroker) Bars(string, int) ([]models.Bar, error)                 { return nil, nil }
func (f *fakeBroker) PlaceMarketOrder(string, int64, string) (*models.Order, error) { return nil, nil }
func (f *fakeBroker) GetOrder(string) (*models.Order, error)                 { return nil, nil }
func (f *fakeBroker) ListAssets() ([]models.Asset, error)                    { return nil, nil }
func (f *fakeBroker) Profile() (string, error)                               { return "test", nil }
func (f *fakeBroker) Clock() (*models.Clock, error)                          { return &models.Clock{IsOpen: true}, nil }

var testDefaults = ReconcileDefaults{StopLossPct: 5.0, TakeProfitPct: 15.0}

func TestReconcile_AddsRemovesAndCorrects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.json")
	s, err := Open(path, decimal.NewFromInt(100000))
	require.NoError(t, err)

	// Local state: STALE held, AAPL with a wrong quantity.
	s.WithTransaction(true, func(p *models.Portfolio) error {
		p.Holdings["STALE"] = &models.Position{Quantity: 5, EntryPrice: decimal.NewFromInt(50)}
		p.Holdings["AAPL"] = &models.Position{
			Quantity:     3,
			EntryPrice:   decimal.NewFromInt(150),
			PurchaseDate: "2026-02-20",
			PeakPrice:    decimal.NewFromInt(160),
		}
		return nil
	})

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	b := &fakeBroker{
		cash: decimal.NewFromInt(42000),
		holdings: []models.BrokerPosition{
			{Symbol: "AAPL", Qty: 10, AvgEntryPrice: decimal.NewFromInt(150), CurrentPrice: decimal.NewFromInt(155)},
			{Symbol: "NVDA", Qty: 2, AvgEntryPrice: decimal.NewFromInt(800), CurrentPrice: decimal.NewFromInt(820)},
		},
	}

	summary, err := s.Reconcile(b, testDefaults, now)
	require.NoError(t, err)

	assert.Contains(t, summary, "~ Cash updated to 42000.00")
	assert.Contains(t, summary, "- Removed sold holding: STALE")
	assert.Contains(t, summary, "+ Added new holding: NVDA")
	assert.Contains(t, summary, "~ AAPL quantity corrected 3 -> 10")

	s.WithTransaction(false, func(p *models.Portfolio) error {
		assert.NotContains(t, p.Holdings, "STALE")
		assert.EqualValues(t, 10, p.Holdings["AAPL"].Quantity)
		// Fields the broker does not know about survive the correction.
		assert.Equal(t, "2026-02-20", p.Holdings["AAPL"].PurchaseDate)
		assert.True(t, p.Holdings["AAPL"].PeakPrice.Equal(decimal.NewFromInt(160)))

		nvda := p.Holdings["NVDA"]
		require.NotNil(t, nvda)
		// Discovered positions get derived risk levels: SL 5% below entry,
		// TP 15% above.
		assert.True(t, nvda.StopLoss.Equal(decimal.NewFromInt(760)), "got %s", nvda.StopLoss)
		assert.True(t, nvda.TakeProfit.Equal(decimal.NewFromInt(920)), "got %s", nvda.TakeProfit)
		assert.True(t, nvda.PeakPrice.Equal(decimal.NewFromInt(820)))
		assert.Equal(t, now.Format(models.DateLayout), nvda.PurchaseDate)
		return nil
	})
}

func TestReconcile_IsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.json")
	s, err := Open(path, decimal.Zero)
	require.NoError(t, err)

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	b := &fakeBroker{
		cash: decimal.NewFromInt(9000),
		holdings: []models.BrokerPosition{
			{Symbol: "MSFT", Qty: 4, AvgEntryPrice: decimal.NewFromInt(300), CurrentPrice: decimal.NewFromInt(305)},
		},
	}

	first, err := s.Reconcile(b, testDefaults, now)
	require.NoError(t, err)
	assert.Contains(t, first, "+ Added new holding: MSFT")

	second, err := s.Reconcile(b, testDefaults, now)
	require.NoError(t, err)
	assert.Contains(t, second, "No changes detected")
}

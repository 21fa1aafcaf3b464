package tradelog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_CreatesHeaderAndAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	l := New(path)

	require.NoError(t, l.Record("AAPL", "BUY", 10, decimal.NewFromInt(100), nil, "screener pick"))

	pnl := decimal.NewFromFloat(55.50)
	require.NoError(t, l.Record("AAPL", "SELL", 10, decimal.NewFromFloat(105.55), &pnl, "take-profit hit"))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"timestamp", "symbol", "action", "quantity", "price", "pnl", "reason"}, rows[0])

	assert.Equal(t, "AAPL", rows[1][1])
	assert.Equal(t, "BUY", rows[1][2])
	assert.Equal(t, "10", rows[1][3])
	assert.Equal(t, "100.00", rows[1][4])
	assert.Equal(t, "", rows[1][5], "buys carry no realized pnl")

	assert.Equal(t, "SELL", rows[2][2])
	assert.Equal(t, "55.50", rows[2][5])
	assert.Equal(t, "take-profit hit", rows[2][6])
}

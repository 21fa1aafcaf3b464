// Package tradelog appends every executed trade to a CSV audit file.
package tradelog

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var header = []string{"timestamp", "symbol", "action", "quantity", "price", "pnl", "reason"}

// Logger appends trade rows to a single CSV file. Safe for concurrent use.
type Logger struct {
	mu   sync.Mutex
	path string
}

func New(path string) *Logger {
	return &Logger{path: path}
}

// Record appends one trade row, creating the file with a header row first if
// it does not exist yet. pnl is empty for entries (buys).
func (l *Logger) Record(symbol, action string, qty int64, price decimal.Decimal, pnl *decimal.Decimal, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, statErr := os.Stat(l.path)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open trade log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write trade log header: %w", err)
		}
	}

	pnlStr := ""
	if pnl != nil {
		pnlStr = pnl.StringFixed(2)
	}
	row := []string{
		time.Now().Format(time.RFC3339),
		symbol,
		action,
		fmt.Sprintf("%d", qty),
		price.StringFixed(2),
		pnlStr,
		reason,
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write trade log row: %w", err)
	}
	w.Flush()
	return w.Error()
}

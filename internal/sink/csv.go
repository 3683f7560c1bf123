package sink

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"papertrade/internal/venue"
)

var tradeHeader = []string{
	"ts", "symbol", "side", "price", "mid", "slippage_bps", "notional", "fee",
	"realized_delta", "realized_total", "unrealized", "equity_after",
	"cash_after", "pos_qty", "pos_avg", "reason",
}

var equityHeader = []string{"ts", "equity", "cash", "realized", "unrealized"}

// CSV writes trades.csv and equity.csv under a directory, appending across
// restarts. Headers are written only when a file is created empty.
type CSV struct {
	mu     sync.Mutex
	trades *csvFile
	equity *csvFile
}

func NewCSV(dir string) (*CSV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	trades, err := openCSV(filepath.Join(dir, "trades.csv"), tradeHeader)
	if err != nil {
		return nil, err
	}
	equity, err := openCSV(filepath.Join(dir, "equity.csv"), equityHeader)
	if err != nil {
		trades.close()
		return nil, err
	}
	return &CSV{trades: trades, equity: equity}, nil
}

func (c *CSV) LogTrade(rec venue.FillRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trades.writeRow([]string{
		rec.Timestamp.UTC().Format(time.RFC3339),
		rec.Symbol,
		string(rec.Side),
		f(rec.Price),
		f(rec.Mid),
		f(rec.SlippageBps),
		f(rec.Notional),
		f(rec.Fee),
		f(rec.RealizedDelta),
		f(rec.RealizedTotal),
		f(rec.Unrealized),
		f(rec.Equity),
		f(rec.Cash),
		f(rec.PositionQty),
		f(rec.PositionAvg),
		rec.Reason,
	})
}

func (c *CSV) LogEquity(sample EquitySample) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.equity.writeRow([]string{
		sample.Timestamp.UTC().Format(time.RFC3339),
		f(sample.Equity),
		f(sample.Cash),
		f(sample.Realized),
		f(sample.Unrealized),
	})
}

func (c *CSV) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err1 := c.trades.close()
	err2 := c.equity.close()
	if err1 != nil {
		return err1
	}
	return err2
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type csvFile struct {
	file *os.File
	w    *csv.Writer
}

func openCSV(path string, header []string) (*csvFile, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	cf := &csvFile{file: file, w: csv.NewWriter(file)}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.Size() == 0 {
		if err := cf.writeRow(header); err != nil {
			file.Close()
			return nil, err
		}
	}
	return cf, nil
}

func (cf *csvFile) writeRow(row []string) error {
	if err := cf.w.Write(row); err != nil {
		return err
	}
	cf.w.Flush()
	return cf.w.Error()
}

func (cf *csvFile) close() error {
	cf.w.Flush()
	if err := cf.w.Error(); err != nil {
		cf.file.Close()
		return err
	}
	return cf.file.Close()
}

package sink

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade/internal/order"
	"papertrade/internal/venue"
)

func sampleFill(sym string, ts time.Time) venue.FillRecord {
	return venue.FillRecord{
		Timestamp:     ts,
		Symbol:        sym,
		Side:          order.Buy,
		Price:         100.05,
		Mid:           100,
		SlippageBps:   1,
		Notional:      500,
		Fee:           0.25,
		RealizedDelta: 0,
		RealizedTotal: 0,
		Unrealized:    0,
		Equity:        9999.75,
		Cash:          9499.75,
		PositionQty:   4.9975,
		PositionAvg:   100.05,
		Reason:        "liquidity_gap",
	}
}

func TestCSVWritesHeaderOnce(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	c, err := NewCSV(dir)
	require.NoError(t, err)
	require.NoError(t, c.LogTrade(sampleFill("BTC/USDT", ts)))
	require.NoError(t, c.LogEquity(EquitySample{Timestamp: ts, Equity: 9999.75, Cash: 9499.75}))
	require.NoError(t, c.Close())

	// Reopen and append; the header must not repeat.
	c, err = NewCSV(dir)
	require.NoError(t, err)
	require.NoError(t, c.LogTrade(sampleFill("ETH/USDT", ts.Add(time.Minute))))
	require.NoError(t, c.Close())

	file, err := os.Open(filepath.Join(dir, "trades.csv"))
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, tradeHeader, rows[0])
	assert.Equal(t, "BTC/USDT", rows[1][1])
	assert.Equal(t, "ETH/USDT", rows[2][1])
	assert.Equal(t, "2024-03-01T12:00:00Z", rows[1][0])
}

func TestCSVEquityColumns(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	c, err := NewCSV(dir)
	require.NoError(t, err)
	require.NoError(t, c.LogEquity(EquitySample{
		Timestamp: ts, Equity: 10100.5, Cash: 9600, Realized: 80.5, Unrealized: 20,
	}))
	require.NoError(t, c.Close())

	file, err := os.Open(filepath.Join(dir, "equity.csv"))
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, equityHeader, rows[0])
	assert.Equal(t, []string{"2024-03-01T12:00:00Z", "10100.5", "9600", "80.5", "20"}, rows[1])
}

func TestSQLiteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.db")
	s, err := NewSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.LogTrade(sampleFill("BTC/USDT", base)))
	require.NoError(t, s.LogTrade(sampleFill("ETH/USDT", base.Add(time.Minute))))

	ctx := context.Background()
	trades, err := s.RecentTrades(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "ETH/USDT", trades[0].Symbol, "newest first")
	assert.Equal(t, order.Buy, trades[0].Side)
	assert.InDelta(t, 100.05, trades[0].Price, 1e-9)

	btc, err := s.RecentTrades(ctx, "btc/usdt", 10)
	require.NoError(t, err)
	require.Len(t, btc, 1)
	assert.Equal(t, "BTC/USDT", btc[0].Symbol)
}

func TestSQLiteEquityCurveSince(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.db")
	s, err := NewSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.LogEquity(EquitySample{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Equity:    10000 + float64(i),
		}))
	}

	curve, err := s.EquityCurve(context.Background(), time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, curve, 3)
	assert.InDelta(t, 10000.0, curve[0].Equity, 1e-9)

	tail, err := s.EquityCurve(context.Background(), base, 0)
	require.NoError(t, err)
	require.Len(t, tail, 2, "samples strictly after since")
	assert.InDelta(t, 10001.0, tail[0].Equity, 1e-9)
}

func TestMultiSurvivesFailingSink(t *testing.T) {
	dir := t.TempDir()
	good, err := NewCSV(dir)
	require.NoError(t, err)

	m := NewMulti(failingSink{}, good)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, m.LogTrade(sampleFill("BTC/USDT", ts)))
	require.NoError(t, m.Close())

	file, err := os.Open(filepath.Join(dir, "trades.csv"))
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 2, "good sink still received the trade")
}

type failingSink struct{}

func (failingSink) LogTrade(venue.FillRecord) error { return assert.AnError }

func (failingSink) LogEquity(EquitySample) error { return assert.AnError }

func (failingSink) Close() error { return nil }

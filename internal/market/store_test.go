package market

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandleStoreRoundTrip(t *testing.T) {
	store, err := NewCandleStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	in := []Candle{
		{OpenTime: 1000, CloseTime: 1059, Open: 10, High: 12, Low: 9, Close: 11, Volume: 5},
		{OpenTime: 2000, CloseTime: 2059, Open: 11, High: 13, Low: 10, Close: 12, Volume: 6},
		{OpenTime: 3000, CloseTime: 3059, Open: 12, High: 14, Low: 11, Close: 13, Volume: 7},
	}
	require.NoError(t, store.UpsertCandles(ctx, "ETH-USDT", "1m", in))

	out, err := store.RangeCandles(ctx, "ETH-USDT", "1m", 0, 0)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, in, out)

	mid, err := store.RangeCandles(ctx, "ETH-USDT", "1m", 1500, 2500)
	require.NoError(t, err)
	require.Len(t, mid, 1)
	assert.InDelta(t, 12.0, mid[0].Close, 1e-9)
}

func TestCandleStoreUpsertIsIdempotent(t *testing.T) {
	store, err := NewCandleStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	c := Candle{OpenTime: 1000, CloseTime: 1059, Close: 11}
	require.NoError(t, store.UpsertCandles(ctx, "X", "1m", []Candle{c}))
	c.Close = 99
	require.NoError(t, store.UpsertCandles(ctx, "X", "1m", []Candle{c}))

	out, err := store.RangeCandles(ctx, "X", "1m", 0, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.InDelta(t, 99.0, out[0].Close, 1e-9)
}

func TestImportCSVSkipsHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ETH-USDT_1m.csv")
	csv := "timestamp,open,high,low,close,volume\n" +
		"1000,10,12,9,11,5\n" +
		"2000,11,13,10,12,6\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	store, err := NewCandleStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	n, err := store.ImportCSV(context.Background(), "ETH-USDT", "1m", path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	out, err := store.RangeCandles(context.Background(), "ETH-USDT", "1m", 0, 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.InDelta(t, 11.0, out[0].Close, 1e-9)
}

func TestReplaySourceStepsThroughCloses(t *testing.T) {
	store, err := NewCandleStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.UpsertCandles(ctx, "X", "1m", []Candle{
		{OpenTime: 1, Close: 100},
		{OpenTime: 2, Close: 110},
		{OpenTime: 3, Close: 105},
	}))

	src, err := NewReplaySource(ctx, store, []string{"X"}, "1m", "")
	require.NoError(t, err)
	assert.Equal(t, 3, src.Len())
	assert.InDelta(t, 100.0, src.Mark("X"), 1e-9, "mark seeds from the first close")

	src.Step(ctx)
	assert.InDelta(t, 100.0, src.Mark("X"), 1e-9)
	src.Step(ctx)
	assert.InDelta(t, 110.0, src.Mark("X"), 1e-9)
	src.Step(ctx)
	assert.InDelta(t, 105.0, src.Mark("X"), 1e-9)
	assert.True(t, src.Exhausted())

	// past the end: mark holds
	src.Step(ctx)
	assert.InDelta(t, 105.0, src.Mark("X"), 1e-9)
	assert.False(t, src.Orderbook("X").Complete())
}

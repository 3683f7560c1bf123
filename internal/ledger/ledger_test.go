package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade/internal/order"
)

func TestApplyFillCashMovement(t *testing.T) {
	now := time.Now()

	t.Run("buy moves cash out plus fee", func(t *testing.T) {
		l := New(1000)
		l.ApplyFill("ETH-USDT", order.Buy, 2, 100, 0.4, now)
		assert.InDelta(t, 1000-200-0.4, l.Cash(), 1e-9)
	})

	t.Run("sell moves cash in minus fee", func(t *testing.T) {
		l := New(1000)
		l.ApplyFill("ETH-USDT", order.Sell, 2, 100, 0.4, now)
		assert.InDelta(t, 1000+200-0.4, l.Cash(), 1e-9)
	})
}

func TestLongOpenBlendAndClose(t *testing.T) {
	now := time.Now()
	l := New(10000)

	res := l.ApplyFill("ETH-USDT", order.Buy, 1, 100, 0, now)
	require.InDelta(t, 1.0, res.Qty, 1e-12)
	require.InDelta(t, 100.0, res.AvgPrice, 1e-12)
	assert.Zero(t, res.RealizedDelta)

	// extend: avg blends to the size-weighted mean
	res = l.ApplyFill("ETH-USDT", order.Buy, 1, 110, 0, now)
	assert.InDelta(t, 2.0, res.Qty, 1e-12)
	assert.InDelta(t, 105.0, res.AvgPrice, 1e-12)

	// partial close above avg realizes (price-avg)*closed
	res = l.ApplyFill("ETH-USDT", order.Sell, 0.5, 120, 0, now)
	assert.InDelta(t, (120-105.0)*0.5, res.RealizedDelta, 1e-9)
	assert.InDelta(t, 1.5, res.Qty, 1e-12)
	assert.InDelta(t, 105.0, res.AvgPrice, 1e-12)
	assert.InDelta(t, (120-105.0)*0.5, l.RealizedPnL(), 1e-9)
}

func TestShortOpenAndClose(t *testing.T) {
	now := time.Now()
	l := New(1000)

	res := l.ApplyFill("ETH-USDT", order.Sell, 0.5, 200, 0, now)
	require.InDelta(t, -0.5, res.Qty, 1e-12)
	require.InDelta(t, 200.0, res.AvgPrice, 1e-12)

	// buying back cheaper realizes (avg-price)*closed
	res = l.ApplyFill("ETH-USDT", order.Buy, 0.5, 180, 0, now)
	assert.InDelta(t, (200-180.0)*0.5, res.RealizedDelta, 1e-9)
	assert.InDelta(t, 0.0, res.Qty, 1e-12)
	assert.Zero(t, res.AvgPrice)
}

func TestRoundTripRestoresState(t *testing.T) {
	now := time.Now()
	l := New(1000)
	preCash := l.Cash()
	preRealized := l.RealizedPnL()

	l.ApplyFill("X", order.Buy, 2, 50, 0, now)
	l.ApplyFill("X", order.Sell, 2, 50, 0, now)

	assert.InDelta(t, preCash, l.Cash(), 1e-9)
	assert.InDelta(t, preRealized, l.RealizedPnL(), 1e-9)
	pos := l.Position("X")
	assert.Zero(t, pos.Qty)
	assert.Zero(t, pos.AvgPrice)
}

func TestCrossingFillClosesAndReverses(t *testing.T) {
	now := time.Now()
	l := New(1000)

	l.ApplyFill("X", order.Buy, 1, 100, 0, now)
	// sell 3 at 110: closes the long (+10 realized) and opens a 2-unit short
	res := l.ApplyFill("X", order.Sell, 3, 110, 0, now)
	assert.InDelta(t, 10.0, res.RealizedDelta, 1e-9)
	assert.InDelta(t, -2.0, res.Qty, 1e-12)
	assert.InDelta(t, 110.0, res.AvgPrice, 1e-12)
}

func TestAvgPriceZeroIffFlat(t *testing.T) {
	now := time.Now()
	l := New(1000)
	l.ApplyFill("X", order.Buy, 1, 100, 0, now)
	l.ApplyFill("X", order.Sell, 1, 90, 0, now)
	pos := l.Position("X")
	require.Zero(t, pos.Qty)
	assert.Zero(t, pos.AvgPrice, "flat position must carry zero cost basis")
}

func TestDerivedQueries(t *testing.T) {
	now := time.Now()
	l := New(1000)
	l.ApplyFill("A", order.Buy, 0.1, 2000, 0, now)
	l.ApplyFill("B", order.Sell, 0.2, 3000, 0, now)
	l.ApplyFill("C", order.Buy, 0.5, 100, 0, now)

	prices := map[string]float64{"A": 2100, "B": 2900}

	t.Run("open notional sums abs exposure with avg fallback", func(t *testing.T) {
		// A: 0.1*2100, B: 0.2*2900, C falls back to avg 100 -> 0.5*100
		assert.InDelta(t, 210+580+50, l.OpenNotional(prices), 1e-9)
	})

	t.Run("unrealized is sign aware", func(t *testing.T) {
		// A: 0.1*(2100-2000)=10, B: -0.2*(2900-3000)=20, C: 0
		assert.InDelta(t, 30.0, l.UnrealizedTotal(prices), 1e-9)
	})

	t.Run("equity is cash plus marked positions", func(t *testing.T) {
		cash := l.Cash()
		want := cash + 0.1*2100 + -0.2*2900 + 0.5*100
		assert.InDelta(t, want, l.Equity(prices), 1e-9)
	})
}

func TestPositionsSnapshotSortedAndFiltered(t *testing.T) {
	now := time.Now()
	l := New(1000)
	l.ApplyFill("B", order.Buy, 1, 10, 0, now)
	l.ApplyFill("A", order.Buy, 1, 10, 0, now)
	l.ApplyFill("C", order.Buy, 1, 10, 0, now)
	l.ApplyFill("C", order.Sell, 1, 10, 0, now) // back to flat

	snap := l.Positions()
	require.Len(t, snap, 2)
	assert.Equal(t, "A", snap[0].Symbol)
	assert.Equal(t, "B", snap[1].Symbol)
}

func TestLastFillTimeAlwaysRefreshed(t *testing.T) {
	t0 := time.Now()
	t1 := t0.Add(time.Minute)
	l := New(1000)
	l.ApplyFill("X", order.Buy, 1, 100, 0, t0)
	require.Equal(t, t0, l.Position("X").LastFillTime)
	l.ApplyFill("X", order.Sell, 0.5, 100, 0, t1)
	assert.Equal(t, t1, l.Position("X").LastFillTime, "closing fills refresh the timestamp too")
}

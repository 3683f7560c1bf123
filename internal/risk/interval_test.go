package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade/internal/ledger"
	"papertrade/internal/order"
)

func newPolicyAt(cfg IntervalConfig, at *time.Time) *IntervalPolicy {
	p := NewIntervalPolicy(cfg)
	p.SetClock(func() time.Time { return *at })
	return p
}

func TestAllowSignalMinNotional(t *testing.T) {
	now := time.Now()
	p := newPolicyAt(IntervalConfig{MinOrderNotional: 100}, &now)
	book := ledger.New(1000)
	prices := map[string]float64{"X": 2000}

	assert.False(t, p.AllowSignal(order.Order{Symbol: "X", Side: order.Buy, Notional: 50}, book, prices))
	assert.True(t, p.AllowSignal(order.Order{Symbol: "X", Side: order.Buy, Notional: 100}, book, prices))
}

func TestAllowSignalTradeIntervalAndHoldTime(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cfg := IntervalConfig{
		MinOrderNotional: 100,
		MinTradeInterval: time.Second,
		MinHoldTime:      2 * time.Second,
	}
	p := newPolicyAt(cfg, &now)
	book := ledger.New(1000)
	prices := map[string]float64{"X": 2000}

	open := order.Order{Symbol: "X", Side: order.Buy, Notional: 200}
	closeOd := order.Order{Symbol: "X", Side: order.Sell, Notional: 200}

	require.True(t, p.AllowSignal(open, book, prices))
	p.RecordFill("X")
	book.ApplyFill("X", order.Buy, 0.1, 2000, 0, now)

	// immediate opposite-side close inside hold time: blocked
	assert.False(t, p.AllowSignal(closeOd, book, prices))
	// another open too soon after the last trade: blocked by interval
	assert.False(t, p.AllowSignal(open, book, prices))

	// same-direction add is only held by the trade interval, not hold time
	now = now.Add(1500 * time.Millisecond)
	assert.True(t, p.AllowSignal(open, book, prices))
	// the reversal is still inside min hold time
	assert.False(t, p.AllowSignal(closeOd, book, prices))

	now = now.Add(time.Second) // 2.5s after the fill
	assert.True(t, p.AllowSignal(closeOd, book, prices))
}

func TestHoldTimeAppliesToShortReversalToo(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p := newPolicyAt(IntervalConfig{MinHoldTime: 2 * time.Second}, &now)
	book := ledger.New(1000)
	prices := map[string]float64{"X": 2000}
	book.ApplyFill("X", order.Sell, 0.1, 2000, 0, now)

	assert.False(t, p.AllowSignal(order.Order{Symbol: "X", Side: order.Buy, Notional: 200}, book, prices))
	assert.True(t, p.AllowSignal(order.Order{Symbol: "X", Side: order.Sell, Notional: 200}, book, prices))
}

func TestRejectionDoesNotStampLastTrade(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p := newPolicyAt(IntervalConfig{MinOrderNotional: 100, MinTradeInterval: time.Minute}, &now)
	book := ledger.New(1000)
	prices := map[string]float64{"X": 2000}

	// rejected micro order must not start the interval clock
	assert.False(t, p.AllowSignal(order.Order{Symbol: "X", Side: order.Buy, Notional: 1}, book, prices))
	assert.True(t, p.AllowSignal(order.Order{Symbol: "X", Side: order.Buy, Notional: 200}, book, prices))
}

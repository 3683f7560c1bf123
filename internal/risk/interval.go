package risk

import (
	"time"

	"papertrade/internal/ledger"
	"papertrade/internal/order"
)

// IntervalConfig is immutable for a session.
type IntervalConfig struct {
	MinOrderNotional float64
	MinTradeInterval time.Duration
	MinHoldTime      time.Duration
}

// IntervalPolicy gates strategy signals against micro orders, rapid-fire
// trading and premature reversals. The per-symbol last-trade timestamp is
// only recorded via RecordFill after an order was actually submitted, never
// on rejection.
type IntervalPolicy struct {
	cfg       IntervalConfig
	lastTrade map[string]time.Time
	nowFn     func() time.Time
}

func NewIntervalPolicy(cfg IntervalConfig) *IntervalPolicy {
	return &IntervalPolicy{
		cfg:       cfg,
		lastTrade: make(map[string]time.Time),
		nowFn:     time.Now,
	}
}

// SetClock overrides timestamp acquisition, for tests.
func (p *IntervalPolicy) SetClock(now func() time.Time) { p.nowFn = now }

// AllowSignal reports whether a candidate order passes the gate. Opening in
// the same direction as a young position is allowed; only reducing or
// reversing it is held back by the hold-time rule.
func (p *IntervalPolicy) AllowSignal(od order.Order, book *ledger.Ledger, prices map[string]float64) bool {
	if decimalLT(od.Notional, p.cfg.MinOrderNotional) {
		return false
	}
	now := p.nowFn()
	if last, ok := p.lastTrade[od.Symbol]; ok && now.Sub(last) < p.cfg.MinTradeInterval {
		return false
	}
	pos := book.Position(od.Symbol)
	if pos.Qty != 0 && !pos.LastFillTime.IsZero() && now.Sub(pos.LastFillTime) < p.cfg.MinHoldTime {
		reduces := (pos.Qty > 0 && od.Side == order.Sell) || (pos.Qty < 0 && od.Side == order.Buy)
		if reduces {
			return false
		}
	}
	return true
}

// RecordFill stamps the symbol's last-trade time.
func (p *IntervalPolicy) RecordFill(symbol string) {
	p.lastTrade[symbol] = p.nowFn()
}

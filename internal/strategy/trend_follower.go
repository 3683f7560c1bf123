package strategy

import (
	"github.com/markcheno/go-talib"

	"papertrade/internal/logger"
	"papertrade/internal/order"
	"papertrade/internal/risk"
)

// TrendFollower trades fast/slow EMA crossovers on the tick mark series:
// buy when the fast line crosses above the slow line, flatten when it
// crosses back below.
type TrendFollower struct {
	base
	history map[string][]float64
}

func NewTrendFollower(b base) *TrendFollower {
	return &TrendFollower{base: b, history: make(map[string][]float64)}
}

func (s *TrendFollower) OnTick(prices map[string]float64, venue Exchange, _ *risk.Manager) []order.Order {
	p := s.params()
	fast := p.Int("fast_period", 9)
	slow := p.Int("slow_period", 21)
	if fast >= slow {
		logger.Warnf("trend_follower: fast_period %d >= slow_period %d, skipping tick", fast, slow)
		return nil
	}

	var orders []order.Order
	for _, sym := range sortedSymbols(prices) {
		mark := prices[sym]
		if mark <= 0 {
			continue
		}
		closes := append(s.history[sym], mark)
		if len(closes) > maxHistory {
			closes = closes[len(closes)-maxHistory:]
		}
		s.history[sym] = closes

		// Need one sample past the slow warmup to read the previous bar too.
		if len(closes) <= slow+1 {
			continue
		}
		fastArr := talib.Ema(closes, fast)
		slowArr := talib.Ema(closes, slow)
		n := len(closes)
		prevDiff := fastArr[n-2] - slowArr[n-2]
		curDiff := fastArr[n-1] - slowArr[n-1]

		switch {
		case prevDiff <= 0 && curDiff > 0:
			notional := s.sizeOrder(venue.Ledger())
			if notional <= 0 {
				continue
			}
			logger.Debugf("trend_follower: %s golden cross, buying %.2f USD", sym, notional)
			orders = append(orders, order.Order{Symbol: sym, Side: order.Buy, Notional: notional, Reason: "golden_cross"})
		case prevDiff >= 0 && curDiff < 0:
			pos := venue.Ledger().Position(sym)
			if pos.Qty <= 0 {
				continue
			}
			notional := pos.Qty * mark
			logger.Debugf("trend_follower: %s death cross, selling %.2f USD", sym, notional)
			orders = append(orders, order.Order{Symbol: sym, Side: order.Sell, Notional: notional, Reason: "death_cross"})
		}
	}
	return orders
}

package strategy

import (
	"github.com/markcheno/go-talib"

	"papertrade/internal/logger"
	"papertrade/internal/order"
	"papertrade/internal/risk"
)

// MeanReversion accumulates a per-symbol close series from the tick marks
// and fades RSI extremes: buy when oversold, sell when overbought.
type MeanReversion struct {
	base
	history map[string][]float64
}

func NewMeanReversion(b base) *MeanReversion {
	return &MeanReversion{base: b, history: make(map[string][]float64)}
}

const maxHistory = 512

func (s *MeanReversion) OnTick(prices map[string]float64, venue Exchange, _ *risk.Manager) []order.Order {
	p := s.params()
	period := p.Int("rsi_period", 14)
	buyBelow := p.Float("buy_below", 30)
	sellAbove := p.Float("sell_above", 70)

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

		// Rsi needs period+1 samples before the first defined value.
		if len(closes) <= period {
			continue
		}
		series := talib.Rsi(closes, period)
		rsi := series[len(series)-1]
		if rsi <= 0 {
			continue
		}

		switch {
		case rsi <= buyBelow:
			notional := s.sizeOrder(venue.Ledger())
			if notional <= 0 {
				continue
			}
			logger.Debugf("mean_reversion: %s RSI %.1f <= %.1f, buying %.2f USD", sym, rsi, buyBelow, notional)
			orders = append(orders, order.Order{Symbol: sym, Side: order.Buy, Notional: notional, Reason: "rsi_oversold"})
		case rsi >= sellAbove:
			pos := venue.Ledger().Position(sym)
			if pos.Qty <= 0 {
				continue
			}
			notional := pos.Qty * mark
			logger.Debugf("mean_reversion: %s RSI %.1f >= %.1f, selling %.2f USD", sym, rsi, sellAbove, notional)
			orders = append(orders, order.Order{Symbol: sym, Side: order.Sell, Notional: notional, Reason: "rsi_overbought"})
		}
	}
	return orders
}

package strategy

import (
	"papertrade/internal/logger"
	"papertrade/internal/order"
	"papertrade/internal/risk"
)

// LiquidityGap buys symbols whose quoted spread is unusually wide,
// betting the gap compresses back toward the mid.
type LiquidityGap struct {
	base
}

func (s *LiquidityGap) OnTick(prices map[string]float64, venue Exchange, _ *risk.Manager) []order.Order {
	p := s.params()
	minSpreadPct := p.Float("min_spread_pct", 0.15)

	var orders []order.Order
	for _, sym := range sortedSymbols(prices) {
		q := venue.Orderbook(sym)
		if !q.Complete() {
			continue
		}
		mid := q.Mid()
		if mid <= 0 {
			continue
		}
		spreadPct := (q.Ask - q.Bid) / mid * 100
		if spreadPct < minSpreadPct {
			continue
		}
		notional := s.sizeOrder(venue.Ledger())
		if notional <= 0 {
			continue
		}
		logger.Debugf("liquidity_gap: %s spread %.4f%% >= %.4f%%, buying %.2f USD", sym, spreadPct, minSpreadPct, notional)
		orders = append(orders, order.Order{
			Symbol:   sym,
			Side:     order.Buy,
			Notional: notional,
			Reason:   "liquidity_gap",
		})
	}
	return orders
}

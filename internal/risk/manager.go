// Package risk holds pre-trade admission control, automatic position
// closing and the anti-churn trade-interval policy. All checks read the
// same per-tick price snapshot the venue executes against.
package risk

import (
	"math"

	"papertrade/internal/ledger"
	"papertrade/internal/logger"
	"papertrade/internal/order"
)

// Config is immutable for a session. A zero-valued threshold disables the
// corresponding check.
type Config struct {
	MaxExposureUSD      float64
	MaxNotionalPerTrade float64
	DailyLossLimitPct   float64
	TakeProfitPct       float64
	StopLossPct         float64
}

const (
	ReasonTakeProfit = "tp"
	ReasonStopLoss   = "sl"
)

// Manager evaluates exposure and drawdown before a trade and take-profit/
// stop-loss after each tick.
//
// The drawdown watermark is captured once at construction and never resets;
// the config field is named "daily" but the limit is session-long. That is
// the historical behavior and callers rely on it.
type Manager struct {
	book        *ledger.Ledger
	cfg         Config
	startEquity float64
}

func NewManager(book *ledger.Ledger, cfg Config) *Manager {
	return &Manager{
		book:        book,
		cfg:         cfg,
		startEquity: book.Equity(nil),
	}
}

// StartEquity returns the session watermark the drawdown check is
// measured against.
func (m *Manager) StartEquity() float64 { return m.startEquity }

// CanTrade reports whether a new order of the proposed notional is
// admissible. The checks are independent; any one failing blocks the order.
// The exposure boundary is inclusive: landing exactly on the cap is blocked.
func (m *Manager) CanTrade(prices map[string]float64, proposedNotional float64) bool {
	if m.cfg.DailyLossLimitPct > 0 {
		eq := m.book.Equity(prices)
		ddPct := (m.startEquity - eq) / math.Max(1e-9, m.startEquity) * 100
		if decimalGTE(ddPct, m.cfg.DailyLossLimitPct) {
			logger.Infof("risk: drawdown %.2f%% >= limit %.2f%%, trading halted", ddPct, m.cfg.DailyLossLimitPct)
			return false
		}
	}
	if m.cfg.MaxNotionalPerTrade > 0 && decimalCompare(proposedNotional, m.cfg.MaxNotionalPerTrade) > 0 {
		logger.Infof("risk: notional %.2f exceeds per-trade cap %.2f", proposedNotional, m.cfg.MaxNotionalPerTrade)
		return false
	}
	if m.cfg.MaxExposureUSD > 0 {
		open := m.book.OpenNotional(prices)
		if decimalGTE(open+proposedNotional, m.cfg.MaxExposureUSD) {
			logger.Infof("risk: exposure %.2f + %.2f would reach cap %.2f", open, proposedNotional, m.cfg.MaxExposureUSD)
			return false
		}
	}
	return true
}

// CheckAutoClose scans open positions in ascending symbol order and returns
// a full-close order for the first one whose mark-to-entry move has reached
// take-profit or stop-loss. At most one close is returned per call; the
// next tick picks up any further qualifying positions. Positions without a
// usable mark are skipped.
func (m *Manager) CheckAutoClose(prices map[string]float64) *order.Order {
	for _, pos := range m.book.Positions() {
		mark, ok := prices[pos.Symbol]
		if !ok || mark <= 0 || math.IsNaN(mark) || math.IsInf(mark, 0) {
			continue
		}
		if pos.AvgPrice <= 0 {
			continue
		}
		movePct := (mark - pos.AvgPrice) / pos.AvgPrice * 100
		if pos.Qty < 0 {
			movePct = -movePct
		}
		reason := ""
		switch {
		case m.cfg.TakeProfitPct > 0 && decimalGTE(movePct, m.cfg.TakeProfitPct):
			reason = ReasonTakeProfit
		case m.cfg.StopLossPct > 0 && decimalLTE(movePct, -m.cfg.StopLossPct):
			reason = ReasonStopLoss
		default:
			continue
		}
		side := order.Sell
		if pos.Qty < 0 {
			side = order.Buy
		}
		qty := math.Abs(pos.Qty)
		logger.Infof("risk: auto-close %s %s move=%.2f%% reason=%s", pos.Symbol, side, movePct, reason)
		return &order.Order{
			Symbol:   pos.Symbol,
			Side:     side,
			Notional: qty * mark,
			Reason:   reason,
		}
	}
	return nil
}

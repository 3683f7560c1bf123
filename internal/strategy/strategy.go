// Package strategy contains the pluggable signal generators and the
// hot-reloadable parameter registry that feeds them.
package strategy

import (
	"fmt"
	"sort"

	"papertrade/internal/ledger"
	"papertrade/internal/market"
	"papertrade/internal/order"
	"papertrade/internal/risk"
)

// Exchange is the narrow venue surface strategies read from.
type Exchange interface {
	Orderbook(symbol string) market.Quote
	Ledger() *ledger.Ledger
}

// Strategy turns a per-tick price snapshot into candidate orders. Returned
// orders are intents only; the interval policy and risk manager still gate
// them before execution.
type Strategy interface {
	Name() string
	OnTick(prices map[string]float64, venue Exchange, riskMgr *risk.Manager) []order.Order
}

// Params is a loosely typed parameter bag sourced from the registry or
// static config.
type Params map[string]any

func (p Params) Float(key string, def float64) float64 {
	v, ok := p[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return def
	}
}

func (p Params) Int(key string, def int) int {
	return int(p.Float(key, float64(def)))
}

// Config selects and parameterizes a strategy at composition time.
type Config struct {
	Name             string
	DefaultOrderSize float64 // quote notional per order; 0 = 1% of cash
	Params           Params  // static fallback when no registry is wired
	Registry         *Registry
}

// New builds the named strategy. Selection happens here, once, at
// composition time; there is no runtime type switching afterwards.
func New(cfg Config) (Strategy, error) {
	base := base{
		name:      cfg.Name,
		orderSize: cfg.DefaultOrderSize,
		static:    cfg.Params,
		registry:  cfg.Registry,
	}
	switch cfg.Name {
	case "liquidity_gap":
		return &LiquidityGap{base: base}, nil
	case "mean_reversion":
		return NewMeanReversion(base), nil
	case "trend_follower":
		return NewTrendFollower(base), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", cfg.Name)
	}
}

type base struct {
	name      string
	orderSize float64
	static    Params
	registry  *Registry
}

func (b base) Name() string { return b.name }

// params returns the live registry snapshot when one is wired, so edits to
// the strategies file take effect on the next tick without a restart.
func (b base) params() Params {
	if b.registry != nil {
		if p, ok := b.registry.Params(b.name); ok {
			return p
		}
	}
	if b.static != nil {
		return b.static
	}
	return Params{}
}

// sizeOrder resolves the quote notional for a new order: explicit override
// first, then 1% of current cash.
func (b base) sizeOrder(book *ledger.Ledger) float64 {
	if b.orderSize > 0 {
		return b.orderSize
	}
	return book.Cash() * 0.01
}

// sortedSymbols keeps signal emission deterministic across ticks.
func sortedSymbols(prices map[string]float64) []string {
	out := make([]string, 0, len(prices))
	for sym := range prices {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Package venue simulates taker-only order execution against a quote
// source and applies every fill to the shared ledger exactly once.
package venue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"papertrade/internal/ledger"
	"papertrade/internal/market"
	"papertrade/internal/order"
)

var (
	ErrInvalidNotional = errors.New("order notional must be positive")
	ErrUnknownSymbol   = errors.New("unknown symbol")
)

// FillRecord is the immutable result of one simulated execution. It is
// created here, applied to the ledger, handed to the trade sink and never
// mutated afterward.
type FillRecord struct {
	Timestamp     time.Time  `json:"ts"`
	Symbol        string     `json:"symbol"`
	Side          order.Side `json:"side"`
	Price         float64    `json:"price"`
	Mid           float64    `json:"mid"`
	SlippageBps   float64    `json:"slippage_bps"`
	Notional      float64    `json:"notional"`
	Fee           float64    `json:"fee"`
	RealizedDelta float64    `json:"realized_delta"`
	RealizedTotal float64    `json:"realized_total"`
	Unrealized    float64    `json:"unrealized"`
	Equity        float64    `json:"equity_after"`
	Cash          float64    `json:"cash_after"`
	PositionQty   float64    `json:"pos_qty"`
	PositionAvg   float64    `json:"pos_avg"`
	Reason        string     `json:"reason,omitempty"`
}

// Config holds the immutable execution-model parameters.
type Config struct {
	FeeBps         float64
	SpreadFloor    float64 // absolute minimum synthesized spread
	SpreadFraction float64 // synthesized spread as a fraction of the mark
}

func (c Config) withDefaults() Config {
	if c.SpreadFloor <= 0 {
		c.SpreadFloor = 0.5
	}
	if c.SpreadFraction <= 0 {
		c.SpreadFraction = 0.0008 // 8 bps
	}
	return c
}

// Paper is the simulated execution venue. Exactly one tick-advance mode is
// active for its lifetime, determined by the market.Source it is built with
// (candle replay or live polling).
type Paper struct {
	cfg     Config
	symbols map[string]struct{}
	source  market.Source
	book    *ledger.Ledger
	prices  map[string]float64
	nowFn   func() time.Time
}

func NewPaper(cfg Config, symbols []string, src market.Source, book *ledger.Ledger) *Paper {
	set := make(map[string]struct{}, len(symbols))
	prices := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	p := &Paper{
		cfg:     cfg.withDefaults(),
		symbols: set,
		source:  src,
		book:    book,
		prices:  prices,
		nowFn:   time.Now,
	}
	for _, s := range symbols {
		if m := src.Mark(s); m > 0 {
			p.prices[s] = m
		}
	}
	return p
}

// SetClock overrides the fill timestamp source, for tests.
func (p *Paper) SetClock(now func() time.Time) { p.nowFn = now }

// Ledger exposes the single owning book instance to collaborators.
func (p *Paper) Ledger() *ledger.Ledger { return p.book }

// Step refreshes the quote source and pulls each symbol's current mark.
// A symbol with no mark yet keeps its previous price.
func (p *Paper) Step(ctx context.Context) {
	p.source.Step(ctx)
	for sym := range p.symbols {
		if m := p.source.Mark(sym); m > 0 {
			p.prices[sym] = m
		}
	}
}

// Prices returns a copy of the per-symbol mark snapshot for this tick.
func (p *Paper) Prices() map[string]float64 {
	out := make(map[string]float64, len(p.prices))
	for k, v := range p.prices {
		out[k] = v
	}
	return out
}

// Orderbook returns the live book when both sides are present, otherwise a
// synthesized minimum-spread quote around the last mark. The floor guards
// against zero spreads on illiquid or just-started symbols.
func (p *Paper) Orderbook(symbol string) market.Quote {
	if q := p.source.Orderbook(symbol); q.Complete() {
		return q
	}
	mark := p.prices[symbol]
	if mark <= 0 {
		return market.Quote{}
	}
	spread := mark * p.cfg.SpreadFraction
	if spread < p.cfg.SpreadFloor {
		spread = p.cfg.SpreadFloor
	}
	return market.Quote{Bid: mark - spread/2, Ask: mark + spread/2}
}

// PlaceOrder executes a quote-notional market order and returns the fill.
// It fails only on malformed input; missing market data falls back to the
// synthesized quote.
func (p *Paper) PlaceOrder(symbol string, side order.Side, notional float64) (FillRecord, error) {
	if notional <= 0 {
		return FillRecord{}, fmt.Errorf("%w: %f", ErrInvalidNotional, notional)
	}
	if _, ok := p.symbols[symbol]; !ok {
		return FillRecord{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	q := p.Orderbook(symbol)
	price := q.Ask
	if side == order.Sell {
		price = q.Bid
	}
	mid := q.Mid()
	if mid <= 0 {
		mid = price
	}

	// positive bps means worse than mid for both sides
	slippageBps := 0.0
	if mid > 0 {
		if side == order.Buy {
			slippageBps = (price - mid) / mid * 10000
		} else {
			slippageBps = (mid - price) / mid * 10000
		}
	}

	qtyBase := 0.0
	if price > 0 {
		qtyBase = notional / price
	}
	fee := notional * p.cfg.FeeBps / 10000

	ts := p.nowFn()
	res := p.book.ApplyFill(symbol, side, qtyBase, price, fee, ts)
	prices := p.Prices()

	return FillRecord{
		Timestamp:     ts,
		Symbol:        symbol,
		Side:          side,
		Price:         price,
		Mid:           mid,
		SlippageBps:   slippageBps,
		Notional:      notional,
		Fee:           fee,
		RealizedDelta: res.RealizedDelta,
		RealizedTotal: p.book.RealizedPnL(),
		Unrealized:    p.book.UnrealizedTotal(prices),
		Equity:        p.book.Equity(prices),
		Cash:          p.book.Cash(),
		PositionQty:   res.Qty,
		PositionAvg:   res.AvgPrice,
	}, nil
}

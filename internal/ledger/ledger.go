// Package ledger implements the average-cost position and cash accounting.
// It is pure bookkeeping: no I/O, no locking, mutated only through ApplyFill
// from the single tick loop that owns it.
package ledger

import (
	"sort"
	"time"

	"papertrade/internal/order"
)

// Position is one symbol's open exposure. Qty is signed base units
// (>0 long, <0 short). AvgPrice is zero exactly when Qty is zero.
type Position struct {
	Symbol       string
	Qty          float64
	AvgPrice     float64
	LastFillTime time.Time
}

// FillResult reports what a single ApplyFill did to the book.
type FillResult struct {
	RealizedDelta float64
	Qty           float64
	AvgPrice      float64
}

// Ledger owns process-wide cash, the monotonic realized P&L accumulator and
// the per-symbol positions.
type Ledger struct {
	cash      float64
	realized  float64
	positions map[string]*Position
}

func New(startingCash float64) *Ledger {
	return &Ledger{
		cash:      startingCash,
		positions: make(map[string]*Position),
	}
}

func (l *Ledger) Cash() float64 { return l.cash }

func (l *Ledger) RealizedPnL() float64 { return l.realized }

// Position returns a copy of the symbol's position; the zero value when the
// symbol has never been traded.
func (l *Ledger) Position(symbol string) Position {
	if p, ok := l.positions[symbol]; ok {
		return *p
	}
	return Position{Symbol: symbol}
}

// Positions returns copies of all non-flat positions in ascending symbol
// order, so callers that scan them behave deterministically.
func (l *Ledger) Positions() []Position {
	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		if p.Qty != 0 {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// ApplyFill moves cash, realizes P&L for any closed portion and opens or
// extends the remainder. A single fill may close an opposite position and
// open in the new direction in one call; the caller sizes the quantity.
//
// Cash moves by -qty*price on buys and +qty*price on sells; the fee is
// subtracted regardless of side. Realized P&L for a closed portion is
// closedQty*(fillPrice-avg) for longs and closedQty*(avg-fillPrice) for
// shorts. Extending a same-direction position blends AvgPrice as the
// size-weighted mean; reaching exactly flat resets AvgPrice to zero.
func (l *Ledger) ApplyFill(symbol string, side order.Side, qtyBase, price, fee float64, ts time.Time) FillResult {
	pos, ok := l.positions[symbol]
	if !ok {
		pos = &Position{Symbol: symbol}
		l.positions[symbol] = pos
	}
	realized := 0.0
	remaining := qtyBase

	if side == order.Buy {
		l.cash -= qtyBase * price
		if pos.Qty < 0 {
			closeQty := min(remaining, -pos.Qty)
			realized += closeQty * (pos.AvgPrice - price)
			pos.Qty += closeQty
			remaining -= closeQty
			if pos.Qty == 0 {
				pos.AvgPrice = 0
			}
		}
		if remaining > 0 {
			if pos.Qty > 0 {
				newQty := pos.Qty + remaining
				pos.AvgPrice = (pos.AvgPrice*pos.Qty + price*remaining) / newQty
				pos.Qty = newQty
			} else {
				pos.Qty = remaining
				pos.AvgPrice = price
			}
		}
	} else {
		l.cash += qtyBase * price
		if pos.Qty > 0 {
			closeQty := min(remaining, pos.Qty)
			realized += closeQty * (price - pos.AvgPrice)
			pos.Qty -= closeQty
			remaining -= closeQty
			if pos.Qty == 0 {
				pos.AvgPrice = 0
			}
		}
		if remaining > 0 {
			if pos.Qty < 0 {
				newAbs := -pos.Qty + remaining
				pos.AvgPrice = (-pos.Qty*pos.AvgPrice + price*remaining) / newAbs
				pos.Qty = -newAbs
			} else {
				pos.Qty = -remaining
				pos.AvgPrice = price
			}
		}
	}

	l.cash -= fee
	l.realized += realized
	pos.LastFillTime = ts

	return FillResult{
		RealizedDelta: realized,
		Qty:           pos.Qty,
		AvgPrice:      pos.AvgPrice,
	}
}

// Equity is cash plus the mark value of every open position. A symbol absent
// from prices is valued at its own average price.
func (l *Ledger) Equity(prices map[string]float64) float64 {
	eq := l.cash
	for sym, pos := range l.positions {
		eq += pos.Qty * markOr(prices, sym, pos.AvgPrice)
	}
	return eq
}

// UnrealizedTotal is the summed mark-to-market P&L of open positions.
func (l *Ledger) UnrealizedTotal(prices map[string]float64) float64 {
	u := 0.0
	for sym, pos := range l.positions {
		u += pos.Qty * (markOr(prices, sym, pos.AvgPrice) - pos.AvgPrice)
	}
	return u
}

// OpenNotional is the absolute USD exposure across all positions; longs and
// shorts both add positively.
func (l *Ledger) OpenNotional(prices map[string]float64) float64 {
	n := 0.0
	for sym, pos := range l.positions {
		if pos.Qty == 0 {
			continue
		}
		qty := pos.Qty
		if qty < 0 {
			qty = -qty
		}
		n += qty * markOr(prices, sym, pos.AvgPrice)
	}
	return n
}

func markOr(prices map[string]float64, symbol string, fallback float64) float64 {
	if p, ok := prices[symbol]; ok {
		return p
	}
	return fallback
}

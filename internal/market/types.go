// Package market supplies price data to the venue: live or polled quote
// sources and a candle store for replay.
package market

import "context"

// Quote is one top-of-book snapshot. A zero side means that side of the
// book is unknown, not an actual zero price.
type Quote struct {
	Bid float64
	Ask float64
}

// Complete reports whether both sides of the book are present.
func (q Quote) Complete() bool { return q.Bid > 0 && q.Ask > 0 }

// Mid returns the midpoint of a complete book and 0 otherwise.
func (q Quote) Mid() float64 {
	if !q.Complete() {
		return 0
	}
	return (q.Bid + q.Ask) / 2
}

// Candle is one OHLCV bar. Times are unix milliseconds.
type Candle struct {
	OpenTime  int64
	CloseTime int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Source feeds the venue one consistent snapshot per tick. Step refreshes
// within its own timeout and never blocks the tick loop; Orderbook and Mark
// report the latest known values, zero when nothing is known yet.
type Source interface {
	Step(ctx context.Context)
	Orderbook(symbol string) Quote
	Mark(symbol string) float64
}

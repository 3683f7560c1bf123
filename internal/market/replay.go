package market

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"papertrade/internal/logger"
)

// ReplaySource advances one candle per Step through preloaded per-symbol
// series and republishes each close as the symbol's mark. It never produces
// a live orderbook, so the venue synthesizes a spread around the mark.
type ReplaySource struct {
	symbols []string
	series  map[string][]Candle
	ptr     int
	marks   map[string]float64
}

// NewReplaySource loads each symbol's series from the store, seeding missing
// series from {SYMBOL}_{timeframe}.csv under csvDir when present. A symbol
// with no data at all replays a single flat candle, mirroring the venue's
// tolerance for just-started markets.
func NewReplaySource(ctx context.Context, store *CandleStore, symbols []string, timeframe, csvDir string) (*ReplaySource, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("replay source needs at least one symbol")
	}
	r := &ReplaySource{
		symbols: symbols,
		series:  make(map[string][]Candle, len(symbols)),
		marks:   make(map[string]float64, len(symbols)),
	}
	for _, sym := range symbols {
		candles, err := store.RangeCandles(ctx, sym, timeframe, 0, 0)
		if err != nil {
			return nil, err
		}
		if len(candles) == 0 && csvDir != "" {
			path := filepath.Join(csvDir, fmt.Sprintf("%s_%s.csv", sym, strings.ToLower(timeframe)))
			if n, err := store.ImportCSV(ctx, sym, timeframe, path); err == nil {
				logger.Infof("replay: imported %d candles for %s from %s", n, sym, path)
				candles, err = store.RangeCandles(ctx, sym, timeframe, 0, 0)
				if err != nil {
					return nil, err
				}
			} else {
				logger.Warnf("replay: no csv seed for %s (%v)", sym, err)
			}
		}
		if len(candles) == 0 {
			candles = []Candle{{Open: 2000, High: 2005, Low: 1995, Close: 2002}}
		}
		r.series[sym] = candles
		r.marks[sym] = candles[0].Close
	}
	return r, nil
}

// Step republishes the next candle's close per symbol. Past the end of a
// series the last mark stays in place.
func (r *ReplaySource) Step(ctx context.Context) {
	for _, sym := range r.symbols {
		series := r.series[sym]
		if r.ptr < len(series) {
			r.marks[sym] = series[r.ptr].Close
		}
	}
	r.ptr++
}

// Orderbook always reports an absent book; replay data has closes only.
func (r *ReplaySource) Orderbook(string) Quote { return Quote{} }

func (r *ReplaySource) Mark(symbol string) float64 { return r.marks[symbol] }

// Exhausted reports whether every series has been fully replayed.
func (r *ReplaySource) Exhausted() bool {
	for _, series := range r.series {
		if r.ptr < len(series) {
			return false
		}
	}
	return true
}

// Len returns the longest series length, the natural backtest step count.
func (r *ReplaySource) Len() int {
	n := 0
	for _, series := range r.series {
		if len(series) > n {
			n = len(series)
		}
	}
	return n
}

// Package order holds the shared order-intent types exchanged between
// strategies, risk checks and the execution venue.
package order

import "strings"

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Opposite returns the closing side for a position opened on s.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func ParseSide(raw string) (Side, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy", "long":
		return Buy, true
	case "sell", "short":
		return Sell, true
	default:
		return "", false
	}
}

// Order is a candidate order intent. Notional is always quote-currency USD;
// the base quantity is derived at fill time from the execution price.
type Order struct {
	Symbol   string
	Side     Side
	Notional float64
	Limit    float64 // 0 = market
	Reason   string  // e.g. strategy name, "tp", "sl"
}

package market

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"papertrade/internal/logger"
)

// PollConfig drives a generic REST quote poller. URLs carry a {symbol}
// placeholder; the gjson paths locate prices inside whatever JSON shape the
// endpoint returns, so exchange-specific response parsing stays in config.
type PollConfig struct {
	OrderbookURL string        // expects bids/asks arrays unless paths override
	TickerURL    string        // last-price fallback when the book is partial
	BidPath      string        // default "bids.0.0"
	AskPath      string        // default "asks.0.0"
	LastPath     string        // default "last", then "price"
	Interval     time.Duration // min time between refreshes
	Timeout      time.Duration
}

func (c PollConfig) withDefaults() PollConfig {
	if c.BidPath == "" {
		c.BidPath = "bids.0.0"
	}
	if c.AskPath == "" {
		c.AskPath = "asks.0.0"
	}
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	return c
}

// PollSource polls REST orderbook/ticker endpoints and caches best quotes
// and marks. Fetch failures back off exponentially (capped) and leave the
// previous snapshot untouched; the accounting loop never sees the error.
type PollSource struct {
	cfg     PollConfig
	symbols []string
	client  *http.Client

	lastFetch time.Time
	backoff   time.Duration
	quotes    map[string]Quote
	marks     map[string]float64
}

const (
	pollBackoffBase = time.Second
	pollBackoffMax  = 10 * time.Second
)

func NewPollSource(cfg PollConfig, symbols []string) (*PollSource, error) {
	if cfg.OrderbookURL == "" && cfg.TickerURL == "" {
		return nil, fmt.Errorf("poll source needs an orderbook or ticker url")
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("poll source needs at least one symbol")
	}
	final := cfg.withDefaults()
	return &PollSource{
		cfg:     final,
		symbols: symbols,
		client:  &http.Client{Timeout: final.Timeout},
		backoff: pollBackoffBase,
		quotes:  make(map[string]Quote, len(symbols)),
		marks:   make(map[string]float64, len(symbols)),
	}, nil
}

func (p *PollSource) Step(ctx context.Context) {
	now := time.Now()
	if now.Sub(p.lastFetch) < p.cfg.Interval {
		return
	}
	failed := false
	for _, sym := range p.symbols {
		if err := p.fetchSymbol(ctx, sym); err != nil {
			failed = true
			logger.Warnf("poll: fetch %s failed: %v (backoff %s)", sym, err, p.backoff)
		}
	}
	if failed {
		p.backoff *= 2
		if p.backoff > pollBackoffMax {
			p.backoff = pollBackoffMax
		}
		// push the next attempt out instead of sleeping on the tick path
		p.lastFetch = now.Add(p.backoff - p.cfg.Interval)
		return
	}
	p.backoff = pollBackoffBase
	p.lastFetch = now
}

func (p *PollSource) fetchSymbol(ctx context.Context, symbol string) error {
	var bid, ask float64
	if p.cfg.OrderbookURL != "" {
		body, err := p.get(ctx, strings.ReplaceAll(p.cfg.OrderbookURL, "{symbol}", symbol))
		if err != nil {
			return err
		}
		bid = gjson.GetBytes(body, p.cfg.BidPath).Float()
		ask = gjson.GetBytes(body, p.cfg.AskPath).Float()
	}
	if (bid <= 0 || ask <= 0) && p.cfg.TickerURL != "" {
		body, err := p.get(ctx, strings.ReplaceAll(p.cfg.TickerURL, "{symbol}", symbol))
		if err != nil {
			return err
		}
		last := p.lastPrice(body)
		if last > 0 {
			if bid <= 0 {
				bid = last
			}
			if ask <= 0 {
				ask = last
			}
		}
	}
	p.quotes[symbol] = Quote{Bid: bid, Ask: ask}
	switch {
	case bid > 0 && ask > 0:
		p.marks[symbol] = (bid + ask) / 2
	case bid > 0:
		p.marks[symbol] = bid
	case ask > 0:
		p.marks[symbol] = ask
	}
	return nil
}

func (p *PollSource) lastPrice(body []byte) float64 {
	if p.cfg.LastPath != "" {
		return gjson.GetBytes(body, p.cfg.LastPath).Float()
	}
	if v := gjson.GetBytes(body, "last"); v.Exists() {
		return v.Float()
	}
	return gjson.GetBytes(body, "price").Float()
}

func (p *PollSource) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("status=%d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (p *PollSource) Orderbook(symbol string) Quote { return p.quotes[symbol] }

func (p *PollSource) Mark(symbol string) float64 { return p.marks[symbol] }

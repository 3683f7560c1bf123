package market

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"papertrade/internal/logger"
)

// BinanceConfig configures the futures book-ticker source.
type BinanceConfig struct {
	RESTBaseURL string
	HTTPTimeout time.Duration
	Interval    time.Duration // min time between refreshes
}

func (c BinanceConfig) withDefaults() BinanceConfig {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 10 * time.Second
	}
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	return c
}

// BinanceSource reads best bid/ask and mark price from the Binance futures
// REST API. Symbols are accepted as "ETH-USDT" or "ETH/USDT" and cleaned to
// the exchange form.
type BinanceSource struct {
	cfg     BinanceConfig
	client  *futures.Client
	symbols []string

	mu        sync.RWMutex
	lastFetch time.Time
	quotes    map[string]Quote
	marks     map[string]float64
}

func NewBinanceSource(cfg BinanceConfig, symbols []string) *BinanceSource {
	final := cfg.withDefaults()
	client := futures.NewClient("", "")
	if final.RESTBaseURL != "" {
		client.BaseURL = strings.TrimSpace(final.RESTBaseURL)
	}
	return &BinanceSource{
		cfg:     final,
		client:  client,
		symbols: symbols,
		quotes:  make(map[string]Quote, len(symbols)),
		marks:   make(map[string]float64, len(symbols)),
	}
}

func cleanBinanceSymbol(sym string) string {
	s := strings.ToUpper(strings.TrimSpace(sym))
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "-", "")
	return s
}

func (s *BinanceSource) Step(ctx context.Context) {
	now := time.Now()
	s.mu.RLock()
	since := now.Sub(s.lastFetch)
	s.mu.RUnlock()
	if since < s.cfg.Interval {
		return
	}
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.HTTPTimeout)
	defer cancel()
	for _, sym := range s.symbols {
		if err := s.fetchSymbol(fetchCtx, sym); err != nil {
			logger.Warnf("binance: refresh %s failed: %v", sym, err)
		}
	}
	s.mu.Lock()
	s.lastFetch = now
	s.mu.Unlock()
}

func (s *BinanceSource) fetchSymbol(ctx context.Context, sym string) error {
	clean := cleanBinanceSymbol(sym)
	books, err := s.client.NewListBookTickersService().Symbol(clean).Do(ctx)
	if err != nil {
		return err
	}
	var q Quote
	for _, b := range books {
		if b == nil || !strings.EqualFold(b.Symbol, clean) {
			continue
		}
		q.Bid = parsePrice(b.BidPrice)
		q.Ask = parsePrice(b.AskPrice)
		break
	}
	mark := q.Mid()
	if premium, err := s.client.NewPremiumIndexService().Symbol(clean).Do(ctx); err == nil {
		for _, entry := range premium {
			if entry == nil || !strings.EqualFold(entry.Symbol, clean) {
				continue
			}
			if m := parsePrice(entry.MarkPrice); m > 0 {
				mark = m
			}
			break
		}
	}
	s.mu.Lock()
	s.quotes[sym] = q
	if mark > 0 {
		s.marks[sym] = mark
	}
	s.mu.Unlock()
	return nil
}

func parsePrice(raw string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	return v
}

func (s *BinanceSource) Orderbook(symbol string) Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quotes[symbol]
}

func (s *BinanceSource) Mark(symbol string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.marks[symbol]
}

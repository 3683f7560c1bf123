package config

import (
	"fmt"
	"strings"
)

const (
	ModeBacktest = "backtest"
	ModePaper    = "paper"
)

func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Interval.validate(); err != nil {
		return err
	}
	if err := c.Logging.validate(); err != nil {
		return err
	}
	if err := c.Live.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(a.Mode) {
	case ModeBacktest, ModePaper:
	default:
		return fmt.Errorf("app.mode must be %q or %q, got %q", ModeBacktest, ModePaper, a.Mode)
	}
	return nil
}

func (m *MarketConfig) validate() error {
	if len(m.Symbols) == 0 {
		return fmt.Errorf("market.symbols requires at least one symbol")
	}
	for _, sym := range m.Symbols {
		if strings.TrimSpace(sym) == "" {
			return fmt.Errorf("market.symbols contains an empty entry")
		}
	}
	switch strings.ToLower(m.Feed) {
	case "replay", "poll", "binance":
	default:
		return fmt.Errorf("market.feed must be replay, poll or binance, got %q", m.Feed)
	}
	if strings.EqualFold(m.Feed, "poll") && strings.TrimSpace(m.Poll.OrderbookURL) == "" && strings.TrimSpace(m.Poll.TickerURL) == "" {
		return fmt.Errorf("market.poll requires orderbook_url or ticker_url")
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.MaxExposureUSD < 0 || r.MaxNotionalPerTrade < 0 {
		return fmt.Errorf("risk caps must be >= 0")
	}
	if r.DailyLossLimitPct < 0 || r.TakeProfitPct < 0 || r.StopLossPct < 0 {
		return fmt.Errorf("risk percentages must be >= 0")
	}
	return nil
}

func (i *IntervalConfig) validate() error {
	if i.MinOrderNotional < 0 {
		return fmt.Errorf("interval.min_order_notional must be >= 0")
	}
	if i.MinTradeIntervalSec < 0 || i.MinHoldTimeSec < 0 {
		return fmt.Errorf("interval durations must be >= 0")
	}
	return nil
}

func (l *LoggingConfig) validate() error {
	switch strings.ToLower(l.Backend) {
	case "csv", "sqlite", "both":
		return nil
	default:
		return fmt.Errorf("logging.backend must be csv, sqlite or both, got %q", l.Backend)
	}
}

func (l *LiveConfig) validate() error {
	if !l.Enabled {
		return nil
	}
	if strings.TrimSpace(l.APIKey) == "" || strings.TrimSpace(l.APISecret) == "" {
		return fmt.Errorf("live.enabled requires api_key and api_secret")
	}
	return nil
}

package config

import "time"

// Config is the root configuration carrier.
type Config struct {
	App      AppConfig      `toml:"app"`
	Market   MarketConfig   `toml:"market"`
	Venue    VenueConfig    `toml:"venue"`
	Risk     RiskConfig     `toml:"risk"`
	Interval IntervalConfig `toml:"interval"`
	Strategy StrategyConfig `toml:"strategy"`
	Logging  LoggingConfig  `toml:"logging"`
	Live     LiveConfig     `toml:"live"`
	Notify   NotifyConfig   `toml:"notify"`
	Report   ReportConfig   `toml:"report"`
}

type AppConfig struct {
	Env            string  `toml:"env"`
	Mode           string  `toml:"mode"` // "backtest" | "paper"
	LogLevel       string  `toml:"log_level"`
	LogPath        string  `toml:"log_path"`
	HTTPAddr       string  `toml:"http_addr"`
	StartCashUSD   float64 `toml:"start_cash_usd"`
	LoopIntervalMS int     `toml:"loop_interval_ms"`
	MaxSteps       int     `toml:"max_steps"`
}

// MarketConfig selects the quote feed and the symbols it serves.
type MarketConfig struct {
	Symbols   []string   `toml:"symbols"`
	Feed      string     `toml:"feed"` // "replay" | "poll" | "binance"
	DataDir   string     `toml:"data_dir"`
	CSVDir    string     `toml:"csv_dir"`
	Timeframe string     `toml:"timeframe"`
	Poll      PollConfig `toml:"poll"`
}

type PollConfig struct {
	OrderbookURL string `toml:"orderbook_url"`
	TickerURL    string `toml:"ticker_url"`
	BidPath      string `toml:"bid_path"`
	AskPath      string `toml:"ask_path"`
	LastPath     string `toml:"last_path"`
	IntervalMS   int    `toml:"interval_ms"`
	TimeoutMS    int    `toml:"timeout_ms"`
}

type VenueConfig struct {
	FeeBps         float64 `toml:"fee_bps"`
	SpreadFloor    float64 `toml:"spread_floor"`
	SpreadFraction float64 `toml:"spread_fraction"`
}

type RiskConfig struct {
	MaxExposureUSD      float64 `toml:"max_exposure_usd"`
	MaxNotionalPerTrade float64 `toml:"max_notional_per_trade"`
	DailyLossLimitPct   float64 `toml:"daily_loss_limit_pct"`
	TakeProfitPct       float64 `toml:"take_profit_pct"`
	StopLossPct         float64 `toml:"stop_loss_pct"`
}

type IntervalConfig struct {
	MinOrderNotional    float64 `toml:"min_order_notional"`
	MinTradeIntervalSec float64 `toml:"min_trade_interval_sec"`
	MinHoldTimeSec      float64 `toml:"min_hold_time_sec"`
}

func (i IntervalConfig) MinTradeInterval() time.Duration {
	return time.Duration(i.MinTradeIntervalSec * float64(time.Second))
}

func (i IntervalConfig) MinHoldTime() time.Duration {
	return time.Duration(i.MinHoldTimeSec * float64(time.Second))
}

type StrategyConfig struct {
	Name         string         `toml:"name"`
	OrderSizeUSD float64        `toml:"order_size_usd"` // 0 = 1% of cash
	RegistryPath string         `toml:"registry_path"`
	Params       map[string]any `toml:"params"`
}

type LoggingConfig struct {
	Backend    string `toml:"backend"` // "csv" | "sqlite" | "both"
	Dir        string `toml:"dir"`
	SQLitePath string `toml:"sqlite_path"`
}

type LiveConfig struct {
	Enabled    bool   `toml:"enabled"`
	Testnet    bool   `toml:"testnet"`
	APIKey     string `toml:"api_key"`
	APISecret  string `toml:"api_secret"`
	BaseURL    string `toml:"base_url"`
	TimeoutSec int    `toml:"timeout_sec"`
	MaxRetries int    `toml:"max_retries"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type ReportConfig struct {
	Enabled  bool   `toml:"enabled"`
	HTMLPath string `toml:"html_path"`
	PNGPath  string `toml:"png_path"`
}

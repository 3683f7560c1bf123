package config

import "strings"

const (
	defaultAppEnv       = "dev"
	defaultAppMode      = ModeBacktest
	defaultAppLogLevel  = "info"
	defaultAppHTTPAddr  = ":9985"
	defaultStartCash    = 10000
	defaultLoopInterval = 1000
	defaultBacktestMax  = 500

	defaultFeed      = "replay"
	defaultDataDir   = "data/candles"
	defaultTimeframe = "1m"
	defaultBidPath   = "bids.0.0"
	defaultAskPath   = "asks.0.0"
	defaultLastPath  = "last"
	defaultPollMS    = 1000
	defaultPollTO    = 5000

	defaultStrategy = "liquidity_gap"

	defaultLogBackend = "csv"
	defaultLogDir     = "logs"
	defaultSQLitePath = "logs/trading.db"

	defaultLiveTimeout = 10
	defaultLiveRetries = 2

	defaultReportHTML = "logs/report.html"
)

// applyDefaults fills unset fields. Zero values for the risk and interval
// thresholds are meaningful (check disabled) and are left alone.
func (c *Config) applyDefaults() {
	c.App.applyDefaults()
	c.Market.applyDefaults()
	c.Strategy.applyDefaults()
	c.Logging.applyDefaults()
	c.Live.applyDefaults()
	c.Report.applyDefaults()
}

func (a *AppConfig) applyDefaults() {
	setString(&a.Env, defaultAppEnv)
	setString(&a.Mode, defaultAppMode)
	setString(&a.LogLevel, defaultAppLogLevel)
	setString(&a.HTTPAddr, defaultAppHTTPAddr)
	if a.StartCashUSD <= 0 {
		a.StartCashUSD = defaultStartCash
	}
	if a.LoopIntervalMS <= 0 {
		a.LoopIntervalMS = defaultLoopInterval
	}
	if a.MaxSteps <= 0 && strings.EqualFold(a.Mode, ModeBacktest) {
		a.MaxSteps = defaultBacktestMax
	}
}

func (m *MarketConfig) applyDefaults() {
	setString(&m.Feed, defaultFeed)
	setString(&m.DataDir, defaultDataDir)
	setString(&m.Timeframe, defaultTimeframe)
	setString(&m.Poll.BidPath, defaultBidPath)
	setString(&m.Poll.AskPath, defaultAskPath)
	setString(&m.Poll.LastPath, defaultLastPath)
	if m.Poll.IntervalMS <= 0 {
		m.Poll.IntervalMS = defaultPollMS
	}
	if m.Poll.TimeoutMS <= 0 {
		m.Poll.TimeoutMS = defaultPollTO
	}
}

func (s *StrategyConfig) applyDefaults() {
	setString(&s.Name, defaultStrategy)
}

func (l *LoggingConfig) applyDefaults() {
	setString(&l.Backend, defaultLogBackend)
	setString(&l.Dir, defaultLogDir)
	setString(&l.SQLitePath, defaultSQLitePath)
}

func (l *LiveConfig) applyDefaults() {
	if l.TimeoutSec <= 0 {
		l.TimeoutSec = defaultLiveTimeout
	}
	if l.MaxRetries <= 0 {
		l.MaxRetries = defaultLiveRetries
	}
}

func (r *ReportConfig) applyDefaults() {
	setString(&r.HTMLPath, defaultReportHTML)
}

func setString(target *string, def string) {
	if strings.TrimSpace(*target) == "" {
		*target = def
	}
}

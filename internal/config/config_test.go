package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
market:
  symbols: ["BTC/USDT"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ModeBacktest, cfg.App.Mode)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.InDelta(t, 10000.0, cfg.App.StartCashUSD, 1e-9)
	assert.Equal(t, 500, cfg.App.MaxSteps)
	assert.Equal(t, "replay", cfg.Market.Feed)
	assert.Equal(t, "1m", cfg.Market.Timeframe)
	assert.Equal(t, "liquidity_gap", cfg.Strategy.Name)
	assert.Equal(t, "csv", cfg.Logging.Backend)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
app:
  mode: paper
  log_level: debug
  start_cash_usd: 25000
  loop_interval_ms: 500
market:
  symbols: ["BTC/USDT", "ETH/USDT"]
  feed: poll
  poll:
    orderbook_url: http://example.com/orderbook
risk:
  max_exposure_usd: 5000
  take_profit_pct: 4
  stop_loss_pct: 2
interval:
  min_order_notional: 25
  min_trade_interval_sec: 30
  min_hold_time_sec: 60
strategy:
  name: mean_reversion
  order_size_usd: 200
  params:
    rsi_period: 7
logging:
  backend: both
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ModePaper, cfg.App.Mode)
	assert.Equal(t, 0, cfg.App.MaxSteps, "max_steps default only applies to backtests")
	assert.Len(t, cfg.Market.Symbols, 2)
	assert.InDelta(t, 4.0, cfg.Risk.TakeProfitPct, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.Interval.MinTradeInterval())
	assert.Equal(t, time.Minute, cfg.Interval.MinHoldTime())
	assert.Equal(t, "mean_reversion", cfg.Strategy.Name)
	assert.Equal(t, 7, cfg.Strategy.Params["rsi_period"])
}

func TestLoadRejectsBadMode(t *testing.T) {
	path := writeConfig(t, `
app:
  mode: yolo
market:
  symbols: ["BTC/USDT"]
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app.mode")
}

func TestLoadRejectsMissingSymbols(t *testing.T) {
	path := writeConfig(t, `
app:
  mode: backtest
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "market.symbols")
}

func TestLoadRejectsPollWithoutURL(t *testing.T) {
	path := writeConfig(t, `
market:
  symbols: ["BTC/USDT"]
  feed: poll
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "market.poll")
}

func TestLiveRequiresCredentials(t *testing.T) {
	path := writeConfig(t, `
market:
  symbols: ["BTC/USDT"]
live:
  enabled: true
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "live.enabled")
}

func TestEnvOverridesCredentials(t *testing.T) {
	t.Setenv("PAPERTRADE_API_KEY", "env-key")
	t.Setenv("PAPERTRADE_API_SECRET", "env-secret")
	path := writeConfig(t, `
market:
  symbols: ["BTC/USDT"]
live:
  enabled: true
  api_key: file-key
  api_secret: file-secret
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Live.APIKey)
	assert.Equal(t, "env-secret", cfg.Live.APISecret)
}

func TestDumpMasksSecrets(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Live.APIKey = "super-secret-key"
	cfg.Notify.Telegram.BotToken = "123456:token"

	out, err := cfg.Dump()
	require.NoError(t, err)
	body := string(out)
	assert.NotContains(t, body, "super-secret-key")
	assert.Contains(t, body, "su****ey")
	assert.NotContains(t, body, "123456:token")
}

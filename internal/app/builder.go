package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"papertrade/internal/config"
	"papertrade/internal/engine"
	"papertrade/internal/ledger"
	"papertrade/internal/live"
	"papertrade/internal/logger"
	"papertrade/internal/market"
	"papertrade/internal/notify"
	"papertrade/internal/risk"
	"papertrade/internal/sink"
	"papertrade/internal/strategy"
	apihttp "papertrade/internal/transport/http"
	"papertrade/internal/venue"
)

var timeZero = time.Time{}

// New composes a full session from config. Nothing starts running until
// App.Run.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	book := ledger.New(cfg.App.StartCashUSD)

	src, stopWhen, err := buildSource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	ven := venue.NewPaper(venue.Config{
		FeeBps:         cfg.Venue.FeeBps,
		SpreadFloor:    cfg.Venue.SpreadFloor,
		SpreadFraction: cfg.Venue.SpreadFraction,
	}, cfg.Market.Symbols, src, book)

	riskMgr := risk.NewManager(book, risk.Config{
		MaxExposureUSD:      cfg.Risk.MaxExposureUSD,
		MaxNotionalPerTrade: cfg.Risk.MaxNotionalPerTrade,
		DailyLossLimitPct:   cfg.Risk.DailyLossLimitPct,
		TakeProfitPct:       cfg.Risk.TakeProfitPct,
		StopLossPct:         cfg.Risk.StopLossPct,
	})
	policy := risk.NewIntervalPolicy(risk.IntervalConfig{
		MinOrderNotional: cfg.Interval.MinOrderNotional,
		MinTradeInterval: cfg.Interval.MinTradeInterval(),
		MinHoldTime:      cfg.Interval.MinHoldTime(),
	})

	strat, err := buildStrategy(cfg)
	if err != nil {
		return nil, err
	}

	sinks, store, err := buildSinks(cfg)
	if err != nil {
		return nil, err
	}

	notifier := buildNotifier(cfg)

	eng := engine.New(engine.Config{
		LoopInterval: time.Duration(cfg.App.LoopIntervalMS) * time.Millisecond,
		MaxSteps:     cfg.App.MaxSteps,
	}, ven, strat, riskMgr, policy, sinks, notifier)
	if stopWhen != nil {
		eng.SetStopWhen(stopWhen)
	}
	if cfg.Live.Enabled {
		eng.SetShadow(live.NewClient(live.Config{
			APIKey:     cfg.Live.APIKey,
			APISecret:  cfg.Live.APISecret,
			BaseURL:    cfg.Live.BaseURL,
			Testnet:    cfg.Live.Testnet,
			Timeout:    time.Duration(cfg.Live.TimeoutSec) * time.Second,
			MaxRetries: cfg.Live.MaxRetries,
		}))
		logger.Infof("live shadow mirroring enabled (testnet=%v)", cfg.Live.Testnet)
	}

	httpSrv, err := buildHTTP(cfg, eng, store)
	if err != nil {
		return nil, err
	}

	logger.Infof("session composed: mode=%s feed=%s strategy=%s symbols=%s",
		cfg.App.Mode, cfg.Market.Feed, cfg.Strategy.Name, strings.Join(cfg.Market.Symbols, ","))
	return &App{cfg: cfg, engine: eng, httpSrv: httpSrv, sinks: sinks, store: store}, nil
}

func buildSource(ctx context.Context, cfg *config.Config) (market.Source, func() bool, error) {
	switch strings.ToLower(cfg.Market.Feed) {
	case "replay":
		store, err := market.NewCandleStore(cfg.Market.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("candle store: %w", err)
		}
		replay, err := market.NewReplaySource(ctx, store, cfg.Market.Symbols, cfg.Market.Timeframe, cfg.Market.CSVDir)
		if err != nil {
			return nil, nil, fmt.Errorf("replay source: %w", err)
		}
		return replay, replay.Exhausted, nil
	case "poll":
		src, err := market.NewPollSource(market.PollConfig{
			OrderbookURL: cfg.Market.Poll.OrderbookURL,
			TickerURL:    cfg.Market.Poll.TickerURL,
			BidPath:      cfg.Market.Poll.BidPath,
			AskPath:      cfg.Market.Poll.AskPath,
			LastPath:     cfg.Market.Poll.LastPath,
			Interval:     time.Duration(cfg.Market.Poll.IntervalMS) * time.Millisecond,
			Timeout:      time.Duration(cfg.Market.Poll.TimeoutMS) * time.Millisecond,
		}, cfg.Market.Symbols)
		if err != nil {
			return nil, nil, fmt.Errorf("poll source: %w", err)
		}
		return src, nil, nil
	case "binance":
		return market.NewBinanceSource(market.BinanceConfig{}, cfg.Market.Symbols), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown market feed %q", cfg.Market.Feed)
	}
}

func buildStrategy(cfg *config.Config) (strategy.Strategy, error) {
	var registry *strategy.Registry
	if path := strings.TrimSpace(cfg.Strategy.RegistryPath); path != "" {
		var err error
		registry, err = strategy.NewRegistry(path)
		if err != nil {
			return nil, fmt.Errorf("strategy registry: %w", err)
		}
	}
	return strategy.New(strategy.Config{
		Name:             cfg.Strategy.Name,
		DefaultOrderSize: cfg.Strategy.OrderSizeUSD,
		Params:           strategy.Params(cfg.Strategy.Params),
		Registry:         registry,
	})
}

func buildSinks(cfg *config.Config) (sink.Sink, *sink.SQLite, error) {
	backend := strings.ToLower(cfg.Logging.Backend)
	var sinks []sink.Sink
	var store *sink.SQLite

	if backend == "csv" || backend == "both" {
		csvSink, err := sink.NewCSV(cfg.Logging.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("csv sink: %w", err)
		}
		sinks = append(sinks, csvSink)
	}
	if backend == "sqlite" || backend == "both" {
		var err error
		store, err = sink.NewSQLite(cfg.Logging.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite sink: %w", err)
		}
		sinks = append(sinks, store)
	}
	return sink.NewMulti(sinks...), store, nil
}

func buildNotifier(cfg *config.Config) notify.TextNotifier {
	tg := cfg.Notify.Telegram
	if tg.Enabled && tg.BotToken != "" && tg.ChatID != "" {
		return notify.NewTelegram(tg.BotToken, tg.ChatID)
	}
	return notify.Noop{}
}

func buildHTTP(cfg *config.Config, eng *engine.Engine, store *sink.SQLite) (*apihttp.Server, error) {
	if strings.TrimSpace(cfg.App.HTTPAddr) == "" {
		return nil, nil
	}
	dump, err := cfg.Dump()
	if err != nil {
		return nil, err
	}
	return apihttp.NewServer(apihttp.ServerConfig{
		Addr:       cfg.App.HTTPAddr,
		Status:     eng,
		Store:      store,
		ConfigYAML: dump,
	})
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

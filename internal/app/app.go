// Package app wires configuration into a runnable trading session.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"papertrade/internal/config"
	"papertrade/internal/engine"
	"papertrade/internal/logger"
	"papertrade/internal/report"
	"papertrade/internal/sink"
	apihttp "papertrade/internal/transport/http"
)

// App holds the composed session and its auxiliary services.
type App struct {
	cfg     *config.Config
	engine  *engine.Engine
	httpSrv *apihttp.Server
	sinks   sink.Sink
	store   *sink.SQLite // nil when the SQLite backend is disabled
}

// Run executes the configured mode and keeps the HTTP server up alongside
// it. In backtest mode the context for the HTTP server is cut as soon as
// the run finishes.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.sinks.Close()

	group, ctx := errgroup.WithContext(ctx)
	runCtx, stopHTTP := context.WithCancel(ctx)

	if a.httpSrv != nil {
		group.Go(func() error {
			logger.Infof("http server listening on %s", a.httpSrv.Addr())
			if err := a.httpSrv.Start(runCtx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		defer stopHTTP()
		if strings.EqualFold(a.cfg.App.Mode, config.ModeBacktest) {
			sum, err := a.engine.RunBacktest(ctx)
			if err != nil && err != context.Canceled {
				return err
			}
			a.writeReport(sum)
			return nil
		}
		err := a.engine.RunLive(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	return group.Wait()
}

// writeReport renders the post-run report from the SQLite history when it
// is available. It runs on its own context so a cancelled run can still
// produce the report.
func (a *App) writeReport(sum engine.Summary) {
	if !a.cfg.Report.Enabled || a.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	curve, err := a.store.EquityCurve(ctx, timeZero, 10000)
	if err != nil || len(curve) == 0 {
		logger.Warnf("report: equity history unavailable: %v", err)
		return
	}
	trades, err := a.store.RecentTrades(ctx, "", 500)
	if err != nil {
		logger.Warnf("report: trade history unavailable: %v", err)
		return
	}
	input := report.Input{
		Title:  fmt.Sprintf("%s backtest (%s)", a.cfg.Strategy.Name, sum),
		Curve:  curve,
		Trades: trades,
	}
	if path := a.cfg.Report.HTMLPath; path != "" {
		if err := report.WriteHTML(input, path); err != nil {
			logger.Warnf("report: html render failed: %v", err)
		} else {
			logger.Infof("report written to %s", path)
		}
	}
	if path := a.cfg.Report.PNGPath; path != "" {
		png, err := report.RenderPNG(ctx, input)
		if err != nil {
			logger.Warnf("report: png render failed (headless browser needed): %v", err)
			return
		}
		if err := writeFile(path, png); err != nil {
			logger.Warnf("report: png write failed: %v", err)
		} else {
			logger.Infof("report snapshot written to %s", path)
		}
	}
}

// Engine exposes the composed engine, for tests and replay harnesses.
func (a *App) Engine() *engine.Engine { return a.engine }

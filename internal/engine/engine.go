// Package engine runs the sequential tick loop that ties the market,
// strategy, risk checks, venue and sinks together.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"papertrade/internal/ledger"
	"papertrade/internal/live"
	"papertrade/internal/logger"
	"papertrade/internal/notify"
	"papertrade/internal/order"
	"papertrade/internal/risk"
	"papertrade/internal/sink"
	"papertrade/internal/strategy"
	"papertrade/internal/venue"
)

// Config carries the loop parameters.
type Config struct {
	LoopInterval time.Duration // live mode tick period
	MaxSteps     int           // backtest step cap, 0 = until StopWhen
}

// Summary aggregates one finished backtest run.
type Summary struct {
	Steps       int
	Trades      int
	StartEquity float64
	FinalEquity float64
	Realized    float64
	Fees        float64
	ReturnPct   float64
}

func (s Summary) String() string {
	return fmt.Sprintf("steps=%d trades=%d equity %.2f -> %.2f (%.2f%%) realized=%.2f fees=%.2f",
		s.Steps, s.Trades, s.StartEquity, s.FinalEquity, s.ReturnPct, s.Realized, s.Fees)
}

// Engine owns one venue, one strategy and the risk gates. All state
// mutation happens on the tick goroutine; nothing here is safe for
// concurrent use.
type Engine struct {
	cfg      Config
	venue    *venue.Paper
	strat    strategy.Strategy
	riskMgr  *risk.Manager
	policy   *risk.IntervalPolicy
	sink     sink.Sink
	notifier notify.TextNotifier
	shadow   *live.Client // nil unless shadow mirroring is enabled

	// stopWhen ends a backtest early, e.g. when a replay source runs dry.
	stopWhen func() bool

	trades int
	fees   float64
	nowFn  func() time.Time

	statusMu sync.RWMutex
	status   Status
}

// Status is the read-only snapshot published after every tick for the
// HTTP layer. All other engine state stays on the tick goroutine.
type Status struct {
	Time        time.Time          `json:"ts"`
	Equity      float64            `json:"equity"`
	Cash        float64            `json:"cash"`
	Realized    float64            `json:"realized"`
	Unrealized  float64            `json:"unrealized"`
	StartEquity float64            `json:"start_equity"`
	Trades      int                `json:"trades"`
	Prices      map[string]float64 `json:"prices"`
	Positions   []ledger.Position  `json:"positions"`
}

func New(cfg Config, v *venue.Paper, strat strategy.Strategy, riskMgr *risk.Manager, policy *risk.IntervalPolicy, s sink.Sink, notifier notify.TextNotifier) *Engine {
	if cfg.LoopInterval <= 0 {
		cfg.LoopInterval = 2 * time.Second
	}
	if s == nil {
		s = sink.NewMulti()
	}
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Engine{
		cfg:      cfg,
		venue:    v,
		strat:    strat,
		riskMgr:  riskMgr,
		policy:   policy,
		sink:     s,
		notifier: notifier,
		nowFn:    time.Now,
	}
}

// SetShadow enables best-effort mirroring of fills to a real venue.
func (e *Engine) SetShadow(c *live.Client) { e.shadow = c }

// SetStopWhen installs an early-exit predicate checked before every
// backtest step.
func (e *Engine) SetStopWhen(fn func() bool) { e.stopWhen = fn }

// SetClock overrides the equity sample timestamp source, for tests.
func (e *Engine) SetClock(now func() time.Time) { e.nowFn = now }

// Tick advances the market one step and runs the full pipeline once:
// refresh quotes, sample equity, auto-close checks, then strategy signals
// gated by the interval policy and the risk manager.
func (e *Engine) Tick(ctx context.Context) {
	e.venue.Step(ctx)
	prices := e.venue.Prices()
	book := e.venue.Ledger()

	if err := e.sink.LogEquity(sink.EquitySample{
		Timestamp:  e.nowFn(),
		Equity:     book.Equity(prices),
		Cash:       book.Cash(),
		Realized:   book.RealizedPnL(),
		Unrealized: book.UnrealizedTotal(prices),
	}); err != nil {
		logger.Warnf("equity sample write failed: %v", err)
	}

	// A forced close preempts the strategy for this tick and skips the
	// interval and exposure gates: reducing risk must never be blocked.
	if forced := e.riskMgr.CheckAutoClose(prices); forced != nil {
		e.execute(ctx, *forced)
		e.publishStatus(prices)
		return
	}

	for _, od := range e.strat.OnTick(prices, e.venue, e.riskMgr) {
		if !e.policy.AllowSignal(od, book, prices) {
			continue
		}
		if !e.riskMgr.CanTrade(prices, od.Notional) {
			continue
		}
		e.execute(ctx, od)
	}
	e.publishStatus(prices)
}

func (e *Engine) publishStatus(prices map[string]float64) {
	book := e.venue.Ledger()
	st := Status{
		Time:        e.nowFn(),
		Equity:      book.Equity(prices),
		Cash:        book.Cash(),
		Realized:    book.RealizedPnL(),
		Unrealized:  book.UnrealizedTotal(prices),
		StartEquity: e.riskMgr.StartEquity(),
		Trades:      e.trades,
		Prices:      prices,
		Positions:   book.Positions(),
	}
	e.statusMu.Lock()
	e.status = st
	e.statusMu.Unlock()
}

// Status returns the snapshot published by the most recent tick.
func (e *Engine) Status() Status {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.status
}

func (e *Engine) execute(ctx context.Context, od order.Order) {
	rec, err := e.venue.PlaceOrder(od.Symbol, od.Side, od.Notional)
	if err != nil {
		logger.Warnf("order rejected %s %s %.2f: %v", od.Side, od.Symbol, od.Notional, err)
		return
	}
	rec.Reason = od.Reason
	e.trades++
	e.fees += rec.Fee
	e.policy.RecordFill(od.Symbol)

	if err := e.sink.LogTrade(rec); err != nil {
		logger.Warnf("trade write failed: %v", err)
	}
	logger.Infof("fill %s %s %.2f USD @ %.4f (slip %.1f bps, fee %.4f) equity=%.2f reason=%s",
		rec.Side, rec.Symbol, rec.Notional, rec.Price, rec.SlippageBps, rec.Fee, rec.Equity, rec.Reason)

	e.mirror(ctx, od)
	e.notifyFill(rec)
}

// mirror forwards the fill to the live venue. Failures never touch the
// paper books.
func (e *Engine) mirror(ctx context.Context, od order.Order) {
	if e.shadow == nil {
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := e.shadow.PlaceOrder(callCtx, od.Symbol, string(od.Side), od.Notional, od.Limit, ""); err != nil {
		logger.Warnf("shadow order failed %s %s: %v", od.Side, od.Symbol, err)
	}
}

func (e *Engine) notifyFill(rec venue.FillRecord) {
	msg := fmt.Sprintf("*%s* %s %.2f USD @ %.4f\nequity %.2f, realized %.2f",
		rec.Side, rec.Symbol, rec.Notional, rec.Price, rec.Equity, rec.RealizedTotal)
	if rec.Reason != "" {
		msg += "\nreason: " + rec.Reason
	}
	if err := e.notifier.SendText(msg); err != nil {
		logger.Debugf("notify failed: %v", err)
	}
}

// RunBacktest drives the loop without sleeping until MaxSteps ticks ran or
// the stop predicate fires.
func (e *Engine) RunBacktest(ctx context.Context) (Summary, error) {
	start := e.riskMgr.StartEquity()
	steps := 0
	for {
		if ctx.Err() != nil {
			break
		}
		if e.cfg.MaxSteps > 0 && steps >= e.cfg.MaxSteps {
			break
		}
		if e.stopWhen != nil && e.stopWhen() {
			break
		}
		e.Tick(ctx)
		steps++
	}

	prices := e.venue.Prices()
	book := e.venue.Ledger()
	sum := Summary{
		Steps:       steps,
		Trades:      e.trades,
		StartEquity: start,
		FinalEquity: book.Equity(prices),
		Realized:    book.RealizedPnL(),
		Fees:        e.fees,
	}
	if start > 0 {
		sum.ReturnPct = (sum.FinalEquity - start) / start * 100
	}
	logger.Infof("backtest finished: %s", sum)
	if err := e.notifier.SendText("backtest finished\n" + sum.String()); err != nil {
		logger.Debugf("notify failed: %v", err)
	}
	return sum, ctx.Err()
}

// RunLive ticks on a fixed interval until the context is cancelled. The
// tick in progress always completes before the loop returns.
func (e *Engine) RunLive(ctx context.Context) error {
	logger.Infof("live loop started, interval %s", e.cfg.LoopInterval)
	ticker := time.NewTicker(e.cfg.LoopInterval)
	defer ticker.Stop()

	e.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Infof("live loop stopping: %v", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

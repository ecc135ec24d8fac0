package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"momentum-backtest/internal/config"
	"momentum-backtest/internal/model"
	"momentum-backtest/internal/strategy"
)

// ErrNoTradingDays is returned when the benchmark has no bars in the
// requested window.
var ErrNoTradingDays = errors.New("no trading days in range")

// pendingEntry is a signal found at today's close, filled at the next open.
type pendingEntry struct {
	Ticker string
	Sector string
	ATR    float64
	Close  float64
}

// Engine simulates the strategy one trading day at a time.
// An Engine may be reused; Run starts from a fresh Portfolio each time.
type Engine struct {
	universe  model.Universe
	benchmark *model.Series
	sectors   model.SectorMap
	cfg       config.Config
	log       *zap.Logger

	frames  map[string]*strategy.Frame
	pending []pendingEntry
	recent  map[string]time.Time
}

func New(universe model.Universe, benchmark *model.Series, sectors model.SectorMap, cfg config.Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sectors == nil {
		sectors = model.SectorMap{}
	}
	return &Engine{
		universe:  universe,
		benchmark: benchmark,
		sectors:   sectors,
		cfg:       cfg.WithOverrides(nil),
		log:       logger.Named("engine"),
	}
}

// Config returns the configuration the engine runs with.
func (e *Engine) Config() config.Config { return e.cfg.WithOverrides(nil) }

// Run simulates every benchmark trading day in [start, end].
func (e *Engine) Run(ctx context.Context, start, end time.Time) (*Result, error) {
	if e.benchmark.Len() == 0 {
		return nil, errors.New("benchmark series is empty")
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	days := e.benchmark.DatesBetween(start, end)
	if len(days) == 0 {
		return nil, fmt.Errorf("%w: %s to %s", ErrNoTradingDays, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	if err := e.precompute(ctx); err != nil {
		return nil, err
	}
	regime := strategy.ComputeRegime(e.benchmark, e.cfg.RegimeSMALong, e.cfg.RegimeSMAShort)

	e.pending = nil
	e.recent = make(map[string]time.Time)
	pf := NewPortfolio(e.cfg.InitialCapital, Costs{SlippagePct: e.cfg.SlippagePct, Commission: e.cfg.CommissionPerTrade})

	e.log.Info("backtest started",
		zap.Time("start", days[0]),
		zap.Time("end", days[len(days)-1]),
		zap.Int("days", len(days)),
		zap.Int("tickers", len(e.universe)),
	)

	for _, date := range days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.step(date, regime, pf)
	}

	res := &Result{
		Start:          days[0],
		End:            days[len(days)-1],
		InitialCapital: e.cfg.InitialCapital,
		EquityCurve:    pf.Snapshots(),
		Trades:         pf.Trades(),
		Regime:         regime.Between(start, end),
		OpenPositions:  pf.Positions(),
	}
	e.log.Info("backtest finished",
		zap.Int("trades", len(res.Trades)),
		zap.Int("open_positions", len(res.OpenPositions)),
		zap.Float64("final_value", res.FinalValue()),
	)
	return res, nil
}

// step runs one day: fill yesterday's signals, manage exits, then scan for
// new signals when the regime allows, and finally snapshot.
func (e *Engine) step(date time.Time, regime *strategy.Regime, pf *Portfolio) {
	e.executePending(date, pf)
	e.manageExits(date, pf)

	bullish := regime.Bullish(date)
	if bullish {
		e.scan(date, pf)
	}

	pf.Snapshot(date, func(ticker string) (float64, bool) {
		b, ok := e.universe[ticker].BarOn(date)
		return b.Close, ok
	}, bullish)
}

func (e *Engine) executePending(date time.Time, pf *Portfolio) {
	queued := e.pending
	e.pending = nil

	for _, p := range queued {
		if pf.HasPosition(p.Ticker) {
			continue
		}
		if !strategy.CanOpenPosition(pf.Positions(), p.Sector, e.cfg) {
			continue
		}
		bar, ok := e.universe[p.Ticker].BarOn(date)
		if !ok {
			continue
		}
		setup, ok := strategy.CalculateTradeSetup(bar.Open, p.ATR, pf.AccountValue(), e.cfg)
		if !ok {
			continue
		}
		if !pf.Open(setup, p.Ticker, p.Sector, date) {
			continue
		}
		e.recent[p.Ticker] = date
		e.log.Debug("ENTRY",
			zap.String("ticker", p.Ticker),
			zap.Float64("open", bar.Open),
			zap.Float64("stop", setup.StopLoss),
			zap.Int("shares", setup.Shares),
		)
	}
}

func (e *Engine) manageExits(date time.Time, pf *Portfolio) {
	exitParams := strategy.ExitParamsFrom(e.cfg)
	for _, pos := range pf.Positions() {
		bar, ok := e.universe[pos.Ticker].BarOn(date)
		if !ok {
			continue
		}
		rsi := math.NaN()
		if r, ok := e.frames[pos.Ticker].At(date); ok {
			rsi = r.RSI
		}
		sig, ok := strategy.CheckExit(pos, bar, rsi, date, exitParams)
		if !ok {
			continue
		}
		if _, ok := pf.Close(pos.Ticker, sig, date); ok {
			e.log.Debug("EXIT",
				zap.String("ticker", pos.Ticker),
				zap.Float64("price", sig.Price),
				zap.String("reason", string(sig.Reason)),
			)
		}
	}
}

func (e *Engine) scan(date time.Time, pf *Portfolio) {
	watchlist := strategy.BuildWatchlist(e.universe, e.benchmark, date, e.sectors, e.cfg)
	if len(watchlist) == 0 {
		return
	}

	listed := make(map[string]bool, len(watchlist))
	tickers := make([]string, 0, len(watchlist)+len(e.cfg.SupplementalTickers))
	for _, w := range watchlist {
		listed[w.Ticker] = true
		tickers = append(tickers, w.Ticker)
	}
	for _, t := range e.cfg.SupplementalTickers {
		if _, ok := e.universe[t]; ok && !listed[t] {
			listed[t] = true
			tickers = append(tickers, t)
		}
	}

	entryParams := strategy.EntryParamsFrom(e.cfg)
	for _, ticker := range tickers {
		if pf.HasPosition(ticker) {
			continue
		}
		sector := e.sectors.Sector(ticker)
		if !strategy.CanOpenPosition(pf.Positions(), sector, e.cfg) {
			continue
		}
		// Cooldown runs from the last entry fill; exits do not restart it.
		if last, ok := e.recent[ticker]; ok && model.BusinessDaysBetween(last, date) < e.cfg.ReentryCooldownDays {
			continue
		}
		frame, ok := e.frames[ticker]
		if !ok || !strategy.CheckEntry(frame, date, entryParams) {
			continue
		}
		row, _ := frame.At(date)
		atr, ok := e.atrAt(frame, date)
		if !ok {
			continue
		}
		e.pending = append(e.pending, pendingEntry{Ticker: ticker, Sector: sector, ATR: atr, Close: row.Close})
		e.log.Debug("SIGNAL",
			zap.String("ticker", ticker),
			zap.Time("date", date),
			zap.Float64("rsi", row.RSI),
			zap.Float64("atr", atr),
		)

		if len(pf.Positions())+len(e.pending) >= e.cfg.MaxPositions {
			break
		}
	}
}

// atrAt reads the precomputed ATR, which needs ATRPeriod+1 bars of history.
func (e *Engine) atrAt(f *strategy.Frame, date time.Time) (float64, bool) {
	if f.Series.CountThrough(date) < e.cfg.ATRPeriod+1 {
		return 0, false
	}
	r, ok := f.At(date)
	if !ok || math.IsNaN(r.ATR) {
		return 0, false
	}
	return r.ATR, true
}

// precompute builds every ticker's indicator frame in parallel before the
// sequential day loop.
func (e *Engine) precompute(ctx context.Context) error {
	tickers := e.universe.SortedTickers()
	frames := make([]*strategy.Frame, len(tickers))
	params := strategy.FrameParamsFrom(e.cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, t := range tickers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			frames[i] = strategy.ComputeFrame(e.universe[t], params)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("precompute indicators: %w", err)
	}

	e.frames = make(map[string]*strategy.Frame, len(tickers))
	for i, t := range tickers {
		e.frames[t] = frames[i]
	}
	return nil
}

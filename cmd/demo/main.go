package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"momentum-backtest/internal/analysis"
	"momentum-backtest/internal/backtest"
	"momentum-backtest/internal/config"
	"momentum-backtest/internal/data"
	"momentum-backtest/internal/logging"
	"momentum-backtest/internal/model"
)

// Demo:
// - Generate a synthetic benchmark and universe of random-walk stocks
// - Run the engine over the last year with the default configuration
// - Print the trades and the headline metrics
func main() {
	seed := flag.Uint64("seed", 42, "Random seed")
	nTickers := flag.Int("tickers", 30, "Number of synthetic stocks")
	days := flag.Int("days", 600, "Trading days of history")
	cfgPath := flag.String("config", "", "Path to YAML config (optional)")
	outCSV := flag.String("out", "", "Optional path to write the trade log CSV")
	cacheDir := flag.String("write-cache", "", "Optional: also save the synthetic data as an Arrow cache")
	verbose := flag.Bool("v", false, "Log every signal, entry and exit")
	flag.Parse()

	if *days < 300 {
		fmt.Fprintln(os.Stderr, "--days must be at least 300 (200-day warmup plus a year of trading)")
		os.Exit(2)
	}

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			panic(err)
		}
		cfg = *loaded
	}
	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger, err := logging.New(level)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	dates := businessDays(time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC), *days)
	bench := randomWalk(rng, cfg.RegimeIndex, dates, 400, 0.0005, 0.009)

	sectorNames := []string{"Information Technology", "Health Care", "Financials", "Industrials", "Energy", "Consumer Staples"}
	universe := model.Universe{}
	sectors := model.SectorMap{}
	for i := 0; i < *nTickers; i++ {
		t := fmt.Sprintf("SYN%02d", i+1)
		drift := 0.0002 + 0.0010*rng.Float64()
		vol := 0.012 + 0.015*rng.Float64()
		universe[t] = randomWalk(rng, t, dates, 20+180*rng.Float64(), drift, vol)
		sectors[t] = sectorNames[i%len(sectorNames)]
	}

	if *cacheDir != "" {
		cache := data.NewArrowCache(*cacheDir, cfg.RegimeIndex)
		for _, s := range append([]*model.Series{bench}, seriesOf(universe)...) {
			if err := cache.Save(s); err != nil {
				panic(err)
			}
		}
		if err := data.SaveSectors(sectors, filepath.Join(*cacheDir, "sectors.json")); err != nil {
			panic(err)
		}
		fmt.Printf("Saved %d series to %s\n", len(universe)+1, *cacheDir)
	}

	start := dates[len(dates)-252]
	end := dates[len(dates)-1]
	engine := backtest.New(universe, bench, sectors, cfg, logger)
	res, err := engine.Run(context.Background(), start, end)
	if err != nil {
		panic(err)
	}

	fmt.Printf("Simulated %s to %s over %d synthetic stocks\n\n", start.Format("2006-01-02"), end.Format("2006-01-02"), len(universe))
	fmt.Printf("%-6s %-10s %-10s %8s %8s %6s %-9s %10s\n", "ticker", "entry", "exit", "in", "out", "shares", "reason", "pnl")
	for _, tr := range res.Trades {
		fmt.Printf("%-6s %-10s %-10s %8.2f %8.2f %6d %-9s %10.2f\n",
			tr.Ticker,
			tr.EntryDate.Format("2006-01-02"),
			tr.ExitDate.Format("2006-01-02"),
			tr.EntryPrice,
			tr.ExitPrice,
			tr.Shares,
			tr.ExitReason,
			tr.PnL(),
		)
	}

	m := analysis.Compute(res.EquityCurve, res.Trades, cfg.InitialCapital, bench)
	fmt.Printf("\ntrades=%d win_rate=%.0f%% total_return=%.2f%% sharpe=%.2f max_dd=%.2f%% final=$%.2f\n",
		m.NumTrades, m.WinRatePct, m.TotalReturnPct, m.SharpeRatio, m.MaxDrawdownPct, m.FinalValue)
	if len(res.OpenPositions) > 0 {
		fmt.Printf("open positions at end: %d\n", len(res.OpenPositions))
	}

	if *outCSV != "" {
		if err := backtest.WriteTradesCSV(*outCSV, res.Trades); err != nil {
			fmt.Fprintln(os.Stderr, "write csv:", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %d trades to %s\n", len(res.Trades), *outCSV)
	}
}

func businessDays(start time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	for d := start; len(out) < n; d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			out = append(out, d)
		}
	}
	return out
}

// randomWalk is a geometric random walk with a daily drift and volatility.
func randomWalk(rng *rand.Rand, ticker string, dates []time.Time, start, drift, vol float64) *model.Series {
	bars := make([]model.Bar, len(dates))
	prev := start
	for i, d := range dates {
		open := prev * (1 + 0.3*vol*rng.NormFloat64())
		closePx := prev * math.Exp(drift+vol*rng.NormFloat64())
		spread := math.Abs(vol * rng.NormFloat64() * closePx)
		bars[i] = model.Bar{
			Date:   d,
			Open:   open,
			High:   math.Max(open, closePx) + spread,
			Low:    math.Max(0.01, math.Min(open, closePx)-spread),
			Close:  closePx,
			Volume: 600_000 + 4_000_000*rng.Float64(),
		}
		prev = closePx
	}
	return model.MustSeries(ticker, bars)
}

func seriesOf(u model.Universe) []*model.Series {
	out := make([]*model.Series, 0, len(u))
	for _, t := range u.SortedTickers() {
		out = append(out, u[t])
	}
	return out
}

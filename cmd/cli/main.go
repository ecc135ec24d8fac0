package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"momentum-backtest/internal/analysis"
	"momentum-backtest/internal/backtest"
	"momentum-backtest/internal/config"
	"momentum-backtest/internal/data"
	"momentum-backtest/internal/logging"
	"momentum-backtest/internal/model"
	"momentum-backtest/internal/strategy"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch os.Args[1] {
	case "backtest":
		err = cmdBacktest(ctx, os.Args[2:])
	case "watchlist":
		err = cmdWatchlist(ctx, os.Args[2:])
	case "import":
		err = cmdImport(ctx, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("usage:")
	fmt.Println("  cli backtest  [--config strategy.yaml] [--start 2021-01-01] [--end 2025-12-31] [--rsi-threshold 10] [--out results]")
	fmt.Println("  cli watchlist [--config strategy.yaml] [--date 2025-06-30] [--limit 25]")
	fmt.Println("  cli import    --file aapl.csv --ticker AAPL [--cache-dir data/cache] [--clickhouse]")
	fmt.Println("")
	fmt.Println("notes:")
	fmt.Println("  - data comes from --source arrow|api|clickhouse (env DATA_SOURCE); arrow reads --cache-dir")
	fmt.Println("  - backtest writes equity.csv and trades.csv to --out and prints metrics and acceptance checks")
}

// common holds the flags every data-reading subcommand shares.
type common struct {
	cfgPath  string
	source   string
	cacheDir string
	sectors  string
	tickers  string
	logLevel string
}

func (c *common) register(flags *flag.FlagSet) {
	flags.StringVar(&c.cfgPath, "config", "", "Path to YAML strategy config (default: built-in defaults)")
	flags.StringVar(&c.source, "source", "", "Data source: arrow, api or clickhouse")
	flags.StringVar(&c.cacheDir, "cache-dir", "", "Arrow cache directory (default: config cache_dir)")
	flags.StringVar(&c.sectors, "sectors", "", "Sector map CSV or JSON (default: config sectors_file or $SECTORS_FILE)")
	flags.StringVar(&c.tickers, "tickers", "", "Comma-separated tickers to load (default: every ticker the source lists)")
	flags.StringVar(&c.logLevel, "log-level", envOr("LOG_LEVEL", "info"), "debug, info, warn or error")
}

type env struct {
	cfg      config.Config
	log      *zap.Logger
	universe model.Universe
	bench    *model.Series
	sectors  model.SectorMap
}

func (c *common) load(ctx context.Context, override func(*config.Config)) (*env, error) {
	logger, err := logging.New(c.logLevel)
	if err != nil {
		return nil, err
	}

	cfg := config.Default()
	if c.cfgPath != "" {
		loaded, err := config.Load(c.cfgPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = *loaded
	}
	cfg = cfg.WithOverrides(override)
	if c.cacheDir != "" {
		cfg.CacheDir = c.cacheDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := data.SourceOptionsFromEnv(data.SourceOptions{
		Kind:      data.SourceArrow,
		Benchmark: cfg.RegimeIndex,
		CacheDir:  cfg.CacheDir,
	})
	if c.source != "" {
		opts.Kind = c.source
	}
	if c.cacheDir != "" {
		opts.CacheDir = c.cacheDir
	}
	provider, closeFn, err := data.Open(ctx, opts, logger)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	bench, err := provider.Benchmark(ctx)
	if err != nil {
		return nil, fmt.Errorf("benchmark %s: %w", cfg.RegimeIndex, err)
	}
	tickers := splitList(c.tickers)
	if len(tickers) == 0 {
		if tickers, err = provider.Tickers(ctx); err != nil {
			return nil, err
		}
	}
	universe, err := data.LoadUniverse(ctx, provider, tickers, logger)
	if err != nil {
		return nil, err
	}

	sectors, err := loadSectors(c.sectors, cfg.SectorsFile, logger)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: logger, universe: universe, bench: bench, sectors: sectors}, nil
}

func cmdBacktest(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("backtest", flag.ExitOnError)
	var c common
	c.register(flags)
	start := flags.String("start", "", "Start date YYYY-MM-DD (default: config backtest_start)")
	end := flags.String("end", "", "End date YYYY-MM-DD (default: config backtest_end)")
	rsi := flags.Float64("rsi-threshold", -1, "Override rsi_entry_threshold")
	outDir := flags.String("out", "results", "Directory for equity.csv and trades.csv")
	_ = flags.Parse(args)

	e, err := c.load(ctx, func(cfg *config.Config) {
		if *rsi >= 0 {
			cfg.RSIEntryThreshold = *rsi
		}
		if *start != "" {
			cfg.BacktestStart = *start
		}
		if *end != "" {
			cfg.BacktestEnd = *end
		}
	})
	if err != nil {
		return err
	}
	defer e.log.Sync()
	cfg := e.cfg
	from, to, err := cfg.Period()
	if err != nil {
		return err
	}

	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("  RSI(2) Mean Reversion System: Full Backtest")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("  Period: %s to %s\n", cfg.BacktestStart, cfg.BacktestEnd)
	fmt.Printf("  Initial Capital: $%s\n", money(cfg.InitialCapital))
	fmt.Printf("  Max Positions: %d\n", cfg.MaxPositions)
	fmt.Printf("  RSI Entry Threshold: %g\n", cfg.RSIEntryThreshold)
	fmt.Printf("  RSI Exit Threshold: %g\n", cfg.RSIExitThreshold)
	fmt.Printf("  Stop ATR Multiple: %g\n", cfg.StopATRMultiple)
	fmt.Printf("  Time Stop Days: %d\n", cfg.TimeStopDays)
	fmt.Printf("  %s: %d trading days\n", cfg.RegimeIndex, e.bench.Len())
	fmt.Printf("  Universe: %d stocks\n\n", len(e.universe))

	t0 := time.Now()
	engine := backtest.New(e.universe, e.bench, e.sectors, cfg, e.log)
	res, err := engine.Run(ctx, from, to)
	if err != nil {
		return err
	}
	fmt.Printf("  Completed in %.1fs\n", time.Since(t0).Seconds())

	m := analysis.Compute(res.EquityCurve, res.Trades, cfg.InitialCapital, e.bench)
	printSummary(cfg, m)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}
	equityPath := filepath.Join(*outDir, "equity.csv")
	tradesPath := filepath.Join(*outDir, "trades.csv")
	if err := backtest.WriteEquityCSV(equityPath, res.EquityCurve); err != nil {
		return err
	}
	if err := backtest.WriteTradesCSV(tradesPath, res.Trades); err != nil {
		return err
	}
	fmt.Printf("\n  Wrote %d rows to %s\n", len(res.EquityCurve), equityPath)
	fmt.Printf("  Wrote %d rows to %s\n", len(res.Trades), tradesPath)
	return nil
}

func printSummary(cfg config.Config, m analysis.Metrics) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("  RESULTS SUMMARY")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("  Total Return:      %.2f%%\n", m.TotalReturnPct)
	fmt.Printf("  Annualized Return: %.2f%%\n", m.AnnualizedReturnPct)
	fmt.Printf("  Sharpe Ratio:      %.2f\n", m.SharpeRatio)
	fmt.Printf("  Sortino Ratio:     %.2f\n", m.SortinoRatio)
	fmt.Printf("  Profit Factor:     %.2f\n", m.ProfitFactor)
	fmt.Printf("  Max Drawdown:      %.2f%%\n", m.MaxDrawdownPct)
	fmt.Printf("  Win Rate:          %.0f%%\n", m.WinRatePct)
	fmt.Printf("  Total Trades:      %d\n", m.NumTrades)
	fmt.Printf("  Avg Holding Days:  %.1f\n", m.AvgHoldingDays)
	fmt.Printf("  Exposure Time:     %.1f%%\n", m.ExposurePct)
	fmt.Printf("  Final Value:       $%s\n", money(m.FinalValue))
	if m.BenchmarkReturnPct != nil {
		fmt.Printf("  %s Return:        %.2f%%\n", cfg.RegimeIndex, *m.BenchmarkReturnPct)
	}
	for _, reason := range []model.ExitReason{model.ExitStopLoss, model.ExitRSI, model.ExitTimeStop} {
		fmt.Printf("  Exits %-11s %d\n", string(reason)+":", m.ExitReasons[reason])
	}
	if m.AvgWinPct > 0 {
		fmt.Printf("  Avg Win Trade:     %.2f%%\n", m.AvgWinPct)
	}

	fmt.Println()
	fmt.Println("  ACCEPTANCE CRITERIA (In-Sample)")
	checks := analysis.Acceptance(m)
	for _, c := range checks {
		status := "FAIL"
		if c.Passed {
			status = "PASS"
		}
		fmt.Printf("    %s: %s\n", c.Label, status)
	}
	overall := "SOME FAILED"
	if analysis.AllPassed(checks) {
		overall = "ALL PASS"
	}
	fmt.Printf("\n  Overall: %s\n", overall)
}

func cmdWatchlist(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("watchlist", flag.ExitOnError)
	var c common
	c.register(flags)
	dateStr := flags.String("date", "", "Scan date YYYY-MM-DD (default: last benchmark date)")
	limit := flags.Int("limit", 0, "Show only the top N names (default: watchlist_size)")
	_ = flags.Parse(args)

	e, err := c.load(ctx, nil)
	if err != nil {
		return err
	}
	defer e.log.Sync()
	if e.bench.Len() == 0 {
		return errors.New("benchmark has no bars")
	}

	date := e.bench.At(e.bench.Len() - 1).Date
	if *dateStr != "" {
		if date, err = time.Parse("2006-01-02", *dateStr); err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
	}

	scan := strategy.ScanDay(e.universe, e.bench, date, e.sectors, e.cfg, *limit)
	regime := "BEARISH"
	if scan.Bullish {
		regime = "BULLISH"
	}
	fmt.Printf("%s  regime=%s  eligible=%d/%d\n\n", scan.Date.Format("2006-01-02"), regime, scan.Eligible, len(e.universe))
	fmt.Printf("%-4s %-8s %-24s %10s\n", "rank", "ticker", "sector", "rs_score")
	for _, w := range scan.Watchlist {
		fmt.Printf("%-4d %-8s %-24s %10.4f\n", w.Rank, w.Ticker, w.Sector, w.Score)
	}

	fmt.Printf("\nsignals: %d\n", len(scan.Signals))
	if len(scan.Signals) == 0 {
		return nil
	}
	fmt.Printf("%-8s %8s %10s %10s %10s %8s\n", "ticker", "rsi", "close", "stop", "atr", "shares")
	for _, s := range scan.Signals {
		fmt.Printf("%-8s %8.2f %10.2f %10.2f %10.2f %8d\n", s.Ticker, s.RSI, s.Close, s.Setup.StopLoss, s.Setup.ATR, s.Setup.Shares)
	}
	return nil
}

func cmdImport(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("import", flag.ExitOnError)
	file := flags.String("file", "", "CSV file with date,open,high,low,close,volume columns")
	ticker := flags.String("ticker", "", "Ticker symbol (default: file name without extension)")
	cacheDir := flags.String("cache-dir", config.Default().CacheDir, "Arrow cache directory")
	toClickHouse := flags.Bool("clickhouse", false, "Also write the bars to ClickHouse (CLICKHOUSE_* env)")
	_ = flags.Parse(args)

	if *file == "" {
		fmt.Println("--file is required")
		os.Exit(2)
	}
	if *ticker == "" {
		*ticker = strings.TrimSuffix(filepath.Base(*file), filepath.Ext(*file))
	}

	series, err := data.ImportCSV(*file, *ticker)
	if err != nil {
		return err
	}
	cache := data.NewArrowCache(*cacheDir, config.Default().RegimeIndex)
	if err := cache.Save(series); err != nil {
		return err
	}
	fmt.Printf("Imported %d bars for %s into %s\n", series.Len(), series.Ticker, cache.Path(series.Ticker))

	if *toClickHouse {
		opts := data.SourceOptionsFromEnv(data.SourceOptions{ClickHouse: data.ClickHouseOptions{Addr: "localhost:9000"}})
		store, err := data.OpenClickHouse(ctx, opts.ClickHouse)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.EnsureTable(ctx); err != nil {
			return err
		}
		if err := store.Save(ctx, series); err != nil {
			return err
		}
		fmt.Printf("Wrote %d bars for %s to ClickHouse\n", series.Len(), series.Ticker)
	}
	return nil
}

func loadSectors(flagPath, cfgPath string, logger *zap.Logger) (model.SectorMap, error) {
	path := flagPath
	if path == "" {
		path = cfgPath
	}
	explicit := path != ""
	if path == "" {
		path = data.DefaultSectorsPath()
	}
	m, err := data.LoadSectors(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			logging.OrNop(logger).Warn("no sector map, every ticker is Unknown", zap.String("path", path))
			return model.SectorMap{}, nil
		}
		return nil, err
	}
	return m, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// money formats v with thousands separators and cents.
func money(v float64) string {
	return message.NewPrinter(language.English).Sprintf("%.2f", v)
}

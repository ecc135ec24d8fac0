package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"momentum-backtest/internal/config"
	"momentum-backtest/internal/data"
	"momentum-backtest/internal/logging"
	"momentum-backtest/internal/model"
)

// dataStart leaves room for the 200-day averages and the 126-day
// relative-strength lookback before the first backtest date.
const dataStart = "2020-01-01"

func main() {
	var (
		tickersFlag  = flag.String("tickers", "", "Comma-separated tickers (default: tickers in --sectors, else every ticker the API lists)")
		sectorsFile  = flag.String("sectors", "", "Sector map CSV or JSON whose tickers are downloaded")
		cacheDir     = flag.String("cache-dir", config.Default().CacheDir, "Arrow cache directory")
		benchmark    = flag.String("benchmark", config.Default().RegimeIndex, "Benchmark ticker")
		start        = flag.String("start", dataStart, "First date to fetch (YYYY-MM-DD)")
		end          = flag.String("end", "", "Last date to fetch (default: today)")
		force        = flag.Bool("force", false, "Re-download tickers that are already cached")
		workers      = flag.Int("workers", 4, "Concurrent downloads")
		toClickHouse = flag.Bool("clickhouse", false, "Also write every series to ClickHouse (CLICKHOUSE_* env)")
		logLevel     = flag.String("log-level", "info", "debug, info, warn or error")
	)
	flag.Parse()

	logger, err := logging.New(*logLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	apiKey := os.Getenv("BARS_API_KEY")
	if apiKey == "" {
		log.Fatal("BARS_API_KEY environment variable is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := data.NewBarsClient(apiKey, os.Getenv("BARS_API_URL"), *benchmark, logger)
	if client.Start, err = time.Parse("2006-01-02", *start); err != nil {
		log.Fatalf("invalid --start: %v", err)
	}
	if *end != "" {
		if client.End, err = time.Parse("2006-01-02", *end); err != nil {
			log.Fatalf("invalid --end: %v", err)
		}
	}

	tickers, err := resolveTickers(ctx, client, *tickersFlag, *sectorsFile)
	if err != nil {
		log.Fatalf("Failed to resolve tickers: %v", err)
	}

	cache := data.NewArrowCache(*cacheDir, *benchmark)
	var store *data.ClickHouseStore
	if *toClickHouse {
		opts := data.SourceOptionsFromEnv(data.SourceOptions{ClickHouse: data.ClickHouseOptions{Addr: "localhost:9000"}})
		opts.ClickHouse.Benchmark = *benchmark
		if store, err = data.OpenClickHouse(ctx, opts.ClickHouse); err != nil {
			log.Fatalf("ClickHouse: %v", err)
		}
		defer store.Close()
		if err := store.EnsureTable(ctx); err != nil {
			log.Fatalf("ClickHouse: %v", err)
		}
	}

	fmt.Printf("Downloading %s benchmark data...\n", *benchmark)
	bench, err := client.Benchmark(ctx)
	if err != nil {
		log.Fatalf("Failed to download %s, aborting: %v", *benchmark, err)
	}
	if err := save(ctx, cache, store, bench); err != nil {
		log.Fatalf("Failed to save %s: %v", *benchmark, err)
	}
	fmt.Printf("  %s: %d trading days saved\n", *benchmark, bench.Len())

	fmt.Printf("\nDownloading %d tickers...\n", len(tickers))
	var (
		mu      sync.Mutex
		failed  []string
		skipped int
		saved   int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*workers)
	for _, t := range tickers {
		g.Go(func() error {
			if !*force && cache.Has(t) {
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}
			s, err := client.Bars(gctx, t)
			if err == nil {
				err = save(gctx, cache, store, s)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warn("download failed", zap.String("ticker", t), zap.Error(err))
				failed = append(failed, t)
				return nil
			}
			saved++
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		log.Fatalf("interrupted: %v", err)
	}

	fmt.Printf("\nDownload complete:\n")
	fmt.Printf("  Saved:   %d/%d\n", saved, len(tickers))
	fmt.Printf("  Cached:  %d/%d\n", skipped, len(tickers))
	fmt.Printf("  Failed:  %d/%d\n", len(failed), len(tickers))
	if len(failed) > 0 {
		sort.Strings(failed)
		path := filepath.Join(*cacheDir, "failed_tickers.txt")
		if err := os.WriteFile(path, []byte(strings.Join(failed, "\n")+"\n"), 0o644); err != nil {
			log.Fatalf("Failed to write %s: %v", path, err)
		}
		fmt.Printf("  Failed tickers saved to %s\n", path)
	}
}

func resolveTickers(ctx context.Context, client *data.BarsClient, list, sectorsFile string) ([]string, error) {
	var out []string
	switch {
	case list != "":
		for _, t := range strings.Split(list, ",") {
			if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
				out = append(out, t)
			}
		}
	case sectorsFile != "":
		m, err := data.LoadSectors(sectorsFile)
		if err != nil {
			return nil, err
		}
		for t := range m {
			out = append(out, t)
		}
	default:
		return client.Tickers(ctx)
	}
	sort.Strings(out)
	return out, nil
}

func save(ctx context.Context, cache *data.ArrowCache, store *data.ClickHouseStore, s *model.Series) error {
	if err := cache.Save(s); err != nil {
		return err
	}
	if store != nil {
		return store.Save(ctx, s)
	}
	return nil
}

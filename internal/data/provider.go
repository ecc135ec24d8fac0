package data

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"momentum-backtest/internal/model"
)

var (
	// ErrNotCached is returned by file-backed providers for tickers with no
	// cached history.
	ErrNotCached = errors.New("ticker not cached")
	// ErrUnknownTicker is returned when a remote source does not know the ticker.
	ErrUnknownTicker = errors.New("unknown ticker")
)

// Provider is the market data capability the backtest depends on.
type Provider interface {
	// Bars returns the full daily history of ticker.
	Bars(ctx context.Context, ticker string) (*model.Series, error)
	// Benchmark returns the regime/relative-strength index history.
	Benchmark(ctx context.Context) (*model.Series, error)
	// Tickers lists the instruments available, excluding the benchmark.
	Tickers(ctx context.Context) ([]string, error)
}

// LoadUniverse fetches every ticker concurrently. Tickers the provider has
// no data for are skipped; any other error aborts the load.
func LoadUniverse(ctx context.Context, p Provider, tickers []string, logger *zap.Logger) (model.Universe, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		mu      sync.Mutex
		u       = make(model.Universe, len(tickers))
		skipped int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, t := range tickers {
		g.Go(func() error {
			s, err := p.Bars(gctx, t)
			switch {
			case errors.Is(err, ErrNotCached), errors.Is(err, ErrUnknownTicker):
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			case err != nil:
				return fmt.Errorf("load %s: %w", t, err)
			}
			mu.Lock()
			u[t] = s
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.Info("universe loaded", zap.Int("loaded", len(u)), zap.Int("skipped", skipped))
	return u, nil
}

// LoadAll loads the benchmark and every listed ticker from p.
func LoadAll(ctx context.Context, p Provider, logger *zap.Logger) (model.Universe, *model.Series, error) {
	bench, err := p.Benchmark(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("benchmark: %w", err)
	}
	tickers, err := p.Tickers(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list tickers: %w", err)
	}
	u, err := LoadUniverse(ctx, p, tickers, logger)
	if err != nil {
		return nil, nil, err
	}
	return u, bench, nil
}

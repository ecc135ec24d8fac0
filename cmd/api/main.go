package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"momentum-backtest/internal/api"
	"momentum-backtest/internal/api/handlers"
	"momentum-backtest/internal/api/middleware"
	"momentum-backtest/internal/config"
	"momentum-backtest/internal/data"
	"momentum-backtest/internal/logging"
	"momentum-backtest/internal/model"
)

func main() {
	logger, err := logging.New(os.Getenv("LOG_LEVEL"))
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("api server stopped", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	port := os.Getenv("API_PORT")
	if port == "" {
		port = "8080"
	}

	cfg := config.Default()
	if path := os.Getenv("STRATEGY_CONFIG"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		cfg = *loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	market, err := loadMarket(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if os.Getenv("API_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	storeSize, _ := strconv.Atoi(os.Getenv("RESULT_STORE_SIZE"))
	router := api.NewRouter(api.Options{
		Market:    market,
		Config:    cfg,
		PresetDir: os.Getenv("PRESET_DIR"),
		StoreSize: storeSize,
		Logger:    logger,
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           middleware.CORS(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting API server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// loadMarket reads every instrument once at startup.
func loadMarket(ctx context.Context, cfg config.Config, logger *zap.Logger) (handlers.Market, error) {
	opts := data.SourceOptionsFromEnv(data.SourceOptions{
		Kind:      data.SourceArrow,
		Benchmark: cfg.RegimeIndex,
		CacheDir:  cfg.CacheDir,
	})
	provider, closeFn, err := data.Open(ctx, opts, logger)
	if err != nil {
		return handlers.Market{}, err
	}
	defer closeFn()

	universe, bench, err := data.LoadAll(ctx, provider, logger)
	if err != nil {
		return handlers.Market{}, err
	}

	sectorsPath := cfg.SectorsFile
	if sectorsPath == "" {
		sectorsPath = data.DefaultSectorsPath()
	}
	sectors, err := data.LoadSectors(sectorsPath)
	if err != nil {
		logger.Warn("sector map unavailable, every ticker is Unknown", zap.String("path", sectorsPath), zap.Error(err))
		sectors = model.SectorMap{}
	}

	logger.Info("market loaded",
		zap.String("source", opts.Kind),
		zap.Int("tickers", len(universe)),
		zap.Int("benchmark_bars", bench.Len()),
		zap.Int("sectors", len(sectors)),
	)
	return handlers.Market{Universe: universe, Benchmark: bench, Sectors: sectors}, nil
}

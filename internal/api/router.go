// Package api wires the HTTP handlers into a gin router.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"momentum-backtest/internal/api/handlers"
	"momentum-backtest/internal/api/middleware"
	"momentum-backtest/internal/config"
)

// Options configures NewRouter.
type Options struct {
	Market    handlers.Market
	Config    config.Config
	PresetDir string
	// StoreSize is how many completed runs are kept for retrieval.
	StoreSize int
	Logger    *zap.Logger
}

// NewRouter builds the API router. CORS is applied by the caller around
// the returned handler.
func NewRouter(opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(middleware.Logger(logger.Named("http")))
	router.Use(middleware.ErrorHandler(logger))

	presets := handlers.NewPresetHandler(opts.PresetDir, logger)
	store := handlers.NewResultStore(opts.StoreSize)
	backtestHandler := handlers.NewBacktestHandler(opts.Market, opts.Config, presets, store, logger)
	marketHandler := handlers.NewMarketHandler(opts.Market, opts.Config)
	configHandler := handlers.NewConfigHandler(opts.Config)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"tickers":   len(opts.Market.Universe),
			"benchmark": opts.Market.Benchmark.Len(),
			"runs":      store.Len(),
		})
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/backtest", backtestHandler.RunBacktest)
		v1.POST("/backtest/compare", backtestHandler.CompareBacktests)
		v1.GET("/backtest/:id", backtestHandler.GetBacktest)
		v1.GET("/backtest/:id/trades", backtestHandler.GetTrades)
		v1.GET("/backtest/:id/equity", backtestHandler.GetEquity)

		v1.GET("/watchlist", marketHandler.Watchlist)
		v1.GET("/tickers", marketHandler.ListTickers)

		v1.GET("/config/defaults", configHandler.Defaults)
		v1.GET("/presets", presets.ListPresets)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "Not found"}})
	})
	return router
}

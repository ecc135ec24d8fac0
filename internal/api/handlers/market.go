package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"momentum-backtest/internal/api/models"
	"momentum-backtest/internal/config"
	"momentum-backtest/internal/model"
	"momentum-backtest/internal/strategy"
)

const dateLayout = "2006-01-02"

// Market is the data every handler runs against. It is loaded once at
// startup and read concurrently afterwards; nothing mutates it.
type Market struct {
	Universe  model.Universe
	Benchmark *model.Series
	Sectors   model.SectorMap
}

// MarketHandler serves the loaded instruments and the daily scan.
type MarketHandler struct {
	market Market
	cfg    config.Config
}

func NewMarketHandler(market Market, cfg config.Config) *MarketHandler {
	if market.Sectors == nil {
		market.Sectors = model.SectorMap{}
	}
	return &MarketHandler{market: market, cfg: cfg.WithOverrides(nil)}
}

// ListTickers handles GET /api/v1/tickers
func (h *MarketHandler) ListTickers(c *gin.Context) {
	tickers := h.market.Universe.SortedTickers()
	out := make([]models.TickerInfo, 0, len(tickers))
	for _, t := range tickers {
		s := h.market.Universe[t]
		info := models.TickerInfo{Ticker: t, Sector: h.market.Sectors.Sector(t), Bars: s.Len()}
		if s.Len() > 0 {
			info.FirstDate = s.At(0).Date.Format(dateLayout)
			info.LastDate = s.At(s.Len() - 1).Date.Format(dateLayout)
		}
		out = append(out, info)
	}
	c.JSON(http.StatusOK, models.TickersResponse{
		Benchmark: h.cfg.RegimeIndex,
		Count:     len(out),
		Tickers:   out,
	})
}

// Watchlist handles GET /api/v1/watchlist
//
// It runs the engine's pipeline for one day. Signals are sized against
// initial_capital as if the account were flat, and are empty when the
// regime is bearish.
func (h *MarketHandler) Watchlist(c *gin.Context) {
	var req models.WatchlistRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}
	bench := h.market.Benchmark
	if bench.Len() == 0 {
		abortWithError(c, http.StatusServiceUnavailable, "NO_BENCHMARK", "benchmark data is not loaded", nil)
		return
	}

	date := bench.At(bench.Len() - 1).Date
	if req.Date != "" {
		d, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "INVALID_DATE", "date must be in YYYY-MM-DD format", nil)
			return
		}
		date = d
	}

	scan := strategy.ScanDay(h.market.Universe, bench, date, h.market.Sectors, h.cfg, req.Limit)
	resp := models.WatchlistResponse{
		Date:          scan.Date.Format(dateLayout),
		RegimeBullish: scan.Bullish,
		Universe:      len(h.market.Universe),
		Eligible:      scan.Eligible,
		Watchlist:     scan.Watchlist,
		Signals:       make([]models.SignalInfo, 0, len(scan.Signals)),
	}
	for _, sig := range scan.Signals {
		resp.Signals = append(resp.Signals, models.SignalInfo{
			Ticker:   sig.Ticker,
			Sector:   sig.Sector,
			RSI:      sig.RSI,
			Close:    sig.Close,
			SMA5:     sig.SMAShort,
			SMA200:   sig.SMATrend,
			ATR:      sig.Setup.ATR,
			StopLoss: sig.Setup.StopLoss,
			Shares:   sig.Setup.Shares,
		})
	}
	c.JSON(http.StatusOK, resp)
}

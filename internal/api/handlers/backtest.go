package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"momentum-backtest/internal/analysis"
	"momentum-backtest/internal/api/models"
	"momentum-backtest/internal/backtest"
	"momentum-backtest/internal/config"
)

var errInvalidConfig = errors.New("invalid config")

// BacktestHandler handles backtest-related requests
type BacktestHandler struct {
	market  Market
	base    config.Config
	presets *PresetHandler
	store   *ResultStore
	log     *zap.Logger

	// compareLimit bounds concurrent engines in CompareBacktests.
	compareLimit int
}

func NewBacktestHandler(market Market, base config.Config, presets *PresetHandler, store *ResultStore, logger *zap.Logger) *BacktestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = NewResultStore(0)
	}
	return &BacktestHandler{
		market:       market,
		base:         base.WithOverrides(nil),
		presets:      presets,
		store:        store,
		log:          logger.Named("backtest"),
		compareLimit: 2,
	}
}

// RunBacktest handles POST /api/v1/backtest
func (h *BacktestHandler) RunBacktest(c *gin.Context) {
	var req models.BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}

	base, err := h.baseConfig(req.Preset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	cfg := buildConfig(base, req.Config, req.Overrides, req.Start, req.End)

	run, err := h.run(c.Request.Context(), cfg)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildResponse(run, req.Options))
}

// GetBacktest handles GET /api/v1/backtest/:id
func (h *BacktestHandler) GetBacktest(c *gin.Context) {
	run, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, buildResponse(run, models.BacktestOptions{}))
}

// GetTrades handles GET /api/v1/backtest/:id/trades
func (h *BacktestHandler) GetTrades(c *gin.Context) {
	run, ok := h.lookup(c)
	if !ok {
		return
	}
	rows := backtest.TradeRows(run.Result.Trades)
	c.JSON(http.StatusOK, models.TradesResponse{ID: run.ID, Count: len(rows), Trades: rows})
}

// GetEquity handles GET /api/v1/backtest/:id/equity
func (h *BacktestHandler) GetEquity(c *gin.Context) {
	run, ok := h.lookup(c)
	if !ok {
		return
	}
	rows := backtest.EquityRows(run.Result.EquityCurve)
	c.JSON(http.StatusOK, models.EquityResponse{ID: run.ID, Count: len(rows), Equity: rows, Regime: models.NewRegimeRows(run.Result.Regime)})
}

// CompareBacktests handles POST /api/v1/backtest/compare
//
// Variations run concurrently against the same market data and are
// returned best Sharpe first. A variation that fails is reported in
// "failed" and does not fail the request.
func (h *BacktestHandler) CompareBacktests(c *gin.Context) {
	var req models.CompareBacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}
	base, err := h.baseConfig(req.Preset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	base = buildConfig(base, req.BaseConfig, models.Overrides{}, req.Start, req.End)

	runs := make([]*StoredRun, len(req.Variations))
	errs := make([]error, len(req.Variations))

	g, ctx := errgroup.WithContext(c.Request.Context())
	g.SetLimit(h.compareLimit)
	for i, v := range req.Variations {
		cfg := buildConfig(base, v.Config, v.Overrides, "", "")
		g.Go(func() error {
			runs[i], errs[i] = h.run(ctx, cfg)
			return nil
		})
	}
	_ = g.Wait()
	if err := c.Request.Context().Err(); err != nil {
		h.writeError(c, err)
		return
	}

	resp := models.CompareBacktestResponse{Comparison: []models.ComparisonResult{}}
	labeled := make([]analysis.LabeledMetrics, 0, len(runs))
	names := make(map[string]string, len(runs))
	byID := make(map[string]*StoredRun, len(runs))
	for i, run := range runs {
		if errs[i] != nil {
			resp.Failed = append(resp.Failed, models.FailedVariation{Name: req.Variations[i].Name, Error: errs[i].Error()})
			continue
		}
		labeled = append(labeled, analysis.LabeledMetrics{Label: run.ID, Metrics: run.Metrics})
		names[run.ID] = req.Variations[i].Name
		byID[run.ID] = run
	}
	for i, lm := range analysis.RankBySharpe(labeled) {
		resp.Comparison = append(resp.Comparison, models.ComparisonResult{
			Rank:    i + 1,
			Name:    names[lm.Label],
			ID:      lm.Label,
			Summary: models.NewMetricsSummary(byID[lm.Label].Metrics),
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *BacktestHandler) run(ctx context.Context, cfg config.Config) (*StoredRun, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidConfig, err)
	}
	start, end, err := cfg.Period()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidConfig, err)
	}

	engine := backtest.New(h.market.Universe, h.market.Benchmark, h.market.Sectors, cfg, h.log)
	res, err := engine.Run(ctx, start, end)
	if err != nil {
		return nil, err
	}
	m := analysis.Compute(res.EquityCurve, res.Trades, res.InitialCapital, h.market.Benchmark)
	run := h.store.Put(cfg, res, m)
	h.log.Info("backtest stored",
		zap.String("id", run.ID),
		zap.Int("trades", m.NumTrades),
		zap.Float64("total_return_pct", m.TotalReturnPct),
	)
	return run, nil
}

func (h *BacktestHandler) baseConfig(preset string) (config.Config, error) {
	if preset == "" || h.presets == nil {
		return h.base.WithOverrides(nil), nil
	}
	return h.presets.Load(preset, h.base)
}

func (h *BacktestHandler) lookup(c *gin.Context) (*StoredRun, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_ID", "id must be a UUID", nil)
		return nil, false
	}
	run, ok := h.store.Get(id)
	if !ok {
		abortWithError(c, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("no backtest with id %s", id), nil)
		return nil, false
	}
	return run, true
}

func (h *BacktestHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errInvalidConfig):
		abortWithError(c, http.StatusBadRequest, "INVALID_CONFIG", err.Error(), nil)
	case errors.Is(err, errPresetNotFound):
		abortWithError(c, http.StatusNotFound, "PRESET_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, backtest.ErrNoTradingDays):
		abortWithError(c, http.StatusBadRequest, "NO_TRADING_DAYS", err.Error(), nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		abortWithError(c, http.StatusServiceUnavailable, "CANCELLED", err.Error(), nil)
	default:
		h.log.Error("backtest failed", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "BACKTEST_ERROR", err.Error(), nil)
	}
}

// buildConfig overlays a request's overrides and window onto base.
func buildConfig(base, override config.Config, explicit models.Overrides, start, end string) config.Config {
	cfg := config.Merge(base, override)
	explicit.Apply(&cfg)
	if start != "" {
		cfg.BacktestStart = start
	}
	if end != "" {
		cfg.BacktestEnd = end
	}
	return cfg
}

func buildResponse(run *StoredRun, opts models.BacktestOptions) models.BacktestResponse {
	res := run.Result
	resp := models.BacktestResponse{
		ID:        run.ID,
		Status:    "completed",
		CreatedAt: run.CreatedAt,
		Window: models.TimeWindow{
			Start: res.Start.Format(dateLayout),
			End:   res.End.Format(dateLayout),
		},
		Summary:    models.NewMetricsSummary(run.Metrics),
		Acceptance: analysis.Acceptance(run.Metrics),
		Config:     run.Config,
	}
	if opts.IncludeTrades {
		resp.Trades = backtest.TradeRows(res.Trades)
	}
	if opts.IncludeEquity {
		resp.Equity = backtest.EquityRows(res.EquityCurve)
	}
	return resp
}

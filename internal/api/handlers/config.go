package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"momentum-backtest/internal/api/models"
	"momentum-backtest/internal/config"
)

// ConfigHandler exposes the server's base configuration.
type ConfigHandler struct {
	base config.Config
}

func NewConfigHandler(base config.Config) *ConfigHandler {
	return &ConfigHandler{base: base.WithOverrides(nil)}
}

// Defaults handles GET /api/v1/config/defaults
func (h *ConfigHandler) Defaults(c *gin.Context) {
	cfg := h.base
	params := []models.ParameterInfo{
		{Name: "rsi_entry_threshold", Type: "float", Description: "Enter when RSI(2) closes below this value", Default: cfg.RSIEntryThreshold},
		{Name: "rsi_exit_threshold", Type: "float", Description: "Exit at the close once RSI(2) reaches this value", Default: cfg.RSIExitThreshold},
		{Name: "require_below_sma5", Type: "bool", Description: "Also require the close to be below its 5-day SMA", Default: cfg.RequireBelowSMA5},
		{Name: "stop_atr_multiple", Type: "float", Description: "Initial stop distance in ATRs below the entry price", Default: cfg.StopATRMultiple},
		{Name: "max_stop_percent", Type: "float", Description: "Cap on the stop distance as a percent of the entry price", Default: cfg.MaxStopPercent},
		{Name: "risk_per_trade", Type: "float", Description: "Fraction of account value risked per trade", Default: cfg.RiskPerTrade},
		{Name: "max_positions", Type: "int", Description: "Maximum concurrent positions", Default: cfg.MaxPositions},
		{Name: "max_sector_positions", Type: "int", Description: "Maximum concurrent positions per sector", Default: cfg.MaxSectorPositions},
		{Name: "time_stop_days", Type: "int", Description: "Exit after this many business days held", Default: cfg.TimeStopDays},
		{Name: "reentry_cooldown_days", Type: "int", Description: "Business days before a ticker may be entered again", Default: cfg.ReentryCooldownDays},
		{Name: "watchlist_size", Type: "int", Description: "Number of top relative-strength names scanned each day", Default: cfg.WatchlistSize},
		{Name: "sector_cap", Type: "int", Description: "Maximum watchlist names per sector", Default: cfg.SectorCap},
		{Name: "excluded_sectors", Type: "list", Description: "Sectors removed from the universe", Default: cfg.ExcludedSectors},
		{Name: "supplemental_tickers", Type: "list", Description: "Tickers scanned in addition to the watchlist", Default: cfg.SupplementalTickers},
	}
	c.JSON(http.StatusOK, gin.H{"config": cfg, "parameters": params})
}

package models

import "momentum-backtest/internal/config"

// BacktestRequest is the body of POST /api/v1/backtest.
type BacktestRequest struct {
	Start string `json:"start,omitempty"` // YYYY-MM-DD, default: config backtest_start
	End   string `json:"end,omitempty"`   // YYYY-MM-DD, default: config backtest_end

	// Preset names a YAML file in the preset directory used as the base
	// configuration instead of the server defaults.
	Preset string `json:"preset,omitempty"`
	// Config overlays non-zero fields onto the base configuration.
	Config config.Config `json:"config"`
	Overrides

	Options BacktestOptions `json:"options,omitempty"`
}

// Overrides set fields whose zero value is meaningful. A false or 0 in
// Config is indistinguishable from "not set", so these are applied after
// the overlay whenever they are present.
type Overrides struct {
	RequireBelowSMA5   *bool    `json:"require_below_sma5,omitempty"`
	SlippagePct        *float64 `json:"slippage_pct,omitempty"`
	CommissionPerTrade *float64 `json:"commission_per_trade,omitempty"`
}

// Apply writes every present override into cfg.
func (o Overrides) Apply(cfg *config.Config) {
	if o.RequireBelowSMA5 != nil {
		cfg.RequireBelowSMA5 = *o.RequireBelowSMA5
	}
	if o.SlippagePct != nil {
		cfg.SlippagePct = *o.SlippagePct
	}
	if o.CommissionPerTrade != nil {
		cfg.CommissionPerTrade = *o.CommissionPerTrade
	}
}

// BacktestOptions controls what the run response embeds.
type BacktestOptions struct {
	IncludeTrades bool `json:"include_trades,omitempty"`
	IncludeEquity bool `json:"include_equity,omitempty"`
}

// CompareBacktestRequest runs several variations over the same window.
type CompareBacktestRequest struct {
	Start      string              `json:"start,omitempty"`
	End        string              `json:"end,omitempty"`
	Preset     string              `json:"preset,omitempty"`
	BaseConfig config.Config       `json:"base_config"`
	Variations []BacktestVariation `json:"variations" binding:"required,min=1,dive"`
}

// BacktestVariation is one named override set.
type BacktestVariation struct {
	Name   string        `json:"name" binding:"required"`
	Config config.Config `json:"config"`
	Overrides
}

// WatchlistRequest is the query of GET /api/v1/watchlist.
type WatchlistRequest struct {
	Date  string `form:"date"`  // YYYY-MM-DD, default: last benchmark date
	Limit int    `form:"limit"` // default: watchlist_size
}

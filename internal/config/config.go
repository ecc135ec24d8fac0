package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

// Config is every tunable threshold of the strategy, flat, one YAML key each.
//
// A Config is fixed for a run. Overrides are applied by building a new value
// (Merge / WithOverrides) before the run starts; components copy it by value.
type Config struct {
	// Market regime
	RegimeIndex    string `yaml:"regime_index" json:"regime_index"`
	RegimeSMALong  int    `yaml:"regime_sma_long" json:"regime_sma_long"`
	RegimeSMAShort int    `yaml:"regime_sma_short" json:"regime_sma_short"`

	// Universe filter
	MinPrice        float64 `yaml:"min_price" json:"min_price"`
	MinAvgVolume    float64 `yaml:"min_avg_volume" json:"min_avg_volume"`
	AvgVolumeWindow int     `yaml:"avg_volume_window" json:"avg_volume_window"`
	TrendSMAPeriod  int     `yaml:"trend_sma_period" json:"trend_sma_period"`

	// Momentum ranking
	RSLookbackShort     int      `yaml:"rs_lookback_short" json:"rs_lookback_short"`
	RSLookbackMed       int      `yaml:"rs_lookback_med" json:"rs_lookback_med"`
	RSLookbackLong      int      `yaml:"rs_lookback_long" json:"rs_lookback_long"`
	RSWeightShort       float64  `yaml:"rs_weight_short" json:"rs_weight_short"`
	RSWeightMed         float64  `yaml:"rs_weight_med" json:"rs_weight_med"`
	RSWeightLong        float64  `yaml:"rs_weight_long" json:"rs_weight_long"`
	WatchlistSize       int      `yaml:"watchlist_size" json:"watchlist_size"`
	SectorCap           int      `yaml:"sector_cap" json:"sector_cap"`
	ExcludedSectors     []string `yaml:"excluded_sectors" json:"excluded_sectors"`
	SupplementalTickers []string `yaml:"supplemental_tickers" json:"supplemental_tickers"`

	// Entry trigger
	RSIPeriod         int     `yaml:"rsi_period" json:"rsi_period"`
	RSIEntryThreshold float64 `yaml:"rsi_entry_threshold" json:"rsi_entry_threshold"`
	RSIExitThreshold  float64 `yaml:"rsi_exit_threshold" json:"rsi_exit_threshold"`
	RequireBelowSMA5  bool    `yaml:"require_below_sma5" json:"require_below_sma5"`
	SMA5Period        int     `yaml:"sma5_period" json:"sma5_period"`

	// Risk management
	ATRPeriod           int     `yaml:"atr_period" json:"atr_period"`
	StopATRMultiple     float64 `yaml:"stop_atr_multiple" json:"stop_atr_multiple"`
	MaxStopPercent      float64 `yaml:"max_stop_percent" json:"max_stop_percent"`
	RiskPerTrade        float64 `yaml:"risk_per_trade" json:"risk_per_trade"`
	MaxPositions        int     `yaml:"max_positions" json:"max_positions"`
	MaxSectorPositions  int     `yaml:"max_sector_positions" json:"max_sector_positions"`
	TimeStopDays        int     `yaml:"time_stop_days" json:"time_stop_days"`
	ReentryCooldownDays int     `yaml:"reentry_cooldown_days" json:"reentry_cooldown_days"`

	// Backtesting
	InitialCapital     float64 `yaml:"initial_capital" json:"initial_capital"`
	SlippagePct        float64 `yaml:"slippage_pct" json:"slippage_pct"`
	CommissionPerTrade float64 `yaml:"commission_per_trade" json:"commission_per_trade"`
	BacktestStart      string  `yaml:"backtest_start" json:"backtest_start"`
	BacktestEnd        string  `yaml:"backtest_end" json:"backtest_end"`

	// Data
	CacheDir    string `yaml:"cache_dir" json:"cache_dir"`
	SectorsFile string `yaml:"sectors_file" json:"sectors_file"`
}

// Lookback is one (window, weight) term of the relative-strength composite.
type Lookback struct {
	Days   int
	Weight float64
}

// Default returns the reference parameter set.
func Default() Config {
	return Config{
		RegimeIndex:    "SPY",
		RegimeSMALong:  200,
		RegimeSMAShort: 50,

		MinPrice:        10.0,
		MinAvgVolume:    500_000,
		AvgVolumeWindow: 20,
		TrendSMAPeriod:  200,

		RSLookbackShort: 21,
		RSLookbackMed:   63,
		RSLookbackLong:  126,
		RSWeightShort:   0.20,
		RSWeightMed:     0.50,
		RSWeightLong:    0.30,
		WatchlistSize:   25,
		SectorCap:       8,

		RSIPeriod:         2,
		RSIEntryThreshold: 15,
		RSIExitThreshold:  75,
		RequireBelowSMA5:  true,
		SMA5Period:        5,

		ATRPeriod:           14,
		StopATRMultiple:     2.5,
		MaxStopPercent:      5.0,
		RiskPerTrade:        0.05,
		MaxPositions:        5,
		MaxSectorPositions:  2,
		TimeStopDays:        5,
		ReentryCooldownDays: 5,

		InitialCapital:     100_000,
		SlippagePct:        0.05,
		CommissionPerTrade: 0,
		BacktestStart:      "2021-01-01",
		BacktestEnd:        "2025-12-31",

		CacheDir: "data/cache",
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked reads a YAML file over the defaults but does not validate it.
// Keys missing from the file keep their default value.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &c, nil
}

// Save writes c as YAML.
func Save(c Config, path string) error {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	windows := []struct {
		name string
		v    int
	}{
		{"regime_sma_long", c.RegimeSMALong},
		{"regime_sma_short", c.RegimeSMAShort},
		{"avg_volume_window", c.AvgVolumeWindow},
		{"trend_sma_period", c.TrendSMAPeriod},
		{"rs_lookback_short", c.RSLookbackShort},
		{"rs_lookback_med", c.RSLookbackMed},
		{"rs_lookback_long", c.RSLookbackLong},
		{"rsi_period", c.RSIPeriod},
		{"sma5_period", c.SMA5Period},
		{"atr_period", c.ATRPeriod},
		{"watchlist_size", c.WatchlistSize},
		{"sector_cap", c.SectorCap},
		{"max_positions", c.MaxPositions},
		{"max_sector_positions", c.MaxSectorPositions},
		{"time_stop_days", c.TimeStopDays},
	}
	for _, w := range windows {
		if w.v <= 0 {
			return fmt.Errorf("%s must be > 0", w.name)
		}
	}
	if c.RegimeIndex == "" {
		return errors.New("regime_index is required")
	}
	if c.ReentryCooldownDays < 0 {
		return errors.New("reentry_cooldown_days must be >= 0")
	}
	if c.RSIEntryThreshold < 0 || c.RSIEntryThreshold > 100 || c.RSIExitThreshold < 0 || c.RSIExitThreshold > 100 {
		return errors.New("rsi thresholds must be within [0, 100]")
	}
	if c.StopATRMultiple <= 0 {
		return errors.New("stop_atr_multiple must be > 0")
	}
	if c.MaxStopPercent <= 0 {
		return errors.New("max_stop_percent must be > 0")
	}
	if c.RiskPerTrade <= 0 || c.RiskPerTrade > 1 {
		return errors.New("risk_per_trade must be in (0, 1]")
	}
	if c.InitialCapital <= 0 {
		return errors.New("initial_capital must be > 0")
	}
	if c.SlippagePct < 0 || c.CommissionPerTrade < 0 {
		return errors.New("slippage_pct and commission_per_trade must be >= 0")
	}
	if c.BacktestStart != "" || c.BacktestEnd != "" {
		if _, _, err := c.Period(); err != nil {
			return err
		}
	}
	return nil
}

// Period parses BacktestStart/BacktestEnd.
func (c Config) Period() (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, c.BacktestStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid backtest_start (expected YYYY-MM-DD): %w", err)
	}
	end, err := time.Parse(dateLayout, c.BacktestEnd)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid backtest_end (expected YYYY-MM-DD): %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("backtest_end is before backtest_start")
	}
	return start, end, nil
}

// RSLookbacks returns the composite terms in evaluation order (medium, long, short).
func (c Config) RSLookbacks() []Lookback {
	return []Lookback{
		{Days: c.RSLookbackMed, Weight: c.RSWeightMed},
		{Days: c.RSLookbackLong, Weight: c.RSWeightLong},
		{Days: c.RSLookbackShort, Weight: c.RSWeightShort},
	}
}

// LongestLookback is the largest relative-strength window.
func (c Config) LongestLookback() int {
	return max(c.RSLookbackShort, c.RSLookbackMed, c.RSLookbackLong)
}

// WithOverrides returns a copy of c with fn applied. Slices are copied so the
// original is never affected.
func (c Config) WithOverrides(fn func(*Config)) Config {
	out := c
	out.ExcludedSectors = append([]string(nil), c.ExcludedSectors...)
	out.SupplementalTickers = append([]string(nil), c.SupplementalTickers...)
	if fn != nil {
		fn(&out)
	}
	return out
}

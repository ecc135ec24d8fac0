package models

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"momentum-backtest/internal/analysis"
	"momentum-backtest/internal/backtest"
	"momentum-backtest/internal/config"
	"momentum-backtest/internal/strategy"
)

// BacktestResponse is returned by POST /api/v1/backtest and GET /api/v1/backtest/:id.
type BacktestResponse struct {
	ID         string               `json:"id"`
	Status     string               `json:"status"`
	CreatedAt  time.Time            `json:"created_at"`
	Window     TimeWindow           `json:"window"`
	Summary    MetricsSummary       `json:"summary"`
	Acceptance []analysis.Check     `json:"acceptance"`
	Config     config.Config        `json:"config"`
	Trades     []backtest.TradeRow  `json:"trades,omitempty"`
	Equity     []backtest.EquityRow `json:"equity,omitempty"`
}

// TimeWindow is the inclusive range of simulated dates.
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// MetricsSummary is the JSON form of analysis.Metrics. Money is rounded to
// cents and ratios to four places; values that cannot be represented in
// JSON (an infinite profit factor) are null.
type MetricsSummary struct {
	TotalReturnPct      float64        `json:"total_return_pct"`
	AnnualizedReturnPct float64        `json:"annualized_return_pct"`
	SharpeRatio         float64        `json:"sharpe_ratio"`
	SortinoRatio        float64        `json:"sortino_ratio"`
	ProfitFactor        *float64       `json:"profit_factor"`
	MaxDrawdownPct      float64        `json:"max_drawdown_pct"`
	MaxDrawdownDate     string         `json:"max_drawdown_date,omitempty"`
	NumTrades           int            `json:"num_trades"`
	WinRatePct          float64        `json:"win_rate_pct"`
	AvgWinPct           float64        `json:"avg_win_pct"`
	AvgLossPct          float64        `json:"avg_loss_pct"`
	AvgWinDollars       float64        `json:"avg_win_dollars"`
	AvgLossDollars      float64        `json:"avg_loss_dollars"`
	AvgHoldingDays      float64        `json:"avg_holding_days"`
	PositiveExpectancy  bool           `json:"positive_expectancy"`
	ExitReasons         map[string]int `json:"exit_reasons"`
	ExposurePct         float64        `json:"exposure_pct"`
	InitialCapital      float64        `json:"initial_capital"`
	FinalValue          float64        `json:"final_value"`
	TotalDays           int            `json:"total_days"`
	BenchmarkReturnPct  *float64       `json:"benchmark_return_pct"`
}

// NewMetricsSummary converts m for the wire.
func NewMetricsSummary(m analysis.Metrics) MetricsSummary {
	s := MetricsSummary{
		TotalReturnPct:      round(m.TotalReturnPct, 4),
		AnnualizedReturnPct: round(m.AnnualizedReturnPct, 4),
		SharpeRatio:         round(m.SharpeRatio, 4),
		SortinoRatio:        round(m.SortinoRatio, 4),
		ProfitFactor:        finite(m.ProfitFactor, 4),
		MaxDrawdownPct:      round(m.MaxDrawdownPct, 4),
		NumTrades:           m.NumTrades,
		WinRatePct:          round(m.WinRatePct, 4),
		AvgWinPct:           round(m.AvgWinPct, 4),
		AvgLossPct:          round(m.AvgLossPct, 4),
		AvgWinDollars:       round(m.AvgWinDollars, 2),
		AvgLossDollars:      round(m.AvgLossDollars, 2),
		AvgHoldingDays:      round(m.AvgHoldingDays, 2),
		PositiveExpectancy:  m.PositiveExpectancy,
		ExitReasons:         make(map[string]int, len(m.ExitReasons)),
		ExposurePct:         round(m.ExposurePct, 4),
		InitialCapital:      round(m.InitialCapital, 2),
		FinalValue:          round(m.FinalValue, 2),
		TotalDays:           m.TotalDays,
	}
	if !m.MaxDrawdownDate.IsZero() {
		s.MaxDrawdownDate = m.MaxDrawdownDate.Format("2006-01-02")
	}
	for reason, n := range m.ExitReasons {
		s.ExitReasons[string(reason)] = n
	}
	if m.BenchmarkReturnPct != nil {
		s.BenchmarkReturnPct = finite(*m.BenchmarkReturnPct, 4)
	}
	return s
}

func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func finite(v float64, places int32) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	r := round(v, places)
	return &r
}

// TradesResponse is returned by GET /api/v1/backtest/:id/trades.
type TradesResponse struct {
	ID     string              `json:"id"`
	Count  int                 `json:"count"`
	Trades []backtest.TradeRow `json:"trades"`
}

// EquityResponse is returned by GET /api/v1/backtest/:id/equity.
type EquityResponse struct {
	ID     string               `json:"id"`
	Count  int                  `json:"count"`
	Equity []backtest.EquityRow `json:"equity"`
	Regime []RegimeRow          `json:"regime"`
}

// RegimeRow is a RegimeDay for the wire; averages are null during warmup.
type RegimeRow struct {
	Date     string   `json:"date"`
	Close    float64  `json:"close"`
	SMALong  *float64 `json:"sma_long"`
	SMAShort *float64 `json:"sma_short"`
	Bullish  bool     `json:"bullish"`
}

func NewRegimeRows(days []strategy.RegimeDay) []RegimeRow {
	out := make([]RegimeRow, 0, len(days))
	for _, d := range days {
		out = append(out, RegimeRow{
			Date:     d.Date.Format("2006-01-02"),
			Close:    d.Close,
			SMALong:  finite(d.SMALong, 4),
			SMAShort: finite(d.SMAShort, 4),
			Bullish:  d.Bullish,
		})
	}
	return out
}

// CompareBacktestResponse lists variations best first.
type CompareBacktestResponse struct {
	Comparison []ComparisonResult `json:"comparison"`
	Failed     []FailedVariation  `json:"failed,omitempty"`
}

// ComparisonResult contains results for one variation.
type ComparisonResult struct {
	Rank    int            `json:"rank"`
	Name    string         `json:"name"`
	ID      string         `json:"id"`
	Summary MetricsSummary `json:"summary"`
}

// FailedVariation is a variation that could not be run.
type FailedVariation struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// WatchlistResponse is the ranked watchlist and today's entry signals.
type WatchlistResponse struct {
	Date          string                    `json:"date"`
	RegimeBullish bool                      `json:"regime_bullish"`
	Universe      int                       `json:"universe"`
	Eligible      int                       `json:"eligible"`
	Watchlist     []strategy.WatchlistEntry `json:"watchlist"`
	Signals       []SignalInfo              `json:"signals"`
}

// SignalInfo is an entry candidate with the trade it would size to.
type SignalInfo struct {
	Ticker   string  `json:"ticker"`
	Sector   string  `json:"sector"`
	RSI      float64 `json:"rsi"`
	Close    float64 `json:"close"`
	SMA5     float64 `json:"sma5"`
	SMA200   float64 `json:"sma200"`
	ATR      float64 `json:"atr,omitempty"`
	StopLoss float64 `json:"stop_loss,omitempty"`
	Shares   int     `json:"shares,omitempty"`
}

// TickersResponse is returned by GET /api/v1/tickers.
type TickersResponse struct {
	Benchmark string       `json:"benchmark"`
	Count     int          `json:"count"`
	Tickers   []TickerInfo `json:"tickers"`
}

// TickerInfo describes one loaded instrument.
type TickerInfo struct {
	Ticker    string `json:"ticker"`
	Sector    string `json:"sector"`
	Bars      int    `json:"bars"`
	FirstDate string `json:"first_date,omitempty"`
	LastDate  string `json:"last_date,omitempty"`
}

// PresetInfo describes a strategy configuration preset file.
type PresetInfo struct {
	ID                string  `json:"id"`
	File              string  `json:"file"`
	RSIEntryThreshold float64 `json:"rsi_entry_threshold"`
	RSIExitThreshold  float64 `json:"rsi_exit_threshold"`
	MaxPositions      int     `json:"max_positions"`
	RiskPerTrade      float64 `json:"risk_per_trade"`
}

// ParameterInfo describes a strategy parameter
type ParameterInfo struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"` // "float", "int", "bool", "string", "list"
	Description string      `json:"description"`
	Default     interface{} `json:"default"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

package strategy

import (
	"sort"
	"time"

	"momentum-backtest/internal/config"
	"momentum-backtest/internal/indicators"
)

// EntryParams are the oversold trigger thresholds.
type EntryParams struct {
	RSIThreshold     float64
	RequireBelowSMA5 bool
}

func EntryParamsFrom(cfg config.Config) EntryParams {
	return EntryParams{RSIThreshold: cfg.RSIEntryThreshold, RequireBelowSMA5: cfg.RequireBelowSMA5}
}

// CheckEntry reports whether the frame triggers a long entry on date:
// RSI below threshold while the close holds above the trend SMA and,
// when required, sits below the short SMA. Undefined values never fire.
func CheckEntry(f *Frame, date time.Time, p EntryParams) bool {
	r, ok := f.At(date)
	if !ok {
		return false
	}
	return entryFires(r, p)
}

func entryFires(r Row, p EntryParams) bool {
	if !indicators.Defined(r.RSI) || !indicators.Defined(r.SMATrend) {
		return false
	}
	if r.RSI >= p.RSIThreshold {
		return false
	}
	if r.Close <= r.SMATrend {
		return false
	}
	if p.RequireBelowSMA5 {
		if !indicators.Defined(r.SMAShort) || r.Close >= r.SMAShort {
			return false
		}
	}
	return true
}

// Candidate is a triggered entry found by ScanEntries.
type Candidate struct {
	Ticker   string  `json:"ticker"`
	RSI      float64 `json:"rsi"`
	Close    float64 `json:"close"`
	SMAShort float64 `json:"sma_short"`
	SMATrend float64 `json:"sma_trend"`
}

// ScanEntries checks every ticker with a frame and returns the triggered
// ones, most oversold first.
func ScanEntries(tickers []string, frames map[string]*Frame, date time.Time, p EntryParams) []Candidate {
	var out []Candidate
	for _, t := range tickers {
		r, ok := frames[t].At(date)
		if !ok || !entryFires(r, p) {
			continue
		}
		out = append(out, Candidate{Ticker: t, RSI: r.RSI, Close: r.Close, SMAShort: r.SMAShort, SMATrend: r.SMATrend})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RSI < out[j].RSI })
	return out
}

package strategy

import (
	"sort"
	"time"

	"momentum-backtest/internal/model"
)

// UniverseParams are the liquidity and trend thresholds of the filter.
type UniverseParams struct {
	MinPrice        float64
	MinAvgVolume    float64
	AvgVolumeWindow int
	TrendPeriod     int
}

// PassesFilter reports whether s is tradeable on date: it needs a bar on
// date, at least TrendPeriod bars of history, a close strictly above
// MinPrice, average volume >= MinAvgVolume and a close above its trend SMA.
func PassesFilter(s *model.Series, date time.Time, p UniverseParams) bool {
	if _, ok := s.IndexOf(date); !ok {
		return false
	}
	n := s.CountThrough(date)
	if n < p.TrendPeriod {
		return false
	}
	last := s.At(n - 1).Close
	if !(last > p.MinPrice) {
		return false
	}
	if tailMean(s, n, p.AvgVolumeWindow, func(b model.Bar) float64 { return b.Volume }) < p.MinAvgVolume {
		return false
	}
	return last > tailMean(s, n, p.TrendPeriod, func(b model.Bar) float64 { return b.Close })
}

// FilterUniverse returns the sorted tickers of u that pass on date.
func FilterUniverse(u model.Universe, date time.Time, p UniverseParams) []string {
	var out []string
	for ticker, s := range u {
		if PassesFilter(s, date, p) {
			out = append(out, ticker)
		}
	}
	sort.Strings(out)
	return out
}

// ExcludeSectors drops tickers whose sector is in excluded, keeping order.
func ExcludeSectors(tickers []string, sectors model.SectorMap, excluded []string) []string {
	if len(excluded) == 0 {
		return tickers
	}
	skip := make(map[string]bool, len(excluded))
	for _, s := range excluded {
		skip[s] = true
	}
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if !skip[sectors.Sector(t)] {
			out = append(out, t)
		}
	}
	return out
}

// tailMean averages field over the p bars ending at index n-1.
func tailMean(s *model.Series, n, p int, field func(model.Bar) float64) float64 {
	if p > n {
		p = n
	}
	if p <= 0 {
		return 0
	}
	var sum float64
	for i := n - p; i < n; i++ {
		sum += field(s.At(i))
	}
	return sum / float64(p)
}
